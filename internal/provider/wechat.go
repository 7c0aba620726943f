package provider

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/freenoai/authd/internal/domain"
)

const (
	wechatAPIBase    = "https://api.weixin.qq.com"
	wechatShowQRBase = "https://mp.weixin.qq.com/cgi-bin/showqrcode"

	// wechatSystemBusy is the only errcode WeChat documents as retryable.
	wechatSystemBusy = -1
)

// wxStatus is embedded in every WeChat API response. WeChat reports
// failures with HTTP 200 and a non-zero errcode.
type wxStatus struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (s wxStatus) err() error {
	switch s.ErrCode {
	case 0:
		return nil
	case wechatSystemBusy:
		return fmt.Errorf("%w: wechat system busy", ErrUpstreamUnavailable)
	default:
		return fmt.Errorf("%w: wechat errcode %d: %s", ErrInvalidCredential, s.ErrCode, s.ErrMsg)
	}
}

// WeChatConfig carries one WeChat app's credentials. Each of the three
// platform variants has its own app id and secret. Token is the server
// callback token the official-account platform signs notifications with;
// only the MP adapter reads it.
type WeChatConfig struct {
	AppID     string
	AppSecret string
	Token     string
}

func (c WeChatConfig) configured() bool {
	return c.AppID != "" && c.AppSecret != ""
}

// WeChatMP is the official-account adapter behind QR-code login. The
// scanned open id arrives through the platform's signed server callback
// and the scene flow opens the session; Exchange refuses every
// client-supplied credential.
type WeChatMP struct {
	cfg    WeChatConfig
	client *httpClient

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewWeChatMP(cfg WeChatConfig) *WeChatMP {
	return &WeChatMP{cfg: cfg, client: newHTTPClient()}
}

func (w *WeChatMP) Name() domain.Provider { return domain.ProviderWeChatMP }

func (w *WeChatMP) Configured() bool { return w.cfg.configured() }

// Exchange always refuses. An openid is public to anyone who has seen
// it, so accepting one as a credential would let any caller open the
// matching account's session. The only trusted source of openids is the
// signature-verified platform callback.
func (w *WeChatMP) Exchange(ctx context.Context, cred Credential) (ExternalIdentity, error) {
	if !w.Configured() {
		return ExternalIdentity{}, ErrNotConfigured
	}
	return ExternalIdentity{}, fmt.Errorf("%w: official-account logins complete through the qr scan flow", ErrInvalidCredential)
}

// VerifySignature checks a platform callback's signature: the sha1 hex
// digest of the sorted callback token, timestamp, and nonce. With no
// token configured every callback is rejected.
func (w *WeChatMP) VerifySignature(signature, timestamp, nonce string) bool {
	if w.cfg.Token == "" || signature == "" {
		return false
	}

	parts := []string{w.cfg.Token, timestamp, nonce}
	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "")))
	expected := hex.EncodeToString(sum[:])

	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) == 1
}

// CreateQRCode registers a string-scene QR code and returns the image
// URL the client renders for scanning.
func (w *WeChatMP) CreateQRCode(ctx context.Context, sceneStr string, expireSeconds int) (string, error) {
	if !w.Configured() {
		return "", ErrNotConfigured
	}

	token, err := w.getAccessToken(ctx)
	if err != nil {
		return "", err
	}

	var resp struct {
		wxStatus
		Ticket string `json:"ticket"`
	}
	payload := map[string]any{
		"expire_seconds": expireSeconds,
		"action_name":    "QR_STR_SCENE",
		"action_info": map[string]any{
			"scene": map[string]any{"scene_str": sceneStr},
		},
	}
	createURL := wechatAPIBase + "/cgi-bin/qrcode/create?access_token=" + url.QueryEscape(token)
	if err := w.client.postJSON(ctx, createURL, payload, &resp); err != nil {
		return "", err
	}
	if err := resp.err(); err != nil {
		return "", err
	}
	return wechatShowQRBase + "?ticket=" + url.QueryEscape(resp.Ticket), nil
}

// getAccessToken returns the app access token, reusing the cached one
// until shortly before WeChat's reported expiry.
func (w *WeChatMP) getAccessToken(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.accessToken != "" && time.Now().Before(w.tokenExpiry) {
		return w.accessToken, nil
	}

	var resp struct {
		wxStatus
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	q := url.Values{
		"grant_type": {"client_credential"},
		"appid":      {w.cfg.AppID},
		"secret":     {w.cfg.AppSecret},
	}
	if err := w.client.getJSON(ctx, wechatAPIBase+"/cgi-bin/token?"+q.Encode(), &resp); err != nil {
		return "", err
	}
	if err := resp.err(); err != nil {
		return "", err
	}

	w.accessToken = resp.AccessToken
	w.tokenExpiry = time.Now().Add(time.Duration(resp.ExpiresIn-60) * time.Second)
	return w.accessToken, nil
}

// WeChatMini is the Mini Program adapter. Exchange runs the
// code2session flow; Decrypt opens the encrypted user payloads the
// Mini Program client forwards.
type WeChatMini struct {
	cfg    WeChatConfig
	client *httpClient
}

func NewWeChatMini(cfg WeChatConfig) *WeChatMini {
	return &WeChatMini{cfg: cfg, client: newHTTPClient()}
}

func (w *WeChatMini) Name() domain.Provider { return domain.ProviderWeChatMini }

func (w *WeChatMini) Configured() bool { return w.cfg.configured() }

func (w *WeChatMini) Exchange(ctx context.Context, cred Credential) (ExternalIdentity, error) {
	if !w.Configured() {
		return ExternalIdentity{}, ErrNotConfigured
	}
	if cred.Code == "" {
		return ExternalIdentity{}, fmt.Errorf("%w: missing js_code", ErrInvalidCredential)
	}

	session, err := w.CodeToSession(ctx, cred.Code)
	if err != nil {
		return ExternalIdentity{}, err
	}
	return ExternalIdentity{ExternalID: session.OpenID}, nil
}

// MiniSession is the result of the code2session flow. SessionKey is
// needed by Decrypt and must never leave the server.
type MiniSession struct {
	OpenID     string `json:"openid"`
	UnionID    string `json:"unionid"`
	SessionKey string `json:"session_key"`
}

func (w *WeChatMini) CodeToSession(ctx context.Context, jsCode string) (MiniSession, error) {
	if !w.Configured() {
		return MiniSession{}, ErrNotConfigured
	}

	var resp struct {
		wxStatus
		MiniSession
	}
	q := url.Values{
		"appid":      {w.cfg.AppID},
		"secret":     {w.cfg.AppSecret},
		"js_code":    {jsCode},
		"grant_type": {"authorization_code"},
	}
	if err := w.client.getJSON(ctx, wechatAPIBase+"/sns/jscode2session?"+q.Encode(), &resp); err != nil {
		return MiniSession{}, err
	}
	if err := resp.err(); err != nil {
		return MiniSession{}, err
	}
	if resp.OpenID == "" {
		return MiniSession{}, fmt.Errorf("%w: empty openid", ErrInvalidCredential)
	}
	return resp.MiniSession, nil
}

// Decrypt opens a Mini Program encrypted payload. All three arguments
// are base64; the plaintext is AES-128-CBC with PKCS#7 padding and must
// decode as JSON.
func (w *WeChatMini) Decrypt(encryptedData, iv, sessionKey string) (json.RawMessage, error) {
	key, err := base64.StdEncoding.DecodeString(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: bad session key", ErrDecryptionFailed)
	}
	rawIV, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return nil, fmt.Errorf("%w: bad iv", ErrDecryptionFailed)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encryptedData)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext", ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: bad key length", ErrDecryptionFailed)
	}
	if len(rawIV) != block.BlockSize() || len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("%w: bad block alignment", ErrDecryptionFailed)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, rawIV).CryptBlocks(plaintext, ciphertext)

	plaintext, err = stripPKCS7(plaintext, block.BlockSize())
	if err != nil {
		return nil, err
	}
	if !json.Valid(plaintext) {
		return nil, fmt.Errorf("%w: plaintext is not json", ErrDecryptionFailed)
	}
	return json.RawMessage(plaintext), nil
}

func stripPKCS7(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryptionFailed)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecryptionFailed)
		}
	}
	return data[:len(data)-n], nil
}

// WeChatOpen is the Open Platform adapter for website OAuth logins.
type WeChatOpen struct {
	cfg    WeChatConfig
	client *httpClient
}

func NewWeChatOpen(cfg WeChatConfig) *WeChatOpen {
	return &WeChatOpen{cfg: cfg, client: newHTTPClient()}
}

func (w *WeChatOpen) Name() domain.Provider { return domain.ProviderWeChatOpen }

func (w *WeChatOpen) Configured() bool { return w.cfg.configured() }

func (w *WeChatOpen) Exchange(ctx context.Context, cred Credential) (ExternalIdentity, error) {
	if !w.Configured() {
		return ExternalIdentity{}, ErrNotConfigured
	}
	if cred.Code == "" {
		return ExternalIdentity{}, fmt.Errorf("%w: missing code", ErrInvalidCredential)
	}

	var tokenResp struct {
		wxStatus
		AccessToken string `json:"access_token"`
		OpenID      string `json:"openid"`
	}
	q := url.Values{
		"appid":      {w.cfg.AppID},
		"secret":     {w.cfg.AppSecret},
		"code":       {cred.Code},
		"grant_type": {"authorization_code"},
	}
	if err := w.client.getJSON(ctx, wechatAPIBase+"/sns/oauth2/access_token?"+q.Encode(), &tokenResp); err != nil {
		return ExternalIdentity{}, err
	}
	if err := tokenResp.err(); err != nil {
		return ExternalIdentity{}, err
	}

	var info struct {
		wxStatus
		OpenID   string `json:"openid"`
		UnionID  string `json:"unionid"`
		Nickname string `json:"nickname"`
	}
	q = url.Values{
		"access_token": {tokenResp.AccessToken},
		"openid":       {tokenResp.OpenID},
		"lang":         {"zh_CN"},
	}
	if err := w.client.getJSON(ctx, wechatAPIBase+"/sns/userinfo?"+q.Encode(), &info); err != nil {
		return ExternalIdentity{}, err
	}
	if err := info.err(); err != nil {
		return ExternalIdentity{}, err
	}

	externalID := info.UnionID
	if externalID == "" {
		externalID = info.OpenID
	}
	return ExternalIdentity{ExternalID: externalID, DisplayName: info.Nickname}, nil
}
