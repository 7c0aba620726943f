package provider

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// sealMiniPayload encrypts plaintext the way the Mini Program client
// does: AES-128-CBC with PKCS#7 padding, everything base64.
func sealMiniPayload(t *testing.T, plaintext, key, iv []byte) string {
	t.Helper()

	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	pad := block.BlockSize() - len(plaintext)%block.BlockSize()
	padded := make([]byte, len(plaintext)+pad)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(pad)
	}

	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out)
}

func TestMPExchangeRefusesRawOpenID(t *testing.T) {
	t.Parallel()

	w := NewWeChatMP(WeChatConfig{AppID: "app", AppSecret: "secret", Token: "cb-token"})

	// An openid is not a credential: whoever has seen one could replay
	// it, so the adapter must never mint an identity from it.
	_, err := w.Exchange(context.Background(), Credential{Code: "victim-openid"})
	require.ErrorIs(t, err, ErrInvalidCredential)

	_, err = w.Exchange(context.Background(), Credential{})
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestMPVerifySignature(t *testing.T) {
	t.Parallel()

	w := NewWeChatMP(WeChatConfig{AppID: "app", AppSecret: "secret", Token: "cb-token"})

	sign := func(token, timestamp, nonce string) string {
		parts := []string{token, timestamp, nonce}
		sort.Strings(parts)
		sum := sha1.Sum([]byte(strings.Join(parts, "")))
		return hex.EncodeToString(sum[:])
	}

	good := sign("cb-token", "1700000000", "nonce-1")
	require.True(t, w.VerifySignature(good, "1700000000", "nonce-1"))
	require.True(t, w.VerifySignature(strings.ToUpper(good), "1700000000", "nonce-1"))

	require.False(t, w.VerifySignature(good, "1700000001", "nonce-1"), "tampered timestamp")
	require.False(t, w.VerifySignature(sign("guessed", "1700000000", "nonce-1"), "1700000000", "nonce-1"), "wrong token")
	require.False(t, w.VerifySignature("", "1700000000", "nonce-1"), "missing signature")

	// Without a configured callback token nothing verifies.
	bare := NewWeChatMP(WeChatConfig{AppID: "app", AppSecret: "secret"})
	require.False(t, bare.VerifySignature(sign("", "1700000000", "nonce-1"), "1700000000", "nonce-1"))
}

func TestMiniDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	key := []byte("0123456789abcdef")
	iv := []byte("fedcba9876543210")
	plaintext := []byte(`{"phoneNumber":"13800000000","countryCode":"86"}`)

	w := NewWeChatMini(WeChatConfig{AppID: "app", AppSecret: "secret"})
	got, err := w.Decrypt(
		sealMiniPayload(t, plaintext, key, iv),
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(key),
	)
	require.NoError(t, err)
	require.JSONEq(t, string(plaintext), string(got))

	var parsed struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	require.NoError(t, json.Unmarshal(got, &parsed))
	require.Equal(t, "13800000000", parsed.PhoneNumber)
}

func TestMiniDecryptRejectsBadInput(t *testing.T) {
	t.Parallel()

	key := []byte("0123456789abcdef")
	iv := []byte("fedcba9876543210")
	w := NewWeChatMini(WeChatConfig{AppID: "app", AppSecret: "secret"})

	b64 := base64.StdEncoding.EncodeToString

	t.Run("not base64", func(t *testing.T) {
		t.Parallel()
		_, err := w.Decrypt("%%%", b64(iv), b64(key))
		require.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("wrong key length", func(t *testing.T) {
		t.Parallel()
		sealed := sealMiniPayload(t, []byte(`{}`), key, iv)
		_, err := w.Decrypt(sealed, b64(iv), b64([]byte("short")))
		require.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("wrong key corrupts padding or json", func(t *testing.T) {
		t.Parallel()
		sealed := sealMiniPayload(t, []byte(`{"a":1}`), key, iv)
		_, err := w.Decrypt(sealed, b64(iv), b64([]byte("fffffffFFFFFFFFF")))
		require.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("truncated ciphertext", func(t *testing.T) {
		t.Parallel()
		_, err := w.Decrypt(b64([]byte("tooshort")), b64(iv), b64(key))
		require.ErrorIs(t, err, ErrDecryptionFailed)
	})
}

func TestStripPKCS7(t *testing.T) {
	t.Parallel()

	got, err := stripPKCS7([]byte{'a', 'b', 2, 2}, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{'a', 'b'}, got)

	_, err = stripPKCS7([]byte{'a', 'b', 'c', 0}, 4)
	require.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = stripPKCS7([]byte{'a', 'b', 3, 2}, 4)
	require.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = stripPKCS7([]byte{1, 2, 3, 5}, 4)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}
