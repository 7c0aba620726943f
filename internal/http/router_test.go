package http

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/freenoai/authd/internal/cache"
	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/internal/provider"
	"github.com/freenoai/authd/internal/service"
	"github.com/freenoai/authd/internal/store"
	"github.com/freenoai/authd/pkg/jwtx"
	"github.com/freenoai/authd/pkg/slogx"
)

// fakeStore is a minimal in-memory store.Store for handler tests.
type fakeStore struct {
	mu          sync.Mutex
	users       map[string]domain.User
	links       map[string]domain.IdentityLink
	submissions map[string]domain.ThesisSubmission
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[string]domain.User),
		links:       make(map[string]domain.IdentityLink),
		submissions: make(map[string]domain.ThesisSubmission),
	}
}

func (f *fakeStore) Users() store.Users             { return (*fakeUsers)(f) }
func (f *fakeStore) Identities() store.Identities   { return (*fakeIdentities)(f) }
func (f *fakeStore) Submissions() store.Submissions { return (*fakeSubmissions)(f) }
func (f *fakeStore) ApplyMigrations() error         { return nil }
func (f *fakeStore) Ping(context.Context) error     { return nil }
func (f *fakeStore) Close() error                   { return nil }
func (f *fakeStore) WithTx(_ context.Context, fn func(tx store.Tx) error) error {
	return fn(f)
}

type fakeUsers fakeStore

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email && email != "" {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (f *fakeUsers) GetUserByPhone(_ context.Context, phone string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Phone == phone && phone != "" {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (f *fakeUsers) CreateUser(_ context.Context, u domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if (u.Email != "" && existing.Email == u.Email) || (u.Phone != "" && existing.Phone == u.Phone) {
			return store.ErrAlreadyExists
		}
	}
	u.CreatedAt = time.Now()
	f.users[u.ID] = u
	return nil
}

func (f *fakeUsers) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = newHash
	f.users[userID] = u
	return nil
}

func (f *fakeUsers) UpdatePhone(_ context.Context, userID, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.Phone = phone
	f.users[userID] = u
	return nil
}

func (f *fakeUsers) RecordLogin(_ context.Context, userID string, lc domain.LoginContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	u.LastLoginIP = lc.IP
	u.LastLoginUA = lc.UserAgent
	u.LastLoginAt = &now
	f.users[userID] = u
	return nil
}

type fakeIdentities fakeStore

func (f *fakeIdentities) GetByProviderExternalID(_ context.Context, p domain.Provider, externalID string) (domain.IdentityLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.links {
		if l.Provider == p && l.ExternalID == externalID {
			return l, nil
		}
	}
	return domain.IdentityLink{}, store.ErrNotFound
}

func (f *fakeIdentities) GetByUserProvider(_ context.Context, userID string, p domain.Provider) (domain.IdentityLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.links {
		if l.UserID == userID && l.Provider == p {
			return l, nil
		}
	}
	return domain.IdentityLink{}, store.ErrNotFound
}

func (f *fakeIdentities) ListByUser(_ context.Context, userID string) ([]domain.IdentityLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.IdentityLink
	for _, l := range f.links {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeIdentities) CreateLink(_ context.Context, link domain.IdentityLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	link.CreatedAt = time.Now()
	f.links[link.ID] = link
	return nil
}

func (f *fakeIdentities) DeleteLink(_ context.Context, userID string, p domain.Provider) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, l := range f.links {
		if l.UserID == userID && l.Provider == p {
			delete(f.links, id)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeIdentities) CountByUser(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.links {
		if l.UserID == userID {
			n++
		}
	}
	return n, nil
}

type fakeSubmissions fakeStore

func (f *fakeSubmissions) CreateSubmission(_ context.Context, s domain.ThesisSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.CreatedAt = time.Now()
	f.submissions[s.ID] = s
	return nil
}

func (f *fakeSubmissions) GetSubmissionByID(_ context.Context, id string) (domain.ThesisSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.submissions[id]
	if !ok {
		return domain.ThesisSubmission{}, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeSubmissions) ListSubmissionsByUser(_ context.Context, userID string) ([]domain.ThesisSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ThesisSubmission
	for _, s := range f.submissions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeSubmissions) UpdateSubmissionReport(_ context.Context, id, reportID string, status domain.SubmissionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.submissions[id]
	if !ok {
		return store.ErrNotFound
	}
	s.ReportID = reportID
	s.Status = status
	s.UpdatedAt = time.Now()
	f.submissions[id] = s
	return nil
}

// recordSender keeps the most recent code instead of delivering it.
type recordSender struct {
	mu   sync.Mutex
	last string
}

func (s *recordSender) Send(_ context.Context, _ domain.Channel, _ string, code string, _ domain.Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = code
	return nil
}

func (s *recordSender) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

type fakeQR struct{}

func (fakeQR) Configured() bool { return true }
func (fakeQR) CreateQRCode(_ context.Context, sceneStr string, _ int) (string, error) {
	return "https://example.com/qr/" + sceneStr, nil
}

// fakeOAuth stands in for a code-exchanging third-party adapter.
type fakeOAuth struct{}

func (fakeOAuth) Name() domain.Provider { return domain.ProviderGitHub }
func (fakeOAuth) Configured() bool      { return true }
func (fakeOAuth) Exchange(_ context.Context, cred provider.Credential) (provider.ExternalIdentity, error) {
	if cred.Code != "gh-good" {
		return provider.ExternalIdentity{}, provider.ErrInvalidCredential
	}
	return provider.ExternalIdentity{ExternalID: "gh-1", DisplayName: "Ada"}, nil
}

const callbackToken = "cb-token"

// signedCallbackPath signs the scan callback the way the platform does.
func signedCallbackPath(timestamp, nonce string) string {
	parts := []string{callbackToken, timestamp, nonce}
	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "")))
	return "/auth/wechat/callback?signature=" + hex.EncodeToString(sum[:]) +
		"&timestamp=" + timestamp + "&nonce=" + nonce
}

type routerFixture struct {
	router  *Router
	sender  *recordSender
	mr      *miniredis.Miniredis
	checker *httptest.Server
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := cache.New(client, "authd-test", time.Minute, nil)

	st := newFakeStore()
	tokens := &service.TokenService{
		Codec:      jwtx.NewCodec([]byte("test-secret-test-secret-test-sec"), "freenoai", 0),
		Cache:      c,
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}
	sender := &recordSender{}
	codes := &service.VerificationService{
		Cache:        c,
		Sender:       sender,
		CodeTTL:      10 * time.Minute,
		SendInterval: time.Minute,
		CodeLength:   6,
		MaxAttempts:  3,
	}
	mp := provider.NewWeChatMP(provider.WeChatConfig{AppID: "app", AppSecret: "secret", Token: callbackToken})
	auth := &service.AuthService{
		Store:  st,
		Tokens: tokens,
		Codes:  codes,
		Providers: provider.NewRegistry(
			provider.NewEmailPassword(st.Users()),
			provider.NewPhoneCode(codes),
			mp,
			fakeOAuth{},
		),
	}

	checker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"reportId": "rep-1"})
	}))
	t.Cleanup(checker.Close)

	router := NewRouter("test", st, slogx.New(slogx.Config{Service: "authd", Level: "error"}))
	router.AuthService = auth
	router.TokenService = tokens
	router.CodeService = codes
	router.ThesisService = service.NewThesisService(st, c, checker.URL)
	router.Scenes = provider.NewScenes(fakeQR{}, c, time.Minute)
	router.WeChatMP = mp
	router.ApplyRoutes()

	return &routerFixture{router: router, sender: sender, mr: mr, checker: checker}
}

func (f *routerFixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

func (f *routerFixture) register(t *testing.T, email string) sessionResponse {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/auth/email/register", "", map[string]string{
		"email": email, "password": "hunter22", "name": "Ada",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var session sessionResponse
	decodeBody(t, rec, &session)
	return session
}
