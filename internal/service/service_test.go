package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/freenoai/authd/internal/cache"
	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/internal/store"
	"github.com/freenoai/authd/pkg/jwtx"
)

// memStore is an in-memory store.Store used across the service tests.
type memStore struct {
	mu          sync.Mutex
	users       map[string]domain.User
	links       map[string]domain.IdentityLink // keyed by link id
	submissions map[string]domain.ThesisSubmission
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[string]domain.User),
		links:       make(map[string]domain.IdentityLink),
		submissions: make(map[string]domain.ThesisSubmission),
	}
}

func (m *memStore) Users() store.Users             { return (*memUsers)(m) }
func (m *memStore) Identities() store.Identities   { return (*memIdentities)(m) }
func (m *memStore) Submissions() store.Submissions { return (*memSubmissions)(m) }
func (m *memStore) ApplyMigrations() error         { return nil }
func (m *memStore) Ping(context.Context) error     { return nil }
func (m *memStore) Close() error                   { return nil }

func (m *memStore) WithTx(_ context.Context, fn func(tx store.Tx) error) error {
	return fn(m)
}

type memUsers memStore

func (m *memUsers) GetUserByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email && email != "" {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (m *memUsers) GetUserByPhone(_ context.Context, phone string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Phone == phone && phone != "" {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (m *memUsers) CreateUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if (u.Email != "" && existing.Email == u.Email) || (u.Phone != "" && existing.Phone == u.Phone) {
			return store.ErrAlreadyExists
		}
	}
	u.CreatedAt = time.Now()
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = newHash
	m.users[userID] = u
	return nil
}

func (m *memUsers) UpdatePhone(_ context.Context, userID, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.Phone = phone
	m.users[userID] = u
	return nil
}

func (m *memUsers) RecordLogin(_ context.Context, userID string, lc domain.LoginContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	u.LastLoginIP = lc.IP
	u.LastLoginUA = lc.UserAgent
	u.LastLoginAt = &now
	m.users[userID] = u
	return nil
}

type memIdentities memStore

func (m *memIdentities) GetByProviderExternalID(_ context.Context, provider domain.Provider, externalID string) (domain.IdentityLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.Provider == provider && l.ExternalID == externalID {
			return l, nil
		}
	}
	return domain.IdentityLink{}, store.ErrNotFound
}

func (m *memIdentities) GetByUserProvider(_ context.Context, userID string, provider domain.Provider) (domain.IdentityLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.UserID == userID && l.Provider == provider {
			return l, nil
		}
	}
	return domain.IdentityLink{}, store.ErrNotFound
}

func (m *memIdentities) ListByUser(_ context.Context, userID string) ([]domain.IdentityLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.IdentityLink
	for _, l := range m.links {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memIdentities) CreateLink(_ context.Context, link domain.IdentityLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.Provider == link.Provider && (l.ExternalID == link.ExternalID || l.UserID == link.UserID) {
			return store.ErrAlreadyExists
		}
	}
	link.CreatedAt = time.Now()
	m.links[link.ID] = link
	return nil
}

func (m *memIdentities) DeleteLink(_ context.Context, userID string, provider domain.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.links {
		if l.UserID == userID && l.Provider == provider {
			delete(m.links, id)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memIdentities) CountByUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.links {
		if l.UserID == userID {
			n++
		}
	}
	return n, nil
}

type memSubmissions memStore

func (m *memSubmissions) CreateSubmission(_ context.Context, s domain.ThesisSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.CreatedAt = time.Now()
	m.submissions[s.ID] = s
	return nil
}

func (m *memSubmissions) GetSubmissionByID(_ context.Context, id string) (domain.ThesisSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok {
		return domain.ThesisSubmission{}, store.ErrNotFound
	}
	return s, nil
}

func (m *memSubmissions) ListSubmissionsByUser(_ context.Context, userID string) ([]domain.ThesisSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ThesisSubmission
	for _, s := range m.submissions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memSubmissions) UpdateSubmissionReport(_ context.Context, id, reportID string, status domain.SubmissionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok {
		return store.ErrNotFound
	}
	s.ReportID = reportID
	s.Status = status
	s.UpdatedAt = time.Now()
	m.submissions[id] = s
	return nil
}

// test fixtures

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return cache.New(client, "authd-test", time.Minute, nil), mr
}

func newTestTokens(t *testing.T) (*TokenService, *miniredis.Miniredis) {
	t.Helper()

	c, mr := newTestCache(t)
	return &TokenService{
		Codec:      jwtx.NewCodec([]byte("test-secret-test-secret-test-sec"), "freenoai", 0),
		Cache:      c,
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}, mr
}
