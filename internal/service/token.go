// Package service implements the authentication core: token issuance and
// revocation, verification codes, the login/register/bind orchestrator,
// and the thesis submission facade.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/freenoai/authd/internal/cache"
	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/pkg/cryptox"
	"github.com/freenoai/authd/pkg/jwtx"
	"github.com/freenoai/authd/pkg/slogx"
)

// ErrRevoked reports a blacklisted token. A revoked token stays revoked;
// the blacklist entry outlives the token's own expiry window.
var ErrRevoked = errors.New("service: token revoked")

const (
	blacklistKeyPrefix = "blacklist:"
	tokenKeyPrefix     = "token:"
	userTokensTag      = "user-tokens:"
)

// tokenRecord tracks an issued token so revokeAllForUser can find it.
type tokenRecord struct {
	Fingerprint string    `json:"fp"`
	ExpiresAt   time.Time `json:"exp"`
}

// TokenService issues, verifies, and revokes session tokens. Revocation
// state lives in the cache; if the cache is unreachable, verification
// degrades to signature-and-expiry checks only.
type TokenService struct {
	Codec      *jwtx.Codec
	Cache      *cache.Cache
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// VerifyOptions tune Verify.
type VerifyOptions struct {
	// IgnoreExpiration accepts an expired token, provided it is authentic
	// and not blacklisted. Used only during refresh to tell "expired"
	// apart from "forged".
	IgnoreExpiration bool
}

// IssuePair signs a fresh access and refresh token for the user. Both are
// recorded under the user's token tag so RevokeAllForUser can find them.
func (s *TokenService) IssuePair(ctx context.Context, user domain.User) (domain.TokenPair, error) {
	now := time.Now()

	access, err := s.Codec.Sign(jwtx.NewClaims(user.ID, user.Name, user.Email, "", s.AccessTTL, s.Codec.Issuer(), now))
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := s.Codec.Sign(jwtx.NewClaims(user.ID, user.Name, user.Email, jwtx.TypeRefresh, s.RefreshTTL, s.Codec.Issuer(), now))
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.track(ctx, user.ID, access, now.Add(s.AccessTTL))
	s.track(ctx, user.ID, refresh, now.Add(s.RefreshTTL))

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// track stores a token record tagged by user id. Tracking is best-effort;
// an untracked token still verifies and can still be blacklisted directly.
func (s *TokenService) track(ctx context.Context, userID, token string, expiresAt time.Time) {
	fp := cryptox.FingerprintToken(token)
	s.Cache.Set(ctx, tokenKeyPrefix+fp,
		tokenRecord{Fingerprint: fp, ExpiresAt: expiresAt},
		cache.Options{
			TTL:  time.Until(expiresAt),
			Tags: []string{userTokensTag + userID},
		})
}

// Verify checks the blacklist before anything else so a revoked token is
// never accepted no matter how valid its signature still is. Fails with
// ErrRevoked, jwtx.ErrExpired, or jwtx.ErrMalformed.
func (s *TokenService) Verify(ctx context.Context, token string, opts VerifyOptions) (jwtx.Claims, error) {
	if s.isBlacklisted(ctx, token) {
		return jwtx.Claims{}, ErrRevoked
	}
	return s.Codec.Parse(token, jwtx.ParseOptions{IgnoreExpiration: opts.IgnoreExpiration})
}

// VerifyAccessToken verifies a token and additionally rejects refresh
// tokens presented where an access token is required.
func (s *TokenService) VerifyAccessToken(ctx context.Context, token string) (jwtx.Claims, error) {
	claims, err := s.Verify(ctx, token, VerifyOptions{})
	if err != nil {
		return jwtx.Claims{}, err
	}
	if claims.IsRefresh() {
		return jwtx.Claims{}, jwtx.ErrMalformed
	}
	return claims, nil
}

// VerifyRefreshToken verifies a token and rejects non-refresh tokens.
func (s *TokenService) VerifyRefreshToken(ctx context.Context, token string, opts VerifyOptions) (jwtx.Claims, error) {
	claims, err := s.Verify(ctx, token, opts)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if !claims.IsRefresh() {
		return jwtx.Claims{}, jwtx.ErrMalformed
	}
	return claims, nil
}

// Blacklist revokes a token. The entry's TTL is the token's own remaining
// lifetime, so the blacklist never outgrows the set of live tokens.
// Blacklisting an already-revoked or expired token is a no-op, which makes
// the operation idempotent.
func (s *TokenService) Blacklist(ctx context.Context, token string) {
	claims, err := s.Codec.Decode(token)
	if err != nil {
		// Not even structurally a token; nothing to revoke.
		return
	}

	ttl := claims.RemainingTTL(time.Now())
	if ttl == 0 {
		return
	}
	s.Cache.Set(ctx, blacklistKeyPrefix+cryptox.FingerprintToken(token), true, cache.Options{TTL: ttl})
}

func (s *TokenService) isBlacklisted(ctx context.Context, token string) bool {
	var marker bool
	return s.Cache.Get(ctx, blacklistKeyPrefix+cryptox.FingerprintToken(token), &marker)
}

// RevokeAllForUser blacklists every tracked token for the user and clears
// the tracking tag. Best-effort: tokens whose records already expired are
// simply gone, which is the desired outcome anyway.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) {
	log := slogx.FromContext(ctx)

	keys := s.Cache.Members(ctx, userTokensTag+userID)
	revoked := 0
	now := time.Now()
	for _, key := range keys {
		var rec tokenRecord
		if !s.Cache.Get(ctx, key, &rec) {
			continue
		}
		ttl := rec.ExpiresAt.Sub(now)
		if ttl <= 0 {
			continue
		}
		s.Cache.Set(ctx, blacklistKeyPrefix+rec.Fingerprint, true, cache.Options{TTL: ttl})
		revoked++
	}
	s.Cache.DeleteByTag(ctx, userTokensTag+userID)

	log.Info("revoked all user tokens", "user_id", userID, "tracked", len(keys), "revoked", revoked)
}
