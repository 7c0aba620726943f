package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed covers signature, algorithm, and issuer mismatches as
	// well as structurally broken tokens. Callers must not distinguish the
	// sub-cases to avoid leaking verification internals.
	ErrMalformed = errors.New("jwtx: malformed token")

	// ErrExpired reports a token past its expiry (or before its nbf).
	ErrExpired = errors.New("jwtx: token expired")
)

// Codec signs and verifies session tokens with a single symmetric HMAC
// scheme (HS256). The algorithm is fixed: a token presenting any other
// "alg" header fails verification as malformed.
type Codec struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewCodec constructs a Codec. leeway allows small clock skew when
// validating exp/nbf; pass 0 for strict validation.
func NewCodec(secret []byte, issuer string, leeway time.Duration) *Codec {
	return &Codec{secret: secret, issuer: issuer, leeway: leeway}
}

// Issuer returns the issuer claim stamped onto signed tokens.
func (c *Codec) Issuer() string { return c.issuer }

// Sign produces a signed compact JWT for the given claims.
func (c *Codec) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// ParseOptions tune token verification.
type ParseOptions struct {
	// IgnoreExpiration accepts tokens past their expiry, provided the
	// signature and issuer still verify. Used only to read claims from an
	// expired-but-not-revoked refresh token so the caller can distinguish
	// "expired" from "invalid".
	IgnoreExpiration bool
}

// Parse verifies a token's signature, algorithm, and issuer, then its
// expiry unless opts.IgnoreExpiration is set. On success the claims are
// returned. Failure modes are ErrExpired and ErrMalformed.
func (c *Codec) Parse(tokenStr string, opts ParseOptions) (Claims, error) {
	var claims Claims

	_, err := jwt.ParseWithClaims(
		tokenStr,
		&claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithLeeway(c.leeway),
	)
	if err != nil {
		// The library verifies the signature before validating claims, so
		// an expiry error implies the signature is authentic. Claim errors
		// are joined: expiry can arrive together with an issuer mismatch,
		// which must reject even when expiry is ignored.
		if errors.Is(err, jwt.ErrTokenExpired) {
			if errors.Is(err, jwt.ErrTokenInvalidIssuer) {
				return Claims{}, ErrMalformed
			}
			if opts.IgnoreExpiration {
				return claims, nil
			}
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrMalformed
	}

	return claims, nil
}

// Decode extracts claims without verifying the signature or expiry. It is a
// best-effort read used when blacklisting: even a token we would no longer
// accept still carries the expiry needed to bound the blacklist entry.
func (c *Codec) Decode(tokenStr string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, &claims); err != nil {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
