package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/freenoai/authd/internal/cache"
	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/pkg/cryptox"
	"github.com/freenoai/authd/pkg/slogx"
)

var (
	// ErrInvalidCode covers an absent, mismatched, expired, or burned
	// one-time code. The sub-cases are indistinguishable to the caller.
	ErrInvalidCode = errors.New("service: invalid or expired code")

	// ErrRateLimited reports a send attempt inside the per-address
	// cool-down window.
	ErrRateLimited = errors.New("service: too many code requests")
)

const (
	defaultCodeTTL      = 10 * time.Minute
	defaultSendInterval = time.Minute
	defaultCodeLength   = 6
	defaultMaxAttempts  = 5

	codeKeyPrefix     = "verify-code:"
	sendLockKeyPrefix = "send-code:"
)

// VerificationService issues and consumes one-time codes. A single code
// is live per (channel, address, purpose) key; sending again inside the
// cool-down window is refused, and a code is burned after too many
// failed matches.
type VerificationService struct {
	Cache        *cache.Cache
	Sender       Sender
	CodeTTL      time.Duration
	SendInterval time.Duration
	CodeLength   int
	MaxAttempts  int
}

func codeKey(channel domain.Channel, address string, purpose domain.Purpose) string {
	return codeKeyPrefix + string(channel) + ":" + address + ":" + string(purpose)
}

// Send issues a fresh code and hands it to the Sender. The per-address
// lock lives for the whole cool-down interval; it is never released
// after the send.
func (s *VerificationService) Send(ctx context.Context, channel domain.Channel, address string, purpose domain.Purpose) error {
	interval := s.SendInterval
	if interval <= 0 {
		interval = defaultSendInterval
	}
	if _, ok := s.Cache.AcquireLock(ctx, sendLockKeyPrefix+string(channel)+":"+address, interval); !ok {
		return ErrRateLimited
	}

	length := s.CodeLength
	if length <= 0 {
		length = defaultCodeLength
	}
	code, err := cryptox.GenerateNumericCode(length)
	if err != nil {
		return err
	}

	ttl := s.CodeTTL
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}
	s.Cache.Set(ctx, codeKey(channel, address, purpose), domain.VerificationCode{
		Code:      code,
		ExpiresAt: time.Now().Add(ttl),
	}, cache.Options{TTL: ttl})

	if err := s.Sender.Send(ctx, channel, address, code, purpose); err != nil {
		slogx.FromContext(ctx).Error("code delivery failed",
			"channel", string(channel), "address", address, "err", err)
		return err
	}
	return nil
}

// Consume verifies and burns a code. A successful match deletes the code
// before anything else happens, so the same code can never verify twice.
// A mismatch counts against the attempt budget; exhausting it burns the
// code as well.
func (s *VerificationService) Consume(ctx context.Context, channel domain.Channel, address, code string, purpose domain.Purpose) error {
	key := codeKey(channel, address, purpose)

	var rec domain.VerificationCode
	if !s.Cache.Get(ctx, key, &rec) {
		return ErrInvalidCode
	}

	remaining := time.Until(rec.ExpiresAt)
	if remaining <= 0 {
		s.Cache.Delete(ctx, key)
		return ErrInvalidCode
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		rec.Attempts++
		maxAttempts := s.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = defaultMaxAttempts
		}
		if rec.Attempts >= maxAttempts {
			s.Cache.Delete(ctx, key)
		} else {
			s.Cache.Set(ctx, key, rec, cache.Options{TTL: remaining})
		}
		return ErrInvalidCode
	}

	s.Cache.Delete(ctx, key)
	return nil
}
