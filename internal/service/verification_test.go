package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/freenoai/authd/internal/domain"
)

// captureSender keeps the last issued code instead of delivering it.
type captureSender struct {
	lastCode string
	err      error
}

func (s *captureSender) Send(_ context.Context, _ domain.Channel, _ string, code string, _ domain.Purpose) error {
	if s.err != nil {
		return s.err
	}
	s.lastCode = code
	return nil
}

func newTestCodes(t *testing.T) (*VerificationService, *captureSender) {
	t.Helper()

	c, _ := newTestCache(t)
	sender := &captureSender{}
	return &VerificationService{
		Cache:        c,
		Sender:       sender,
		CodeTTL:      10 * time.Minute,
		SendInterval: time.Minute,
		CodeLength:   6,
		MaxAttempts:  3,
	}, sender
}

func TestCodeIsSingleUse(t *testing.T) {
	t.Parallel()

	codes, sender := newTestCodes(t)
	ctx := context.Background()

	require.NoError(t, codes.Send(ctx, domain.ChannelSMS, "13800000000", domain.PurposeLogin))
	require.Len(t, sender.lastCode, 6)

	require.NoError(t, codes.Consume(ctx, domain.ChannelSMS, "13800000000", sender.lastCode, domain.PurposeLogin))

	err := codes.Consume(ctx, domain.ChannelSMS, "13800000000", sender.lastCode, domain.PurposeLogin)
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestCodeScopedToPurposeAndAddress(t *testing.T) {
	t.Parallel()

	codes, sender := newTestCodes(t)
	ctx := context.Background()

	require.NoError(t, codes.Send(ctx, domain.ChannelSMS, "13800000000", domain.PurposeLogin))
	code := sender.lastCode

	require.ErrorIs(t, codes.Consume(ctx, domain.ChannelSMS, "13800000000", code, domain.PurposeBind), ErrInvalidCode)
	require.ErrorIs(t, codes.Consume(ctx, domain.ChannelSMS, "13900000000", code, domain.PurposeLogin), ErrInvalidCode)

	// The scoped failures above must not burn the real code.
	require.NoError(t, codes.Consume(ctx, domain.ChannelSMS, "13800000000", code, domain.PurposeLogin))
}

func TestSendCoolDown(t *testing.T) {
	t.Parallel()

	codes, _ := newTestCodes(t)
	ctx := context.Background()

	require.NoError(t, codes.Send(ctx, domain.ChannelSMS, "13800000000", domain.PurposeLogin))
	require.ErrorIs(t, codes.Send(ctx, domain.ChannelSMS, "13800000000", domain.PurposeLogin), ErrRateLimited)

	// A different address has its own cool-down.
	require.NoError(t, codes.Send(ctx, domain.ChannelSMS, "13900000000", domain.PurposeLogin))
}

func TestAttemptBudgetBurnsCode(t *testing.T) {
	t.Parallel()

	codes, sender := newTestCodes(t)
	ctx := context.Background()

	require.NoError(t, codes.Send(ctx, domain.ChannelEmail, "ada@example.com", domain.PurposeLogin))

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, codes.Consume(ctx, domain.ChannelEmail, "ada@example.com", "000000", domain.PurposeLogin), ErrInvalidCode)
	}

	// Budget exhausted; even the right code no longer verifies.
	require.ErrorIs(t, codes.Consume(ctx, domain.ChannelEmail, "ada@example.com", sender.lastCode, domain.PurposeLogin), ErrInvalidCode)
}

func TestSenderFailureSurfaces(t *testing.T) {
	t.Parallel()

	codes, sender := newTestCodes(t)
	sender.err = errors.New("gateway down")
	ctx := context.Background()

	require.Error(t, codes.Send(ctx, domain.ChannelSMS, "13800000000", domain.PurposeLogin))
}
