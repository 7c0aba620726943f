package service

import (
	"context"

	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/pkg/slogx"
)

// Sender delivers a one-time code over a channel (SMS gateway, mail
// relay). Delivery failures surface to the caller so the client can be
// told to retry; the code stays valid either way.
type Sender interface {
	Send(ctx context.Context, channel domain.Channel, address, code string, purpose domain.Purpose) error
}

// LogSender writes codes to the log instead of delivering them. It is the
// default in development and test environments where no gateway exists.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, channel domain.Channel, address, code string, purpose domain.Purpose) error {
	slogx.FromContext(ctx).Info("verification code issued",
		"channel", string(channel),
		"address", address,
		"code", code,
		"purpose", string(purpose),
	)
	return nil
}
