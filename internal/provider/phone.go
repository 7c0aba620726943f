package provider

import (
	"context"
	"fmt"

	"github.com/freenoai/authd/internal/domain"
)

// CodeVerifier consumes a one-time code. Consumption is single-use:
// after a successful call the same code must not verify again.
type CodeVerifier interface {
	Consume(ctx context.Context, channel domain.Channel, address, code string, purpose domain.Purpose) error
}

// PhoneCode is the first-party adapter for SMS one-time codes. The
// external id of the resulting identity is the phone number itself.
type PhoneCode struct {
	codes CodeVerifier
}

func NewPhoneCode(codes CodeVerifier) *PhoneCode {
	return &PhoneCode{codes: codes}
}

func (p *PhoneCode) Name() domain.Provider { return domain.ProviderPhone }

func (p *PhoneCode) Configured() bool { return true }

func (p *PhoneCode) Exchange(ctx context.Context, cred Credential) (ExternalIdentity, error) {
	if cred.Identifier == "" || cred.Code == "" {
		return ExternalIdentity{}, fmt.Errorf("%w: missing phone or code", ErrInvalidCredential)
	}

	purpose := cred.Purpose
	if purpose == "" {
		purpose = domain.PurposeLogin
	}
	if err := p.codes.Consume(ctx, domain.ChannelSMS, cred.Identifier, cred.Code, purpose); err != nil {
		return ExternalIdentity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	return ExternalIdentity{ExternalID: cred.Identifier}, nil
}
