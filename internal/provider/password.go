package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/internal/store"
	"github.com/freenoai/authd/pkg/cryptox"
)

// EmailPassword is the first-party adapter: it verifies a stored hash
// instead of calling a third party. The external id of the resulting
// identity is the user's own id. Unknown email and wrong password are
// indistinguishable to the caller.
type EmailPassword struct {
	users store.Users
}

func NewEmailPassword(users store.Users) *EmailPassword {
	return &EmailPassword{users: users}
}

func (p *EmailPassword) Name() domain.Provider { return domain.ProviderEmail }

func (p *EmailPassword) Configured() bool { return true }

func (p *EmailPassword) Exchange(ctx context.Context, cred Credential) (ExternalIdentity, error) {
	if cred.Identifier == "" || cred.Secret == "" {
		return ExternalIdentity{}, fmt.Errorf("%w: missing email or password", ErrInvalidCredential)
	}

	user, err := p.users.GetUserByEmail(ctx, cred.Identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ExternalIdentity{}, ErrInvalidCredential
		}
		return ExternalIdentity{}, err
	}
	if !user.HasPassword() {
		return ExternalIdentity{}, ErrInvalidCredential
	}
	if err := cryptox.VerifyPassword(cred.Secret, user.PasswordHash); err != nil {
		return ExternalIdentity{}, ErrInvalidCredential
	}

	return ExternalIdentity{
		ExternalID:  user.ID,
		Email:       user.Email,
		DisplayName: user.Name,
	}, nil
}
