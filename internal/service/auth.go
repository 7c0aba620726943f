package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/internal/provider"
	"github.com/freenoai/authd/internal/store"
	"github.com/freenoai/authd/pkg/cryptox"
	"github.com/freenoai/authd/pkg/idx"
	"github.com/freenoai/authd/pkg/slogx"
)

var (
	// ErrInvalidCredentials is the single error for every failed login:
	// unknown identifier, wrong password, bad one-time code. Collapsing
	// the cases prevents user enumeration.
	ErrInvalidCredentials = errors.New("service: invalid credentials")

	// ErrAlreadyRegistered reports a registration against an identifier
	// that is already bound to an account.
	ErrAlreadyRegistered = errors.New("service: already registered")

	// ErrInvalidRefreshToken covers forged, revoked, expired, and
	// wrong-type tokens presented to the refresh flow.
	ErrInvalidRefreshToken = errors.New("service: invalid refresh token")

	// ErrAlreadyLinked reports an external identity bound to a different
	// user, or a provider the user already has a link for.
	ErrAlreadyLinked = errors.New("service: identity already linked")

	// ErrNotLinked reports an unbind for a provider with no link.
	ErrNotLinked = errors.New("service: identity not linked")

	// ErrLastAuthMethod refuses to unbind the user's only remaining way
	// to sign in.
	ErrLastAuthMethod = errors.New("service: last authentication method")
)

// AuthService orchestrates logins, registrations, token rotation, and
// identity binding across the store, the token service, the verification
// code service, and the provider registry.
type AuthService struct {
	Store     store.Store
	Tokens    *TokenService
	Codes     *VerificationService
	Providers *provider.Registry
}

// Session is the result of every successful authentication.
type Session struct {
	Tokens domain.TokenPair
	User   domain.User
}

// LoginWithPassword authenticates by email and password. Unknown email
// and wrong password fail identically.
func (s *AuthService) LoginWithPassword(ctx context.Context, email, password string, lc domain.LoginContext) (Session, error) {
	p, err := s.Providers.Get(domain.ProviderEmail)
	if err != nil {
		return Session{}, err
	}

	identity, err := p.Exchange(ctx, provider.Credential{Identifier: email, Secret: password})
	if err != nil {
		if errors.Is(err, provider.ErrInvalidCredential) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}

	// The email adapter's external id is the user's own id.
	user, err := s.Store.Users().GetUserByID(ctx, identity.ExternalID)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.openSession(ctx, user, lc)
}

// LoginWithCode authenticates by phone and one-time code. The code is
// consumed before the user lookup, so an attempt against a number with
// no account still burns the code.
func (s *AuthService) LoginWithCode(ctx context.Context, phone, code string, purpose domain.Purpose, lc domain.LoginContext) (Session, error) {
	p, err := s.Providers.Get(domain.ProviderPhone)
	if err != nil {
		return Session{}, err
	}

	identity, err := p.Exchange(ctx, provider.Credential{Identifier: phone, Code: code, Purpose: purpose})
	if err != nil {
		if errors.Is(err, provider.ErrInvalidCredential) {
			return Session{}, ErrInvalidCode
		}
		return Session{}, err
	}

	user, err := s.Store.Users().GetUserByPhone(ctx, identity.ExternalID)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.openSession(ctx, user, lc)
}

// RegisterWithEmail creates an account with a password and opens a
// session for it.
func (s *AuthService) RegisterWithEmail(ctx context.Context, email, password, name string, lc domain.LoginContext) (Session, error) {
	if _, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		return Session{}, ErrAlreadyRegistered
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return Session{}, err
	}

	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return Session{}, ErrAlreadyRegistered
		}
		return Session{}, err
	}

	slogx.FromContext(ctx).Info("user registered", "user_id", user.ID, "method", "email")
	return s.openSession(ctx, user, lc)
}

// RegisterWithPhone creates an account verified by a one-time code and
// opens a session for it.
func (s *AuthService) RegisterWithPhone(ctx context.Context, phone, code, name string, lc domain.LoginContext) (Session, error) {
	if err := s.Codes.Consume(ctx, domain.ChannelSMS, phone, code, domain.PurposeRegister); err != nil {
		return Session{}, err
	}

	if _, err := s.Store.Users().GetUserByPhone(ctx, phone); err == nil {
		return Session{}, ErrAlreadyRegistered
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, err
	}

	user := domain.User{
		ID:    idx.New().String(),
		Phone: phone,
		Name:  name,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return Session{}, ErrAlreadyRegistered
		}
		return Session{}, err
	}

	slogx.FromContext(ctx).Info("user registered", "user_id", user.ID, "method", "phone")
	return s.openSession(ctx, user, lc)
}

// LoginWithProvider authenticates against a third-party adapter,
// creating the account and its identity link on first login.
func (s *AuthService) LoginWithProvider(ctx context.Context, name domain.Provider, cred provider.Credential, lc domain.LoginContext) (Session, error) {
	p, err := s.Providers.Get(name)
	if err != nil {
		return Session{}, err
	}
	identity, err := p.Exchange(ctx, cred)
	if err != nil {
		return Session{}, err
	}
	return s.LoginWithVerifiedIdentity(ctx, name, identity, lc)
}

// LoginWithVerifiedIdentity opens a session for an external identity that
// was verified out of band, such as an openid delivered on a
// signature-checked platform callback. Callers must never pass an
// identity taken from client input.
func (s *AuthService) LoginWithVerifiedIdentity(ctx context.Context, name domain.Provider, identity provider.ExternalIdentity, lc domain.LoginContext) (Session, error) {
	link, err := s.Store.Identities().GetByProviderExternalID(ctx, name, identity.ExternalID)
	switch {
	case err == nil:
		user, err := s.Store.Users().GetUserByID(ctx, link.UserID)
		if err != nil {
			return Session{}, err
		}
		return s.openSession(ctx, user, lc)
	case errors.Is(err, store.ErrNotFound):
		// fall through to first-login provisioning
	default:
		return Session{}, err
	}

	user := domain.User{
		ID:    idx.New().String(),
		Email: identity.Email,
		Name:  identity.DisplayName,
	}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			return err
		}
		return tx.Identities().CreateLink(ctx, domain.IdentityLink{
			ID:         idx.New().String(),
			UserID:     user.ID,
			Provider:   name,
			ExternalID: identity.ExternalID,
		})
	})
	if err != nil {
		return Session{}, err
	}

	slogx.FromContext(ctx).Info("user registered", "user_id", user.ID, "method", string(name))
	return s.openSession(ctx, user, lc)
}

// RefreshTokens rotates a refresh token: the old token is blacklisted and
// a fresh pair issued. Every failure mode collapses to
// ErrInvalidRefreshToken; the expired sub-case is logged but not exposed.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.Tokens.VerifyRefreshToken(ctx, refreshToken, VerifyOptions{IgnoreExpiration: true})
	if err != nil {
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}
	if claims.RemainingTTL(time.Now()) == 0 {
		// Authentic but expired. The distinction matters only for the log.
		slogx.FromContext(ctx).Info("refresh token expired", "user_id", claims.UserID())
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.UserID())
	if err != nil {
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}

	s.Tokens.Blacklist(ctx, refreshToken)

	session, err := s.Tokens.IssuePair(ctx, user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return session, nil
}

// Logout blacklists the presented access token. The paired refresh token
// stays valid until it is itself used or expires.
func (s *AuthService) Logout(ctx context.Context, accessToken string) {
	s.Tokens.Blacklist(ctx, accessToken)
}

// Verify resolves an access token to its user.
func (s *AuthService) Verify(ctx context.Context, accessToken string) (domain.User, error) {
	claims, err := s.Tokens.VerifyAccessToken(ctx, accessToken)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.Store.Users().GetUserByID(ctx, claims.UserID())
	if err != nil {
		return domain.User{}, fmt.Errorf("verify: %w", err)
	}
	return user, nil
}

// BindProvider exchanges a credential and links the resulting external
// identity to the user. An identity already linked elsewhere, or a
// provider the user already has a link for, refuses with ErrAlreadyLinked.
func (s *AuthService) BindProvider(ctx context.Context, userID string, name domain.Provider, cred provider.Credential) (domain.IdentityLink, error) {
	if !name.Linkable() {
		return domain.IdentityLink{}, provider.ErrUnknownProvider
	}
	p, err := s.Providers.Get(name)
	if err != nil {
		return domain.IdentityLink{}, err
	}
	identity, err := p.Exchange(ctx, cred)
	if err != nil {
		return domain.IdentityLink{}, err
	}

	existing, err := s.Store.Identities().GetByProviderExternalID(ctx, name, identity.ExternalID)
	switch {
	case err == nil:
		if existing.UserID == userID {
			return existing, nil
		}
		return domain.IdentityLink{}, ErrAlreadyLinked
	case errors.Is(err, store.ErrNotFound):
	default:
		return domain.IdentityLink{}, err
	}

	if _, err := s.Store.Identities().GetByUserProvider(ctx, userID, name); err == nil {
		return domain.IdentityLink{}, ErrAlreadyLinked
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.IdentityLink{}, err
	}

	link := domain.IdentityLink{
		ID:         idx.New().String(),
		UserID:     userID,
		Provider:   name,
		ExternalID: identity.ExternalID,
	}
	if err := s.Store.Identities().CreateLink(ctx, link); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.IdentityLink{}, ErrAlreadyLinked
		}
		return domain.IdentityLink{}, err
	}
	return link, nil
}

// UnbindProvider deletes the user's link for one provider. Unbinding the
// only remaining way to sign in is refused to prevent lockout.
func (s *AuthService) UnbindProvider(ctx context.Context, userID string, name domain.Provider) error {
	if _, err := s.Store.Identities().GetByUserProvider(ctx, userID, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotLinked
		}
		return err
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	links, err := s.Store.Identities().CountByUser(ctx, userID)
	if err != nil {
		return err
	}
	if links <= 1 && !user.HasPassword() && user.Phone == "" {
		return ErrLastAuthMethod
	}

	return s.Store.Identities().DeleteLink(ctx, userID, name)
}

// BindPhone attaches a code-verified phone number to the user.
func (s *AuthService) BindPhone(ctx context.Context, userID, phone, code string) error {
	if err := s.Codes.Consume(ctx, domain.ChannelSMS, phone, code, domain.PurposeBind); err != nil {
		return err
	}

	if other, err := s.Store.Users().GetUserByPhone(ctx, phone); err == nil {
		if other.ID == userID {
			return nil
		}
		return ErrAlreadyRegistered
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	return s.Store.Users().UpdatePhone(ctx, userID, phone)
}

// openSession records the login context and issues a token pair.
func (s *AuthService) openSession(ctx context.Context, user domain.User, lc domain.LoginContext) (Session, error) {
	if err := s.Store.Users().RecordLogin(ctx, user.ID, lc); err != nil {
		// Login context is advisory; a failed write must not block login.
		slogx.FromContext(ctx).Warn("record login failed", "user_id", user.ID, "err", err)
	}

	pair, err := s.Tokens.IssuePair(ctx, user)
	if err != nil {
		return Session{}, err
	}
	return Session{Tokens: pair, User: user}, nil
}
