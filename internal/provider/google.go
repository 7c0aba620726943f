package provider

import (
	"context"
	"fmt"
	"net/url"

	"github.com/freenoai/authd/internal/domain"
)

const (
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Google exchanges an OAuth authorization code for the user's Google
// identity via the OpenID Connect userinfo endpoint.
type Google struct {
	cfg    GoogleConfig
	client *httpClient
}

func NewGoogle(cfg GoogleConfig) *Google {
	return &Google{cfg: cfg, client: newHTTPClient()}
}

func (g *Google) Name() domain.Provider { return domain.ProviderGoogle }

func (g *Google) Configured() bool {
	return g.cfg.ClientID != "" && g.cfg.ClientSecret != ""
}

func (g *Google) Exchange(ctx context.Context, cred Credential) (ExternalIdentity, error) {
	if !g.Configured() {
		return ExternalIdentity{}, ErrNotConfigured
	}
	if cred.Code == "" {
		return ExternalIdentity{}, fmt.Errorf("%w: missing code", ErrInvalidCredential)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	form := url.Values{
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
		"code":          {cred.Code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {g.cfg.RedirectURL},
	}
	if err := g.client.postForm(ctx, googleTokenURL, form, nil, &tokenResp); err != nil {
		return ExternalIdentity{}, err
	}
	if tokenResp.AccessToken == "" {
		return ExternalIdentity{}, fmt.Errorf("%w: empty access token", ErrInvalidCredential)
	}

	var info struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	headers := map[string]string{"Authorization": "Bearer " + tokenResp.AccessToken}
	if err := g.client.getJSONWithHeaders(ctx, googleUserInfoURL, headers, &info); err != nil {
		return ExternalIdentity{}, err
	}
	if info.Sub == "" {
		return ExternalIdentity{}, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}

	return ExternalIdentity{
		ExternalID:  info.Sub,
		Email:       info.Email,
		DisplayName: info.Name,
	}, nil
}
