package provider

import (
	"context"
	"fmt"
	"net/url"

	"github.com/freenoai/authd/internal/domain"
)

const (
	facebookTokenURL = "https://graph.facebook.com/v18.0/oauth/access_token"
	facebookMeURL    = "https://graph.facebook.com/me"
)

type FacebookConfig struct {
	AppID       string
	AppSecret   string
	RedirectURL string
}

// Facebook exchanges an OAuth authorization code for the user's
// Facebook identity via the Graph API.
type Facebook struct {
	cfg    FacebookConfig
	client *httpClient
}

func NewFacebook(cfg FacebookConfig) *Facebook {
	return &Facebook{cfg: cfg, client: newHTTPClient()}
}

func (f *Facebook) Name() domain.Provider { return domain.ProviderFacebook }

func (f *Facebook) Configured() bool {
	return f.cfg.AppID != "" && f.cfg.AppSecret != ""
}

func (f *Facebook) Exchange(ctx context.Context, cred Credential) (ExternalIdentity, error) {
	if !f.Configured() {
		return ExternalIdentity{}, ErrNotConfigured
	}
	if cred.Code == "" {
		return ExternalIdentity{}, fmt.Errorf("%w: missing code", ErrInvalidCredential)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	q := url.Values{
		"client_id":     {f.cfg.AppID},
		"client_secret": {f.cfg.AppSecret},
		"code":          {cred.Code},
		"redirect_uri":  {f.cfg.RedirectURL},
	}
	if err := f.client.getJSON(ctx, facebookTokenURL+"?"+q.Encode(), &tokenResp); err != nil {
		return ExternalIdentity{}, err
	}
	if tokenResp.AccessToken == "" {
		return ExternalIdentity{}, fmt.Errorf("%w: empty access token", ErrInvalidCredential)
	}

	var me struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	q = url.Values{
		"fields":       {"id,name,email"},
		"access_token": {tokenResp.AccessToken},
	}
	if err := f.client.getJSON(ctx, facebookMeURL+"?"+q.Encode(), &me); err != nil {
		return ExternalIdentity{}, err
	}
	if me.ID == "" {
		return ExternalIdentity{}, fmt.Errorf("%w: missing profile id", ErrInvalidCredential)
	}

	return ExternalIdentity{
		ExternalID:  me.ID,
		Email:       me.Email,
		DisplayName: me.Name,
	}, nil
}
