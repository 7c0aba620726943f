package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/freenoai/authd/internal/domain"
)

const (
	githubTokenURL = "https://github.com/login/oauth/access_token"
	githubUserURL  = "https://api.github.com/user"
)

// GitHubConfig carries the OAuth app credentials. Empty values disable
// the adapter.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
}

// GitHub exchanges an OAuth authorization code for the user's GitHub
// identity.
type GitHub struct {
	cfg    GitHubConfig
	client *httpClient
}

func NewGitHub(cfg GitHubConfig) *GitHub {
	return &GitHub{cfg: cfg, client: newHTTPClient()}
}

func (g *GitHub) Name() domain.Provider { return domain.ProviderGitHub }

func (g *GitHub) Configured() bool {
	return g.cfg.ClientID != "" && g.cfg.ClientSecret != ""
}

func (g *GitHub) Exchange(ctx context.Context, cred Credential) (ExternalIdentity, error) {
	if !g.Configured() {
		return ExternalIdentity{}, ErrNotConfigured
	}
	if cred.Code == "" {
		return ExternalIdentity{}, fmt.Errorf("%w: missing code", ErrInvalidCredential)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	form := url.Values{
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
		"code":          {cred.Code},
	}
	if err := g.client.postForm(ctx, githubTokenURL, form, nil, &tokenResp); err != nil {
		return ExternalIdentity{}, err
	}
	// GitHub reports a bad code with HTTP 200 and an error field.
	if tokenResp.Error != "" || tokenResp.AccessToken == "" {
		return ExternalIdentity{}, fmt.Errorf("%w: %s", ErrInvalidCredential, tokenResp.Error)
	}

	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	headers := map[string]string{"Authorization": "Bearer " + tokenResp.AccessToken}
	if err := g.client.getJSONWithHeaders(ctx, githubUserURL, headers, &user); err != nil {
		return ExternalIdentity{}, err
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	return ExternalIdentity{
		ExternalID:  strconv.FormatInt(user.ID, 10),
		Email:       user.Email,
		DisplayName: name,
	}, nil
}
