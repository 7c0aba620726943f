package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/freenoai/authd/internal/domain"
)

func TestRegistryUnknownProvider(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(NewApple(AppleConfig{}))

	_, err := reg.Get(domain.Provider("myspace"))
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRegistryKnownButUnconfigured(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(NewApple(AppleConfig{}))

	p, err := reg.Get(domain.ProviderApple)
	require.NoError(t, err)
	require.False(t, p.Configured())

	_, err = p.Exchange(context.Background(), Credential{Code: "abc"})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestRegistryEnabledListsOnlyConfigured(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(
		NewApple(AppleConfig{}),
		NewGitHub(GitHubConfig{ClientID: "id", ClientSecret: "secret"}),
	)

	enabled := reg.Enabled()
	require.Equal(t, []domain.Provider{domain.ProviderGitHub}, enabled)
}

// Unconfigured adapters must fail before any network I/O. None of these
// calls may take noticeable time or require connectivity.
func TestUnconfiguredAdaptersFailFast(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cred := Credential{Code: "whatever"}

	adapters := []Provider{
		NewGitHub(GitHubConfig{}),
		NewGoogle(GoogleConfig{}),
		NewFacebook(FacebookConfig{}),
		NewApple(AppleConfig{}),
		NewWeChatMP(WeChatConfig{}),
		NewWeChatMini(WeChatConfig{}),
		NewWeChatOpen(WeChatConfig{}),
	}
	for _, a := range adapters {
		_, err := a.Exchange(ctx, cred)
		require.ErrorIs(t, err, ErrNotConfigured, "adapter %s", a.Name())
	}
}

func TestEmptyCodeRejectedWhenConfigured(t *testing.T) {
	t.Parallel()

	g := NewGitHub(GitHubConfig{ClientID: "id", ClientSecret: "secret"})
	_, err := g.Exchange(context.Background(), Credential{})
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestWeChatStatusMapping(t *testing.T) {
	t.Parallel()

	require.NoError(t, wxStatus{}.err())
	require.ErrorIs(t, wxStatus{ErrCode: -1}.err(), ErrUpstreamUnavailable)
	require.ErrorIs(t, wxStatus{ErrCode: 40029, ErrMsg: "invalid code"}.err(), ErrInvalidCredential)
}
