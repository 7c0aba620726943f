package domain

import "time"

// Provider names an external login method. The set is closed: adapters are
// registered at startup and unknown names are rejected at the boundary.
type Provider string

const (
	ProviderWeChatMP   Provider = "wechat"      // official account (QR login)
	ProviderWeChatMini Provider = "wechat-mini" // Mini Program
	ProviderWeChatOpen Provider = "wechat-open" // Open Platform (web/app OAuth)
	ProviderApple      Provider = "apple"
	ProviderGoogle     Provider = "google"
	ProviderFacebook   Provider = "facebook"
	ProviderGitHub     Provider = "github"

	// First-party methods. They verify against our own records and are
	// never the subject of an identity link.
	ProviderEmail Provider = "email"
	ProviderPhone Provider = "phone"
)

// Linkable reports whether p is a third-party provider whose identities
// can be bound to and unbound from a user.
func (p Provider) Linkable() bool {
	return p != ProviderEmail && p != ProviderPhone
}

// IdentityLink binds a user to an external identity. A given
// (provider, external_id) resolves to at most one user, and a user holds at
// most one link per provider. Links are created on bind and deleted on
// unbind, never mutated.
type IdentityLink struct {
	ID         string
	UserID     string
	Provider   Provider
	ExternalID string
	CreatedAt  time.Time
}
