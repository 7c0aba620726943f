package store

import (
	"context"
	"errors"

	"github.com/freenoai/authd/internal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	Identities() Identities
	Submissions() Submissions

	ApplyMigrations() error

	// WithTx executes a function within a transaction. If fn returns an
	// error the transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}

// Tx is a transaction-scoped store. All repository calls made through it
// share one database transaction.
type Tx interface {
	Users() Users
	Identities() Identities
	Submissions() Submissions
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during email login and registration checks.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByPhone is used during phone login and registration checks.
	GetUserByPhone(ctx context.Context, phone string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// UpdatePhone sets the user's phone number (phone binding flow).
	UpdatePhone(ctx context.Context, userID string, phone string) error

	// RecordLogin stores the last login context as a side effect of a
	// successful authentication.
	RecordLogin(ctx context.Context, userID string, lc domain.LoginContext) error
}

type Identities interface {
	// GetByProviderExternalID resolves an external identity to its link,
	// if any. A (provider, external_id) pair maps to at most one user.
	GetByProviderExternalID(ctx context.Context, provider domain.Provider, externalID string) (domain.IdentityLink, error)

	// GetByUserProvider returns the user's link for one provider.
	GetByUserProvider(ctx context.Context, userID string, provider domain.Provider) (domain.IdentityLink, error)

	// ListByUser returns all of a user's identity links.
	ListByUser(ctx context.Context, userID string) ([]domain.IdentityLink, error)

	// CreateLink inserts a new identity link.
	CreateLink(ctx context.Context, link domain.IdentityLink) error

	// DeleteLink removes the user's link for one provider.
	DeleteLink(ctx context.Context, userID string, provider domain.Provider) error

	// CountByUser returns the number of identity links a user holds.
	CountByUser(ctx context.Context, userID string) (int, error)
}

type Submissions interface {
	// CreateSubmission stores a new plagiarism-check submission.
	CreateSubmission(ctx context.Context, s domain.ThesisSubmission) error

	// GetSubmissionByID fetches one submission.
	GetSubmissionByID(ctx context.Context, id string) (domain.ThesisSubmission, error)

	// ListSubmissionsByUser returns a user's submissions, newest first.
	ListSubmissionsByUser(ctx context.Context, userID string) ([]domain.ThesisSubmission, error)

	// UpdateSubmissionReport records the checker's report id and status.
	UpdateSubmissionReport(ctx context.Context, id, reportID string, status domain.SubmissionStatus) error
}
