package postgres

import (
	"context"

	"github.com/freenoai/authd/internal/domain"
)

type identitiesRepo struct {
	db dbtx
}

func (r *identitiesRepo) GetByProviderExternalID(
	ctx context.Context,
	provider domain.Provider,
	externalID string,
) (domain.IdentityLink, error) {
	var link domain.IdentityLink
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, external_id, created_at
		 FROM identities WHERE provider = $1 AND external_id = $2`,
		provider, externalID,
	).Scan(&link.ID, &link.UserID, &link.Provider, &link.ExternalID, &link.CreatedAt)
	if err != nil {
		return domain.IdentityLink{}, mapErr(err)
	}
	return link, nil
}

func (r *identitiesRepo) GetByUserProvider(
	ctx context.Context,
	userID string,
	provider domain.Provider,
) (domain.IdentityLink, error) {
	var link domain.IdentityLink
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, external_id, created_at
		 FROM identities WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	).Scan(&link.ID, &link.UserID, &link.Provider, &link.ExternalID, &link.CreatedAt)
	if err != nil {
		return domain.IdentityLink{}, mapErr(err)
	}
	return link, nil
}

func (r *identitiesRepo) ListByUser(ctx context.Context, userID string) ([]domain.IdentityLink, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, provider, external_id, created_at
		 FROM identities WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var links []domain.IdentityLink
	for rows.Next() {
		var link domain.IdentityLink
		if err := rows.Scan(&link.ID, &link.UserID, &link.Provider, &link.ExternalID, &link.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (r *identitiesRepo) CreateLink(ctx context.Context, link domain.IdentityLink) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, external_id, created_at)
		 VALUES ($1, $2, $3, $4, now())`,
		link.ID, link.UserID, link.Provider, link.ExternalID,
	)
	return mapErr(err)
}

func (r *identitiesRepo) DeleteLink(ctx context.Context, userID string, provider domain.Provider) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM identities WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	)
	return mapAffected(res, err)
}

func (r *identitiesRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM identities WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, mapErr(err)
	}
	return count, nil
}
