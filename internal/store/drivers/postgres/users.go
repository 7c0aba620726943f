package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/freenoai/authd/internal/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, phone, name, password_hash,
	last_login_ip, last_login_ua, last_login_at, created_at, updated_at`

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var email, phone, passwordHash, loginIP, loginUA sql.NullString
	var loginAt sql.NullTime

	err := row.Scan(
		&u.ID, &email, &phone, &u.Name, &passwordHash,
		&loginIP, &loginUA, &loginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapErr(err)
	}

	u.Email = email.String
	u.Phone = phone.String
	u.PasswordHash = passwordHash.String
	u.LastLoginIP = loginIP.String
	u.LastLoginUA = loginUA.String
	if loginAt.Valid {
		t := loginAt.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *usersRepo) GetUserByPhone(ctx context.Context, phone string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, phone, name, password_hash, created_at, updated_at)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, NULLIF($5, ''), now(), now())`,
		u.ID, u.Email, u.Phone, u.Name, u.PasswordHash,
	)
	return mapErr(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`,
		newHash, userID,
	)
	return mapAffected(res, err)
}

func (r *usersRepo) UpdatePhone(ctx context.Context, userID string, phone string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET phone = $1, updated_at = now() WHERE id = $2`,
		phone, userID,
	)
	return mapAffected(res, err)
}

func (r *usersRepo) RecordLogin(ctx context.Context, userID string, lc domain.LoginContext) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET last_login_ip = $1, last_login_ua = $2, last_login_at = $3, updated_at = now()
		 WHERE id = $4`,
		lc.IP, lc.UserAgent, time.Now().UTC(), userID,
	)
	return mapAffected(res, err)
}

// mapAffected converts "no rows updated" into ErrNotFound so services can
// distinguish missing users from driver failures.
func mapAffected(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapErr(sql.ErrNoRows)
	}
	return nil
}
