package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core/auth"
)

type tokenRow struct {
	Key       string    `db:"key"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (row tokenRow) toToken() auth.Token {
	return auth.Token{Key: row.Key, UserID: row.UserID, CreatedAt: row.CreatedAt.UTC()}
}

type tokenRepository struct {
	db *sqlx.DB
}

var _ auth.Repository = (*tokenRepository)(nil) // interface compliance check

func NewTokenRepository(db *sqlx.DB) *tokenRepository {
	return &tokenRepository{db: db}
}

func (repo tokenRepository) GetToken(ctx context.Context, key string) (auth.Token, error) {
	var row tokenRow
	err := sqlx.GetContext(ctx, repo.db, &row, "SELECT key, user_id, created_at FROM auth_tokens WHERE key = $1", key)
	if err != nil {
		return auth.Token{}, trapNoRowsErr(err, auth.ErrNotFound, "finding token")
	}
	return row.toToken(), nil
}

func (repo tokenRepository) GetTokenByUser(ctx context.Context, userID string) (auth.Token, error) {
	if !validID(userID) {
		return auth.Token{}, auth.ErrNotFound
	}
	var row tokenRow
	err := sqlx.GetContext(ctx, repo.db, &row, "SELECT key, user_id, created_at FROM auth_tokens WHERE user_id = $1", userID)
	if err != nil {
		return auth.Token{}, trapNoRowsErr(err, auth.ErrNotFound, "finding token by user")
	}
	return row.toToken(), nil
}

func (repo tokenRepository) CreateToken(ctx context.Context, tkn auth.Token) (auth.Token, error) {
	tkn.CreatedAt = tkn.CreatedAt.UTC()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO auth_tokens (key, user_id, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET key = EXCLUDED.key, created_at = EXCLUDED.created_at`,
		tkn.Key, tkn.UserID, tkn.CreatedAt)
	if err != nil {
		return auth.Token{}, errors.Wrap(referenceError(err), "inserting token")
	}
	return tkn, nil
}

func (repo tokenRepository) DeleteToken(ctx context.Context, key string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM auth_tokens WHERE key = $1", key)
	if err != nil {
		return errors.Wrap(err, "deleting token")
	}
	return checkAffected(res, auth.ErrNotFound)
}
