package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sistira/core/auth"
	sqlxrepos "github.com/trezcool/sistira/storage/database/sqlx"
	testutil "github.com/trezcool/sistira/tests"
)

func TestTokenRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	repo := sqlxrepos.NewTokenRepository(db)
	usr := testutil.CreateUser(t, usrRepo, "Alice", "", "alice@test.cd", testPassword, false, true)

	first, err := repo.CreateToken(ctx, auth.Token{Key: "first", UserID: usr.ID, CreatedAt: time.Now()})
	require.NoError(t, err)

	got, err := repo.GetTokenByUser(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Key, got.Key)

	// a new token replaces the previous one
	_, err = repo.CreateToken(ctx, auth.Token{Key: "second", UserID: usr.ID, CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = repo.GetToken(ctx, "first")
	assert.Equal(t, auth.ErrNotFound, err)
	got, err = repo.GetToken(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.UserID)

	_, err = repo.CreateToken(ctx, auth.Token{Key: "orphan", UserID: "3f1c6a52-0000-4000-8000-000000000000", CreatedAt: time.Now()})
	assert.Error(t, err)

	require.NoError(t, repo.DeleteToken(ctx, "second"))
	assert.Equal(t, auth.ErrNotFound, repo.DeleteToken(ctx, "second"))
	_, err = repo.GetTokenByUser(ctx, "lol")
	assert.Equal(t, auth.ErrNotFound, err)

	// tokens go away with their user
	_, err = repo.CreateToken(ctx, auth.Token{Key: "third", UserID: usr.ID, CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, usrRepo.DeleteUsersByID(ctx, usr.ID))
	_, err = repo.GetToken(ctx, "third")
	assert.Equal(t, auth.ErrNotFound, err)
}
