package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sistira/core/user"
	inmemdb "github.com/trezcool/sistira/storage/database/inmem"
	testutil "github.com/trezcool/sistira/tests"
)

func TestUserService_SetLastLogin(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	svc := user.NewService(repo)

	stale := testutil.CreateUser(t, repo, "Alice", "alice", "alice@test.cd", "", false, true)
	deactivated := stale
	deactivated.IsActive = false
	_, err := repo.UpdateUser(ctx, deactivated)
	require.NoError(t, err)

	usr, err := svc.SetLastLogin(ctx, stale)
	require.NoError(t, err)
	require.NotNil(t, usr.LastLogin)

	got, err := repo.GetUser(ctx, user.GetFilter{ID: stale.ID})
	require.NoError(t, err)
	assert.False(t, got.IsActive, "last login must not restore stale fields")
	require.NotNil(t, got.LastLogin)
	assert.Equal(t, *usr.LastLogin, *got.LastLogin)

	_, err = svc.SetLastLogin(ctx, user.User{ID: "lol"})
	assert.Equal(t, user.ErrNotFound, err)
	assert.Equal(t, user.ErrNotFound, repo.SetLastLogin(ctx, "lol", time.Now()))
}
