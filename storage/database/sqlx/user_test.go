package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/user"
	sqlxrepos "github.com/trezcool/sistira/storage/database/sqlx"
	testutil "github.com/trezcool/sistira/tests"
)

const testPassword = "Sup3r-S3cret!"

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewUserRepository(testutil.PrepareDB(t))

	alice := testutil.CreateUser(t, repo, "Alice", "alice", "alice@test.cd", testPassword, false, true)
	bob := testutil.CreateUser(t, repo, "Bob", "", "bob@test.cd", testPassword, true, false)
	testutil.CreateUser(t, repo, "Carol", "", "carol@test.cd", testPassword, false, true)

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrEmailExists, repo.CheckUsernameUniqueness(ctx, "", alice.Email))
		assert.Equal(t, user.ErrUsernameExists, repo.CheckUsernameUniqueness(ctx, "alice", "other@test.cd"))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "alice", alice.Email, alice.ID))
		// users without username do not collide
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "", "dan@test.cd"))

		_, err := repo.CreateUser(ctx, user.User{Name: "Alice 2", Email: alice.Email, PasswordHash: alice.PasswordHash})
		assert.Equal(t, user.ErrEmailExists, err)
		_, err = repo.CreateUser(ctx, user.User{Name: "Alice 3", Username: "alice", Email: "alice3@test.cd", PasswordHash: alice.PasswordHash})
		assert.Equal(t, user.ErrUsernameExists, err)
	})

	t.Run("get", func(t *testing.T) {
		tests := []struct {
			name    string
			filter  user.GetFilter
			wantID  string
			wantErr error
		}{
			{name: "by id", filter: user.GetFilter{ID: bob.ID}, wantID: bob.ID},
			{name: "by email", filter: user.GetFilter{Email: alice.Email}, wantID: alice.ID},
			{name: "by username", filter: user.GetFilter{UsernameOrEmail: "alice"}, wantID: alice.ID},
			{name: "by username or email", filter: user.GetFilter{UsernameOrEmail: bob.Email}, wantID: bob.ID},
			{name: "invalid id", filter: user.GetFilter{ID: "lol"}, wantErr: user.ErrNotFound},
			{name: "unknown", filter: user.GetFilter{Email: "lol@test.cd"}, wantErr: user.ErrNotFound},
			{name: "empty filter", wantErr: user.ErrNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				usr, err := repo.GetUser(ctx, tt.filter)
				if tt.wantErr != nil {
					assert.Equal(t, tt.wantErr, err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, usr.ID)
			})
		}

		usr, err := repo.GetUser(ctx, user.GetFilter{ID: alice.ID})
		require.NoError(t, err)
		assert.NoError(t, usr.CheckPassword(testPassword))
		assert.Nil(t, usr.LastLogin)
	})

	t.Run("query", func(t *testing.T) {
		yes, no := true, false
		names := func(users []user.User) []string {
			res := make([]string, 0, len(users))
			for _, u := range users {
				res = append(res, u.Name)
			}
			return res
		}
		byName := []core.DBOrdering{{Field: "name", Ascending: true}}

		tests := []struct {
			name   string
			filter user.QueryFilter
			want   []string
		}{
			{name: "all", want: []string{"Alice", "Bob", "Carol"}},
			{name: "search", filter: user.QueryFilter{Search: "CAROL"}, want: []string{"Carol"}},
			{name: "active", filter: user.QueryFilter{IsActive: &yes}, want: []string{"Alice", "Carol"}},
			{name: "admins", filter: user.QueryFilter{IsAdmin: &yes}, want: []string{"Bob"}},
			{name: "active admins", filter: user.QueryFilter{IsAdmin: &yes, IsActive: &yes}, want: []string{}},
			{name: "non admins by id", filter: user.QueryFilter{ID: alice.ID, IsAdmin: &no}, want: []string{"Alice"}},
			{name: "invalid id", filter: user.QueryFilter{ID: "lol"}, want: []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				users, err := repo.QueryUsers(ctx, tt.filter, byName...)
				require.NoError(t, err)
				assert.Equal(t, tt.want, names(users))
			})
		}
	})

	t.Run("update", func(t *testing.T) {
		usr := alice
		usr.Name = "Alice B."
		usr.Username = ""
		now := usr.UpdatedAt
		usr.LastLogin = &now

		updated, err := repo.UpdateUser(ctx, usr)
		require.NoError(t, err)
		got, err := repo.GetUser(ctx, user.GetFilter{ID: alice.ID})
		require.NoError(t, err)
		assert.Equal(t, updated.Name, got.Name)
		assert.Equal(t, "", got.Username)
		assert.NotNil(t, got.LastLogin)

		usr.Email = bob.Email
		_, err = repo.UpdateUser(ctx, usr)
		assert.Equal(t, user.ErrEmailExists, err)

		_, err = repo.UpdateUser(ctx, user.User{ID: "3f1c6a52-0000-4000-8000-000000000000", Email: "x@test.cd"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("last login", func(t *testing.T) {
		stale, err := repo.GetUser(ctx, user.GetFilter{ID: alice.ID})
		require.NoError(t, err)
		deactivated := stale
		deactivated.IsActive = false
		_, err = repo.UpdateUser(ctx, deactivated)
		require.NoError(t, err)

		svc := user.NewService(repo)
		usr, err := svc.SetLastLogin(ctx, stale)
		require.NoError(t, err)
		require.NotNil(t, usr.LastLogin)

		got, err := repo.GetUser(ctx, user.GetFilter{ID: alice.ID})
		require.NoError(t, err)
		assert.False(t, got.IsActive)
		require.NotNil(t, got.LastLogin)
		assert.WithinDuration(t, *usr.LastLogin, *got.LastLogin, time.Millisecond)

		assert.Equal(t, user.ErrNotFound, repo.SetLastLogin(ctx, "3f1c6a52-0000-4000-8000-000000000000", time.Now()))
		assert.Equal(t, user.ErrNotFound, repo.SetLastLogin(ctx, "lol", time.Now()))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteUsersByID(ctx, bob.ID, "lol"))
		_, err := repo.GetUser(ctx, user.GetFilter{ID: bob.ID})
		assert.Equal(t, user.ErrNotFound, err)
	})
}
