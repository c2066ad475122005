package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sistira/core/auth"
	"github.com/trezcool/sistira/core/user"
	inmemdb "github.com/trezcool/sistira/storage/database/inmem"
)

const pwd = "Sup3r-S3cret!"

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func setup(t *testing.T) (*auth.Service, *user.Service, *clock) {
	t.Helper()
	db := inmemdb.Open()
	userSvc := user.NewService(inmemdb.NewUserRepository(db))
	clk := &clock{now: time.Now().UTC()}
	svc := auth.NewService(
		auth.Config{SecretKey: []byte("secret"), Issuer: "SisTIRA", Expiration: time.Hour},
		inmemdb.NewTokenRepository(db),
		userSvc,
	).WithClock(clk.Now)
	return svc, userSvc, clk
}

func createUser(t *testing.T, svc *user.Service, email string) user.User {
	t.Helper()
	usr, err := svc.Create(context.Background(), nil, user.NewUser{Name: "T", Email: email, Password: pwd})
	require.NoError(t, err)
	return usr
}

func TestService_Login(t *testing.T) {
	svc, userSvc, clk := setup(t)
	ctx := context.Background()
	usr := createUser(t, userSvc, "t@test.cd")

	tests := []struct {
		name    string
		email   string
		pwd     string
		wantErr error
	}{
		{name: "unknown email", email: "x@test.cd", pwd: pwd, wantErr: auth.ErrInvalidCredentials},
		{name: "wrong password", email: usr.Email, pwd: "lol", wantErr: auth.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := svc.Login(ctx, tt.email, tt.pwd); err != tt.wantErr {
				t.Errorf("Login() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	tkn, got, err := svc.Login(ctx, usr.Email, pwd)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, tkn.UserID)
	assert.NotNil(t, got.LastLogin)

	// fresh tokens are reused
	clk.now = clk.now.Add(30 * time.Minute)
	tkn2, _, err := svc.Login(ctx, usr.Email, pwd)
	require.NoError(t, err)
	assert.Equal(t, tkn.Key, tkn2.Key)

	// expired tokens are replaced
	clk.now = clk.now.Add(time.Hour)
	tkn3, _, err := svc.Login(ctx, usr.Email, pwd)
	require.NoError(t, err)
	assert.NotEqual(t, tkn.Key, tkn3.Key)

	_, err = svc.Resolve(ctx, tkn.Key)
	assert.Equal(t, auth.ErrInvalidToken, err, "the replaced token is revoked")
}

func TestService_Resolve(t *testing.T) {
	svc, userSvc, clk := setup(t)
	ctx := context.Background()
	usr := createUser(t, userSvc, "t@test.cd")

	tkn, _, err := svc.Login(ctx, usr.Email, pwd)
	require.NoError(t, err)

	other, otherUsers, _ := setup(t)
	otherTkn, _, err := other.Login(ctx, createUser(t, otherUsers, "t@test.cd").Email, pwd)
	require.NoError(t, err)

	got, err := svc.Resolve(ctx, tkn.Key)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{name: "empty", wantErr: auth.ErrInvalidToken},
		{name: "garbage", key: "lmaooolol", wantErr: auth.ErrInvalidToken},
		{name: "tampered", key: tkn.Key + "x", wantErr: auth.ErrInvalidToken},
		{name: "unknown", key: otherTkn.Key, wantErr: auth.ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Resolve(ctx, tt.key); err != tt.wantErr {
				t.Errorf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("deactivated", func(t *testing.T) {
		inactive := false
		admin := user.User{IsAdmin: true}
		usr, err := userSvc.Update(ctx, admin, usr, user.UpdateUser{Name: usr.Name, Email: usr.Email, IsActive: &inactive})
		require.NoError(t, err)
		_, err = svc.Resolve(ctx, tkn.Key)
		assert.Equal(t, auth.ErrAccountDeactivated, err)
		assert.True(t, auth.IsAuthError(err))

		active := true
		_, err = userSvc.Update(ctx, admin, usr, user.UpdateUser{Name: usr.Name, Email: usr.Email, IsActive: &active})
		require.NoError(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		clk.now = clk.now.Add(time.Hour)
		_, err := svc.Resolve(ctx, tkn.Key)
		assert.Equal(t, auth.ErrTokenExpired, err)

		// expired tokens are deleted
		_, err = svc.Resolve(ctx, tkn.Key)
		assert.Equal(t, auth.ErrInvalidToken, err)
	})
}

func TestService_Logout(t *testing.T) {
	svc, userSvc, _ := setup(t)
	ctx := context.Background()
	usr := createUser(t, userSvc, "t@test.cd")

	tkn, _, err := svc.Login(ctx, usr.Email, pwd)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, tkn.Key))
	_, err = svc.Resolve(ctx, tkn.Key)
	assert.Equal(t, auth.ErrInvalidToken, err)

	// unknown keys are ignored
	assert.NoError(t, svc.Logout(ctx, tkn.Key))
}
