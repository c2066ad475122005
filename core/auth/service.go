// Package auth manages the lifecycle of the tokens that authenticate API requests.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrAccountDeactivated = errors.New("account deactivated")
)

type (
	// Token is a revocable credential bound to one User.
	Token struct {
		Key       string
		UserID    string
		CreatedAt time.Time // UTC
	}

	Repository interface {
		GetToken(ctx context.Context, key string) (Token, error)
		GetTokenByUser(ctx context.Context, userID string) (Token, error)
		// CreateToken stores tkn, replacing any other Token of the same User.
		CreateToken(ctx context.Context, tkn Token) (Token, error)
		DeleteToken(ctx context.Context, key string) error
	}

	Config struct {
		SecretKey  []byte
		Issuer     string
		Expiration time.Duration
	}

	Service struct {
		conf    Config
		repo    Repository
		userSvc *user.Service
		now     func() time.Time
	}
)

func NewService(conf Config, repo Repository, userSvc *user.Service) *Service {
	return &Service{
		conf:    conf,
		repo:    repo,
		userSvc: userSvc,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used to issue and expire tokens.
func (svc *Service) WithClock(now func() time.Time) *Service {
	svc.now = now
	return svc
}

func (svc *Service) expired(tkn Token) bool {
	return svc.now().Sub(tkn.CreatedAt) >= svc.conf.Expiration
}

// Login checks the credentials and returns the User's Token: the stored one while it is fresh,
// a newly minted one otherwise.
func (svc *Service) Login(ctx context.Context, email, pwd string) (Token, user.User, error) {
	usr, err := svc.userSvc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Token{}, user.User{}, ErrInvalidCredentials
		}
		return Token{}, user.User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return Token{}, user.User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return Token{}, user.User{}, ErrAccountDeactivated
	}

	tkn, err := svc.repo.GetTokenByUser(ctx, usr.ID)
	switch {
	case err == nil && !svc.expired(tkn):
		// reuse
	case err == nil || errors.Cause(err) == ErrNotFound:
		if tkn, err = svc.mint(ctx, usr); err != nil {
			return Token{}, user.User{}, err
		}
	default:
		return Token{}, user.User{}, errors.Wrap(err, "finding user token")
	}

	usr, err = svc.userSvc.SetLastLogin(ctx, usr)
	if err != nil {
		return Token{}, user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return tkn, usr, nil
}

func (svc *Service) mint(ctx context.Context, usr user.User) (Token, error) {
	now := svc.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    svc.conf.Issuer,
		Subject:   usr.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(svc.conf.Expiration)),
	}
	key, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.conf.SecretKey)
	if err != nil {
		return Token{}, errors.Wrap(err, "signing token")
	}

	tkn, err := svc.repo.CreateToken(ctx, Token{Key: key, UserID: usr.ID, CreatedAt: now})
	return tkn, errors.Wrap(err, "storing token")
}

// parse verifies the signature of key and returns the User ID it was issued to.
func (svc *Service) parse(key string) (string, error) {
	claims := new(jwt.RegisteredClaims)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	_, err := parser.ParseWithClaims(key, claims, func(*jwt.Token) (interface{}, error) {
		return svc.conf.SecretKey, nil
	})
	if err != nil || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Resolve returns the active User authenticated by key.
// Expired tokens are deleted.
func (svc *Service) Resolve(ctx context.Context, key string) (user.User, error) {
	subject, err := svc.parse(key)
	if err != nil {
		return user.User{}, err
	}

	tkn, err := svc.repo.GetToken(ctx, key)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return user.User{}, ErrInvalidToken
		}
		return user.User{}, errors.Wrap(err, "finding token")
	}
	if tkn.UserID != subject {
		return user.User{}, ErrInvalidToken
	}
	if svc.expired(tkn) {
		if err = svc.repo.DeleteToken(ctx, key); err != nil {
			return user.User{}, errors.Wrap(err, "deleting expired token")
		}
		return user.User{}, ErrTokenExpired
	}

	usr, err := svc.userSvc.GetByID(ctx, tkn.UserID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, ErrInvalidToken
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return user.User{}, ErrAccountDeactivated
	}
	return usr, nil
}

// Logout revokes key. Unknown keys are ignored.
func (svc *Service) Logout(ctx context.Context, key string) error {
	if err := svc.repo.DeleteToken(ctx, key); err != nil && errors.Cause(err) != ErrNotFound {
		return errors.Wrap(err, "deleting token")
	}
	return nil
}

// IsAuthError reports whether err means the request could not be authenticated.
func IsAuthError(err error) bool {
	switch errors.Cause(err) {
	case ErrInvalidToken, ErrTokenExpired, ErrAccountDeactivated, ErrInvalidCredentials:
		return true
	}
	return false
}
