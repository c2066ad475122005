package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/auth"
	"github.com/trezcool/sistira/core/user"
)

const (
	contextUserKey      = "user"
	contextTokenKey     = "authToken"
	contextAuthErrorKey = "authError"
)

// newAuthMiddleware resolves the token of the request from the auth cookie first, then from the
// `Authorization: Bearer` or `Authorization: Token` headers.
// When optional is true, requests that carry no valid token go through anonymously.
func newAuthMiddleware(svc *auth.Service, cookieName string, optional bool) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "cookie:" + cookieName +
			",header:" + echo.HeaderAuthorization + ":Bearer " +
			",header:" + echo.HeaderAuthorization + ":Token ",
		Validator: func(key string, ctx echo.Context) (bool, error) {
			usr, err := svc.Resolve(ctx.Request().Context(), key)
			if err != nil {
				if !auth.IsAuthError(err) {
					ctx.Set(contextAuthErrorKey, err)
				}
				return false, nil
			}
			ctx.Set(contextUserKey, usr)
			ctx.Set(contextTokenKey, key)
			return true, nil
		},
		ErrorHandler: func(_ error, ctx echo.Context) error {
			if err, ok := ctx.Get(contextAuthErrorKey).(error); ok {
				return errors.Wrap(err, "resolving token")
			}
			if optional {
				return nil
			}
			return errUnauthorized
		},
		ContinueOnIgnoredError: optional,
	})
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

// getOptionalContextUser returns nil for anonymous requests.
func getOptionalContextUser(ctx echo.Context) *user.User {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return &usr
	}
	return nil
}

type authApi struct {
	svc      *auth.Service
	conf     *core.Config
	validate *validator.Validate
}

func registerAuthAPI(
	g *echo.Group,
	authed echo.MiddlewareFunc,
	svc *auth.Service,
	conf *core.Config,
	validate *validator.Validate,
) {
	api := authApi{
		svc:      svc,
		conf:     conf,
		validate: validate,
	}

	// un-authed endpoints
	g.POST("/login", api.login)

	// authed endpoints
	g.GET("/check-auth", api.checkAuth, authed)
	g.POST("/logout", api.logout, authed)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tkn, usr, err := api.svc.Login(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}

	api.setCookie(ctx, tkn.Key, tkn.CreatedAt.Add(api.conf.Auth.TokenExpiration))
	return ctx.JSON(http.StatusOK, LoginResponse{
		Message: "Login successful",
		Token:   tkn.Key,
		User:    NewIdentity(usr),
	})
}

func (api *authApi) checkAuth(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, NewIdentity(usr))
}

func (api *authApi) logout(ctx echo.Context) error {
	key, _ := ctx.Get(contextTokenKey).(string)
	if err := api.svc.Logout(ctx.Request().Context(), key); err != nil {
		return errors.Wrap(err, "logging out")
	}
	api.setCookie(ctx, "", time.Unix(0, 0).UTC())
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Logout successful"})
}

// setCookie writes the auth cookie. An expiration in the past removes it.
func (api *authApi) setCookie(ctx echo.Context, value string, expires time.Time) {
	conf := api.conf.Auth
	cookie := &http.Cookie{
		Name:     conf.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   conf.CookieDomain,
		Expires:  expires,
		Secure:   conf.CookieSecure,
		HttpOnly: true,
		SameSite: sameSite(conf.CookieSameSite),
	}
	if value == "" {
		cookie.MaxAge = -1
	}
	ctx.SetCookie(cookie)
}

func sameSite(mode string) http.SameSite {
	switch strings.ToLower(mode) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	// Identity is the public representation of the authenticated User.
	Identity struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
		IsAdmin  bool   `json:"is_admin"`
	}

	LoginResponse struct {
		Message string   `json:"message"`
		Token   string   `json:"token"`
		User    Identity `json:"user"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func NewIdentity(usr user.User) Identity {
	return Identity{
		ID:       usr.ID,
		Name:     usr.Name,
		Username: usr.Username,
		Email:    usr.Email,
		IsAdmin:  usr.IsAdmin,
	}
}
