package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core/user"
)

const contextObjectKey = "object"

var errObjectNotFoundInCtx = errors.New("object not found in echo.Context")

// getFunc loads the object identified by id on behalf of actor.
type getFunc func(ctx echo.Context, actor user.User, id string) (interface{}, error)

// objectMiddleware loads the object of a detail endpoint into the context under "object".
// Unknown ids end the request with a 404 and unreadable objects with a 403.
func objectMiddleware(resource string, get getFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			obj, err := get(ctx, actor, ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding "+resource+" by ID")
			}
			ctx.Set(contextObjectKey, obj)
			return next(ctx)
		}
	}
}
