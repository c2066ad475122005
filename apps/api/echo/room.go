package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core/room"
	"github.com/trezcool/sistira/core/user"
)

var errRoomNotFoundInCtx = errors.Wrap(errObjectNotFoundInCtx, "room")

type roomApi struct {
	svc      *room.Service
	validate *validator.Validate
}

func registerRoomAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *room.Service, validate *validator.Validate) {
	api := roomApi{
		svc:      svc,
		validate: validate,
	}

	rg := g.Group("/rooms", authed)
	rg.GET("", api.query)
	rg.POST("", api.create)
	rg.POST("/join", api.join)

	dg := rg.Group("/:id", objectMiddleware("room", func(ctx echo.Context, actor user.User, id string) (interface{}, error) {
		return api.svc.Retrieve(ctx.Request().Context(), actor, id)
	}))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *roomApi) create(ctx echo.Context) error {
	var data room.NewRoom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRoom")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	r, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating room")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *roomApi) query(ctx echo.Context) error {
	filter := new(room.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []room.Room{})
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rooms, err := api.svc.Query(ctx.Request().Context(), actor, *filter)
	if err != nil {
		return errors.Wrap(err, "querying rooms")
	}
	if rooms == nil {
		rooms = []room.Room{}
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *roomApi) retrieve(ctx echo.Context) error {
	r, ok := ctx.Get(contextObjectKey).(room.Room)
	if !ok {
		return errors.Wrap(errRoomNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *roomApi) update(ctx echo.Context) error {
	r, ok := ctx.Get(contextObjectKey).(room.Room)
	if !ok {
		return errors.Wrap(errRoomNotFoundInCtx, "retrieving object from context")
	}

	var data room.UpdateRoom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRoom")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	r, err = api.svc.Update(ctx.Request().Context(), actor, r, data)
	if err != nil {
		return errors.Wrap(err, "updating room")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *roomApi) destroy(ctx echo.Context) error {
	r, ok := ctx.Get(contextObjectKey).(room.Room)
	if !ok {
		return errors.Wrap(errRoomNotFoundInCtx, "retrieving object from context")
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, r); err != nil {
		return errors.Wrap(err, "deleting room")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *roomApi) join(ctx echo.Context) error {
	var data room.JoinRoom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinRoom")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	r, err := api.svc.Join(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "joining room")
	}
	return ctx.JSON(http.StatusOK, r)
}
