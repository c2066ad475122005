package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core/discipline"
	"github.com/trezcool/sistira/core/user"
)

var (
	errAreaNotFoundInCtx       = errors.Wrap(errObjectNotFoundInCtx, "study area")
	errDisciplineNotFoundInCtx = errors.Wrap(errObjectNotFoundInCtx, "discipline")
)

type disciplineApi struct {
	svc      *discipline.Service
	validate *validator.Validate
}

func registerDisciplineAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *discipline.Service, validate *validator.Validate) {
	api := disciplineApi{
		svc:      svc,
		validate: validate,
	}

	sg := g.Group("/study-areas", authed)
	sg.GET("", api.queryStudyAreas)
	sg.POST("", api.createStudyArea)

	sdg := sg.Group("/:id", objectMiddleware("study area", func(ctx echo.Context, _ user.User, id string) (interface{}, error) {
		return api.svc.GetStudyArea(ctx.Request().Context(), id)
	}))
	sdg.GET("", api.retrieveStudyArea)
	sdg.PUT("", api.updateStudyArea)
	sdg.DELETE("", api.destroyStudyArea)

	dg := g.Group("/disciplines", authed)
	dg.GET("", api.query)
	dg.POST("", api.create)

	ddg := dg.Group("/:id", objectMiddleware("discipline", func(ctx echo.Context, _ user.User, id string) (interface{}, error) {
		return api.svc.GetDiscipline(ctx.Request().Context(), id)
	}))
	ddg.GET("", api.retrieve)
	ddg.PUT("", api.update)
	ddg.DELETE("", api.destroy)
}

// Study areas

func (api *disciplineApi) createStudyArea(ctx echo.Context) error {
	var data discipline.NewStudyArea
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudyArea")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sa, err := api.svc.CreateStudyArea(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating study area")
	}
	return ctx.JSON(http.StatusCreated, sa)
}

func (api *disciplineApi) queryStudyAreas(ctx echo.Context) error {
	areas, err := api.svc.QueryStudyAreas(ctx.Request().Context(), ctx.QueryParam("search"))
	if err != nil {
		return errors.Wrap(err, "querying study areas")
	}
	if areas == nil {
		areas = []discipline.StudyArea{}
	}
	return ctx.JSON(http.StatusOK, areas)
}

func (api *disciplineApi) retrieveStudyArea(ctx echo.Context) error {
	sa, ok := ctx.Get(contextObjectKey).(discipline.StudyArea)
	if !ok {
		return errors.Wrap(errAreaNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, sa)
}

func (api *disciplineApi) updateStudyArea(ctx echo.Context) error {
	sa, ok := ctx.Get(contextObjectKey).(discipline.StudyArea)
	if !ok {
		return errors.Wrap(errAreaNotFoundInCtx, "retrieving object from context")
	}

	var data discipline.UpdateStudyArea
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudyArea")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sa, err = api.svc.UpdateStudyArea(ctx.Request().Context(), actor, sa, data)
	if err != nil {
		return errors.Wrap(err, "updating study area")
	}
	return ctx.JSON(http.StatusOK, sa)
}

func (api *disciplineApi) destroyStudyArea(ctx echo.Context) error {
	sa, ok := ctx.Get(contextObjectKey).(discipline.StudyArea)
	if !ok {
		return errors.Wrap(errAreaNotFoundInCtx, "retrieving object from context")
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.DeleteStudyArea(ctx.Request().Context(), actor, sa); err != nil {
		return errors.Wrap(err, "deleting study area")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Disciplines

func (api *disciplineApi) create(ctx echo.Context) error {
	var data discipline.NewDiscipline
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDiscipline")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.svc.CreateDiscipline(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating discipline")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *disciplineApi) query(ctx echo.Context) error {
	filter := new(discipline.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []discipline.Discipline{})
	}

	disciplines, err := api.svc.QueryDisciplines(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying disciplines")
	}
	if disciplines == nil {
		disciplines = []discipline.Discipline{}
	}
	return ctx.JSON(http.StatusOK, disciplines)
}

func (api *disciplineApi) retrieve(ctx echo.Context) error {
	d, ok := ctx.Get(contextObjectKey).(discipline.Discipline)
	if !ok {
		return errors.Wrap(errDisciplineNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *disciplineApi) update(ctx echo.Context) error {
	d, ok := ctx.Get(contextObjectKey).(discipline.Discipline)
	if !ok {
		return errors.Wrap(errDisciplineNotFoundInCtx, "retrieving object from context")
	}

	var data discipline.UpdateDiscipline
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateDiscipline")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	d, err = api.svc.UpdateDiscipline(ctx.Request().Context(), actor, d, data)
	if err != nil {
		return errors.Wrap(err, "updating discipline")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *disciplineApi) destroy(ctx echo.Context) error {
	d, ok := ctx.Get(contextObjectKey).(discipline.Discipline)
	if !ok {
		return errors.Wrap(errDisciplineNotFoundInCtx, "retrieving object from context")
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.DeleteDiscipline(ctx.Request().Context(), actor, d); err != nil {
		return errors.Wrap(err, "deleting discipline")
	}
	return ctx.NoContent(http.StatusNoContent)
}
