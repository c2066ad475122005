package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/user"
)

var (
	errQuestionNotFoundInCtx = errors.Wrap(errObjectNotFoundInCtx, "question")
	errAltNotFoundInCtx      = errors.Wrap(errObjectNotFoundInCtx, "alternative")
)

type questionApi struct {
	svc      *question.Service
	validate *validator.Validate
}

func registerQuestionAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *question.Service, validate *validator.Validate) {
	api := questionApi{
		svc:      svc,
		validate: validate,
	}

	qg := g.Group("/questions", authed)
	qg.GET("", api.query)
	qg.POST("", api.create)

	qdg := qg.Group("/:id", objectMiddleware("question", func(ctx echo.Context, _ user.User, id string) (interface{}, error) {
		return api.svc.GetByID(ctx.Request().Context(), id)
	}))
	qdg.GET("", api.retrieve)
	qdg.PUT("", api.update)
	qdg.DELETE("", api.destroy)

	ag := g.Group("/alternatives", authed)
	ag.GET("", api.queryAlternatives)
	ag.POST("", api.createAlternative)

	adg := ag.Group("/:id", objectMiddleware("alternative", func(ctx echo.Context, _ user.User, id string) (interface{}, error) {
		return api.svc.GetAlternative(ctx.Request().Context(), id)
	}))
	adg.GET("", api.retrieveAlternative)
	adg.PUT("", api.updateAlternative)
	adg.DELETE("", api.destroyAlternative)
}

// Questions

func (api *questionApi) create(ctx echo.Context) error {
	var data question.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	q, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *questionApi) query(ctx echo.Context) error {
	filter := new(question.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []question.Question{})
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	questions, err := api.svc.Query(ctx.Request().Context(), actor, *filter)
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	if questions == nil {
		questions = []question.Question{}
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *questionApi) retrieve(ctx echo.Context) error {
	q, ok := ctx.Get(contextObjectKey).(question.Question)
	if !ok {
		return errors.Wrap(errQuestionNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questionApi) update(ctx echo.Context) error {
	q, ok := ctx.Get(contextObjectKey).(question.Question)
	if !ok {
		return errors.Wrap(errQuestionNotFoundInCtx, "retrieving object from context")
	}

	var data question.UpdateQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuestion")
	}
	if err := data.Validate(q, api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	q, err = api.svc.Update(ctx.Request().Context(), actor, q, data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questionApi) destroy(ctx echo.Context) error {
	q, ok := ctx.Get(contextObjectKey).(question.Question)
	if !ok {
		return errors.Wrap(errQuestionNotFoundInCtx, "retrieving object from context")
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, q); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Alternatives

func (api *questionApi) createAlternative(ctx echo.Context) error {
	var data question.NewAlternativeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAlternativeRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	alt, err := api.svc.CreateAlternative(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating alternative")
	}
	return ctx.JSON(http.StatusCreated, alt)
}

func (api *questionApi) queryAlternatives(ctx echo.Context) error {
	filter := new(question.AlternativeFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []question.Alternative{})
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	alts, err := api.svc.QueryAlternatives(ctx.Request().Context(), actor, *filter)
	if err != nil {
		return errors.Wrap(err, "querying alternatives")
	}
	if alts == nil {
		alts = []question.Alternative{}
	}
	return ctx.JSON(http.StatusOK, alts)
}

func (api *questionApi) retrieveAlternative(ctx echo.Context) error {
	alt, ok := ctx.Get(contextObjectKey).(question.Alternative)
	if !ok {
		return errors.Wrap(errAltNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, alt)
}

func (api *questionApi) updateAlternative(ctx echo.Context) error {
	alt, ok := ctx.Get(contextObjectKey).(question.Alternative)
	if !ok {
		return errors.Wrap(errAltNotFoundInCtx, "retrieving object from context")
	}

	var data question.UpdateAlternative
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAlternative")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	alt, err = api.svc.UpdateAlternative(ctx.Request().Context(), actor, alt, data)
	if err != nil {
		return errors.Wrap(err, "updating alternative")
	}
	return ctx.JSON(http.StatusOK, alt)
}

func (api *questionApi) destroyAlternative(ctx echo.Context) error {
	alt, ok := ctx.Get(contextObjectKey).(question.Alternative)
	if !ok {
		return errors.Wrap(errAltNotFoundInCtx, "retrieving object from context")
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.DeleteAlternative(ctx.Request().Context(), actor, alt); err != nil {
		return errors.Wrap(err, "deleting alternative")
	}
	return ctx.NoContent(http.StatusNoContent)
}
