package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core/bank"
	"github.com/trezcool/sistira/core/user"
)

var errBankNotFoundInCtx = errors.Wrap(errObjectNotFoundInCtx, "question bank")

type bankApi struct {
	svc      *bank.Service
	validate *validator.Validate
}

func registerBankAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *bank.Service, validate *validator.Validate) {
	api := bankApi{
		svc:      svc,
		validate: validate,
	}

	bg := g.Group("/question-banks", authed)
	bg.GET("", api.query)
	bg.POST("", api.create)

	dg := bg.Group("/:id", objectMiddleware("question bank", func(ctx echo.Context, actor user.User, id string) (interface{}, error) {
		return api.svc.Retrieve(ctx.Request().Context(), actor, id)
	}))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *bankApi) create(ctx echo.Context) error {
	var data bank.NewQuestionBank
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestionBank")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	b, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating question bank")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *bankApi) query(ctx echo.Context) error {
	filter := new(bank.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []bank.QuestionBank{})
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	banks, err := api.svc.Query(ctx.Request().Context(), actor, *filter)
	if err != nil {
		return errors.Wrap(err, "querying question banks")
	}
	if banks == nil {
		banks = []bank.QuestionBank{}
	}
	return ctx.JSON(http.StatusOK, banks)
}

func (api *bankApi) retrieve(ctx echo.Context) error {
	b, ok := ctx.Get(contextObjectKey).(bank.QuestionBank)
	if !ok {
		return errors.Wrap(errBankNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bankApi) update(ctx echo.Context) error {
	b, ok := ctx.Get(contextObjectKey).(bank.QuestionBank)
	if !ok {
		return errors.Wrap(errBankNotFoundInCtx, "retrieving object from context")
	}

	var data bank.UpdateQuestionBank
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuestionBank")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	b, err = api.svc.Update(ctx.Request().Context(), actor, b, data)
	if err != nil {
		return errors.Wrap(err, "updating question bank")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bankApi) destroy(ctx echo.Context) error {
	b, ok := ctx.Get(contextObjectKey).(bank.QuestionBank)
	if !ok {
		return errors.Wrap(errBankNotFoundInCtx, "retrieving object from context")
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, b); err != nil {
		return errors.Wrap(err, "deleting question bank")
	}
	return ctx.NoContent(http.StatusNoContent)
}
