package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core/exam"
	"github.com/trezcool/sistira/core/user"
)

var errExamNotFoundInCtx = errors.Wrap(errObjectNotFoundInCtx, "exam")

type examApi struct {
	svc      *exam.Service
	validate *validator.Validate
}

func registerExamAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *exam.Service, validate *validator.Validate) {
	api := examApi{
		svc:      svc,
		validate: validate,
	}

	eg := g.Group("/exams", authed)
	eg.GET("", api.query)
	eg.POST("", api.create)

	dg := eg.Group("/:id", objectMiddleware("exam", func(ctx echo.Context, actor user.User, id string) (interface{}, error) {
		return api.svc.Retrieve(ctx.Request().Context(), actor, id)
	}))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/questions", api.addQuestions)
	dg.POST("/question-banks", api.addQuestionBank)
}

func getContextExam(ctx echo.Context) (exam.Exam, error) {
	e, ok := ctx.Get(contextObjectKey).(exam.Exam)
	if !ok {
		return exam.Exam{}, errors.Wrap(errExamNotFoundInCtx, "retrieving object from context")
	}
	return e, nil
}

// Handlers

func (api *examApi) create(ctx echo.Context) error {
	var data exam.NewExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *examApi) query(ctx echo.Context) error {
	filter := new(exam.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []exam.Exam{})
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	exams, err := api.svc.Query(ctx.Request().Context(), actor, *filter)
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	if exams == nil {
		exams = []exam.Exam{}
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *examApi) retrieve(ctx echo.Context) error {
	e, err := getContextExam(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) update(ctx echo.Context) error {
	e, err := getContextExam(ctx)
	if err != nil {
		return err
	}

	var data exam.UpdateExam
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateExam")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, err = api.svc.Update(ctx.Request().Context(), actor, e, data)
	if err != nil {
		return errors.Wrap(err, "updating exam")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) destroy(ctx echo.Context) error {
	e, err := getContextExam(ctx)
	if err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, e); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *examApi) addQuestions(ctx echo.Context) error {
	e, err := getContextExam(ctx)
	if err != nil {
		return err
	}

	var data exam.AddQuestions
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddQuestions")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, err = api.svc.AddQuestions(ctx.Request().Context(), actor, e, data)
	if err != nil {
		return errors.Wrap(err, "adding exam questions")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) addQuestionBank(ctx echo.Context) error {
	e, err := getContextExam(ctx)
	if err != nil {
		return err
	}

	var data exam.AddQuestionBank
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddQuestionBank")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, err = api.svc.AddQuestionBank(ctx.Request().Context(), actor, e, data)
	if err != nil {
		return errors.Wrap(err, "adding exam question bank")
	}
	return ctx.JSON(http.StatusOK, e)
}
