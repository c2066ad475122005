package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sistira/core/stats"
)

type statsApi struct {
	svc *stats.Service
}

func registerStatsAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *stats.Service) {
	api := statsApi{svc: svc}

	sg := g.Group("/stats", authed)
	sg.GET("/counts", api.counts)
}

func (api *statsApi) counts(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	counts, err := api.svc.Counts(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "counting resources")
	}
	return ctx.JSON(http.StatusOK, counts)
}
