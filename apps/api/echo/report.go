package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cetrack/core/report"
	"github.com/trezcool/cetrack/core/score"
)

type reportApi struct {
	svc      *report.Service
	scoreSvc *score.Service
	validate *validator.Validate
}

func registerReportAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *report.Service, scoreSvc *score.Service, validate *validator.Validate) {
	api := reportApi{svc: svc, scoreSvc: scoreSvc, validate: validate}

	rg := g.Group("/reports", authed, requireRoles(teacherRoles...))
	rg.GET("/class-stats", api.classStats)
}

// Handlers

func (api *reportApi) classStats(ctx echo.Context) error {
	filter, err := bindFilter(ctx, api.validate, api.scoreSvc.PassLine())
	if err != nil {
		return err
	}
	res, err := api.svc.ClassStats(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "computing class stats")
	}
	return ctx.JSON(http.StatusOK, res)
}
