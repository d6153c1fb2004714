package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cetrack/core/score"
)

type scoreApi struct {
	svc      *score.Service
	validate *validator.Validate
}

func registerScoreAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *score.Service, validate *validator.Validate) {
	api := scoreApi{svc: svc, validate: validate}

	sg := g.Group("/scores", authed)
	sg.POST("/import", api.importScores, requireRoles(teacherRoles...))
	sg.GET("/analysis", api.analysis, requireRoles(teacherRoles...))
	sg.GET("/me", api.myScores, requireRoles(studentRoles...))
	sg.GET("/me/eligibility", api.myEligibility, requireRoles(studentRoles...))
}

// bindFilter reads the aggregation filter shared with the reports.
func bindFilter(ctx echo.Context, validate *validator.Validate, passLine int) (score.Filter, error) {
	var q score.FilterQuery
	if err := bindQuery(ctx, &q); err != nil {
		return score.Filter{}, err
	}
	if err := q.Validate(validate); err != nil {
		return score.Filter{}, err
	}
	return q.Filter(passLine), nil
}

// Handlers

func (api *scoreApi) importScores(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data score.ImportRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ImportRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Import(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "importing scores")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *scoreApi) analysis(ctx echo.Context) error {
	filter, err := bindFilter(ctx, api.validate, api.svc.PassLine())
	if err != nil {
		return err
	}
	res, err := api.svc.Analyze(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "analyzing scores")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *scoreApi) myScores(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.StudentScores(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying student scores")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *scoreApi) myEligibility(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.Eligibility(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "evaluating eligibility")
	}
	return ctx.JSON(http.StatusOK, res)
}
