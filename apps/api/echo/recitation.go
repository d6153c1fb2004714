package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cetrack/core/recitation"
)

type recitationApi struct {
	svc      *recitation.Service
	validate *validator.Validate
}

func registerRecitationAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *recitation.Service, validate *validator.Validate) {
	api := recitationApi{svc: svc, validate: validate}

	rg := g.Group("/recitations", authed)

	// own recitations
	mg := rg.Group("/me", requireRoles(studentRoles...))
	mg.POST("", api.upsertMine)
	mg.GET("", api.myHistory)

	// teacher endpoints
	tg := rg.Group("", requireRoles(teacherRoles...))
	tg.POST("/student/:studentId", api.upsertForStudent)
	tg.GET("/student/:studentId", api.studentHistory)
	tg.POST("/import", api.importEntries)
}

func (api *recitationApi) upsert(ctx echo.Context, studentID string) error {
	var data recitation.UpsertEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpsertEntry")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.Upsert(ctx.Request().Context(), studentID, data)
	if err != nil {
		return errors.Wrap(err, "upserting recitation")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *recitationApi) history(ctx echo.Context, studentID string) error {
	res, err := api.svc.History(ctx.Request().Context(), studentID, bindDays(ctx))
	if err != nil {
		return errors.Wrap(err, "querying recitation history")
	}
	return ctx.JSON(http.StatusOK, res)
}

// Handlers

func (api *recitationApi) upsertMine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	return api.upsert(ctx, claims.Subject)
}

func (api *recitationApi) myHistory(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	return api.history(ctx, claims.Subject)
}

func (api *recitationApi) upsertForStudent(ctx echo.Context) error {
	return api.upsert(ctx, ctx.Param("studentId"))
}

func (api *recitationApi) studentHistory(ctx echo.Context) error {
	return api.history(ctx, ctx.Param("studentId"))
}

func (api *recitationApi) importEntries(ctx echo.Context) error {
	var data recitation.ImportRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ImportRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Import(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "importing recitations")
	}
	return ctx.JSON(http.StatusOK, res)
}
