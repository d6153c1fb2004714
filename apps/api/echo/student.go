package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cetrack/core/student"
)

var okResponse = echo.Map{"ok": true}

type studentApi struct {
	svc      *student.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *student.Service, validate *validator.Validate) {
	api := studentApi{svc: svc, validate: validate}

	sg := g.Group("/students", authed, requireRoles(teacherRoles...))
	sg.GET("", api.query)
	sg.POST("", api.create)

	// detail endpoints
	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/login-code", api.setLoginCode)
}

// Handlers

func (api *studentApi) query(ctx echo.Context) error {
	var filter student.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	students, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student by ID")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) update(ctx echo.Context) error {
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.JSON(http.StatusOK, okResponse)
}

func (api *studentApi) setLoginCode(ctx echo.Context) error {
	var data student.SetLoginCode
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetLoginCode")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.svc.SetLoginCode(ctx.Request().Context(), ctx.Param("id"), data.Code); err != nil {
		return errors.Wrap(err, "setting login code")
	}
	return ctx.JSON(http.StatusOK, okResponse)
}
