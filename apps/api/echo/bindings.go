package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cetrack/core/recitation"
)

var (
	daysParam = "days"

	queryBinder = new(echo.DefaultBinder)
)

// bindQuery binds the query string only, whatever the request method.
func bindQuery(ctx echo.Context, dst interface{}) error {
	return errors.Wrap(queryBinder.BindQueryParams(ctx, dst), "binding query params")
}

// bindDays reads the history window of the recitation endpoints.
func bindDays(ctx echo.Context) int {
	return recitation.ClampDays(ctx.QueryParam(daysParam))
}
