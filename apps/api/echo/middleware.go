package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/cetrack/core/auth"
)

var (
	teacherRoles = []string{auth.RoleTeacher}
	studentRoles = []string{auth.RoleStudent}
)

// requireRoles lets through the requests whose token role is one of `roles`.
func requireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errInsufficientRole
		}
	}
}
