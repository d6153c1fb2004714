package echoapi

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cetrack/core/auth"
	"github.com/trezcool/cetrack/core/student"
	"github.com/trezcool/cetrack/core/user"
)

var (
	contextClaimsKey = "authClaims"
	bearerRe         = regexp.MustCompile(`^(?i)bearer\s+(.+)$`)
)

// authMiddleware verifies the bearer token and stores its claims in the context.
func authMiddleware(tokens *auth.TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			m := bearerRe.FindStringSubmatch(ctx.Request().Header.Get(echo.HeaderAuthorization))
			if m == nil || strings.TrimSpace(m[1]) == "" {
				return auth.ErrMissingToken
			}
			claims, err := tokens.Verify(m[1])
			if err != nil {
				return err
			}
			ctx.Set(contextClaimsKey, claims)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (auth.Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(auth.Claims); ok {
		return claims, nil
	}
	return auth.Claims{}, errMissingAuthContext
}

type authApi struct {
	svc        *auth.Service
	usrSvc     *user.Service
	studentSvc *student.Service
	validate   *validator.Validate
}

func registerAuthAPI(g *echo.Group, authed echo.MiddlewareFunc, api authApi) {
	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/teacher/login", api.loginTeacher)
	ag.POST("/student/login", api.loginStudent)

	// authed endpoints
	ag.GET("/me", api.me, authed)
}

// Handlers

func (api *authApi) loginTeacher(ctx echo.Context) error {
	var data auth.TeacherLogin
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TeacherLogin")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	session, err := api.svc.LoginTeacher(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "logging in teacher")
	}
	return ctx.JSON(http.StatusOK, session)
}

func (api *authApi) loginStudent(ctx echo.Context) error {
	var data auth.StudentLogin
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentLogin")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	session, err := api.svc.LoginStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "logging in student")
	}
	return ctx.JSON(http.StatusOK, session)
}

// me returns the account behind the token.
func (api *authApi) me(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	switch claims.Role {
	case auth.RoleTeacher:
		usr, err := api.usrSvc.GetByID(ctx.Request().Context(), claims.Subject)
		if err != nil {
			return errors.Wrap(err, "finding user by ID")
		}
		return ctx.JSON(http.StatusOK, echo.Map{"role": claims.Role, "user": usr})
	default:
		s, err := api.studentSvc.GetByID(ctx.Request().Context(), claims.Subject)
		if err != nil {
			return errors.Wrap(err, "finding student by ID")
		}
		return ctx.JSON(http.StatusOK, echo.Map{"role": claims.Role, "student": s.Brief()})
	}
}
