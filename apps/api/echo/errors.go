package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cetrack/core"
	"github.com/trezcool/cetrack/core/auth"
	"github.com/trezcool/cetrack/core/score"
	"github.com/trezcool/cetrack/core/student"
	"github.com/trezcool/cetrack/core/user"
)

var (
	errMissingAuthContext = echo.NewHTTPError(http.StatusForbidden, "missing auth context")
	errInsufficientRole   = echo.NewHTTPError(http.StatusForbidden, "insufficient role")

	// domainErrorCodes maps the sentinel errors of the core packages to a status.
	domainErrorCodes = map[error]int{
		auth.ErrMissingToken:        http.StatusUnauthorized,
		auth.ErrInvalidToken:        http.StatusUnauthorized,
		auth.ErrInvalidSignature:    http.StatusUnauthorized,
		auth.ErrTokenExpired:        http.StatusUnauthorized,
		auth.ErrInvalidTeacherLogin: http.StatusUnauthorized,
		auth.ErrInvalidStudentLogin: http.StatusUnauthorized,
		user.ErrNotFound:            http.StatusNotFound,
		student.ErrNotFound:         http.StatusNotFound,
		score.ErrExamBatchNotFound:  http.StatusNotFound,
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[core.FieldPath(vErr)] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if c, ok := domainErrorCodes[origErr]; ok {
				code = c
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				args = append(args, claims)
			}
			logger.Error(msg, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}

			if ctx.Echo().Debug {
				message = err.Error()
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
