package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mindzed/attendance/core"
	"github.com/mindzed/attendance/core/school"
	"github.com/mindzed/attendance/core/user"
)

const msgUnexpected = "An unexpected error occurred"

var (
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errRefreshExpired = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpNotFound   = echo.NewHTTPError(http.StatusNotFound, "not found")
	errInvalidInput   = "invalid input"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.ShutdownError is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code = http.StatusInternalServerError
			resp errorResponse
		)

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				resp.Error = msg
			} else {
				resp.Error = http.StatusText(code)
			}

		case validator.ValidationErrors:
			code = http.StatusBadRequest
			resp.Error = errInvalidInput
			resp.Fields = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				resp.Fields[vErr.Field()] = vErr.Translate(translator)
			}

		case *core.ValidationError:
			code = http.StatusBadRequest
			resp.Error = origErr.Error()
			if len(origErr.Fields) > 0 {
				resp.Fields = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					resp.Fields[fErr.Field] = fErr.Error
				}
				if resp.Error == "" {
					resp.Error = errInvalidInput
				}
			}

		case *core.PermissionError:
			code = http.StatusForbidden
			resp.Error = origErr.Error()

		default:
			switch origErr {
			case user.ErrInvalidCredentials:
				code = http.StatusBadRequest
				resp.Error = origErr.Error()
			case user.ErrAlreadyInitialized:
				code = http.StatusForbidden
				resp.Error = origErr.Error()
			case user.ErrNoSession:
				code = http.StatusUnauthorized
				resp.Error = origErr.Error()
			case user.ErrNotFound, school.ErrNotFound:
				code = http.StatusNotFound
				resp.Error = errHttpNotFound.Message.(string)
			default: // any other error is a server error
				resp.Error = msgUnexpected
				logger.Error(msgUnexpected, errors.WithStack(err), getContextIdentity(ctx))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
				if ctx.Echo().Debug {
					resp.Error = err.Error()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
