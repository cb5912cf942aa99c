package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/krysselista/backend/core"
	"github.com/krysselista/backend/core/child"
	"github.com/krysselista/backend/core/pickup"
	"github.com/krysselista/backend/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "du er ikke innlogget")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "autentisering feilet")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "kontoen er deaktivert")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "sesjonen er utløpt, logg inn på nytt")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "ingen tilgang")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "ikke funnet")
)

// userMessages maps domain sentinels to the Norwegian texts shown to the
// client; the Go error texts stay internal (logs, comparisons).
var userMessages = map[error]string{
	user.ErrNotFound:        "brukeren ble ikke funnet",
	child.ErrNotFound:       "barnet ble ikke funnet",
	child.ErrPersonNotFound: "hentepersonen ble ikke funnet",
	child.ErrNotParent:      "brukeren har ikke foreldrerollen",
	pickup.ErrNotFound:      "henteforespørselen ble ikke funnet",
	pickup.ErrNotPending:    "henteforespørselen er allerede behandlet",
	pickup.ErrNotGuardian:   "du er ikke foresatt for dette barnet",
	pickup.ErrNotParent:     "kun foreldre kan be om henting",
	pickup.ErrNotStaff:      "kun ansatte kan behandle henteforespørsler",
}

func userMessage(err error) string {
	if msg, ok := userMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
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
				fldErrs[vErr.Field()] = vErr.Translate(translator)
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
			switch origErr {
			case user.ErrNotFound, child.ErrNotFound, child.ErrPersonNotFound, pickup.ErrNotFound:
				code = http.StatusNotFound
				message = userMessage(origErr)
			case pickup.ErrNotPending:
				// lost decision race: the request was already processed
				code = http.StatusConflict
				message = userMessage(origErr)
			case pickup.ErrNotGuardian, pickup.ErrNotParent, pickup.ErrNotStaff, child.ErrNotParent:
				code = http.StatusForbidden
				message = userMessage(origErr)
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Name = claims.Name
					usr.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
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
