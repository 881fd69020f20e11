package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/assignment"
	"github.com/recedu/reconline/core/attendance"
	"github.com/recedu/reconline/core/chat"
	"github.com/recedu/reconline/core/course"
	"github.com/recedu/reconline/core/forum"
	"github.com/recedu/reconline/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

var notFoundErrs = map[error]struct{}{
	user.ErrNotFound:                 {},
	course.ErrNotFound:               {},
	course.ErrEnrollmentNotFound:     {},
	assignment.ErrNotFound:           {},
	assignment.ErrSubmissionNotFound: {},
	attendance.ErrNotFound:           {},
	attendance.ErrRecordNotFound:     {},
	forum.ErrThreadNotFound:          {},
	forum.ErrPostNotFound:            {},
	chat.ErrRoomNotFound:             {},
	chat.ErrMessageNotFound:          {},
}

var forbiddenErrs = map[error]struct{}{
	course.ErrReviewForbidden:     {},
	assignment.ErrReviewForbidden: {},
	attendance.ErrMintForbidden:   {},
	forum.ErrLockForbidden:        {},
	forum.ErrDeleteForbidden:      {},
}

var badRequestErrs = map[error]struct{}{
	course.ErrCodeExists:              {},
	course.ErrAlreadyEnrolled:         {},
	course.ErrCourseFull:              {},
	course.ErrNotPublished:            {},
	course.ErrNotPending:              {},
	assignment.ErrAlreadySubmitted:    {},
	assignment.ErrPastDue:             {},
	assignment.ErrNotSubmitted:        {},
	attendance.ErrAlreadyCheckedIn:    {},
	attendance.ErrInvalidCheckInToken: {},
	attendance.ErrCheckInWindowClosed: {},
	forum.ErrThreadLocked:             {},
	user.ErrInvalidToken:              {},
	user.ErrTokenExpired:              {},
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how
// to handle our errors. signalShutdown is called in order to gracefully
// shutdown the server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
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
			if _, ok := notFoundErrs[cause]; ok {
				code = http.StatusNotFound
				message = cause.Error()
				break
			}
			if _, ok := forbiddenErrs[cause]; ok {
				code = http.StatusForbidden
				message = cause.Error()
				break
			}
			if _, ok := badRequestErrs[cause]; ok {
				code = http.StatusBadRequest
				message = cause.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID, _ = claims.UserID()
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
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
