package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/recedu/reconline/core/attendance"
)

type attendanceApi struct {
	deps ServerDeps
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := attendanceApi{deps: deps}

	sg := g.Group("/attendance/sessions", jwt)
	sg.POST("", api.createSession, staffMiddleware())
	sg.GET("/:id", api.retrieveSession)
	sg.DELETE("/:id", api.destroySession, staffMiddleware())
	sg.POST("/:id/token", api.mintToken, staffMiddleware())
	sg.POST("/:id/check-in", api.checkIn)
	sg.GET("/:id/records", api.sessionRecords, staffMiddleware())

	g.GET("/courses/:id/attendance-sessions", api.byCourse, jwt)
	g.GET("/attendance/records/mine", api.myRecords, jwt)
}

func (api *attendanceApi) createSession(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data attendance.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}
	if _, err := api.deps.CourseSvc.GetByID(data.CourseID); err != nil {
		return err
	}

	ses, err := api.deps.AttendanceSvc.CreateSession(ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ses)
}

func (api *attendanceApi) retrieveSession(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	ses, err := api.deps.AttendanceSvc.GetSession(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ses)
}

func (api *attendanceApi) destroySession(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if _, err := api.deps.AttendanceSvc.GetSession(id); err != nil {
		return err
	}
	if err := api.deps.AttendanceSvc.DeleteSessions(id); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) byCourse(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if _, err := api.deps.CourseSvc.GetByID(id); err != nil {
		return err
	}
	sessions, err := api.deps.AttendanceSvc.CourseSessions(id)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []attendance.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

// mintToken returns a short-lived check-in token. The frontend renders it as
// a QR code for students to scan.
func (api *attendanceApi) mintToken(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	token, err := api.deps.AttendanceSvc.MintCheckInToken(id, ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, CheckInTokenResponse{Token: token})
}

func (api *attendanceApi) checkIn(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data CheckInRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckInRequest")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	rec, err := api.deps.AttendanceSvc.CheckIn(id, data.Token, ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *attendanceApi) sessionRecords(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if _, err := api.deps.AttendanceSvc.GetSession(id); err != nil {
		return err
	}
	recs, err := api.deps.AttendanceSvc.SessionRecords(id)
	if err != nil {
		return errors.Wrap(err, "querying records")
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *attendanceApi) myRecords(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	recs, err := api.deps.AttendanceSvc.StudentRecords(ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying records")
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

type (
	CheckInRequest struct {
		Token string `json:"token" validate:"required"`
	}

	CheckInTokenResponse struct {
		Token string `json:"token"`
	}
)
