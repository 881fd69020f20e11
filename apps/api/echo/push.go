package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	pushsvc "github.com/recedu/reconline/services/push"
)

type pushApi struct {
	deps ServerDeps
}

func registerPushAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := pushApi{deps: deps}

	g.POST("/push/broadcast", api.broadcast, jwt, adminMiddleware())
}

// broadcast sends an announcement to the given device tokens.
func (api *pushApi) broadcast(ctx echo.Context) error {
	var data BroadcastRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BroadcastRequest")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	n := pushsvc.Notification{Title: data.Title, Body: data.Body, Link: data.Link}
	if err := api.deps.Push.Notify(ctx.Request().Context(), data.Tokens, n); err != nil {
		return errors.Wrap(err, "sending notifications")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Announcement sent."})
}

type BroadcastRequest struct {
	Tokens []string `json:"tokens" validate:"required,min=1"`
	Title  string   `json:"title" validate:"required"`
	Body   string   `json:"body" validate:"required"`
	Link   string   `json:"link"`
}
