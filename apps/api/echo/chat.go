package echoapi

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/recedu/reconline/core/chat"
	"github.com/recedu/reconline/core/realtime"
	"github.com/recedu/reconline/core/user"
)

type chatApi struct {
	deps ServerDeps
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := chatApi{deps: deps}

	rg := g.Group("/chat/rooms", jwt)
	rg.GET("", api.queryRooms)
	rg.POST("", api.createRoom, staffMiddleware())
	rg.DELETE("/:id", api.destroyRoom, staffMiddleware())
	rg.GET("/:id/messages", api.history)
	rg.POST("/:id/messages", api.send)
	rg.GET("/:id/stream", api.stream)
}

func (api *chatApi) queryRooms(ctx echo.Context) error {
	rooms, err := api.deps.ChatSvc.QueryAllRooms()
	if err != nil {
		return errors.Wrap(err, "querying rooms")
	}
	if rooms == nil {
		rooms = []chat.Room{}
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *chatApi) createRoom(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data chat.NewRoom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRoom")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}
	if data.CourseID != 0 {
		if _, err := api.deps.CourseSvc.GetByID(data.CourseID); err != nil {
			return err
		}
	}

	rm, err := api.deps.ChatSvc.CreateRoom(ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating room")
	}
	return ctx.JSON(http.StatusCreated, rm)
}

func (api *chatApi) destroyRoom(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if _, err := api.deps.ChatSvc.GetRoom(id); err != nil {
		return err
	}
	if err := api.deps.ChatSvc.DeleteRooms(id); err != nil {
		return errors.Wrap(err, "deleting room")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// checkRoomAccess admits staff to any room and students to school-wide rooms
// and rooms of courses they are enrolled in.
func (api *chatApi) checkRoomAccess(rm chat.Room, usr user.User) error {
	if usr.IsAdmin() || usr.IsTeacher() || rm.CourseID == 0 {
		return nil
	}
	enrolled, err := api.deps.CourseSvc.IsEnrolled(rm.CourseID, usr.ID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return errHttpForbidden
	}
	return nil
}

func (api *chatApi) history(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	rm, err := api.deps.ChatSvc.GetRoom(id)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.checkRoomAccess(rm, ctxUsr); err != nil {
		return err
	}

	msgs, err := api.deps.ChatSvc.History(id)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *chatApi) send(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	rm, err := api.deps.ChatSvc.GetRoom(id)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.checkRoomAccess(rm, ctxUsr); err != nil {
		return err
	}

	var data chat.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	msg, err := api.deps.ChatSvc.Send(ctx.Request().Context(), id, ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, msg)
}

// stream pushes the room's live message list as server-sent events. Each
// event carries the full current list; the initial event replays history and
// every subsequent write delivers an updated list.
func (api *chatApi) stream(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	rm, err := api.deps.ChatSvc.GetRoom(id)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.checkRoomAccess(rm, ctxUsr); err != nil {
		return err
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	binding := realtime.NewQueryBinding(api.deps.Store, api.deps.Bus)
	defer binding.Close()

	updates := binding.Updates()
	binding.Bind(&realtime.Query{
		Collection: chat.MessagesCollection(id),
		OrderBy:    []realtime.Order{{Field: "sent_at"}},
	})

	done := ctx.Request().Context().Done()
	for {
		select {
		case <-done:
			return nil
		case result := <-updates:
			if result.Err != nil {
				// denials surface on the bus; end the stream
				return nil
			}
			if result.Loading {
				continue
			}
			payload, err := json.Marshal(result.Data)
			if err != nil {
				return errors.Wrap(err, "encoding messages")
			}
			if _, err := res.Write([]byte("data: ")); err != nil {
				return nil
			}
			if _, err := res.Write(payload); err != nil {
				return nil
			}
			if _, err := res.Write([]byte("\n\n")); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
