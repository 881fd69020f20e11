package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/realtime"
	"github.com/recedu/reconline/core/user"
)

var (
	// errors
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
)

type (
	Repository interface {
		CreateRoom(rm Room) (Room, error)
		GetRoomByID(id int) (Room, error)
		QueryAllRooms() ([]Room, error)
		QueryRoomsByCourse(courseID int) ([]Room, error)
		DeleteRoomsByID(ids ...int) error

		CreateMessage(msg Message) (Message, error)
		QueryMessagesByRoom(roomID int) ([]Message, error)
	}

	Service struct {
		repo Repository
		rt   realtime.Writer
		conf *core.Config
	}
)

func NewService(repo Repository, rt realtime.Writer, conf *core.Config) *Service {
	return &Service{repo: repo, rt: rt, conf: conf}
}

// MessagesCollection is the store path live subscribers watch for a room.
func MessagesCollection(roomID int) string {
	return fmt.Sprintf("chat-rooms/%d/messages", roomID)
}

func (svc *Service) CreateRoom(creator user.User, nr NewRoom) (Room, error) {
	return svc.repo.CreateRoom(Room{
		CourseID:  nr.CourseID,
		Name:      nr.Name,
		CreatedBy: creator.ID,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *Service) GetRoom(id int) (Room, error) {
	return svc.repo.GetRoomByID(id)
}

func (svc *Service) QueryAllRooms() ([]Room, error) {
	return svc.repo.QueryAllRooms()
}

func (svc *Service) CourseRooms(courseID int) ([]Room, error) {
	return svc.repo.QueryRoomsByCourse(courseID)
}

func (svc *Service) DeleteRooms(ids ...int) error {
	return svc.repo.DeleteRoomsByID(ids...)
}

// Send persists a message and pushes it through the realtime store so live
// subscribers see it without polling.
func (svc *Service) Send(ctx context.Context, roomID int, author user.User, nm NewMessage) (Message, error) {
	if _, err := svc.repo.GetRoomByID(roomID); err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		Body:       nm.Body,
		SentAt:     time.Now().UTC(),
	}
	msg, err := svc.repo.CreateMessage(msg)
	if err != nil {
		return Message{}, err
	}

	path := MessagesCollection(roomID) + "/" + msg.ID
	fields := map[string]interface{}{
		"room_id":     msg.RoomID,
		"author_id":   msg.AuthorID,
		"author_name": msg.AuthorName,
		"body":        msg.Body,
		// RFC3339 keeps the field JSON-safe across the redis fanout
		"sent_at": msg.SentAt.Format(time.RFC3339Nano),
	}
	if err := svc.rt.Set(ctx, path, fields); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// History returns a room's persisted messages, oldest first.
func (svc *Service) History(roomID int) ([]Message, error) {
	if _, err := svc.repo.GetRoomByID(roomID); err != nil {
		return nil, err
	}
	msgs, err := svc.repo.QueryMessagesByRoom(roomID)
	if err != nil {
		return nil, err
	}
	SortMessages(msgs)
	return msgs, nil
}
