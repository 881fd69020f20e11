package chat

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/recedu/reconline/core"
)

type Room struct {
	ID        int       `json:"id"`
	CourseID  int       `json:"course_id,omitempty"` // 0 for school-wide rooms
	Name      string    `json:"name"`
	CreatedBy int       `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Message IDs are uuids so concurrent senders never collide.
type Message struct {
	ID         string    `json:"id"`
	RoomID     int       `json:"room_id"`
	AuthorID   int       `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}

// SortMessages orders messages by send time, oldest first. Store delivery
// order follows document paths, not timestamps, so readers resort.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].SentAt.Before(msgs[j].SentAt) })
}

// NewRoom contains information needed to open a chat Room.
type NewRoom struct {
	CourseID int    `json:"course_id"`
	Name     string `json:"name" validate:"required"`
}

func (nr *NewRoom) Validate(validate *validator.Validate) error {
	nr.Name = core.CleanString(nr.Name)
	return validate.Struct(nr)
}

// NewMessage is a message send request.
type NewMessage struct {
	Body string `json:"body" validate:"required"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Body = core.CleanString(nm.Body)
	return validate.Struct(nm)
}
