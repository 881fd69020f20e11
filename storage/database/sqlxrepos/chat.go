package sqlxrepos

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/recedu/reconline/core/chat"
)

type chatRepository struct {
	db *sqlx.DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *sqlx.DB) *chatRepository {
	return &chatRepository{db: db}
}

type roomRow struct {
	ID        int       `db:"id"`
	CourseID  int       `db:"course_id"`
	Name      string    `db:"name"`
	CreatedBy int       `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
}

func (r roomRow) toRoom() chat.Room {
	return chat.Room(r)
}

type messageRow struct {
	ID         string    `db:"id"`
	RoomID     int       `db:"room_id"`
	AuthorID   int       `db:"author_id"`
	AuthorName string    `db:"author_name"`
	Body       string    `db:"body"`
	SentAt     time.Time `db:"sent_at"`
}

func (r messageRow) toMessage() chat.Message {
	return chat.Message(r)
}

const (
	roomColumns    = `id, course_id, name, created_by, created_at`
	messageColumns = `id, room_id, author_id, author_name, body, sent_at`
)

func (repo *chatRepository) CreateRoom(rm chat.Room) (chat.Room, error) {
	var row roomRow
	err := repo.db.Get(&row, `
		INSERT INTO chat_room (course_id, name, created_by, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+roomColumns,
		rm.CourseID, rm.Name, rm.CreatedBy, rm.CreatedAt.UTC(),
	)
	if err != nil {
		return chat.Room{}, errors.Wrap(err, "inserting room")
	}
	return row.toRoom(), nil
}

func (repo *chatRepository) GetRoomByID(id int) (chat.Room, error) {
	var row roomRow
	if err := repo.db.Get(&row, `SELECT `+roomColumns+` FROM chat_room WHERE id = $1`, id); err != nil {
		return chat.Room{}, trapNoRowsErr(err, chat.ErrRoomNotFound, "finding room")
	}
	return row.toRoom(), nil
}

func (repo *chatRepository) QueryAllRooms() ([]chat.Room, error) {
	return repo.queryRooms(`SELECT ` + roomColumns + ` FROM chat_room ORDER BY id`)
}

func (repo *chatRepository) QueryRoomsByCourse(courseID int) ([]chat.Room, error) {
	return repo.queryRooms(`SELECT `+roomColumns+` FROM chat_room WHERE course_id = $1 ORDER BY id`, courseID)
}

func (repo *chatRepository) queryRooms(q string, args ...interface{}) ([]chat.Room, error) {
	var rows []roomRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying rooms")
	}
	rooms := make([]chat.Room, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, r.toRoom())
	}
	return rooms, nil
}

func (repo *chatRepository) DeleteRoomsByID(ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM chat_room WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err := repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting rooms")
	}
	return nil
}

func (repo *chatRepository) CreateMessage(msg chat.Message) (chat.Message, error) {
	var row messageRow
	err := repo.db.Get(&row, `
		INSERT INTO chat_message (id, room_id, author_id, author_name, body, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+messageColumns,
		msg.ID, msg.RoomID, msg.AuthorID, msg.AuthorName, msg.Body, msg.SentAt.UTC(),
	)
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "inserting message")
	}
	return row.toMessage(), nil
}

func (repo *chatRepository) QueryMessagesByRoom(roomID int) ([]chat.Message, error) {
	var rows []messageRow
	err := repo.db.Select(&rows, `SELECT `+messageColumns+` FROM chat_message WHERE room_id = $1 ORDER BY sent_at, id`, roomID)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.toMessage())
	}
	return msgs, nil
}
