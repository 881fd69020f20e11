package inmemdb

import (
	"sort"

	"github.com/recedu/reconline/core/chat"
)

type chatRepository struct {
	db *DB
}

func NewChatRepository(db *DB) chat.Repository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) CreateRoom(rm chat.Room) (chat.Room, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rm.ID = repo.db.nextID()
	repo.db.rooms[rm.ID] = &rm
	return rm, nil
}

func (repo *chatRepository) GetRoomByID(id int) (chat.Room, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rm, ok := repo.db.rooms[id]; ok {
		return *rm, nil
	}
	return chat.Room{}, chat.ErrRoomNotFound
}

func (repo *chatRepository) QueryAllRooms() ([]chat.Room, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rooms := make([]chat.Room, 0, len(repo.db.rooms))
	for _, rm := range repo.db.rooms {
		rooms = append(rooms, *rm)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

func (repo *chatRepository) QueryRoomsByCourse(courseID int) ([]chat.Room, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var rooms []chat.Room
	for _, rm := range repo.db.rooms {
		if rm.CourseID == courseID {
			rooms = append(rooms, *rm)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

func (repo *chatRepository) DeleteRoomsByID(ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.rooms, id)
	}
	return nil
}

func (repo *chatRepository) CreateMessage(msg chat.Message) (chat.Message, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.messages[msg.ID] = &msg
	return msg, nil
}

func (repo *chatRepository) QueryMessagesByRoom(roomID int) ([]chat.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var msgs []chat.Message
	for _, msg := range repo.db.messages {
		if msg.RoomID == roomID {
			msgs = append(msgs, *msg)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].SentAt.Before(msgs[j].SentAt) })
	return msgs, nil
}
