package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/chat"
	"github.com/recedu/reconline/core/realtime"
	"github.com/recedu/reconline/core/user"
	inmemdb "github.com/recedu/reconline/storage/database/inmem"
)

func newTestService(t *testing.T) (*chat.Service, *realtime.Hub) {
	t.Helper()
	hub := realtime.NewHub()
	svc := chat.NewService(inmemdb.NewChatRepository(inmemdb.NewDB()), realtime.LocalWriter{Hub: hub}, core.NewTestConfig())
	return svc, hub
}

func TestSendPushesToSubscribers(t *testing.T) {
	svc, hub := newTestService(t)
	author := user.User{ID: 1, Name: "Amina", Roles: []string{user.RoleStudent}}

	rm, err := svc.CreateRoom(author, chat.NewRoom{Name: "general"})
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	events := make(chan realtime.QueryEvent, 4)
	unsub := hub.WatchQuery(realtime.Query{Collection: chat.MessagesCollection(rm.ID)}, func(e realtime.QueryEvent) {
		events <- e
	})
	defer unsub()

	// initial empty snapshot
	select {
	case e := <-events:
		if len(e.Records()) != 0 {
			t.Fatalf("initial snapshot has %d records, want 0", len(e.Records()))
		}
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	msg, err := svc.Send(context.Background(), rm.ID, author, chat.NewMessage{Body: "hello"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case e := <-events:
		recs := e.Records()
		if len(recs) != 1 {
			t.Fatalf("got %d records, want 1", len(recs))
		}
		if recs[0]["body"] != "hello" || recs[0]["id"] != msg.ID {
			t.Errorf("got record %v", recs[0])
		}
	case <-time.After(time.Second):
		t.Fatal("send was not pushed to subscriber")
	}
}

func TestHistorySortedByTime(t *testing.T) {
	svc, _ := newTestService(t)
	author := user.User{ID: 1, Name: "Amina"}

	rm, err := svc.CreateRoom(author, chat.NewRoom{Name: "general"})
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	ctx := context.Background()
	for _, body := range []string{"first", "second", "third"} {
		if _, err := svc.Send(ctx, rm.ID, author, chat.NewMessage{Body: body}); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	msgs, err := svc.History(rm.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len(msgs) = %d, want 3", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Body != want {
			t.Errorf("msgs[%d].Body = %q, want %q", i, msgs[i].Body, want)
		}
	}
}

func TestSendToUnknownRoom(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Send(context.Background(), 999, user.User{ID: 1}, chat.NewMessage{Body: "hi"}); err != chat.ErrRoomNotFound {
		t.Errorf("Send() error = %v, want %v", err, chat.ErrRoomNotFound)
	}
}
