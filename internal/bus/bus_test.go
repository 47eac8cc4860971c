package bus

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hiveroom/hiveroom/internal/store"
)

func testBus(t *testing.T) (*ActivityBus, *store.Store, *store.Room) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	room, err := st.CreateRoom(&store.Room{Name: "hive"})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return NewActivityBus(st), st, room
}

func TestPublishPersistsToActivityLog(t *testing.T) {
	b, st, room := testBus(t)

	b.Publish(Event{RoomID: room.ID, Kind: KindCycleCompleted, Detail: "150 tokens"})

	entries, err := st.ListActivity(room.ID, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != KindCycleCompleted {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestSubscribeReceivesRoomEvents(t *testing.T) {
	b, _, room := testBus(t)

	ch := b.Subscribe(room.ID)
	b.Publish(Event{RoomID: room.ID, Kind: KindVoteCast})
	b.Publish(Event{RoomID: "other-room", Kind: KindVoteCast})

	select {
	case ev := <-ch:
		if ev.Kind != KindVoteCast || ev.RoomID != room.ID {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case ev := <-ch:
		t.Fatalf("received event for another room: %+v", ev)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b, _, room := testBus(t)

	ch := b.Subscribe(room.ID)
	b.Unsubscribe(room.ID, ch)

	if _, open := <-ch; open {
		t.Fatal("expected closed channel")
	}
	// Publishing after unsubscribe must not panic.
	b.Publish(Event{RoomID: room.ID, Kind: KindLoopStopped})
}

func TestPublishConcurrentWithUnsubscribe(t *testing.T) {
	b, _, room := testBus(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			ch := b.Subscribe(room.ID)
			b.Unsubscribe(room.ID, ch)
		}
	}()

	// Hammering publishes against the subscribe/unsubscribe churn must never
	// send on a closed channel.
	for {
		select {
		case <-done:
			return
		default:
			b.Publish(Event{RoomID: room.ID, Kind: KindVoteCast})
		}
	}
}

type recordingMirror struct {
	events []Event
}

func (m *recordingMirror) Publish(ev Event) { m.events = append(m.events, ev) }

func TestMirrorsReceiveEveryEvent(t *testing.T) {
	b, _, room := testBus(t)

	mirror := &recordingMirror{}
	b.AddMirror(mirror)

	b.Publish(Event{RoomID: room.ID, Kind: KindDecisionProposed})
	b.Publish(Event{RoomID: room.ID, Kind: KindDecisionResolved})

	if len(mirror.events) != 2 {
		t.Fatalf("expected 2 mirrored events, got %d", len(mirror.events))
	}
	if mirror.events[0].Timestamp.IsZero() {
		t.Fatal("expected timestamp stamped on publish")
	}
}
