package rooms

import (
	"encoding/json"
	"testing"
)

func newParticipant(userID, role, roomID string) *Participant {
	return &Participant{
		UserID: userID,
		Role:   role,
		RoomID: roomID,
		Send:   make(chan []byte, 8),
	}
}

func drainEvent(t *testing.T, p *Participant) Event {
	t.Helper()
	select {
	case data := <-p.Send:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return ev
	default:
		t.Fatal("no event queued")
		return Event{}
	}
}

func TestJoinAnnouncesToRoom(t *testing.T) {
	hub := NewHub(nil)
	patient := newParticipant("pat-1", "patient", "appt-1")
	pro := newParticipant("pro-1", "professional", "appt-1")

	hub.Join(patient)
	hub.Join(pro)

	// The patient saw their own join and then the professional's.
	first := drainEvent(t, patient)
	if first.Type != EventJoined || first.UserID != "pat-1" {
		t.Fatalf("first event = %+v", first)
	}
	second := drainEvent(t, patient)
	if second.Type != EventJoined || second.UserID != "pro-1" {
		t.Fatalf("second event = %+v", second)
	}

	if hub.RoomSize("appt-1") != 2 {
		t.Fatalf("room size = %d", hub.RoomSize("appt-1"))
	}
}

func TestLeaveClosesRoomWhenEmpty(t *testing.T) {
	hub := NewHub(nil)
	patient := newParticipant("pat-1", "patient", "appt-1")
	pro := newParticipant("pro-1", "professional", "appt-1")
	hub.Join(patient)
	hub.Join(pro)

	hub.Leave(patient)
	if hub.RoomSize("appt-1") != 1 {
		t.Fatalf("room size = %d after first leave", hub.RoomSize("appt-1"))
	}
	hub.Leave(pro)
	if hub.OpenRooms() != 0 {
		t.Fatalf("open rooms = %d, want 0", hub.OpenRooms())
	}

	// Double leave is a no-op.
	hub.Leave(pro)
}

func TestRelaySkipsSender(t *testing.T) {
	hub := NewHub(nil)
	patient := newParticipant("pat-1", "patient", "appt-1")
	pro := newParticipant("pro-1", "professional", "appt-1")
	hub.Join(patient)
	hub.Join(pro)

	// Clear join events.
	for len(patient.Send) > 0 {
		<-patient.Send
	}
	for len(pro.Send) > 0 {
		<-pro.Send
	}

	hub.Relay(patient, json.RawMessage(`{"sdp":"offer"}`))

	if len(patient.Send) != 0 {
		t.Error("sender received its own signal")
	}
	ev := drainEvent(t, pro)
	if ev.Type != EventSignal || ev.UserID != "pat-1" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	hub := NewHub(nil)
	a := newParticipant("pat-1", "patient", "appt-1")
	b := newParticipant("pat-2", "patient", "appt-2")
	hub.Join(a)
	hub.Join(b)

	// Each participant only saw their own join.
	drainEvent(t, a)
	drainEvent(t, b)
	if len(a.Send) != 0 || len(b.Send) != 0 {
		t.Fatal("cross-room event leaked")
	}
}

func TestBroadcastSkipsFullBuffers(t *testing.T) {
	hub := NewHub(nil)
	p := newParticipant("pat-1", "patient", "appt-1")
	p.Send = make(chan []byte, 1)
	hub.Join(p)

	// Buffer now holds the join event; further broadcasts must not block.
	hub.Broadcast("appt-1", Event{Type: EventSignal, RoomID: "appt-1"})
	hub.Broadcast("appt-1", Event{Type: EventSignal, RoomID: "appt-1"})

	if len(p.Send) != 1 {
		t.Fatalf("buffer length = %d, want 1", len(p.Send))
	}
}
