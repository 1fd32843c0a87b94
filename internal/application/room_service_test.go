package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

type roomRepoStub struct {
	rooms     map[string]Room
	upserted  []Room
	upsertErr error
	getErr    error
	listErr   error
}

func newRoomRepoStub(rooms ...Room) *roomRepoStub {
	stub := &roomRepoStub{rooms: make(map[string]Room)}
	for _, room := range rooms {
		stub.rooms[room.ID] = room
	}
	return stub
}

func (r *roomRepoStub) UpsertRoom(ctx context.Context, room Room) (Room, error) {
	if r.upsertErr != nil {
		return Room{}, r.upsertErr
	}
	r.upserted = append(r.upserted, room)
	r.rooms[room.ID] = room
	return room, nil
}

func (r *roomRepoStub) GetRoom(ctx context.Context, id string) (Room, error) {
	if r.getErr != nil {
		return Room{}, r.getErr
	}
	room, ok := r.rooms[id]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (r *roomRepoStub) ListRooms(ctx context.Context) ([]Room, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out, nil
}

func TestRoomService_SeedRooms(t *testing.T) {
	t.Run("validates every entry before writing", func(t *testing.T) {
		repo := newRoomRepoStub()
		svc := NewRoomService(repo, nil)

		_, err := svc.SeedRooms(context.Background(), []RoomInput{
			{ID: "r1", Name: "Aurora", Location: "HQ", Capacity: 4},
			{ID: " ", Name: "", Location: "HQ", Capacity: 0},
			{ID: "r1", Name: "Again", Location: "HQ", Capacity: 2},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"rooms[1].id", "rooms[1].name", "rooms[1].capacity", "rooms[2].id"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s validation error, got %v", field, vErr.FieldErrors)
			}
		}
		if len(repo.upserted) != 0 {
			t.Fatalf("expected nothing written, got %d rooms", len(repo.upserted))
		}
	})

	t.Run("normalizes and stores rooms", func(t *testing.T) {
		repo := newRoomRepoStub()
		now := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
		svc := NewRoomService(repo, func() time.Time { return now })

		seeded, err := svc.SeedRooms(context.Background(), []RoomInput{{
			ID:         " r1 ",
			Name:       "  Sakura Hall  ",
			Location:   "  10F  ",
			Capacity:   25,
			Facilities: []string{" projector ", "Whiteboard", "PROJECTOR", ""},
		}})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if seeded != 1 {
			t.Fatalf("expected one seeded room, got %d", seeded)
		}

		stored := repo.upserted[0]
		if stored.ID != "r1" || stored.Name != "Sakura Hall" || stored.Location != "10F" {
			t.Fatalf("expected trimmed attributes, got %#v", stored)
		}
		if len(stored.Facilities) != 2 || stored.Facilities[0] != "Whiteboard" || stored.Facilities[1] != "projector" {
			t.Fatalf("expected de-duplicated sorted facilities, got %v", stored.Facilities)
		}
		if !stored.CreatedAt.Equal(now) || !stored.UpdatedAt.Equal(now) {
			t.Fatalf("expected timestamps to use injected clock, got %v/%v", stored.CreatedAt, stored.UpdatedAt)
		}
	})

	t.Run("maps repository failures", func(t *testing.T) {
		repo := newRoomRepoStub()
		repo.upsertErr = errors.New("disk full")
		svc := NewRoomService(repo, nil)

		_, err := svc.SeedRooms(context.Background(), []RoomInput{{ID: "r1", Name: "A", Location: "B", Capacity: 1}})
		var iErr *InternalError
		if !errors.As(err, &iErr) {
			t.Fatalf("expected InternalError, got %v", err)
		}
	})

	t.Run("storage constraint failures are internal", func(t *testing.T) {
		repo := newRoomRepoStub()
		repo.upsertErr = persistence.ErrConstraintViolation
		svc := NewRoomService(repo, nil)

		_, err := svc.SeedRooms(context.Background(), []RoomInput{{ID: "r1", Name: "A", Location: "B", Capacity: 1}})
		if kind := ErrorKind(err); kind != "internal" {
			t.Fatalf("expected internal error, got %q (%v)", kind, err)
		}
	})

	t.Run("requires a repository", func(t *testing.T) {
		svc := NewRoomService(nil, nil)
		if _, err := svc.SeedRooms(context.Background(), nil); err == nil {
			t.Fatalf("expected configuration error")
		}
	})
}

func TestRoomService_GetRoom(t *testing.T) {
	repo := newRoomRepoStub(Room{ID: "r1", Name: "Aurora", Location: "HQ", Capacity: 4})
	svc := NewRoomService(repo, nil)
	principal := Principal{UserID: "emp-1"}

	if _, err := svc.GetRoom(context.Background(), Principal{}, "r1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	room, err := svc.GetRoom(context.Background(), principal, "r1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if room.Name != "Aurora" {
		t.Fatalf("unexpected room %#v", room)
	}

	_, err = svc.GetRoom(context.Background(), principal, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err.Error() != "Room not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	repo.getErr = errors.New("connection reset")
	if _, err := svc.GetRoom(context.Background(), principal, "r1"); ErrorKind(err) != "internal" {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestRoomService_ListRooms(t *testing.T) {
	repo := newRoomRepoStub(
		Room{ID: "r3", Name: "borealis"},
		Room{ID: "r2", Name: "Aurora"},
		Room{ID: "r1", Name: "aurora"},
	)
	svc := NewRoomService(repo, nil)

	if _, err := svc.ListRooms(context.Background(), Principal{UserID: "  "}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	rooms, err := svc.ListRooms(context.Background(), Principal{UserID: "emp-1"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	got := []string{rooms[0].ID, rooms[1].ID, rooms[2].ID}
	want := []string{"r1", "r2", "r3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}

	repo.listErr = errors.New("timeout")
	if _, err := svc.ListRooms(context.Background(), Principal{UserID: "emp-1"}); ErrorKind(err) != "internal" {
		t.Fatalf("expected internal error, got %v", err)
	}
}
