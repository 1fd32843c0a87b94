package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/room-booking/internal/persistence"
)

// RoomRepository captures the persistence operations needed by the service.
type RoomRepository interface {
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	UpsertRoom(ctx context.Context, room Room) (Room, error)
}

// RoomService exposes the room catalog to principals and loads it from seed data.
type RoomService struct {
	rooms  RoomRepository
	now    func() time.Time
	logger *zap.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomRepository, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomRepository, now func() time.Time, logger *zap.Logger) *RoomService {
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, now: now, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, fields...)
}

// SeedRooms validates and upserts catalog entries. It runs at start-up on
// behalf of the process, not a principal.
func (s *RoomService) SeedRooms(ctx context.Context, inputs []RoomInput) (seeded int, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SeedRooms", zap.Int("input_count", len(inputs)))
	defer func() {
		if err != nil {
			logFailure(logger, "failed to seed rooms", err)
			return
		}
		logger.Info("rooms seeded", zap.Int("seeded", seeded))
	}()

	vErr := &ValidationError{Message: "room seed is invalid"}
	seen := make(map[string]struct{}, len(inputs))
	for i, input := range inputs {
		prefix := fmt.Sprintf("rooms[%d].", i)
		entry := validateRoomInput(input)
		for field, msg := range entry.FieldErrors {
			vErr.add(prefix+field, msg)
		}
		id := strings.TrimSpace(input.ID)
		if _, dup := seen[id]; dup && id != "" {
			vErr.add(prefix+"id", "id is duplicated")
		}
		seen[id] = struct{}{}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	for _, input := range inputs {
		now := s.now()
		room := Room{
			ID:         strings.TrimSpace(input.ID),
			Name:       strings.TrimSpace(input.Name),
			Location:   strings.TrimSpace(input.Location),
			Capacity:   input.Capacity,
			Facilities: normalizeFacilities(input.Facilities),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if _, err = s.rooms.UpsertRoom(ctx, room); err != nil {
			err = mapRoomRepoError(err)
			return
		}
		seeded++
	}
	return
}

// GetRoom returns one room to any authenticated principal.
func (s *RoomService) GetRoom(ctx context.Context, principal Principal, roomID string) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if strings.TrimSpace(principal.UserID) == "" {
		err = ErrUnauthorized
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	room, err = s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
			err = &NotFoundError{Entity: EntityRoom, ID: roomID}
		} else {
			err = mapRoomRepoError(err)
		}
		s.loggerWith(ctx, "GetRoom", zap.String("room_id", roomID)).Debug("room lookup failed", zap.Error(err))
	}
	return
}

// ListRooms returns the catalog of rooms for any authenticated user.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if strings.TrimSpace(principal.UserID) == "" {
		err = ErrUnauthorized
		return
	}
	if s.rooms == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListRooms",
		zap.String("principal_id", principal.UserID),
	)
	defer func() {
		if err != nil {
			logFailure(logger, "failed to list rooms", err)
			return
		}
		logger.Info("rooms listed", zap.Int("result_count", len(rooms)))
	}()

	var raw []Room
	raw, err = s.rooms.ListRooms(ctx)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	rooms = make([]Room, len(raw))
	copy(rooms, raw)

	sort.Slice(rooms, func(i, j int) bool {
		if strings.EqualFold(rooms[i].Name, rooms[j].Name) {
			return rooms[i].ID < rooms[j].ID
		}
		return strings.ToLower(rooms[i].Name) < strings.ToLower(rooms[j].Name)
	})

	return
}

func validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.ID) == "" {
		vErr.add("id", "id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if strings.TrimSpace(input.Location) == "" {
		vErr.add("location", "location is required")
	}
	if input.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}

	return vErr
}

func mapRoomRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return internalError("room storage", err)
}

// normalizeFacilities trims, de-duplicates and sorts facility tags so the
// stored set has a canonical order.
func normalizeFacilities(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
