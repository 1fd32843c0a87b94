package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/room-booking/internal/adapter"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/persistence/sqlite"
)

// StoreHarness exposes one storage engine both raw and through the adapters
// the application services consume.
type StoreHarness struct {
	Name     string
	Store    persistence.Store
	Rooms    *adapter.RoomRepository
	Bookings *adapter.BookingRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *StoreHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

func newStoreHarness(tb testing.TB, name string, store persistence.Store) *StoreHarness {
	harness := &StoreHarness{
		Name:     name,
		Store:    store,
		Rooms:    adapter.NewRoomRepository(store),
		Bookings: adapter.NewBookingRepository(store),
		cleanup:  func() { _ = store.Close() },
	}
	tb.Cleanup(harness.Close)
	return harness
}

// NewSQLiteHarness opens a migrated SQLite database in a temporary file.
// Callers may invoke Close; a cleanup callback is registered regardless.
func NewSQLiteHarness(tb testing.TB) *StoreHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "booking.db")
	store, err := sqlite.Open(context.Background(), sqlite.TempFileTestConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	return newStoreHarness(tb, "sqlite", store)
}

// NewMemoryHarness returns a harness over the in-memory store.
func NewMemoryHarness(tb testing.TB) *StoreHarness {
	tb.Helper()
	return newStoreHarness(tb, "memory", memory.New())
}

// Harnesses returns one harness per embedded storage engine, for contract
// tests that must hold on every engine.
func Harnesses(tb testing.TB) []*StoreHarness {
	tb.Helper()
	return []*StoreHarness{NewMemoryHarness(tb), NewSQLiteHarness(tb)}
}

// SeedRooms stores the given fixtures or fails the test.
func (h *StoreHarness) SeedRooms(tb testing.TB, rooms ...RoomFixture) {
	tb.Helper()
	for _, room := range rooms {
		if err := h.Store.UpsertRoom(context.Background(), room.Persistence()); err != nil {
			tb.Fatalf("failed to seed room %s: %v", room.ID, err)
		}
	}
}
