package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/config"
	"github.com/example/room-booking/internal/lock"
	"github.com/example/room-booking/internal/persistence/memory"
)

const seedYAML = `
rooms:
  - id: r1
    name: Aurora
    location: HQ 2F
    capacity: 6
    facilities: [projector]
  - id: r2
    name: Borealis
    location: HQ 3F
    capacity: 12
`

func writeSeed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rooms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))
	return path
}

func memoryConfig(t *testing.T, role string) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage = config.StorageMemory
	cfg.ServiceRole = role
	cfg.LockWait = time.Second
	cfg.RoomsFile = writeSeed(t)
	return cfg
}

func get(t *testing.T, handler http.Handler, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
	}
	return rec.Code, body
}

func TestBuildApp_SeedsRoomsAndServesAPI(t *testing.T) {
	app, err := buildApp(context.Background(), memoryConfig(t, config.RoleAll), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	status, body := get(t, app.handler, "/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = get(t, app.handler, "/rooms")
	require.Equal(t, http.StatusOK, status)
	rooms, ok := body["rooms"].([]any)
	require.True(t, ok, "rooms payload: %v", body)
	assert.Len(t, rooms, 2)

	status, body = get(t, app.handler, "/bookings")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["bookings"])
}

func TestBuildApp_MountsRouteGroupsByRole(t *testing.T) {
	cases := []struct {
		role         string
		roomsStatus  int
		bookingsCode int
	}{
		{role: config.RoleRooms, roomsStatus: http.StatusOK, bookingsCode: http.StatusNotFound},
		{role: config.RoleBookings, roomsStatus: http.StatusNotFound, bookingsCode: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			app, err := buildApp(context.Background(), memoryConfig(t, tc.role), zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(app.Close)

			status, _ := get(t, app.handler, "/rooms")
			assert.Equal(t, tc.roomsStatus, status)
			status, _ = get(t, app.handler, "/bookings")
			assert.Equal(t, tc.bookingsCode, status)
		})
	}
}

func TestBuildApp_RejectsInvalidSeed(t *testing.T) {
	cfg := memoryConfig(t, config.RoleAll)
	path := filepath.Join(t.TempDir(), "rooms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rooms:\n  - id: r1\n    name: Aurora\n    capacity: 0\n"), 0o600))
	cfg.RoomsFile = path

	_, err := buildApp(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed rooms")
}

func TestBuildApp_SQLiteStorage(t *testing.T) {
	cfg := memoryConfig(t, config.RoleAll)
	cfg.Storage = config.StorageSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "booking.db")

	app, err := buildApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	status, body := get(t, app.handler, "/rooms/r2")
	require.Equal(t, http.StatusOK, status)
	room, ok := body["room"].(map[string]any)
	require.True(t, ok, "room payload: %v", body)
	assert.Equal(t, "Borealis", room["name"])
}

func TestOpenStore_UnknownEngine(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage = "mongo"
	_, err := openStore(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestNewLocker(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	t.Run("local", func(t *testing.T) {
		cfg := config.Defaults()
		locker, closeFn, err := newLocker(ctx, cfg, memory.New(), logger)
		require.NoError(t, err)
		assert.Nil(t, closeFn)
		assert.IsType(t, &lock.Local{}, locker)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.Defaults()
		cfg.LockBackend = config.LockRedis
		cfg.RedisAddr = mr.Addr()

		locker, closeFn, err := newLocker(ctx, cfg, memory.New(), logger)
		require.NoError(t, err)
		require.NotNil(t, closeFn)
		t.Cleanup(closeFn)
		assert.IsType(t, &lock.Redis{}, locker)

		release, err := locker.LockRoom(ctx, "r1")
		require.NoError(t, err)
		assert.True(t, mr.Exists("room-booking:lock:room:r1"))
		release()
		assert.Empty(t, mr.Keys())
	})

	t.Run("redis unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		cfg := config.Defaults()
		cfg.LockBackend = config.LockRedis
		cfg.RedisAddr = addr
		_, _, err := newLocker(ctx, cfg, memory.New(), logger)
		require.Error(t, err)
	})

	t.Run("advisory locks need postgres storage", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.LockBackend = config.LockPostgres
		_, _, err := newLocker(ctx, cfg, memory.New(), logger)
		require.Error(t, err)
	})
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("BOOKING_STORAGE", "sqlite")
	t.Setenv("BOOKING_HTTP_PORT", "8081")

	fs := pflag.NewFlagSet("bookingd", pflag.ContinueOnError)
	flags := config.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--storage", "memory", "--env-file", filepath.Join(t.TempDir(), "absent.env")}))

	cfg, err := loadConfig(flags)
	require.NoError(t, err)
	assert.Equal(t, config.StorageMemory, cfg.Storage)
	assert.Equal(t, 8081, cfg.HTTPPort)
}
