package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/client"
	httptransport "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/testfixtures"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := testfixtures.NewMemoryHarness(t)
	store.SeedRooms(t,
		testfixtures.NewRoomFixture(testfixtures.WithRoomID("r1"), testfixtures.WithRoomName("Aurora"), testfixtures.WithRoomCapacity(4)),
		testfixtures.NewRoomFixture(testfixtures.WithRoomID("r2"), testfixtures.WithRoomName("Borealis"), testfixtures.WithRoomCapacity(10)),
	)

	factory := testfixtures.NewServiceFactory(
		testfixtures.WithClock(testfixtures.NewClock(testfixtures.ReferenceTime())),
		testfixtures.WithIDGenerator(testfixtures.NewIDGenerator("bk")),
	)
	logger := zap.NewNop()
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Health:   httptransport.NewHealthHandler("all", "memory", store.Store, logger),
		Bookings: httptransport.NewBookingHandler(factory.NewBookingServiceFor(store, nil), logger),
		Rooms:    httptransport.NewRoomHandler(factory.NewRoomService(testfixtures.RoomServiceDeps{Rooms: store.Rooms}), logger),
		Auth:     httptransport.RequirePrincipal(httptransport.HeaderPrincipalResolver{}, logger),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func slot(hour int) time.Time {
	day := testfixtures.ReferenceTime().Add(48 * time.Hour).Truncate(24 * time.Hour)
	return day.Add(time.Duration(hour) * time.Hour)
}

func TestClient_BookingLifecycle(t *testing.T) {
	server := newServer(t)
	ctx := context.Background()

	alice := client.New(server.URL, client.Identity{UserID: "alice"}, zap.NewNop())
	admin := client.New(server.URL, client.Identity{UserID: "admin", Role: "ADMIN"}, zap.NewNop(), client.WithTimeout(5*time.Second))

	health, err := alice.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)

	rooms, err := alice.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	room, err := alice.GetRoom(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, "Borealis", room.Name)

	created, err := alice.CreateBooking(ctx, client.CreateBookingRequest{
		RoomID: "r1", Start: slot(10), End: slot(11), Purpose: "Planning", Attendees: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "PENDING_ADMIN_APPROVAL", created.Status)
	assert.True(t, created.StartTime.Equal(slot(10)))

	approved, err := admin.Approve(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING_EMPLOYEE_CONFIRMATION", approved.Status)

	confirmed, err := alice.Confirm(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "CONFIRMED", confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	require.NotNil(t, confirmed.Room)
	assert.Equal(t, "Aurora", confirmed.Room.Name)

	got, err := alice.GetBooking(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "CONFIRMED", got.Status)

	listed, err := admin.ListBookings(ctx, client.ListBookingsOptions{RoomID: "r1", Statuses: []string{"confirmed"}})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	cancelled, err := alice.Cancel(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED_BY_EMPLOYEE", cancelled.Status)
}

func TestClient_Reject(t *testing.T) {
	server := newServer(t)
	ctx := context.Background()

	alice := client.New(server.URL, client.Identity{UserID: "alice"}, nil)
	admin := client.New(server.URL, client.Identity{UserID: "admin", Role: "admin"}, nil)

	created, err := alice.CreateBooking(ctx, client.CreateBookingRequest{
		RoomID: "r2", Start: slot(13), End: slot(14), Purpose: "Review", Attendees: 2,
	})
	require.NoError(t, err)

	rejected, err := admin.Reject(ctx, created.ID, "room under maintenance")
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "room under maintenance", *rejected.RejectionReason)
}

func TestClient_APIErrors(t *testing.T) {
	server := newServer(t)
	ctx := context.Background()

	alice := client.New(server.URL, client.Identity{UserID: "alice"}, nil)

	_, err := alice.CreateBooking(ctx, client.CreateBookingRequest{
		RoomID: "r1", Start: slot(11), End: slot(10), Purpose: "Backwards", Attendees: 1,
	})
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", apiErr.Code)
	assert.NotEmpty(t, apiErr.Fields)

	_, err = alice.GetRoom(ctx, "missing")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)

	_, err = alice.Approve(ctx, "bk-1")
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, []int{http.StatusForbidden, http.StatusNotFound}, apiErr.StatusCode)

	anonymous := client.New(server.URL, client.Identity{}, nil)
	_, err = anonymous.ListRooms(ctx)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "UNAUTHENTICATED", apiErr.Code)
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := client.New(url, client.Identity{UserID: "alice"}, nil, client.WithTimeout(time.Second))
	_, err := c.Health(context.Background())
	require.Error(t, err)
	var apiErr *client.APIError
	assert.False(t, errors.As(err, &apiErr))
}
