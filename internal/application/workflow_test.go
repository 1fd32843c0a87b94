package application_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/booking"
	"github.com/example/room-booking/internal/lock"
	"github.com/example/room-booking/internal/testfixtures"
)

func seedCatalog(t *testing.T, h *testfixtures.StoreHarness) {
	t.Helper()
	h.SeedRooms(t,
		testfixtures.NewRoomFixture(testfixtures.WithRoomID("r1"), testfixtures.WithRoomCapacity(6)),
		testfixtures.NewRoomFixture(testfixtures.WithRoomID("r2"), testfixtures.WithRoomName("Borealis")),
	)
}

func newFactory() *testfixtures.ServiceFactory {
	return testfixtures.NewServiceFactory(
		testfixtures.WithClock(testfixtures.NewClock(testfixtures.ReferenceTime())),
		testfixtures.WithIDGenerator(testfixtures.NewIDGenerator("bk")),
	)
}

func request(opts ...testfixtures.BookingOption) application.BookingInput {
	return testfixtures.NewBookingFixture(opts...).Input()
}

func TestBookingWorkflow(t *testing.T) {
	t.Parallel()

	for _, harness := range testfixtures.Harnesses(t) {
		harness := harness
		t.Run(harness.Name, func(t *testing.T) {
			seedCatalog(t, harness)
			svc := newFactory().NewBookingServiceFor(harness, nil)
			ctx := context.Background()

			day := testfixtures.ReferenceTime().Add(72 * time.Hour)
			slot := testfixtures.WithBookingWindow(day.Add(10*time.Hour), day.Add(11*time.Hour))

			first, err := svc.CreateBooking(ctx, application.CreateBookingParams{
				Principal: testfixtures.Employee("alice"),
				Input:     request(testfixtures.WithBookingRoom("r1"), slot),
			})
			require.NoError(t, err)
			assert.Equal(t, booking.StatusPendingAdminApproval, first.Status)

			// Pending requests do not block each other.
			second, err := svc.CreateBooking(ctx, application.CreateBookingParams{
				Principal: testfixtures.Employee("bob"),
				Input:     request(testfixtures.WithBookingRoom("r1"), slot),
			})
			require.NoError(t, err)

			approved, err := svc.DecideBooking(ctx, application.DecideBookingParams{
				Principal: testfixtures.Admin("admin"),
				BookingID: first.ID,
				Target:    booking.StatusPendingEmployeeConfirmation,
			})
			require.NoError(t, err)
			assert.Equal(t, booking.StatusPendingEmployeeConfirmation, approved.Status)

			// The approved request now holds the slot against new requests.
			_, err = svc.CreateBooking(ctx, application.CreateBookingParams{
				Principal: testfixtures.Employee("carol"),
				Input:     request(testfixtures.WithBookingRoom("r1"), testfixtures.WithBookingWindow(day.Add(10*time.Hour+30*time.Minute), day.Add(12*time.Hour))),
			})
			assert.ErrorIs(t, err, application.ErrConflict)

			// Back-to-back and other rooms stay free.
			_, err = svc.CreateBooking(ctx, application.CreateBookingParams{
				Principal: testfixtures.Employee("carol"),
				Input:     request(testfixtures.WithBookingRoom("r1"), testfixtures.WithBookingWindow(day.Add(11*time.Hour), day.Add(12*time.Hour))),
			})
			require.NoError(t, err)
			_, err = svc.CreateBooking(ctx, application.CreateBookingParams{
				Principal: testfixtures.Employee("carol"),
				Input:     request(testfixtures.WithBookingRoom("r2"), slot),
			})
			require.NoError(t, err)

			rejected, err := svc.DecideBooking(ctx, application.DecideBookingParams{
				Principal: testfixtures.Admin("admin"),
				BookingID: second.ID,
				Target:    booking.StatusRejected,
				Reason:    "Slot already allocated",
			})
			require.NoError(t, err)
			require.NotNil(t, rejected.RejectionReason)
			assert.Equal(t, "Slot already allocated", *rejected.RejectionReason)

			confirmed, err := svc.ConfirmBooking(ctx, application.BookingActionParams{Principal: testfixtures.Employee("alice"), BookingID: first.ID})
			require.NoError(t, err)
			assert.Equal(t, booking.StatusConfirmed, confirmed.Status)
			require.NotNil(t, confirmed.ConfirmedAt)
			require.NotNil(t, confirmed.Room)
			assert.Equal(t, "r1", confirmed.Room.ID)

			mine, err := svc.ListBookings(ctx, application.ListBookingsParams{Principal: testfixtures.Employee("alice")})
			require.NoError(t, err)
			require.Len(t, mine, 1)
			assert.Equal(t, first.ID, mine[0].ID)

			all, err := svc.ListBookings(ctx, application.ListBookingsParams{Principal: testfixtures.Admin("admin")})
			require.NoError(t, err)
			assert.Len(t, all, 4)

			_, err = svc.CancelBooking(ctx, application.BookingActionParams{Principal: testfixtures.Employee("alice"), BookingID: first.ID})
			require.NoError(t, err)

			_, err = svc.CreateBooking(ctx, application.CreateBookingParams{
				Principal: testfixtures.Employee("dave"),
				Input:     request(testfixtures.WithBookingRoom("r1"), slot),
			})
			assert.NoError(t, err, "a cancelled booking must free its slot")
		})
	}
}

// approveContenders creates n overlapping requests for r1 and approves them all.
func approveContenders(t *testing.T, svc *application.BookingService, n int) []application.Booking {
	t.Helper()
	ctx := context.Background()
	day := testfixtures.ReferenceTime().Add(96 * time.Hour)

	var out []application.Booking
	for i := 0; i < n; i++ {
		start := day.Add(9*time.Hour + time.Duration(i)*5*time.Minute)
		created, err := svc.CreateBooking(ctx, application.CreateBookingParams{
			Principal: testfixtures.Employee(fmt.Sprintf("emp-%d", i)),
			Input:     request(testfixtures.WithBookingRoom("r1"), testfixtures.WithBookingWindow(start, start.Add(time.Hour))),
		})
		require.NoError(t, err)
		out = append(out, created)
	}
	for _, b := range out {
		_, err := svc.DecideBooking(ctx, application.DecideBookingParams{
			Principal: testfixtures.Admin("admin"),
			BookingID: b.ID,
			Target:    booking.StatusPendingEmployeeConfirmation,
		})
		require.NoError(t, err)
	}
	return out
}

// confirmAll races every contender's confirmation, spreading calls across
// the given services, and returns one error per contender.
func confirmAll(contenders []application.Booking, services ...*application.BookingService) []error {
	errs := make([]error, len(contenders))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, b := range contenders {
		wg.Add(1)
		go func(i int, b application.Booking) {
			defer wg.Done()
			<-start
			svc := services[i%len(services)]
			_, errs[i] = svc.ConfirmBooking(context.Background(), application.BookingActionParams{
				Principal: testfixtures.Employee(b.RequesterID),
				BookingID: b.ID,
			})
		}(i, b)
	}
	close(start)
	wg.Wait()
	return errs
}

func assertSingleWinner(t *testing.T, h *testfixtures.StoreHarness, errs []error) {
	t.Helper()
	winners := 0
	for i, err := range errs {
		if err == nil {
			winners++
			continue
		}
		var conflict *application.ConflictError
		if assert.ErrorAs(t, err, &conflict, "contender %d", i) {
			assert.Equal(t, application.ConflictAtConfirmation, conflict.Phase)
		}
	}
	assert.Equal(t, 1, winners, "exactly one confirmation may win")

	confirmed, err := h.Bookings.ListBookings(context.Background(), application.BookingFilter{
		Statuses: booking.StatusSet{booking.StatusConfirmed},
	})
	require.NoError(t, err)
	assert.Len(t, confirmed, 1)
}

func TestConcurrentConfirmation_LocalLock(t *testing.T) {
	t.Parallel()

	for _, harness := range testfixtures.Harnesses(t) {
		harness := harness
		t.Run(harness.Name, func(t *testing.T) {
			seedCatalog(t, harness)
			svc := newFactory().NewBookingServiceFor(harness, lock.NewLocal())

			contenders := approveContenders(t, svc, 6)
			assertSingleWinner(t, harness, confirmAll(contenders, svc))
		})
	}
}

// Two service instances stand in for two replicas sharing one database and
// one Redis. Their in-process state cannot serialize them; the lease must.
func TestConcurrentConfirmation_RedisLockAcrossReplicas(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	harness := testfixtures.NewSQLiteHarness(t)
	seedCatalog(t, harness)

	newReplica := func(prefix string) *application.BookingService {
		locker := lock.NewRedis(client, lock.RedisConfig{KeyPrefix: "test:room:", Wait: 5 * time.Second, RetryDelay: 2 * time.Millisecond}, zap.NewNop())
		factory := newFactory()
		factory.IDGenerator.SetPrefix(prefix)
		return factory.NewBookingServiceFor(harness, locker)
	}
	replicaA := newReplica("a")
	replicaB := newReplica("b")

	contenders := approveContenders(t, replicaA, 6)
	assertSingleWinner(t, harness, confirmAll(contenders, replicaA, replicaB))

	assert.False(t, mr.Exists("test:room:r1"), "lease must be released")
}

func TestCreateBooking_StorageRejectionIsInternal(t *testing.T) {
	t.Parallel()

	for _, harness := range testfixtures.Harnesses(t) {
		harness := harness
		t.Run(harness.Name, func(t *testing.T) {
			seedCatalog(t, harness)
			svc := newFactory().NewBookingService(testfixtures.BookingServiceDeps{
				Bookings:    harness.Bookings,
				Rooms:       harness.Rooms,
				IDGenerator: func() string { return "" },
			})

			day := testfixtures.ReferenceTime().Add(72 * time.Hour)
			_, err := svc.CreateBooking(context.Background(), application.CreateBookingParams{
				Principal: testfixtures.Employee("alice"),
				Input:     request(testfixtures.WithBookingRoom("r1"), testfixtures.WithBookingWindow(day.Add(9*time.Hour), day.Add(10*time.Hour))),
			})
			require.Error(t, err)
			assert.Equal(t, "internal", application.ErrorKind(err))
		})
	}
}
