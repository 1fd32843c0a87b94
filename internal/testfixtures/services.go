package testfixtures

import (
	"time"

	"go.uber.org/zap"

	"github.com/example/room-booking/internal/application"
)

// ServiceFactory builds booking and room services that share one test clock
// and one booking id sequence.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("bk")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// BookingServiceDeps overrides individual collaborators. Zero fields take the
// factory clock, the factory id sequence and a no-op logger. A nil Locker
// makes the service use an in-process lock.
type BookingServiceDeps struct {
	Bookings    application.BookingRepository
	Rooms       application.RoomDirectory
	Locker      application.RoomLocker
	IDGenerator func() string
	Now         func() time.Time
	Logger      *zap.Logger
}

func (f *ServiceFactory) NewBookingService(deps BookingServiceDeps) *application.BookingService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return application.NewBookingServiceWithLogger(deps.Bookings, deps.Rooms, deps.Locker, idGen, now, logger)
}

// NewBookingServiceFor wires a booking service to a storage harness.
func (f *ServiceFactory) NewBookingServiceFor(h *StoreHarness, locker application.RoomLocker) *application.BookingService {
	return f.NewBookingService(BookingServiceDeps{Bookings: h.Bookings, Rooms: h.Rooms, Locker: locker})
}

// RoomServiceDeps mirrors BookingServiceDeps for the room catalog.
type RoomServiceDeps struct {
	Rooms  application.RoomRepository
	Now    func() time.Time
	Logger *zap.Logger
}

func (f *ServiceFactory) NewRoomService(deps RoomServiceDeps) *application.RoomService {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return application.NewRoomServiceWithLogger(deps.Rooms, now, logger)
}
