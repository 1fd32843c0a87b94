// Command bookingctl drives the room booking API from the terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/client"
	"github.com/example/room-booking/internal/logging"
)

const usage = `usage: bookingctl [global flags] <command> [flags] [args]

commands:
  health                       show server health
  rooms                        list rooms
  room <id>                    show one room
  list [--room id] [--status s]  list visible bookings
  get <id>                     show one booking
  create --room id --start t --end t --purpose p --attendees n
  approve <id>                 approve a pending booking (admin)
  reject <id> [--reason r]     reject a pending booking (admin)
  confirm <id>                 confirm an approved booking
  cancel <id>                  cancel a booking

global flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type globals struct {
	server  string
	user    string
	role    string
	output  string
	timeout time.Duration
	verbose bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("bookingctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)

	g := globals{}
	fs.StringVar(&g.server, "server", envOr("BOOKING_SERVER", "http://localhost:8080"), "booking API base URL")
	fs.StringVarP(&g.user, "user", "u", os.Getenv("BOOKING_USER"), "user id sent as X-User-ID")
	fs.StringVar(&g.role, "role", envOr("BOOKING_ROLE", "EMPLOYEE"), "role sent as X-User-Role (EMPLOYEE or ADMIN)")
	fs.StringVarP(&g.output, "output", "o", "table", "output format: table or json")
	fs.DurationVar(&g.timeout, "timeout", 15*time.Second, "request timeout")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "log requests to stderr")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	logger := zap.NewNop()
	if g.verbose {
		l, err := logging.NewLogger("development", "debug")
		if err == nil {
			logger = l
			defer func() { _ = l.Sync() }()
		}
	}

	c := client.New(g.server, client.Identity{UserID: g.user, Role: g.role}, logger, client.WithTimeout(g.timeout))
	out := &printer{w: stdout, json: strings.EqualFold(g.output, "json")}

	if err := dispatch(ctx, c, out, fs.Arg(0), fs.Args()[1:], stderr); err != nil {
		var usageErr usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintln(stderr, "bookingctl:", err)
			return 2
		}
		fmt.Fprintln(stderr, "bookingctl:", describe(err))
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

func dispatch(ctx context.Context, c *client.Client, out *printer, command string, args []string, stderr io.Writer) error {
	switch command {
	case "health":
		h, err := c.Health(ctx)
		if err != nil {
			return err
		}
		return out.health(h)
	case "rooms":
		rooms, err := c.ListRooms(ctx)
		if err != nil {
			return err
		}
		return out.rooms(rooms)
	case "room":
		id, err := singleID(command, args)
		if err != nil {
			return err
		}
		room, err := c.GetRoom(ctx, id)
		if err != nil {
			return err
		}
		return out.rooms([]client.Room{room})
	case "list":
		fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
		fs.SetOutput(stderr)
		room := fs.String("room", "", "only bookings for this room")
		statuses := fs.StringSlice("status", nil, "status filter, repeatable or comma separated")
		if err := fs.Parse(args); err != nil {
			return usageError(err.Error())
		}
		bookings, err := c.ListBookings(ctx, client.ListBookingsOptions{RoomID: *room, Statuses: *statuses})
		if err != nil {
			return err
		}
		return out.bookings(bookings)
	case "create":
		req, err := parseCreate(args, stderr)
		if err != nil {
			return err
		}
		b, err := c.CreateBooking(ctx, req)
		if err != nil {
			return err
		}
		return out.bookings([]client.Booking{b})
	case "reject":
		fs := pflag.NewFlagSet("reject", pflag.ContinueOnError)
		fs.SetOutput(stderr)
		reason := fs.String("reason", "", "rejection reason shown to the requester")
		if err := fs.Parse(args); err != nil {
			return usageError(err.Error())
		}
		id, err := singleID(command, fs.Args())
		if err != nil {
			return err
		}
		b, err := c.Reject(ctx, id, *reason)
		if err != nil {
			return err
		}
		return out.bookings([]client.Booking{b})
	case "get", "approve", "confirm", "cancel":
		id, err := singleID(command, args)
		if err != nil {
			return err
		}
		call := map[string]func(context.Context, string) (client.Booking, error){
			"get":     c.GetBooking,
			"approve": c.Approve,
			"confirm": c.Confirm,
			"cancel":  c.Cancel,
		}[command]
		b, err := call(ctx, id)
		if err != nil {
			return err
		}
		return out.bookings([]client.Booking{b})
	}
	return usageError(fmt.Sprintf("unknown command %q", command))
}

func parseCreate(args []string, stderr io.Writer) (client.CreateBookingRequest, error) {
	fs := pflag.NewFlagSet("create", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	room := fs.String("room", "", "room id")
	start := fs.String("start", "", "start time, RFC 3339")
	end := fs.String("end", "", "end time, RFC 3339")
	purpose := fs.String("purpose", "", "meeting purpose")
	attendees := fs.Int("attendees", 1, "number of attendees")
	if err := fs.Parse(args); err != nil {
		return client.CreateBookingRequest{}, usageError(err.Error())
	}

	startAt, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return client.CreateBookingRequest{}, usageError("--start must be an RFC 3339 timestamp")
	}
	endAt, err := time.Parse(time.RFC3339, *end)
	if err != nil {
		return client.CreateBookingRequest{}, usageError("--end must be an RFC 3339 timestamp")
	}
	return client.CreateBookingRequest{
		RoomID:    *room,
		Start:     startAt,
		End:       endAt,
		Purpose:   *purpose,
		Attendees: *attendees,
	}, nil
}

func singleID(command string, args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", usageError(fmt.Sprintf("%s takes exactly one id", command))
	}
	return args[0], nil
}

func describe(err error) string {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	msg := fmt.Sprintf("%s: %s", apiErr.Code, apiErr.Message)
	for field, problem := range apiErr.Fields {
		msg += fmt.Sprintf("\n  %s: %s", field, problem)
	}
	return msg
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

type printer struct {
	w    io.Writer
	json bool
}

func (p *printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) health(h client.Health) error {
	if p.json {
		return p.encode(h)
	}
	_, err := fmt.Fprintf(p.w, "status=%s role=%s storage=%s\n", h.Status, h.Role, h.Storage)
	return err
}

func (p *printer) rooms(rooms []client.Room) error {
	if p.json {
		return p.encode(rooms)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLOCATION\tCAPACITY\tFACILITIES")
	for _, r := range rooms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.Name, r.Location, r.Capacity, strings.Join(r.Facilities, ","))
	}
	return tw.Flush()
}

func (p *printer) bookings(bookings []client.Booking) error {
	if p.json {
		return p.encode(bookings)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tROOM\tREQUESTER\tSTART\tEND\tSTATUS\tPURPOSE")
	for _, b := range bookings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.RoomID, b.RequesterID,
			b.StartTime.Format(time.RFC3339), b.EndTime.Format(time.RFC3339),
			b.Status, b.Purpose)
	}
	return tw.Flush()
}
