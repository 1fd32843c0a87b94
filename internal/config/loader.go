package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Storage engines.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Room lock backends.
const (
	LockLocal    = "local"
	LockRedis    = "redis"
	LockPostgres = "postgres"
)

// Service roles select the route groups a process mounts.
const (
	RoleAll      = "all"
	RoleBookings = "bookings"
	RoleRooms    = "rooms"
)

// Config captures environment driven configuration values for the booking service.
type Config struct {
	Env         string
	LogLevel    string
	HTTPPort    int
	ServiceRole string

	Storage     string
	SQLitePath  string
	PostgresDSN string

	LockBackend   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration
	LockWait      time.Duration

	RoomsFile string
}

// Defaults returns the configuration used when no variable is set.
func Defaults() Config {
	return Config{
		Env:         "development",
		LogLevel:    "info",
		HTTPPort:    8080,
		ServiceRole: RoleAll,
		Storage:     StorageSQLite,
		SQLitePath:  "booking.db",
		LockBackend: LockLocal,
		LockTTL:     10 * time.Second,
		LockWait:    5 * time.Second,
	}
}

// LoadEnvFile merges a dotenv file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("環境ファイルを読み込めません %s: %w", path, err)
	}
	return nil
}

// Load parses configuration values from the current process environment.
//
// The loader applies defaults for optional fields and reports every missing
// or malformed entry in one error.
func Load() (Config, error) {
	cfg := Defaults()

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if env := strings.TrimSpace(os.Getenv("BOOKING_ENV")); env != "" {
		cfg.Env = env
	}
	if level := strings.TrimSpace(os.Getenv("BOOKING_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if portValue := strings.TrimSpace(os.Getenv("BOOKING_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "BOOKING_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if role := strings.ToLower(strings.TrimSpace(os.Getenv("BOOKING_SERVICE_ROLE"))); role != "" {
		cfg.ServiceRole = role
	}
	if storage := strings.ToLower(strings.TrimSpace(os.Getenv("BOOKING_STORAGE"))); storage != "" {
		cfg.Storage = storage
	}
	if path := strings.TrimSpace(os.Getenv("BOOKING_SQLITE_PATH")); path != "" {
		cfg.SQLitePath = path
	}
	cfg.PostgresDSN = strings.TrimSpace(os.Getenv("BOOKING_POSTGRES_DSN"))

	if backend := strings.ToLower(strings.TrimSpace(os.Getenv("BOOKING_LOCK_BACKEND"))); backend != "" {
		cfg.LockBackend = backend
	}
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("BOOKING_REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("BOOKING_REDIS_PASSWORD")

	if dbValue := strings.TrimSpace(os.Getenv("BOOKING_REDIS_DB")); dbValue != "" {
		db, err := strconv.Atoi(dbValue)
		if err != nil || db < 0 {
			invalid = append(invalid, "BOOKING_REDIS_DB")
		} else {
			cfg.RedisDB = db
		}
	}

	if ttlValue := strings.TrimSpace(os.Getenv("BOOKING_LOCK_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "BOOKING_LOCK_TTL")
		} else {
			cfg.LockTTL = ttl
		}
	}
	if waitValue := strings.TrimSpace(os.Getenv("BOOKING_LOCK_WAIT")); waitValue != "" {
		wait, err := time.ParseDuration(waitValue)
		if err != nil || wait <= 0 {
			invalid = append(invalid, "BOOKING_LOCK_WAIT")
		} else {
			cfg.LockWait = wait
		}
	}

	cfg.RoomsFile = strings.TrimSpace(os.Getenv("BOOKING_ROOMS_FILE"))

	missing, invalid = cfg.check(missing, invalid)

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Validate re-checks cross-field rules, for use after flags override values.
func (c Config) Validate() error {
	missing, invalid := c.check(nil, nil)
	if len(missing) > 0 {
		return fmt.Errorf("必須の設定がありません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return fmt.Errorf("設定値が不正です: %s", strings.Join(invalid, ", "))
	}
	return nil
}

func (c Config) check(missing, invalid []string) ([]string, []string) {
	switch c.ServiceRole {
	case RoleAll, RoleBookings, RoleRooms:
	default:
		invalid = appendOnce(invalid, "BOOKING_SERVICE_ROLE")
	}

	switch c.Storage {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.PostgresDSN == "" {
			missing = appendOnce(missing, "BOOKING_POSTGRES_DSN")
		}
	default:
		invalid = appendOnce(invalid, "BOOKING_STORAGE")
	}

	switch c.LockBackend {
	case LockLocal:
	case LockRedis:
		if c.RedisAddr == "" {
			missing = appendOnce(missing, "BOOKING_REDIS_ADDR")
		}
	case LockPostgres:
		if c.Storage != StoragePostgres {
			invalid = appendOnce(invalid, "BOOKING_LOCK_BACKEND")
		}
	default:
		invalid = appendOnce(invalid, "BOOKING_LOCK_BACKEND")
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		invalid = appendOnce(invalid, "BOOKING_HTTP_PORT")
	}
	return missing, invalid
}

func appendOnce(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}

// Flags holds command line overrides for the server binary.
type Flags struct {
	EnvFile string
	Port    int
	Storage string
	Rooms   string
}

// BindFlags registers the server flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.EnvFile, "env-file", ".env", "dotenv file loaded before reading BOOKING_* variables")
	fs.IntVar(&f.Port, "port", 0, "HTTP listen port (overrides BOOKING_HTTP_PORT)")
	fs.StringVar(&f.Storage, "storage", "", "storage engine: memory, sqlite or postgres (overrides BOOKING_STORAGE)")
	fs.StringVar(&f.Rooms, "rooms", "", "YAML room seed file (overrides BOOKING_ROOMS_FILE)")
	return f
}

// Apply copies explicitly set flags over cfg.
func (f *Flags) Apply(cfg Config) Config {
	if f == nil {
		return cfg
	}
	if f.Port != 0 {
		cfg.HTTPPort = f.Port
	}
	if s := strings.ToLower(strings.TrimSpace(f.Storage)); s != "" {
		cfg.Storage = s
	}
	if r := strings.TrimSpace(f.Rooms); r != "" {
		cfg.RoomsFile = r
	}
	return cfg
}
