// Package config loads runtime settings from command-line flags. Flag
// defaults come from environment variables, which may be supplied by a
// .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/culturearts/portal/internal/db"
)

// Config holds all runtime settings of the portal server.
type Config struct {
	DBDriver   string
	DBDSN      string
	Addr       string
	LogPath    string
	AdminEmail string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionTTL time.Duration
	AMQPURL    string

	LoginMaxAttempts int
	LoginWindow      time.Duration
}

// Defaults.
const (
	DefaultAddr             = ":8080"
	DefaultDSN              = "portal.sqlite3"
	DefaultAdminEmail       = "admin@portal.local"
	DefaultSessionTTL       = 12 * time.Hour
	DefaultLoginMaxAttempts = 5
	DefaultLoginWindow      = 15 * time.Minute
)

const usage = `Usage: portal [flags]

Flags:
  -driver <sqlite|mysql>    database driver (env PORTAL_DB_DRIVER, default: sqlite)
  -d, -dsn <dsn>            database path or DSN (env PORTAL_DB_DSN, default: portal.sqlite3)
  -a, -addr <host:port>     listen address (env PORTAL_ADDR, default: :8080)
  -l, -log <path>           log file path (env PORTAL_LOG, default: stdout/stderr only)
  -u, -admin <email>        admin email on first run (env PORTAL_ADMIN_EMAIL)
  -redis <host:port>        Redis address for sessions (env REDIS_ADDR, default: in-memory)
  -amqp <url>               RabbitMQ URL for inventory events (env AMQP_URL, default: log only)
  -session-ttl <duration>   session lifetime (env SESSION_TTL, default: 12h)
  -h, -help                 show this help and exit

Environment only:
  REDIS_PASSWORD, REDIS_DB, LOGIN_MAX_ATTEMPTS, LOGIN_WINDOW
`

// LoadEnvFile loads variables from path into the process environment.
// Variables already set are not overridden and a missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Parse builds a Config from args, falling back to environment variables
// for anything not given on the command line.
func Parse(args []string) (*Config, error) {
	env, err := fromEnv()
	if err != nil {
		return nil, err
	}
	cfg := *env

	fset := flag.NewFlagSet("portal", flag.ContinueOnError)
	fset.StringVar(&cfg.DBDriver, "driver", env.DBDriver, "")
	fset.StringVar(&cfg.DBDSN, "dsn", env.DBDSN, "")
	fset.StringVar(&cfg.DBDSN, "d", env.DBDSN, "")
	fset.StringVar(&cfg.Addr, "addr", env.Addr, "")
	fset.StringVar(&cfg.Addr, "a", env.Addr, "")
	fset.StringVar(&cfg.LogPath, "log", env.LogPath, "")
	fset.StringVar(&cfg.LogPath, "l", env.LogPath, "")
	fset.StringVar(&cfg.AdminEmail, "admin", env.AdminEmail, "")
	fset.StringVar(&cfg.AdminEmail, "u", env.AdminEmail, "")
	fset.StringVar(&cfg.RedisAddr, "redis", env.RedisAddr, "")
	fset.StringVar(&cfg.AMQPURL, "amqp", env.AMQPURL, "")
	fset.DurationVar(&cfg.SessionTTL, "session-ttl", env.SessionTTL, "")
	fset.Usage = func() { fmt.Fprint(os.Stdout, usage) }

	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	if fset.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fset.Arg(0))
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		DBDriver:      getenv("PORTAL_DB_DRIVER", db.DriverSQLite),
		DBDSN:         getenv("PORTAL_DB_DSN", DefaultDSN),
		Addr:          getenv("PORTAL_ADDR", DefaultAddr),
		LogPath:       os.Getenv("PORTAL_LOG"),
		AdminEmail:    getenv("PORTAL_ADMIN_EMAIL", DefaultAdminEmail),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		AMQPURL:       os.Getenv("AMQP_URL"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.LoginMaxAttempts, err = getInt("LOGIN_MAX_ATTEMPTS", DefaultLoginMaxAttempts); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", DefaultSessionTTL); err != nil {
		return nil, err
	}
	if cfg.LoginWindow, err = getDuration("LOGIN_WINDOW", DefaultLoginWindow); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case db.DriverSQLite, db.DriverMySQL:
	default:
		return fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.LoginMaxAttempts <= 0 {
		return fmt.Errorf("login max attempts must be positive")
	}
	if c.LoginWindow <= 0 {
		return fmt.Errorf("login window must be positive")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q", key, v)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q", key, v)
	}
	return d, nil
}
