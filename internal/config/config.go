// Package config loads server settings.
//
// Sources, later ones winning:
//  1. built-in defaults
//  2. a YAML file (-config or ELECTVOTE_CONFIG)
//  3. a .env file, which only fills variables the shell has not set
//  4. ELECTVOTE_* environment variables
//  5. command-line flags
package config

import (
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "ELECTVOTE_"

// Config is the resolved server configuration
type Config struct {
	Port     int            `yaml:"port"`
	BaseURL  string         `yaml:"base_url"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Auth     AuthConfig     `yaml:"auth"`
	Redis    RedisConfig    `yaml:"redis"`
	Voting   VotingConfig   `yaml:"voting"`
	Keyboard bool           `yaml:"keyboard"`

	// ShowVersion is set by -version only
	ShowVersion bool `yaml:"-"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`    // file path or postgres:// URL
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	HTTP   bool   `yaml:"http"`
}

// AdminConfig seeds the first administrator. An empty password is
// generated at startup.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// AuthConfig signs bearer tokens. An empty secret is generated at
// startup, which invalidates tokens on restart.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// RedisConfig enables the notification publisher and the shared vote
// rate limiter when URL is set
type RedisConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

type VotingConfig struct {
	RateLimit     int           `yaml:"rate_limit"` // ballots per window per user; 0 disables
	RateWindow    time.Duration `yaml:"rate_window"`
	PhaseInterval time.Duration `yaml:"phase_interval"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Port: 8081,
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "electvote.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Admin: AdminConfig{
			Username: "admin",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Voting: VotingConfig{
			RateLimit:     10,
			RateWindow:    time.Minute,
			PhaseInterval: 5 * time.Second,
		},
		Keyboard: true,
	}
}

// flagValues holds raw flag values; only flags the user set are applied
type flagValues struct {
	configPath string
	envFile    string

	port          int
	baseURL       string
	dbDriver      string
	dsn           string
	logLevel      string
	logFormat     string
	httpLog       bool
	adminUser     string
	adminPassword string
	jwtSecret     string
	tokenTTL      time.Duration
	redisURL      string
	voteRate      int
	voteWindow    time.Duration
	phaseInterval time.Duration
	noKeyboard    bool
	version       bool
}

func newFlagSet(v *flagValues, output io.Writer) *flag.FlagSet {
	flags := flag.NewFlagSet("electvote", flag.ContinueOnError)
	flags.SetOutput(output)

	flags.StringVar(&v.configPath, "config", "", "YAML config file")
	flags.StringVar(&v.envFile, "env-file", ".env", "dotenv file loaded into the environment when present")
	flags.IntVar(&v.port, "port", 0, "HTTP server port (default 8081)")
	flags.StringVar(&v.baseURL, "base-url", "", "Public base URL used in QR codes")
	flags.StringVar(&v.dbDriver, "db-driver", "", "Database driver: sqlite or postgres (default sqlite)")
	flags.StringVar(&v.dsn, "db", "", "SQLite path or Postgres URL (default electvote.db)")
	flags.StringVar(&v.logLevel, "loglevel", "", "Log level: debug, info, warn, error (default info)")
	flags.StringVar(&v.logFormat, "logformat", "", "Log format: text or json (default text)")
	flags.BoolVar(&v.httpLog, "httplog", false, "Log every HTTP request")
	flags.StringVar(&v.adminUser, "admin", "", "Seeded admin username (default admin)")
	flags.StringVar(&v.adminPassword, "adminpw", "", "Seeded admin password (auto-generated if not set)")
	flags.StringVar(&v.jwtSecret, "jwt-secret", "", "Token signing secret (auto-generated if not set)")
	flags.DurationVar(&v.tokenTTL, "token-ttl", 0, "Bearer token lifetime (default 24h)")
	flags.StringVar(&v.redisURL, "redis", "", "Redis URL for notifications and shared rate limiting")
	flags.IntVar(&v.voteRate, "vote-rate", 0, "Ballot requests allowed per user per window, 0 disables (default 10)")
	flags.DurationVar(&v.voteWindow, "vote-window", 0, "Ballot rate limit window (default 1m)")
	flags.DurationVar(&v.phaseInterval, "phase-interval", 0, "How often election phases are checked for live updates (default 5s)")
	flags.BoolVar(&v.noKeyboard, "nokeyboard", false, "Disable keyboard shortcuts")
	flags.BoolVar(&v.version, "version", false, "Show version and exit")
	return flags
}

// Load resolves the configuration from every source. args excludes the
// program name. flag.ErrHelp is returned when -help was requested.
func Load(args []string, output io.Writer) (*Config, error) {
	var v flagValues
	flags := newFlagSet(&v, output)
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if v.envFile != "" {
		if err := godotenv.Load(v.envFile); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", v.envFile, err)
		}
	}

	cfg := Default()

	path := v.configPath
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	flags.Visit(func(f *flag.Flag) {
		v.apply(cfg, f.Name)
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(name string, dst *string) {
		if value, ok := os.LookupEnv(EnvPrefix + name); ok && value != "" {
			*dst = value
		}
	}
	num := func(name string, dst *int) {
		if value, ok := os.LookupEnv(EnvPrefix + name); ok && value != "" {
			n, err := strconv.Atoi(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %q is not a number", EnvPrefix, name, value))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if value, ok := os.LookupEnv(EnvPrefix + name); ok && value != "" {
			b, err := strconv.ParseBool(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %q is not a boolean", EnvPrefix, name, value))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if value, ok := os.LookupEnv(EnvPrefix + name); ok && value != "" {
			d, err := time.ParseDuration(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %q is not a duration", EnvPrefix, name, value))
				return
			}
			*dst = d
		}
	}

	num("PORT", &c.Port)
	str("BASE_URL", &c.BaseURL)
	str("DB_DRIVER", &c.Database.Driver)
	str("DB_DSN", &c.Database.DSN)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	boolean("HTTP_LOG", &c.Log.HTTP)
	str("ADMIN_USERNAME", &c.Admin.Username)
	str("ADMIN_PASSWORD", &c.Admin.Password)
	str("JWT_SECRET", &c.Auth.Secret)
	duration("TOKEN_TTL", &c.Auth.TokenTTL)
	str("REDIS_URL", &c.Redis.URL)
	str("REDIS_CHANNEL", &c.Redis.Channel)
	num("VOTE_RATE_LIMIT", &c.Voting.RateLimit)
	duration("VOTE_RATE_WINDOW", &c.Voting.RateWindow)
	duration("PHASE_INTERVAL", &c.Voting.PhaseInterval)
	boolean("KEYBOARD", &c.Keyboard)

	return stderrors.Join(errs...)
}

func (v *flagValues) apply(c *Config, name string) {
	switch name {
	case "port":
		c.Port = v.port
	case "base-url":
		c.BaseURL = v.baseURL
	case "db-driver":
		c.Database.Driver = v.dbDriver
	case "db":
		c.Database.DSN = v.dsn
	case "loglevel":
		c.Log.Level = v.logLevel
	case "logformat":
		c.Log.Format = v.logFormat
	case "httplog":
		c.Log.HTTP = v.httpLog
	case "admin":
		c.Admin.Username = v.adminUser
	case "adminpw":
		c.Admin.Password = v.adminPassword
	case "jwt-secret":
		c.Auth.Secret = v.jwtSecret
	case "token-ttl":
		c.Auth.TokenTTL = v.tokenTTL
	case "redis":
		c.Redis.URL = v.redisURL
	case "vote-rate":
		c.Voting.RateLimit = v.voteRate
	case "vote-window":
		c.Voting.RateWindow = v.voteWindow
	case "phase-interval":
		c.Voting.PhaseInterval = v.phaseInterval
	case "nokeyboard":
		c.Keyboard = !v.noKeyboard
	case "version":
		c.ShowVersion = v.version
	}
}

// Validate checks the resolved values and normalizes the driver name
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}

	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "sqlite3":
		c.Database.Driver = "sqlite"
	case "postgres", "postgresql", "pgx":
		c.Database.Driver = "postgres"
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	if strings.TrimSpace(c.Admin.Username) == "" {
		return fmt.Errorf("admin username is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	if c.Voting.RateLimit < 0 {
		return fmt.Errorf("vote rate limit must not be negative")
	}
	if c.Voting.RateLimit > 0 && c.Voting.RateWindow <= 0 {
		return fmt.Errorf("vote rate window must be positive")
	}
	if c.Voting.PhaseInterval <= 0 {
		return fmt.Errorf("phase interval must be positive")
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// String returns a summary with credentials masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, DB: %s %s, Redis: %s, Log: %s/%s}",
		c.Port, c.Database.Driver, maskPassword(c.Database.DSN), maskPassword(c.Redis.URL), c.Log.Level, c.Log.Format)
}

var credentials = regexp.MustCompile(`(://[^:/@]*:)([^@]+)(@)`)

// maskPassword hides the password of a URL
func maskPassword(url string) string {
	return credentials.ReplaceAllString(url, "${1}***${3}")
}
