package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server     ServerConfig
	App        AppConfig
	Upstream   UpstreamConfig
	Relational RelationalConfig
	Catalog    CatalogConfig
	Cache      CacheConfig
	Queue      QueueConfig
	Schedule   ScheduleConfig
	Log        LogConfig
	Prices     PricesConfig
}

// ServerConfig holds HTTP server settings for the control API.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30m"` // manual syncs run inline
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string   `envconfig:"APP_NAME" default:"aspos-sync"`
	Environment string   `envconfig:"APP_ENV" default:"development"`
	Version     string   `envconfig:"APP_VERSION" default:"1.0.0"`
	APIKeys     []string `envconfig:"API_KEYS"`
}

// UpstreamConfig holds the POS API credentials and endpoints.
type UpstreamConfig struct {
	ClientID      string        `envconfig:"ASPOS_CLIENT_ID" validate:"required"`
	ClientSecret  string        `envconfig:"ASPOS_CLIENT_SECRET" validate:"required"`
	TokenURL      string        `envconfig:"ASPOS_TOKEN_URL" validate:"required,url"`
	BaseURL       string        `envconfig:"ASPOS_API_URL" validate:"required,url"`
	Timeout       time.Duration `envconfig:"ASPOS_HTTP_TIMEOUT" default:"5m"`
	PageSize      int           `envconfig:"ASPOS_PAGE_SIZE" default:"100" validate:"gte=1"`
	MaxPages      int           `envconfig:"ASPOS_MAX_PAGES" default:"1000" validate:"gte=1"`
	TokenCacheTTL time.Duration `envconfig:"ASPOS_TOKEN_CACHE_TTL" default:"0s"`
}

var validate = validator.New()

// Validate checks that the upstream settings are complete enough to try a
// token fetch.
func (u *UpstreamConfig) Validate() error {
	if err := validate.Struct(u); err != nil {
		return fmt.Errorf("invalid upstream config: %w", err)
	}
	return nil
}

// RelationalConfig holds the side-table database settings.
type RelationalConfig struct {
	Type     string `envconfig:"RELATIONAL_DB_TYPE" default:"sqlite"` // sqlite, postgres, or mysql
	Path     string `envconfig:"RELATIONAL_DB_PATH" default:"./data/aspos.db"`
	Host     string `envconfig:"RELATIONAL_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"RELATIONAL_DB_PORT" default:"5432"`
	Name     string `envconfig:"RELATIONAL_DB_NAME" default:"aspos"`
	User     string `envconfig:"RELATIONAL_DB_USER" default:"postgres"`
	Password string `envconfig:"RELATIONAL_DB_PASS" default:""`
	SSLMode  string `envconfig:"RELATIONAL_DB_SSLMODE" default:"disable"`
}

// DSN returns the driver name and connection string for the configured type.
func (r *RelationalConfig) DSN() (driver, dsn string) {
	switch r.Type {
	case "postgres", "postgresql":
		return "postgres", fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			r.User, r.Password, r.Host, r.Port, r.Name, r.SSLMode)
	case "mysql":
		return "mysql", fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			r.User, r.Password, r.Host, r.Port, r.Name)
	default:
		return "sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", r.Path)
	}
}

// CatalogConfig holds the product catalog store settings.
type CatalogConfig struct {
	Type            string `envconfig:"CATALOG_DB_TYPE" default:"sql"` // sql or mongodb
	MongoURI        string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase   string `envconfig:"MONGODB_DATABASE" default:"aspos"`
	MongoCollection string `envconfig:"MONGODB_COLLECTION" default:"catalog_products"`
}

// CacheConfig holds Redis settings shared by the queue, lease and token cache.
type CacheConfig struct {
	RedisEnabled  bool   `envconfig:"REDIS_ENABLED" default:"true"`
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix     string `envconfig:"REDIS_KEY_PREFIX" default:"aspos:sync"`
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// QueueConfig holds work queue draining settings.
type QueueConfig struct {
	InitialDelay  time.Duration `envconfig:"QUEUE_INITIAL_DELAY" default:"30s"`
	ContinueDelay time.Duration `envconfig:"QUEUE_CONTINUE_DELAY" default:"60s"`
	LeaseTTL      time.Duration `envconfig:"QUEUE_LEASE_TTL" default:"30m"`
	MaxAttempts   int           `envconfig:"QUEUE_MAX_ATTEMPTS" default:"1"`
	TaskTimeout   time.Duration `envconfig:"QUEUE_TASK_TIMEOUT" default:"25m"`
}

// ScheduleConfig holds the periodic hook settings.
type ScheduleConfig struct {
	Enabled       bool          `envconfig:"SCHEDULE_ENABLED" default:"true"`
	CheckInterval time.Duration `envconfig:"SCHEDULE_CHECK_INTERVAL" default:"1m"`
	HourlyKinds   []string      `envconfig:"SCHEDULE_HOURLY_KINDS" default:"inventory,prices"`
	DailyKinds    []string      `envconfig:"SCHEDULE_DAILY_KINDS" default:"stores,products"`
}

// LogConfig holds debug log settings.
type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	Path       string `envconfig:"LOG_PATH" default:"./logs/aspos-sync.log"`
	MaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"10"`
	MaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
	MaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"14"`
	Stdout     bool   `envconfig:"LOG_STDOUT" default:"true"`
}

// PricesConfig holds the price stage settings.
type PricesConfig struct {
	ExportDir string `envconfig:"PRICES_EXPORT_DIR" default:""` // empty uses os.TempDir
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
