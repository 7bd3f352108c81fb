package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/hmis-api/pkg/logger"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Patients   PatientsConfig   `mapstructure:"patients"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	CORS       CORSConfig       `mapstructure:"cors"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Log        logger.Config    `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	// Driver selects the store: "postgres" (lib/pq), "pgx" or "memory".
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns a libpq keyword/value connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	Channel      string        `mapstructure:"channel"`
}

type OutboxConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	// MaxAttempts is the number of polling rounds before an event is marked failed
	MaxAttempts     int           `mapstructure:"max_attempts"`
	ClaimTTL        time.Duration `mapstructure:"claim_ttl"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	HealthPort      int           `mapstructure:"health_port"`
}

type SchedulingConfig struct {
	DayStart               string        `mapstructure:"day_start"`
	DayEnd                 string        `mapstructure:"day_end"`
	SlotStepMinutes        int           `mapstructure:"slot_step_minutes"`
	DefaultDurationMinutes int           `mapstructure:"default_duration_minutes"`
	MinDurationMinutes     int           `mapstructure:"min_duration_minutes"`
	MaxDurationMinutes     int           `mapstructure:"max_duration_minutes"`
	CompletedBlocksSlot    bool          `mapstructure:"completed_blocks_slot"`
	DoctorCacheTTL         time.Duration `mapstructure:"doctor_cache_ttl"`
}

type PatientsConfig struct {
	DefaultPassword string `mapstructure:"default_password"`
	BcryptCost      int    `mapstructure:"bcrypt_cost"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// envOverrides are secrets and deployment knobs read from HMIS_* variables.
type envOverrides struct {
	DBDriver     string `envconfig:"DB_DRIVER"`
	DBHost       string `envconfig:"DB_HOST"`
	DBPort       int    `envconfig:"DB_PORT"`
	DBUser       string `envconfig:"DB_USER"`
	DBPassword   string `envconfig:"DB_PASSWORD"`
	DBName       string `envconfig:"DB_NAME"`
	JWTSecret    string `envconfig:"JWT_SECRET"`
	RedisURL     string `envconfig:"REDIS_URL"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	Port         int    `envconfig:"PORT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "hmis")
	v.SetDefault("database.name", "hmis")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.issuer", "hmis-api")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.channel", "hmis.events")

	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", 2*time.Second)
	v.SetDefault("outbox.retry_attempts", 5)
	v.SetDefault("outbox.retry_delay", 500*time.Millisecond)
	v.SetDefault("outbox.max_attempts", 10)
	v.SetDefault("outbox.claim_ttl", 5*time.Minute)
	v.SetDefault("outbox.retention", 7*24*time.Hour)
	v.SetDefault("outbox.cleanup_interval", time.Hour)
	v.SetDefault("outbox.health_port", 8081)

	v.SetDefault("scheduling.day_start", "09:00")
	v.SetDefault("scheduling.day_end", "17:00")
	v.SetDefault("scheduling.slot_step_minutes", 15)
	v.SetDefault("scheduling.default_duration_minutes", 30)
	v.SetDefault("scheduling.min_duration_minutes", 15)
	v.SetDefault("scheduling.max_duration_minutes", 240)
	v.SetDefault("scheduling.completed_blocks_slot", false)
	v.SetDefault("scheduling.doctor_cache_ttl", 30*time.Second)

	v.SetDefault("patients.default_password", "ChangeMe!2024")
	v.SetDefault("patients.bcrypt_cost", 10)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "no-reply@hmis.local")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig reads config.yml (or the explicit path) and overlays HMIS_* env vars.
// A missing config file is not an error; defaults apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	v.SetEnvPrefix("hmis")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("hmis", &env); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	cfg.applyEnv(env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(env envOverrides) {
	if env.DBDriver != "" {
		c.Database.Driver = env.DBDriver
	}
	if env.DBHost != "" {
		c.Database.Host = env.DBHost
	}
	if env.DBPort != 0 {
		c.Database.Port = env.DBPort
	}
	if env.DBUser != "" {
		c.Database.User = env.DBUser
	}
	if env.DBPassword != "" {
		c.Database.Password = env.DBPassword
	}
	if env.DBName != "" {
		c.Database.Name = env.DBName
	}
	if env.JWTSecret != "" {
		c.Auth.JWTSecret = env.JWTSecret
	}
	if env.RedisURL != "" {
		c.Redis.URL = env.RedisURL
	}
	if env.SMTPPassword != "" {
		c.SMTP.Password = env.SMTPPassword
	}
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
}

// Validate checks settings that would otherwise fail at request time
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "pgx", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	s := c.Scheduling
	if s.MinDurationMinutes <= 0 || s.MaxDurationMinutes < s.MinDurationMinutes {
		return fmt.Errorf("invalid scheduling duration bounds [%d,%d]", s.MinDurationMinutes, s.MaxDurationMinutes)
	}
	if s.DefaultDurationMinutes < s.MinDurationMinutes || s.DefaultDurationMinutes > s.MaxDurationMinutes {
		return fmt.Errorf("scheduling.default_duration_minutes must be within bounds")
	}
	if s.SlotStepMinutes <= 0 {
		return fmt.Errorf("scheduling.slot_step_minutes must be positive")
	}
	return nil
}
