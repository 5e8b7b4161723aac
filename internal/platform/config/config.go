// Package config reads process configuration from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Config groups every setting the binary needs.
type Config struct {
	Server    Server
	Log       Log
	Auth      Auth
	Store     Store
	Postgres  PostgresConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Storage   StorageConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	Workflow  Workflow
}

type Server struct {
	Addr              string
	Environment       string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

func (s Server) IsProduction() bool { return s.Environment == "production" }

type Log struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is json or text.
	Format string
}

type Auth struct {
	JWTSigningKey string
	Issuer        string
	TokenTTL      time.Duration
	BcryptCost    int
}

// Store selects the document store backend: memory, postgres or mongo.
type Store struct {
	Backend string
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
	// CASRetries bounds the compare-and-swap loop of atomic updates.
	CASRetries int
}

// RedisConfig is optional; an empty URL keeps token revocation in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
}

// KafkaConfig is optional; no brokers means audit events stay in memory.
type KafkaConfig struct {
	Brokers           []string
	AuditTopic        string
	Partitions        int32
	ReplicationFactor int16
}

type StorageConfig struct {
	// Backend is fs or sftp.
	Backend             string
	RootDir             string
	MaxUploadBytes      int64
	AllowedContentTypes []string
	SFTP                SFTPConfig
}

type SFTPConfig struct {
	Addr           string
	User           string
	Password       string
	PrivateKeyPath string
	// HostKey is the server public key in authorized_keys format. When empty
	// the host key is not verified, which is only accepted outside production.
	HostKey string
	RootDir string
}

type EmailConfig struct {
	// Provider is log or resend.
	Provider     string
	ResendAPIKey string
	From         string
	AppBaseURL   string
	QueueSize    int
}

// RateLimitConfig bounds requests per client within Window. Counters live in
// Redis when it is configured and in process memory otherwise.
type RateLimitConfig struct {
	Disabled bool
	Window   time.Duration
	// Login applies per client IP to the login endpoint.
	Login int
	// API applies per user to every authenticated endpoint.
	API int
}

type Workflow struct {
	// EfficacyDelay is how long after finalization efficacy is due.
	EfficacyDelay    time.Duration
	ReminderInterval time.Duration
}

// FromEnv builds the configuration and validates cross-field rules.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	r := &envReader{}
	cfg := Config{
		Server: Server{
			Addr:              r.str("RCAFLOW_ADDR", ":8080"),
			Environment:       r.str("RCAFLOW_ENV", "development"),
			ReadHeaderTimeout: r.duration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ShutdownTimeout:   r.duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: Log{
			Level:  strings.ToLower(r.str("LOG_LEVEL", "info")),
			Format: strings.ToLower(r.str("LOG_FORMAT", "json")),
		},
		Auth: Auth{
			JWTSigningKey: r.str("JWT_SIGNING_KEY", devSigningKey),
			Issuer:        r.str("JWT_ISSUER", "rcaflow"),
			TokenTTL:      r.duration("TOKEN_TTL", 12*time.Hour),
			BcryptCost:    r.integer("BCRYPT_COST", 12),
		},
		Store: Store{
			Backend: strings.ToLower(r.str("STORE_BACKEND", "memory")),
		},
		Postgres: PostgresConfig{
			DSN:             r.str("DATABASE_URL", ""),
			MaxOpenConns:    r.integer("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    r.integer("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: r.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Mongo: MongoConfig{
			URI:        r.str("MONGO_URI", ""),
			Database:   r.str("MONGO_DATABASE", "rcaflow"),
			CASRetries: r.integer("MONGO_CAS_RETRIES", 5),
		},
		Redis: RedisConfig{
			URL:          r.str("REDIS_URL", ""),
			PoolSize:     r.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			KeyPrefix:    r.str("REDIS_KEY_PREFIX", "rcaflow:"),
		},
		Kafka: KafkaConfig{
			Brokers:           r.list("KAFKA_BROKERS"),
			AuditTopic:        r.str("KAFKA_AUDIT_TOPIC", "rcaflow.audit"),
			Partitions:        int32(r.integer("KAFKA_AUDIT_PARTITIONS", 3)),
			ReplicationFactor: int16(r.integer("KAFKA_AUDIT_REPLICATION", 1)),
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(r.str("STORAGE_BACKEND", "fs")),
			RootDir:        r.str("STORAGE_ROOT", "./data"),
			MaxUploadBytes: int64(r.integer("STORAGE_MAX_UPLOAD_BYTES", 20<<20)),
			AllowedContentTypes: r.listOr("STORAGE_ALLOWED_CONTENT_TYPES", []string{
				"image/jpeg", "image/png", "image/webp", "application/pdf",
				"text/plain", "text/csv",
				"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			}),
			SFTP: SFTPConfig{
				Addr:           r.str("SFTP_ADDR", ""),
				User:           r.str("SFTP_USER", ""),
				Password:       r.str("SFTP_PASSWORD", ""),
				PrivateKeyPath: r.str("SFTP_PRIVATE_KEY_PATH", ""),
				HostKey:        r.str("SFTP_HOST_KEY", ""),
				RootDir:        r.str("SFTP_ROOT", "/rcaflow"),
			},
		},
		Email: EmailConfig{
			Provider:     strings.ToLower(r.str("EMAIL_PROVIDER", "log")),
			ResendAPIKey: r.str("RESEND_API_KEY", ""),
			From:         r.str("EMAIL_FROM", "RCA <no-reply@rcaflow.local>"),
			AppBaseURL:   strings.TrimRight(r.str("APP_BASE_URL", "http://localhost:3000"), "/"),
			QueueSize:    r.integer("EMAIL_QUEUE_SIZE", 256),
		},
		RateLimit: RateLimitConfig{
			Disabled: r.boolean("RATE_LIMIT_DISABLED", false),
			Window:   r.duration("RATE_LIMIT_WINDOW", time.Minute),
			Login:    r.integer("RATE_LIMIT_LOGIN", 10),
			API:      r.integer("RATE_LIMIT_API", 600),
		},
		Workflow: Workflow{
			EfficacyDelay:    r.duration("EFFICACY_DELAY", 90*24*time.Hour),
			ReminderInterval: r.duration("EFFICACY_REMINDER_INTERVAL", time.Hour),
		},
	}

	if err := errors.Join(append(r.errs, cfg.Validate())...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks rules that span several settings.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case "mongo":
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend))
	}

	switch c.Storage.Backend {
	case "fs":
	case "sftp":
		if c.Storage.SFTP.Addr == "" || c.Storage.SFTP.User == "" {
			errs = append(errs, errors.New("SFTP_ADDR and SFTP_USER are required for the sftp storage"))
		}
		if c.Server.IsProduction() && c.Storage.SFTP.HostKey == "" {
			errs = append(errs, errors.New("SFTP_HOST_KEY is required in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}

	switch c.Email.Provider {
	case "log":
	case "resend":
		if c.Email.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required for the resend provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Email.Provider))
	}

	if c.Server.IsProduction() && c.Auth.JWTSigningKey == devSigningKey {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be set in production"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if !c.RateLimit.Disabled && (c.RateLimit.Window <= 0 || c.RateLimit.Login <= 0 || c.RateLimit.API <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW, RATE_LIMIT_LOGIN and RATE_LIMIT_API must be positive"))
	}
	if c.Workflow.EfficacyDelay <= 0 || c.Workflow.ReminderInterval <= 0 {
		errs = append(errs, errors.New("EFFICACY_DELAY and EFFICACY_REMINDER_INTERVAL must be positive"))
	}
	if c.Storage.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("STORAGE_MAX_UPLOAD_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

type envReader struct {
	errs []error
}

func (r *envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *envReader) integer(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r *envReader) boolean(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (r *envReader) list(key string) []string {
	return r.listOr(key, nil)
}

func (r *envReader) listOr(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
