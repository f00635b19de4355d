package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"saldo/internal/core"
)

type Config struct {
	// HTTP Server
	Port            string
	PublicBaseURL   string
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string

	// Tenancy and identity
	AppID        string
	AuthSecret   string
	AuthTokenTTL time.Duration

	// Document store
	DataBackend      string
	DataDir          string
	SQLiteDBPath     string
	DynamoDBTable    string
	DynamoDBEndpoint string
	AWSRegion        string

	// Attachments
	BlobBackend      string
	GCSBucket        string
	GCSPublicBaseURL string
	MaxUploadBytes   int64

	// Google service account, shared by storage and sheets
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleSpreadsheetID      string
	// MirrorBackend is "sheets", or "memory" for local runs without a spreadsheet
	MirrorBackend string

	// AMQP change feed; an empty URL disables it
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// ResyncScopes are mirrored in full when the worker starts
	ResyncScopes []string

	// Ledger
	LedgerTimezone    string
	DefaultIncomeGoal string

	// Caching and limits
	SnapshotCacheTTL   time.Duration
	SnapshotCacheSize  int
	RateLimitPerMinute int

	// Browser clients
	AllowedOrigins []string
	TrustedProxies []string
}

var (
	validDataBackends = []string{"memory", "sqlite", "dynamodb"}
	validBlobBackends = []string{"memory", "gcs"}
)

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8081"),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:8081"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),

		AppID:        getEnv("APP_ID", "saldo"),
		AuthSecret:   getEnv("AUTH_SECRET", ""),
		AuthTokenTTL: getEnvDuration("AUTH_TOKEN_TTL", 30*24*time.Hour),

		DataBackend:      getEnv("DATA_BACKEND", "memory"),
		DataDir:          getEnv("DATA_DIR", "./data"),
		SQLiteDBPath:     getEnv("SQLITE_DB_PATH", "./data/saldo.db"),
		DynamoDBTable:    getEnv("DYNAMODB_TABLE", "saldo"),
		DynamoDBEndpoint: getEnv("DYNAMODB_ENDPOINT", ""),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),

		BlobBackend:      getEnv("BLOB_BACKEND", "memory"),
		GCSBucket:        getEnv("GCS_BUCKET", ""),
		GCSPublicBaseURL: getEnv("GCS_PUBLIC_BASE_URL", ""),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", 5<<20)),

		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		MirrorBackend:            getEnv("MIRROR_BACKEND", "sheets"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "saldo.changes"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "saldo.sheets_mirror"),
		ResyncScopes: getEnvList("MIRROR_RESYNC_SCOPES"),

		LedgerTimezone:    getEnv("LEDGER_TIMEZONE", "UTC"),
		DefaultIncomeGoal: getEnv("DEFAULT_INCOME_GOAL", "6000"),

		SnapshotCacheTTL:   getEnvDuration("SNAPSHOT_CACHE_TTL", 30*time.Second),
		SnapshotCacheSize:  getEnvInt("SNAPSHOT_CACHE_SIZE", 1000),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.AppID) == "" {
		errors = append(errors, "APP_ID cannot be empty")
	}
	if len(c.AuthSecret) < 32 {
		errors = append(errors, "AUTH_SECRET is required and must be at least 32 bytes")
	}
	if c.AuthTokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid auth token TTL %v: must be at least 1 minute", c.AuthTokenTTL))
	}

	if !slices.Contains(validDataBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validDataBackends))
	}
	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "dynamodb":
		if c.DynamoDBTable == "" {
			errors = append(errors, "DYNAMODB_TABLE is required when using dynamodb backend")
		}
		if c.AWSRegion == "" {
			errors = append(errors, "AWS_REGION is required when using dynamodb backend")
		}
	}

	if !slices.Contains(validBlobBackends, c.BlobBackend) {
		errors = append(errors, fmt.Sprintf("invalid blob backend '%s': must be one of %v", c.BlobBackend, validBlobBackends))
	}
	if c.BlobBackend == "gcs" && c.GCSBucket == "" {
		errors = append(errors, "GCS_BUCKET is required when using gcs blob backend")
	}
	if c.MaxUploadBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be at least 1024 bytes", c.MaxUploadBytes))
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid ledger timezone '%s': %v", c.LedgerTimezone, err))
	}
	if _, err := c.DefaultGoal(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid default income goal '%s': must be a positive amount", c.DefaultIncomeGoal))
	}

	if c.SnapshotCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid snapshot cache TTL %v: must not be negative", c.SnapshotCacheTTL))
	}
	if c.SnapshotCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid snapshot cache size %d: must be at least 1", c.SnapshotCacheSize))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks what the sheets mirror worker needs on top of the
// shared settings.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the worker")
	}
	if c.AMQPQueue == "" {
		errors = append(errors, "AMQP queue name cannot be empty for the worker")
	}
	switch c.MirrorBackend {
	case "", "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the worker")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for the worker")
		}
	case "memory":
	default:
		errors = append(errors, fmt.Sprintf("invalid mirror backend '%s': must be sheets or memory", c.MirrorBackend))
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Location resolves LEDGER_TIMEZONE for month boundaries.
func (c *Config) Location() (*time.Location, error) {
	if c.LedgerTimezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.LedgerTimezone)
}

// DefaultGoal parses DEFAULT_INCOME_GOAL.
func (c *Config) DefaultGoal() (core.Goal, error) {
	m, err := core.ParseAmount(c.DefaultIncomeGoal)
	if err != nil {
		return core.Goal{}, err
	}
	return core.Goal{Amount: m}, nil
}

// GoogleCredentials returns the service account JSON, inline value first.
// Empty means application default credentials.
func (c *Config) GoogleCredentials() ([]byte, error) {
	if c.GoogleServiceAccountJSON != "" {
		return []byte(c.GoogleServiceAccountJSON), nil
	}
	if c.GoogleServiceAccountFile != "" {
		b, err := os.ReadFile(c.GoogleServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
