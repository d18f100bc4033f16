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
)

type Config struct {
	// HTTP Server
	Port             string
	HTTPWriteTimeout time.Duration
	CORSOrigins      []string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// Firebase
	FirebaseProjectID     string
	FirebaseAPIKey        string
	GoogleCredentialsFile string

	// AI
	GeminiAPIKey string
	GeminiModel  string
	AILanguage   string

	// Export archival
	ExportBucket string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	ActivityPrefetch int

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		HTTPWriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 90*time.Second),
		CORSOrigins:      getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),

		DataBackend:  getEnv("DATA_BACKEND", "firestore"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/cashflow.db"),

		FirebaseProjectID:     getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseAPIKey:        getEnv("FIREBASE_API_KEY", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", getEnv("API_KEY", "")),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-3-pro-preview"),
		AILanguage:   getEnv("AI_LANGUAGE", "zh-TW"),

		ExportBucket: getEnv("EXPORT_BUCKET", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cashflow"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_activity"),

		ActivityPrefetch: getEnvInt("AMQP_PREFETCH", 10),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// CloudConfigured reports whether real Firebase credentials are present.
// Values still carrying the YOUR_... template placeholders count as absent.
func (c *Config) CloudConfigured() bool {
	return !isPlaceholder(c.FirebaseProjectID) && !isPlaceholder(c.FirebaseAPIKey)
}

func isPlaceholder(s string) bool {
	return strings.TrimSpace(s) == "" || strings.Contains(s, "YOUR_")
}

var validBackends = []string{"firestore", "sqlite", "memory"}

// problems accumulates validation failures so they are reported together.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// Validate checks every setting and returns all failures at once. It also
// creates the SQLite directory when missing.
func (c *Config) Validate() error {
	var p problems
	c.checkServer(&p)
	c.checkStorage(&p)
	c.checkAMQP(&p)

	if c.GoogleCredentialsFile != "" {
		if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
			p.addf("Google credentials file does not exist: %s", c.GoogleCredentialsFile)
		}
	}
	if c.GeminiModel == "" {
		p.addf("Gemini model name cannot be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		p.addf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel)
	}

	if len(p) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(p, "\n- "))
	}
	return nil
}

func (c *Config) checkServer(p *problems) {
	port, err := strconv.Atoi(c.Port)
	switch {
	case err != nil:
		p.addf("invalid port '%s': must be a number", c.Port)
	case port < 1 || port > 65535:
		p.addf("invalid port %d: must be between 1 and 65535", port)
	}
	if c.HTTPWriteTimeout < time.Second {
		p.addf("invalid HTTP write timeout %v: must be at least 1 second", c.HTTPWriteTimeout)
	}
}

// checkStorage validates the backend. Every backend except memory keeps a
// local SQLite file.
func (c *Config) checkStorage(p *problems) {
	if !slices.Contains(validBackends, c.DataBackend) {
		p.addf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends)
		return
	}
	if c.DataBackend == "memory" {
		return
	}
	if c.SQLiteDBPath == "" {
		p.addf("SQLite database path cannot be empty when using %s backend", c.DataBackend)
		return
	}
	if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			p.addf("cannot create SQLite database directory '%s': %v", dir, err)
		}
	}
}

func (c *Config) checkAMQP(p *problems) {
	if c.ActivityPrefetch < 1 || c.ActivityPrefetch > 1000 {
		p.addf("invalid AMQP prefetch %d: must be between 1 and 1000", c.ActivityPrefetch)
	}
	if c.AMQPURL == "" {
		return
	}
	u, err := url.Parse(c.AMQPURL)
	switch {
	case err != nil:
		p.addf("invalid AMQP URL '%s': %v", c.AMQPURL, err)
	case u.Scheme != "amqp" && u.Scheme != "amqps":
		p.addf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme)
	}
	if c.AMQPExchange == "" {
		p.addf("AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		p.addf("AMQP queue name cannot be empty when AMQP URL is provided")
	}
}

// env returns the parsed value of key, or def when unset or unparsable.
func env[T any](key string, def T, parse func(string) (T, error)) T {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	v, err := parse(value)
	if err != nil {
		return def
	}
	return v
}

func getEnv(key, def string) string {
	return env(key, def, func(s string) (string, error) { return s, nil })
}

func getEnvInt(key string, def int) int {
	return env(key, def, strconv.Atoi)
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	return env(key, def, time.ParseDuration)
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string, def []string) []string {
	return env(key, def, func(s string) ([]string, error) {
		var out []string
		for part := range strings.SplitSeq(s, ",") {
			if v := strings.TrimSpace(part); v != "" {
				out = append(out, v)
			}
		}
		return out, nil
	})
}
