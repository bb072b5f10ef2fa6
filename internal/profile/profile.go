package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo".
	Mode string
	// Addr is the binding address of the server.
	Addr string
	// Port is the binding port of the server.
	Port int
	// UNIXSock is the path to a unix socket, overrides Addr and Port.
	UNIXSock string
	// Data is the data directory (sqlite database files live here).
	Data string
	// Driver is the database driver, "postgres" or "sqlite".
	Driver string
	// DSN is the database source name.
	DSN string
	// InstanceURL is the public base URL of this instance; the webapp links
	// sent to chats are built from it.
	InstanceURL string
	// Version is the current server version.
	Version string

	// TelegramBotToken authenticates the outbound bot API.
	TelegramBotToken string
	// WebhookSecret is the opaque path segment of the inbound webhook route.
	WebhookSecret string
	// ReminderAPIKey gates the POST /api/reminders trigger.
	ReminderAPIKey string

	// DefaultTimezone is used for events that do not carry their own timezone.
	DefaultTimezone string
	// DedupCacheSize bounds the inbound update dedup cache.
	DedupCacheSize int
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.TelegramBotToken = getEnvOrDefault("MEETWHENAH_TELEGRAM_BOT_TOKEN", "")
	p.WebhookSecret = getEnvOrDefault("MEETWHENAH_WEBHOOK_SECRET", "")
	p.ReminderAPIKey = getEnvOrDefault("MEETWHENAH_REMINDER_API_KEY", "")
	p.DefaultTimezone = getEnvOrDefault("MEETWHENAH_DEFAULT_TIMEZONE", "Asia/Singapore")
	p.DedupCacheSize = getEnvOrDefaultInt("MEETWHENAH_DEDUP_CACHE_SIZE", 4096)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "postgres" && p.Driver != "sqlite" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}

	if p.Driver == "sqlite" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("meetwhenah_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn required for postgres driver")
	}

	if p.DedupCacheSize <= 0 {
		p.DedupCacheSize = 4096
	}

	return nil
}
