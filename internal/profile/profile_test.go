package profile

import (
	"os"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	clearEnvVars()

	profile := &Profile{}
	profile.FromEnv()

	tests := []struct {
		name     string
		expected string
		actual   string
	}{
		{"TelegramBotToken default", "", profile.TelegramBotToken},
		{"WebhookSecret default", "", profile.WebhookSecret},
		{"ReminderAPIKey default", "", profile.ReminderAPIKey},
		{"DefaultTimezone default", "Asia/Singapore", profile.DefaultTimezone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.actual != tt.expected {
				t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, tt.actual)
			}
		})
	}

	if profile.DedupCacheSize != 4096 {
		t.Errorf("DedupCacheSize default: expected 4096, got %d", profile.DedupCacheSize)
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		envValue string
		field    func(*Profile) string
		expected string
	}{
		{
			name:     "bot token from env",
			envVar:   "MEETWHENAH_TELEGRAM_BOT_TOKEN",
			envValue: "123456:test-token",
			field:    func(p *Profile) string { return p.TelegramBotToken },
			expected: "123456:test-token",
		},
		{
			name:     "webhook secret from env",
			envVar:   "MEETWHENAH_WEBHOOK_SECRET",
			envValue: "hook-secret",
			field:    func(p *Profile) string { return p.WebhookSecret },
			expected: "hook-secret",
		},
		{
			name:     "reminder api key from env",
			envVar:   "MEETWHENAH_REMINDER_API_KEY",
			envValue: "reminder-key",
			field:    func(p *Profile) string { return p.ReminderAPIKey },
			expected: "reminder-key",
		},
		{
			name:     "default timezone from env",
			envVar:   "MEETWHENAH_DEFAULT_TIMEZONE",
			envValue: "Europe/Berlin",
			field:    func(p *Profile) string { return p.DefaultTimezone },
			expected: "Europe/Berlin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			os.Setenv(tt.envVar, tt.envValue)
			defer os.Unsetenv(tt.envVar)

			profile := &Profile{}
			profile.FromEnv()

			actual := tt.field(profile)
			if actual != tt.expected {
				t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, actual)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("unknown mode falls back to demo", func(t *testing.T) {
		p := &Profile{Mode: "staging", Driver: "postgres", DSN: "postgres://localhost/meetwhenah"}
		if err := p.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Mode != "demo" {
			t.Errorf("expected mode demo, got %q", p.Mode)
		}
	})

	t.Run("postgres requires DSN", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "postgres"}
		if err := p.Validate(); err == nil {
			t.Error("expected error for missing DSN")
		}
	})

	t.Run("unsupported driver rejected", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "mysql", DSN: "whatever"}
		if err := p.Validate(); err == nil {
			t.Error("expected error for unsupported driver")
		}
	})

	t.Run("sqlite derives DSN from data dir", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: dir}
		if err := p.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.DSN == "" {
			t.Error("expected DSN to be derived from data dir")
		}
	})
}

func clearEnvVars() {
	for _, key := range []string{
		"MEETWHENAH_TELEGRAM_BOT_TOKEN",
		"MEETWHENAH_WEBHOOK_SECRET",
		"MEETWHENAH_REMINDER_API_KEY",
		"MEETWHENAH_DEFAULT_TIMEZONE",
		"MEETWHENAH_DEDUP_CACHE_SIZE",
	} {
		os.Unsetenv(key)
	}
}
