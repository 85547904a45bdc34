package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Errorf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Classifier.Provider != "dashscope" || cfg.Classifier.Timeout != 10*time.Second {
		t.Errorf("classifier = %+v", cfg.Classifier)
	}
	if cfg.Calendar.Location == nil || cfg.Calendar.Location.String() != "Asia/Shanghai" {
		t.Errorf("calendar location = %v", cfg.Calendar.Location)
	}
	if cfg.Log.Level != slog.LevelInfo {
		t.Errorf("log level = %v", cfg.Log.Level)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("CLASSIFIER_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CLASSIFIER_TIMEOUT", "3s")
	t.Setenv("SNAPSHOT_INTERVAL", "0")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CALENDAR_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Storage.Driver != "memory" {
		t.Errorf("server/storage = %+v %+v", cfg.Server, cfg.Storage)
	}
	if cfg.Classifier.Provider != "openai" || cfg.Classifier.APIKey != "sk-test" || cfg.Classifier.Timeout != 3*time.Second {
		t.Errorf("classifier = %+v", cfg.Classifier)
	}
	if cfg.Snapshot.Interval != 0 {
		t.Errorf("snapshot interval = %v", cfg.Snapshot.Interval)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Log.Level != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"port":     func(c *Config) { c.Server.Port = 0 },
		"driver":   func(c *Config) { c.Storage.Driver = "sqlite" },
		"dsn":      func(c *Config) { c.Database.DSN = "" },
		"provider": func(c *Config) { c.Classifier.Provider = "gemini" },
		"timeout":  func(c *Config) { c.Classifier.Timeout = 0 },
		"snapshot": func(c *Config) { c.Snapshot.Interval = -time.Second },
		"timezone": func(c *Config) { c.Calendar.Timezone = "Mars/Olympus" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := &Config{
				Server:     ServerConfig{Port: 8080},
				Storage:    StorageConfig{Driver: "postgres"},
				Database:   DatabaseConfig{DSN: "postgres://x"},
				Classifier: ClassifierConfig{Provider: "none", Timeout: time.Second},
				Calendar:   CalendarConfig{Timezone: "UTC"},
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("base config invalid: %v", err)
			}
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
