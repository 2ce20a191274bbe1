package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sirens")
	t.Setenv("PORT", "")
	t.Setenv("RELAY_DEFAULT_LANGUAGE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("TRUST_PROXY_HEADERS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "5050" {
		t.Errorf("Port = %q, want 5050", cfg.Port)
	}
	if cfg.DefaultLanguage != "hi" {
		t.Errorf("DefaultLanguage = %q, want hi", cfg.DefaultLanguage)
	}
	if cfg.ClearPlayingOnDisconnect {
		t.Error("ClearPlayingOnDisconnect should default to false")
	}
	if cfg.PersistTimeout != 0 {
		t.Errorf("PersistTimeout = %v, want 0", cfg.PersistTimeout)
	}
	if len(cfg.AllowedOrigins) != len(defaultOrigins) {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.TrustProxyHeaders {
		t.Error("TrustProxyHeaders should default to false")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sirens")
	t.Setenv("RELAY_DEFAULT_LANGUAGE", "en")
	t.Setenv("RELAY_CLEAR_PLAYING_ON_DISCONNECT", "true")
	t.Setenv("RELAY_PERSIST_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("TRIGGER_WEBHOOK_SECRET", "hush")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultLanguage != "en" {
		t.Errorf("DefaultLanguage = %q", cfg.DefaultLanguage)
	}
	if !cfg.ClearPlayingOnDisconnect {
		t.Error("ClearPlayingOnDisconnect not applied")
	}
	if cfg.PersistTimeout != 3*time.Second {
		t.Errorf("PersistTimeout = %v", cfg.PersistTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.TriggerWebhookSecret != "hush" {
		t.Errorf("TriggerWebhookSecret = %q", cfg.TriggerWebhookSecret)
	}
	if !cfg.TrustProxyHeaders {
		t.Error("TrustProxyHeaders not applied")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(*Config) {}, false},
		{"missing dsn", func(c *Config) { c.DatabaseURL = "" }, true},
		{"zero buffer", func(c *Config) { c.SendBuffer = 0 }, true},
		{"pong shorter than ping", func(c *Config) { c.PongWait = time.Second }, true},
		{"no burst", func(c *Config) { c.TriggerRateBurst = 0 }, true},
		{"bad default language", func(c *Config) { c.DefaultLanguage = "hindi!" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				DatabaseURL:      "postgres://x",
				DefaultLanguage:  "hi",
				SendBuffer:       8,
				PingPeriod:       2 * time.Second,
				PongWait:         5 * time.Second,
				TriggerRateLimit: 1,
				TriggerRateBurst: 1,
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
