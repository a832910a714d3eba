package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TIMEZONE", "")
	t.Setenv("SETTINGS_TTL_SECONDS", "bogus")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("port = %q, want 8080", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("address = %q, want :8080", cfg.Address())
	}
	if cfg.Timezone != "Asia/Jakarta" {
		t.Fatalf("timezone = %q, want Asia/Jakarta", cfg.Timezone)
	}
	if cfg.SettingsTTLSeconds != 60 {
		t.Fatalf("settings ttl = %d, want fallback 60", cfg.SettingsTTLSeconds)
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	t.Setenv("TIMEZONE", "Not/AZone")
	cfg := Load()
	if got := cfg.Location(); got.String() != "UTC" {
		t.Fatalf("location = %v, want UTC fallback", got)
	}
}
