package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear any existing env vars
	os.Unsetenv("PORT")
	os.Unsetenv("NOTIFY_OFFSETS")
	os.Unsetenv("DEDUP_WINDOW")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}

	if len(cfg.ReminderOffsets) != 3 || cfg.ReminderOffsets[0] != 7 || cfg.ReminderOffsets[1] != 3 || cfg.ReminderOffsets[2] != 1 {
		t.Errorf("expected default offsets [7 3 1], got %v", cfg.ReminderOffsets)
	}

	if cfg.DedupWindow != 24*time.Hour {
		t.Errorf("expected 24h dedup window, got %v", cfg.DedupWindow)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("PORT", "9000")
	os.Setenv("NOTIFY_OFFSETS", "14, 7, 1")
	os.Setenv("DEDUP_WINDOW", "12h")
	os.Setenv("APP_URL", "https://coupons.example.com/")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("NOTIFY_OFFSETS")
		os.Unsetenv("DEDUP_WINDOW")
		os.Unsetenv("APP_URL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}

	if len(cfg.ReminderOffsets) != 3 || cfg.ReminderOffsets[0] != 14 {
		t.Errorf("expected offsets [14 7 1], got %v", cfg.ReminderOffsets)
	}

	if cfg.DedupWindow != 12*time.Hour {
		t.Errorf("expected 12h dedup window, got %v", cfg.DedupWindow)
	}

	// Trailing slash is trimmed so payload URLs join cleanly
	if cfg.AppURL != "https://coupons.example.com" {
		t.Errorf("unexpected app url %q", cfg.AppURL)
	}
}

func TestLoad_InvalidOffsets(t *testing.T) {
	cases := []string{"abc", "7,0,1", "7,-3"}

	for _, value := range cases {
		os.Setenv("NOTIFY_OFFSETS", value)
		if _, err := Load(); err == nil {
			t.Errorf("expected error for NOTIFY_OFFSETS=%q", value)
		}
	}
	os.Unsetenv("NOTIFY_OFFSETS")
}
