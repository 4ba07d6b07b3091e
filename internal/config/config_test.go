package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"AccessTokenExpiry", cfg.Auth.AccessTokenExpiry, 15 * time.Minute},
		{"SessionIdleTimeout", cfg.Auth.SessionIdleTimeout, 30 * time.Minute},
		{"CSRFTokenTTL", cfg.Auth.CSRFTokenTTL, 15 * time.Minute},
		{"LoginAttemptWindow", cfg.Auth.LoginAttemptWindow, 15 * time.Minute},
		{"LoginLockoutDuration", cfg.Auth.LoginLockoutDuration, 30 * time.Minute},
		{"LoginMaxDelay", cfg.Auth.LoginMaxDelay, 5 * time.Minute},
		{"SecurityCleanupInterval", cfg.Auth.CleanupInterval, 5 * time.Minute},
		{"BookingCacheTTL", cfg.Booking.CacheTTL, 60 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Auth.MaxLoginAttempts != 5 {
		t.Errorf("MaxLoginAttempts: got %d, want 5", cfg.Auth.MaxLoginAttempts)
	}
	if !cfg.Auth.ProgressiveDelay {
		t.Error("ProgressiveDelay: got false, want true")
	}
	if cfg.Email.Enabled {
		t.Error("Email.Enabled: got true, want false by default")
	}
}

func TestLoad_CustomRateLimitValues(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("MAX_LOGIN_ATTEMPTS", "3")
	os.Setenv("LOGIN_ATTEMPT_WINDOW", "5m")
	os.Setenv("LOGIN_LOCKOUT_DURATION", "1h")
	os.Setenv("LOGIN_PROGRESSIVE_DELAY", "false")
	os.Setenv("BOOKING_CACHE_TTL", "30s")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Auth.MaxLoginAttempts != 3 {
		t.Errorf("MaxLoginAttempts: got %d, want 3", cfg.Auth.MaxLoginAttempts)
	}
	if cfg.Auth.LoginAttemptWindow != 5*time.Minute {
		t.Errorf("LoginAttemptWindow: got %v, want 5m", cfg.Auth.LoginAttemptWindow)
	}
	if cfg.Auth.LoginLockoutDuration != time.Hour {
		t.Errorf("LoginLockoutDuration: got %v, want 1h", cfg.Auth.LoginLockoutDuration)
	}
	if cfg.Auth.ProgressiveDelay {
		t.Error("ProgressiveDelay: got true, want false")
	}
	if cfg.Booking.CacheTTL != 30*time.Second {
		t.Errorf("BookingCacheTTL: got %v, want 30s", cfg.Booking.CacheTTL)
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("LOGIN_ATTEMPT_WINDOW", "not-a-duration")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Auth.LoginAttemptWindow != 15*time.Minute {
		t.Errorf("LoginAttemptWindow with invalid value: got %v, want 15m", cfg.Auth.LoginAttemptWindow)
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil error, want failure for missing JWT_SECRET")
	}
}

func TestLoad_WeakJWTSecretRejected(t *testing.T) {
	os.Setenv("JWT_SECRET", "changeme")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil error, want failure for weak JWT_SECRET")
	}
}

func TestLoad_ProductionRequiresLongSecret(t *testing.T) {
	os.Setenv("JWT_SECRET", "short-but-over-sixteen")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("ENV", "production")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil error, want failure for short production secret")
	}
}
