package config

import (
	"os"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	os.Setenv("TOKEN_SECRET", "test-token-secret")
	os.Setenv("SESSION_SECRET", "test-session-secret")
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.TokenIssuer != "watchtrack-auth" {
		t.Errorf("TokenIssuer = %q, want %q", cfg.TokenIssuer, "watchtrack-auth")
	}
	if cfg.TokenAudience != "watchtrack-api" {
		t.Errorf("TokenAudience = %q, want %q", cfg.TokenAudience, "watchtrack-api")
	}
	if cfg.TokenTTL != "168h" {
		t.Errorf("TokenTTL = %q, want %q", cfg.TokenTTL, "168h")
	}
	if cfg.SessionTTL != "720h" {
		t.Errorf("SessionTTL = %q, want %q", cfg.SessionTTL, "720h")
	}
	if cfg.SessionCookieName != "watchtrack_session" {
		t.Errorf("SessionCookieName = %q, want %q", cfg.SessionCookieName, "watchtrack_session")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	setRequired(t)
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("TOKEN_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.TokenIssuer != "custom-issuer" {
		t.Errorf("TokenIssuer = %q, want %q", cfg.TokenIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
}

func TestLoad_SecretsRequired(t *testing.T) {
	os.Clearenv()
	os.Setenv("SESSION_SECRET", "only-session")
	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without TOKEN_SECRET")
	}

	os.Clearenv()
	os.Setenv("TOKEN_SECRET", "only-token")
	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without SESSION_SECRET")
	}
}

func TestLoad_BcryptCostRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"valid middle", "12", 12, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false}, // falls back to the default
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			setRequired(t)
			os.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestLifetimes(t *testing.T) {
	cfg := &Config{TokenTTL: "24h", SessionTTL: "48h"}
	if got := cfg.TokenLifetime(); got != 24*time.Hour {
		t.Errorf("TokenLifetime = %v, want 24h", got)
	}
	if got := cfg.SessionLifetime(); got != 48*time.Hour {
		t.Errorf("SessionLifetime = %v, want 48h", got)
	}

	cfg = &Config{TokenTTL: "garbage", SessionTTL: ""}
	if got := cfg.TokenLifetime(); got != 168*time.Hour {
		t.Errorf("TokenLifetime fallback = %v, want 168h", got)
	}
	if got := cfg.SessionLifetime(); got != 720*time.Hour {
		t.Errorf("SessionLifetime fallback = %v, want 720h", got)
	}
}
