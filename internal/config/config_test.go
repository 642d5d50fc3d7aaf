package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
terminal:
  host: 192.168.1.50
  username: admin
  password: secret12
  target_name: DS-K1T341AM
cloud:
  endpoint: https://attendance.example.com/api/v1/attendance
  api_key: tok-123
  school_code: GHS-042
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatesync.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Terminal.Host != "192.168.1.50" {
		t.Errorf("Host = %q", cfg.Terminal.Host)
	}
	if cfg.Terminal.TargetName != "DS-K1T341AM" {
		t.Errorf("TargetName = %q", cfg.Terminal.TargetName)
	}
	if cfg.Cloud.SchoolCode != "GHS-042" {
		t.Errorf("SchoolCode = %q", cfg.Cloud.SchoolCode)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Terminal.Port != 80 {
		t.Errorf("Port = %d, want 80", cfg.Terminal.Port)
	}
	if cfg.Terminal.PageSize != 30 {
		t.Errorf("PageSize = %d, want 30", cfg.Terminal.PageSize)
	}
	if !cfg.Terminal.FetchAll {
		t.Error("FetchAll = false, want default true")
	}
	if cfg.Discovery.Concurrency != 50 {
		t.Errorf("Concurrency = %d, want 50", cfg.Discovery.Concurrency)
	}
	if cfg.Cloud.Attempts != 5 {
		t.Errorf("Attempts = %d, want 5", cfg.Cloud.Attempts)
	}
	if cfg.Cloud.RetryDelay != 3*time.Second {
		t.Errorf("RetryDelay = %v, want 3s", cfg.Cloud.RetryDelay)
	}
	if cfg.CheckoutAfter != "14:30" {
		t.Errorf("CheckoutAfter = %q, want 14:30", cfg.CheckoutAfter)
	}
	if cfg.SyncInterval != 15*time.Minute {
		t.Errorf("SyncInterval = %v, want 15m", cfg.SyncInterval)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GATESYNC_TERMINAL_PASSWORD", "from-env")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Terminal.Password != "from-env" {
		t.Errorf("Password = %q, want env override", cfg.Terminal.Password)
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	body := strings.Replace(validYAML, "  password: secret12\n", "", 1)
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Error("Load without password succeeded, want error")
	}
}

func TestLoadMissingEndpoint(t *testing.T) {
	body := strings.Replace(validYAML,
		"  endpoint: https://attendance.example.com/api/v1/attendance\n", "", 1)
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Error("Load without cloud endpoint succeeded, want error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load(absent file) succeeded, want error")
	}
}

func TestCheckout(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"14:30", 14, 30, false},
		{"00:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{"9:05", 9, 5, false},
		{"24:00", 0, 0, true},
		{"14:60", 0, 0, true},
		{"1430", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		cfg := &Config{CheckoutAfter: tt.in}
		hour, minute, err := cfg.Checkout()
		if (err != nil) != tt.wantErr {
			t.Errorf("Checkout(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (hour != tt.hour || minute != tt.minute) {
			t.Errorf("Checkout(%q) = (%d, %d), want (%d, %d)", tt.in, hour, minute, tt.hour, tt.minute)
		}
	}
}

func TestSaveTerminalHost(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := cfg.SaveTerminalHost("192.168.1.77"); err != nil {
		t.Fatalf("SaveTerminalHost: %v", err)
	}
	if cfg.Terminal.Host != "192.168.1.77" {
		t.Errorf("in-memory Host = %q, want updated", cfg.Terminal.Host)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Terminal.Host != "192.168.1.77" {
		t.Errorf("persisted Host = %q, want %q", reloaded.Terminal.Host, "192.168.1.77")
	}
	// Other settings must survive the rewrite.
	if reloaded.Terminal.Username != "admin" || reloaded.Cloud.SchoolCode != "GHS-042" {
		t.Error("rewrite dropped unrelated settings")
	}
}

func TestSaveTerminalHostWithoutFile(t *testing.T) {
	cfg := &Config{}
	if err := cfg.SaveTerminalHost("10.0.0.9"); err != nil {
		t.Fatalf("SaveTerminalHost without path: %v", err)
	}
	if cfg.Terminal.Host != "10.0.0.9" {
		t.Errorf("Host = %q, want in-memory update", cfg.Terminal.Host)
	}
}
