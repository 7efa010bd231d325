package democonfig

import "testing"

func TestLoadDefaultsWhenNoConfigFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Demo.DefaultBackend != "ring" {
		t.Fatalf("Demo.DefaultBackend = %q, want %q", cfg.Demo.DefaultBackend, "ring")
	}
	if cfg.Telemetry.Enabled {
		t.Fatal("Telemetry.Enabled should default to false")
	}
}

func TestLoadExplicitPathNotFoundFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/scgdemo.yaml")
	if err != nil {
		t.Fatalf("Load with a missing explicit path should fall back to defaults, got error: %v", err)
	}
	if cfg.Demo.DefaultBackend != "ring" {
		t.Fatalf("Demo.DefaultBackend = %q, want %q", cfg.Demo.DefaultBackend, "ring")
	}
}

func TestLoadFromReaderOverridesDefaults(t *testing.T) {
	yaml := []byte(`
demo:
  default_backend: pool
  data_dir: /tmp/scgdemo
log:
  level: debug
telemetry:
  enabled: true
  service_name: custom-service
`)
	cfg, err := LoadFromReader("yaml", yaml)
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Demo.DefaultBackend != "pool" {
		t.Fatalf("Demo.DefaultBackend = %q, want %q", cfg.Demo.DefaultBackend, "pool")
	}
	if cfg.Demo.DataDir != "/tmp/scgdemo" {
		t.Fatalf("Demo.DataDir = %q, want %q", cfg.Demo.DataDir, "/tmp/scgdemo")
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if !cfg.Telemetry.Enabled {
		t.Fatal("Telemetry.Enabled should be true")
	}
	if cfg.Telemetry.ServiceName != "custom-service" {
		t.Fatalf("Telemetry.ServiceName = %q, want %q", cfg.Telemetry.ServiceName, "custom-service")
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := &EngineDemoConfig{
		Log:  LogConfig{Level: "info"},
		Demo: DemoConfig{DefaultBackend: "bogus"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject an unknown default_backend")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := &EngineDemoConfig{
		Log:  LogConfig{Level: "verbose"},
		Demo: DemoConfig{DefaultBackend: "ring"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject an unknown log level")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := &EngineDemoConfig{
		Log:  LogConfig{Level: "warn"},
		Demo: DemoConfig{DefaultBackend: "pool"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
