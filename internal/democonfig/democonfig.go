// Package democonfig is the demo/process-level configuration surface of
// SPEC_FULL.md #10.3: log level, default backend kind for the bundled demo
// CLI, telemetry toggles, and the on-disk directory the LSM-style demo
// scenario reads/writes under. It reuses the teacher's pkg/config
// viper-based loader pattern (Load/LoadFromReader/setDefaults/Validate
// with mapstructure tags), trimmed to the fields scgdemo actually needs.
//
// This is deliberately a separate surface from internal/envconfig's
// per-graph DEPTH_/QUEUE_/UTHREADS_ scan (SPEC_FULL.md #10.3 explains why
// the two are not unified).
package democonfig

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// EngineDemoConfig holds scgdemo's process-level settings.
type EngineDemoConfig struct {
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Demo      DemoConfig      `mapstructure:"demo"`
}

// LogConfig mirrors the teacher's pkg/config.LogConfig shape.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig toggles the OpenTelemetry wiring described in
// SPEC_FULL.md #11.
type TelemetryConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint   string `mapstructure:"endpoint"`
}

// DemoConfig holds the settings specific to the bundled scenario runner.
type DemoConfig struct {
	DefaultBackend string `mapstructure:"default_backend"` // "ring" or "pool"
	DataDir        string `mapstructure:"data_dir"`
}

// Load reads configuration from configPath, falling back to defaults when
// the file is absent (the teacher's exact Load behavior).
func Load(configPath string) (*EngineDemoConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("scgdemo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// no config file: defaults only
		} else if os.IsNotExist(err) {
			// explicit path didn't exist: defaults only
		} else {
			return nil, fmt.Errorf("democonfig: failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg EngineDemoConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("democonfig: failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("democonfig: validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadFromReader loads configuration from in-memory content, for tests.
func LoadFromReader(configType string, content []byte) (*EngineDemoConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("democonfig: failed to read config: %w", err)
	}
	var cfg EngineDemoConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("democonfig: failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "scgdemo")
	v.SetDefault("telemetry.endpoint", "localhost:4317")

	v.SetDefault("demo.default_backend", "ring")
	v.SetDefault("demo.data_dir", "./scgdemo-data")
}

// Validate checks the loaded configuration for obviously invalid values.
func (c *EngineDemoConfig) Validate() error {
	switch c.Demo.DefaultBackend {
	case "ring", "pool":
	default:
		return fmt.Errorf("demo.default_backend must be \"ring\" or \"pool\", got %q", c.Demo.DefaultBackend)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug/info/warn/error, got %q", c.Log.Level)
	}
	return nil
}
