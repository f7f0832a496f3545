// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration, loaded from config.yaml
// and AUTOAPPLY_* environment variables via viper.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Network   NetworkConfig   `mapstructure:"network" yaml:"network"`
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection"`
	Mapper    MapperConfig    `mapstructure:"mapper" yaml:"mapper"`
	Filler    FillerConfig    `mapstructure:"filler" yaml:"filler"`
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
}

// LoggerConfig configures the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig configures the headless browser process.
type BrowserConfig struct {
	Headless  bool     `mapstructure:"headless" yaml:"headless"`
	UserAgent string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args      []string `mapstructure:"args" yaml:"args"`
}

// NetworkConfig bounds every remote round trip. Exceeding a bound fails the
// phase with a timeout kind; it is never silently swallowed.
type NetworkConfig struct {
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait       time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	EvaluationTimeout  time.Duration `mapstructure:"evaluation_timeout" yaml:"evaluation_timeout"`
	SettlePollInterval time.Duration `mapstructure:"settle_poll_interval" yaml:"settle_poll_interval"`
}

// DetectionConfig bounds the detection operation.
type DetectionConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// MapperConfig tunes the field-to-candidate mapping heuristics.
type MapperConfig struct {
	// MinConfidence is the minimum token-overlap score a candidate attribute
	// must reach before it is bound to a field. Ties and lower scores leave
	// the field unmapped.
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
}

// FillerConfig configures fill and submission behavior.
type FillerConfig struct {
	ScreenshotDir     string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	FieldRetryDelay   time.Duration `mapstructure:"field_retry_delay" yaml:"field_retry_delay"`
	PostSubmitTimeout time.Duration `mapstructure:"post_submit_timeout" yaml:"post_submit_timeout"`
}

// ProfilingConfig toggles phase-level instrumentation.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// DatabaseConfig configures the optional PostgreSQL repository. When DSN is
// empty the engine runs on the in-memory stores.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			ServiceName: "autoapply",
			MaxSize:     50,
			MaxBackups:  3,
			MaxAge:      14,
		},
		Browser: BrowserConfig{
			Headless: true,
		},
		Network: NetworkConfig{
			NavigationTimeout:  30 * time.Second,
			PostLoadWait:       2 * time.Second,
			EvaluationTimeout:  10 * time.Second,
			SettlePollInterval: 150 * time.Millisecond,
		},
		Detection: DetectionConfig{
			Timeout: 45 * time.Second,
		},
		Mapper: MapperConfig{
			MinConfidence: 2.0,
		},
		Filler: FillerConfig{
			ScreenshotDir:     "./screenshots",
			FieldRetryDelay:   500 * time.Millisecond,
			PostSubmitTimeout: 10 * time.Second,
		},
		Profiling: ProfilingConfig{
			Enabled: true,
		},
	}
}

// BindDefaults registers every default on the viper instance so that partial
// config files and env overrides merge with, rather than replace, them.
func BindDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.format", d.Logger.Format)
	v.SetDefault("logger.service_name", d.Logger.ServiceName)
	v.SetDefault("logger.max_size", d.Logger.MaxSize)
	v.SetDefault("logger.max_backups", d.Logger.MaxBackups)
	v.SetDefault("logger.max_age", d.Logger.MaxAge)
	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("network.navigation_timeout", d.Network.NavigationTimeout)
	v.SetDefault("network.post_load_wait", d.Network.PostLoadWait)
	v.SetDefault("network.evaluation_timeout", d.Network.EvaluationTimeout)
	v.SetDefault("network.settle_poll_interval", d.Network.SettlePollInterval)
	v.SetDefault("detection.timeout", d.Detection.Timeout)
	v.SetDefault("mapper.min_confidence", d.Mapper.MinConfidence)
	v.SetDefault("filler.screenshot_dir", d.Filler.ScreenshotDir)
	v.SetDefault("filler.field_retry_delay", d.Filler.FieldRetryDelay)
	v.SetDefault("filler.post_submit_timeout", d.Filler.PostSubmitTimeout)
	v.SetDefault("profiling.enabled", d.Profiling.Enabled)
}

// Load reads the configuration from the given file (or the working directory
// when cfgFile is empty), applies environment overrides, and unmarshals it.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("AUTOAPPLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
