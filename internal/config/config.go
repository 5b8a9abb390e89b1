package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DateLayout is the layout accepted for start and stop dates.
const DateLayout = "2006-01-02"

// Config holds all configuration for an acquisition run
type Config struct {
	Acquisition AcquisitionConfig `mapstructure:"acquisition"`
	API         APIConfig         `mapstructure:"api"`
	Store       StoreConfig       `mapstructure:"store"`
	Writer      WriterConfig      `mapstructure:"writer"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type AcquisitionConfig struct {
	State        string `mapstructure:"state"`
	SensorIDs    []int  `mapstructure:"sensor_ids"`
	SensorsToGet int    `mapstructure:"sensors_to_get"`
	Workers      int    `mapstructure:"workers"`
	SegmentDays  int    `mapstructure:"segment_days"`
	SegmentWeeks int    `mapstructure:"segment_weeks"`
	StartDate    string `mapstructure:"start_date"`
	StopDate     string `mapstructure:"stop_date"`
}

type APIConfig struct {
	URL       string        `mapstructure:"url"`
	Key       string        `mapstructure:"key"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheSize int           `mapstructure:"cache_size"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type WriterConfig struct {
	IdleInterval time.Duration `mapstructure:"idle_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ConfigError reports an invalid or missing configuration value. It is
// returned before any fetching starts.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// Load reads configuration from file and environment variables and
// validates it.
//
// ${VAR} references in the file are expanded first, then AIRHIST_* variables
// override individual keys (AIRHIST_ACQUISITION_WORKERS=8).
func Load(path string) (*Config, error) {
	config, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Read is Load without validation. Callers check the sections they use.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AIRHIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	expanded := os.ExpandEnv(string(data))
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// keys lists every configuration key that can be set from the environment.
var keys = []string{
	"acquisition.state",
	"acquisition.sensor_ids",
	"acquisition.sensors_to_get",
	"acquisition.workers",
	"acquisition.segment_days",
	"acquisition.segment_weeks",
	"acquisition.start_date",
	"acquisition.stop_date",
	"api.url",
	"api.key",
	"api.rate_limit",
	"api.rate_burst",
	"api.timeout",
	"api.cache_size",
	"store.driver",
	"store.path",
	"writer.idle_interval",
	"logging.level",
	"logging.format",
	"metrics.addr",
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	// defaults are all plain scalars; decoding them cannot fail
	_ = v.Unmarshal(&config)
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("acquisition.workers", 4)
	v.SetDefault("acquisition.segment_weeks", 2)

	v.SetDefault("api.rate_limit", 5.0)
	v.SetDefault("api.rate_burst", 10)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.cache_size", 1000)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "airhist.db")

	v.SetDefault("writer.idle_interval", time.Millisecond)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks every value the run depends on.
func (c *Config) Validate() error {
	a := c.Acquisition
	if a.Workers <= 0 {
		return &ConfigError{Key: "acquisition.workers", Reason: "must be positive"}
	}
	if a.SegmentDays < 0 || a.SegmentWeeks < 0 {
		return &ConfigError{Key: "acquisition.segment_days", Reason: "segment width must not be negative"}
	}
	if a.SegmentDays == 0 && a.SegmentWeeks == 0 {
		return &ConfigError{Key: "acquisition.segment_days", Reason: "segment width must be positive"}
	}
	if a.SensorsToGet < 0 {
		return &ConfigError{Key: "acquisition.sensors_to_get", Reason: "must not be negative"}
	}
	if len(a.SensorIDs) == 0 && a.State == "" {
		return &ConfigError{Key: "acquisition.state", Reason: "required when sensor_ids is empty"}
	}
	if _, _, err := a.Window(); err != nil {
		return err
	}

	if c.API.URL == "" {
		return &ConfigError{Key: "api.url", Reason: "required"}
	}
	if c.API.RateLimit <= 0 {
		return &ConfigError{Key: "api.rate_limit", Reason: "must be positive"}
	}
	if c.API.CacheSize <= 0 {
		return &ConfigError{Key: "api.cache_size", Reason: "must be positive"}
	}

	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.Writer.IdleInterval <= 0 {
		return &ConfigError{Key: "writer.idle_interval", Reason: "must be positive"}
	}
	return nil
}

// Validate checks the store section only.
func (s StoreConfig) Validate() error {
	switch s.Driver {
	case "sqlite", "postgres":
	default:
		return &ConfigError{Key: "store.driver", Reason: fmt.Sprintf("unsupported driver %q", s.Driver)}
	}
	if s.Path == "" {
		return &ConfigError{Key: "store.path", Reason: "required"}
	}
	return nil
}

// Window returns the start and stop dates.
func (a AcquisitionConfig) Window() (time.Time, time.Time, error) {
	start, err := parseDate("acquisition.start_date", a.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	stop, err := parseDate("acquisition.stop_date", a.StopDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, stop, nil
}

// SegmentWidth returns the configured window width. Days take precedence
// over weeks when both are set.
func (a AcquisitionConfig) SegmentWidth() time.Duration {
	if a.SegmentDays > 0 {
		return time.Duration(a.SegmentDays) * 24 * time.Hour
	}
	return time.Duration(a.SegmentWeeks) * 7 * 24 * time.Hour
}

func parseDate(key, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &ConfigError{Key: key, Reason: "required"}
	}
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &ConfigError{Key: key, Reason: fmt.Sprintf("invalid date %q", value)}
	}
	return t.UTC(), nil
}
