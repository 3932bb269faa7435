package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"finsync/internal/models"
	"finsync/internal/retry"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig           `yaml:"app"`
	Aggregator AggregatorConfig    `yaml:"aggregator"`
	Database   DatabaseConfig      `yaml:"database"`
	Redis      RedisConfig         `yaml:"redis"`
	Sync       SyncConfig          `yaml:"sync"`
	Monitoring MonitoringConfig    `yaml:"monitoring"`
	Logging    LoggingConfig       `yaml:"logging"`
	API        APIConfig           `yaml:"api"`
	Exports    ExportConfig        `yaml:"exports"`
	Settings   models.SyncSettings `yaml:"settings"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// AggregatorConfig points at the upstream account aggregation service. The
// client authenticates with OAuth2 client credentials.
type AggregatorConfig struct {
	BaseURL      string   `yaml:"base_url"`
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Timeout      Duration `yaml:"timeout"`
	RPS          float64  `yaml:"rps"`
	Burst        int      `yaml:"burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address    string   `yaml:"address"`
	Password   string   `yaml:"password"`
	DB         int      `yaml:"db"`
	PoolSize   int      `yaml:"pool_size"`
	StatusTTL  Duration `yaml:"status_ttl"`
	MaxReports int64    `yaml:"max_reports"`
}

type SyncConfig struct {
	TickInterval     Duration            `yaml:"tick_interval"`
	ExecutionTimeout Duration            `yaml:"execution_timeout"`
	GateRecheck      Duration            `yaml:"gate_recheck"`
	Intervals        map[string]Duration `yaml:"intervals"`
	Retry            RetryConfig         `yaml:"retry"`

	// ResourceStateFile, when set, is polled for a JSON device resource
	// snapshot (battery, charging, network). Without it the daemon assumes a
	// mains-powered host on wifi.
	ResourceStateFile    string   `yaml:"resource_state_file"`
	ResourcePollInterval Duration `yaml:"resource_poll_interval"`
}

type RetryConfig struct {
	MaxRetries     int      `yaml:"max_retries"`
	InitialDelay   Duration `yaml:"initial_delay"`
	MaxDelay       Duration `yaml:"max_delay"`
	BackoffFactor  float64  `yaml:"backoff_factor"`
	JitterFraction float64  `yaml:"jitter_fraction"`
}

// Policy converts the section into a retry policy, falling back to the
// defaults for any zero field.
func (r RetryConfig) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	if r.MaxRetries > 0 {
		p.MaxRetries = r.MaxRetries
	}
	if r.InitialDelay > 0 {
		p.InitialDelay = time.Duration(r.InitialDelay)
	}
	if r.MaxDelay > 0 {
		p.MaxDelay = time.Duration(r.MaxDelay)
	}
	if r.BackoffFactor > 0 {
		p.BackoffFactor = r.BackoffFactor
	}
	if r.JitterFraction > 0 {
		p.JitterFraction = r.JitterFraction
	}
	return p
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment already set wins
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Expand environment variables referenced in the YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Aggregator.BaseURL == "" {
		return errors.New("aggregator base_url is required")
	}
	if c.Aggregator.ClientID == "" || c.Aggregator.ClientSecret == "" {
		return errors.New("aggregator client credentials are required")
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	return ValidateIntervals(c.Sync.Intervals)
}

// ValidateIntervals rejects unknown categories and non-positive intervals.
func ValidateIntervals(intervals map[string]Duration) error {
	for name, d := range intervals {
		if !models.ValidCategory(models.TaskCategory(name)) {
			return fmt.Errorf("unknown sync category %q", name)
		}
		if d <= 0 {
			return fmt.Errorf("sync interval for %q must be positive", name)
		}
	}
	return nil
}

// Interval returns the configured base interval for a category, or the
// built-in default when the config omits it.
func (c *Config) Interval(category models.TaskCategory) time.Duration {
	if d, ok := c.Sync.Intervals[string(category)]; ok {
		return d.Std()
	}
	return models.DefaultInterval(category)
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.StatusTTL == 0 {
		c.Redis.StatusTTL = Duration(time.Hour)
	}
	if c.Redis.MaxReports == 0 {
		c.Redis.MaxReports = 100
	}
	if c.Aggregator.Timeout == 0 {
		c.Aggregator.Timeout = Duration(30 * time.Second)
	}
	if c.Aggregator.RPS == 0 {
		c.Aggregator.RPS = 5
	}
	if c.Aggregator.Burst == 0 {
		c.Aggregator.Burst = 10
	}
	if c.Sync.TickInterval == 0 {
		c.Sync.TickInterval = Duration(time.Second)
	}
	if c.Sync.ExecutionTimeout == 0 {
		c.Sync.ExecutionTimeout = Duration(models.DefaultExecutionTimeout)
	}
	if c.Sync.GateRecheck == 0 {
		c.Sync.GateRecheck = Duration(models.GateRecheckInterval)
	}

	// Settings defaults
	def := models.DefaultSyncSettings()
	if c.Settings.LowBatteryThreshold == 0 {
		c.Settings.LowBatteryThreshold = def.LowBatteryThreshold
		c.Settings.PauseOnLowBattery = def.PauseOnLowBattery
	}
	if c.Settings.MaxConcurrentSyncs == 0 {
		c.Settings.MaxConcurrentSyncs = def.MaxConcurrentSyncs
	}
}
