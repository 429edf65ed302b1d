package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Source SourceConfig `yaml:"source" mapstructure:"source"`
	Link   LinkConfig   `yaml:"link" mapstructure:"link"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`

	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// SourceConfig configures where extracts are read from.
type SourceConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=postgres csv xlsx"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url" validate:"required_if=Driver postgres"`
	// Dir holds one file per table ("kld.history.csv") for file drivers.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// BaseURL, when set, fetches the same file names over HTTP instead of Dir.
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gt=0"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second" validate:"gte=0"`
	// Zipped expects each CSV extract as a single-file "<table>.csv.zip".
	Zipped bool `yaml:"zipped" mapstructure:"zipped"`
}

// LinkConfig configures the linkage engine.
type LinkConfig struct {
	NamePercentile   float64           `yaml:"name_percentile" mapstructure:"name_percentile" validate:"gte=0,lte=1"`
	SecondaryPool    string            `yaml:"secondary_pool" mapstructure:"secondary_pool" validate:"oneof=stage primary"`
	AugustCutoffYear int               `yaml:"august_cutoff_year" mapstructure:"august_cutoff_year"`
	MissingCUSIP     []string          `yaml:"missing_cusip" mapstructure:"missing_cusip"`
	MissingTicker    []string          `yaml:"missing_ticker" mapstructure:"missing_ticker"`
	ExcludedTargets  []string          `yaml:"excluded_targets" mapstructure:"excluded_targets"`
	Manual           map[string]string `yaml:"manual_corrections" mapstructure:"manual_corrections"`
	// CorrectionsFile is an optional YAML file overriding ExcludedTargets and
	// Manual.
	CorrectionsFile string `yaml:"corrections_file" mapstructure:"corrections_file"`
}

// OutputConfig configures link table and merge output.
type OutputConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	Format    string `yaml:"format" mapstructure:"format" validate:"oneof=csv xlsx"`
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter" validate:"len=1"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres none"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port" validate:"gt=0,lte=65535"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures the background alert checker of the server.
type MonitoringConfig struct {
	Enabled             bool   `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL          string `yaml:"webhook_url" mapstructure:"webhook_url" validate:"omitempty,url"`
	CheckIntervalSecs   int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs" validate:"gte=0"`
	LookbackWindowHours int    `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours" validate:"gt=0"`
	// FailureRateThreshold alerts when failed/finished runs exceed it.
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold" validate:"gte=0,lte=1"`
	// UnmatchedRateThreshold alerts when the latest link table leaves more
	// than this share of source entities unmatched. Zero disables the check.
	UnmatchedRateThreshold float64 `yaml:"unmatched_rate_threshold" mapstructure:"unmatched_rate_threshold" validate:"gte=0,lte=1"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// Corrections is the layout of the corrections file.
type Corrections struct {
	ExcludedTargets []string          `yaml:"excluded_targets"`
	Manual          map[string]string `yaml:"manual_corrections"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("XLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.driver", "csv")
	v.SetDefault("source.database_url", "")
	v.SetDefault("source.dir", "data")
	v.SetDefault("source.base_url", "")
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.timeout_secs", 300)
	v.SetDefault("source.rate_per_second", 2)
	v.SetDefault("source.zipped", false)
	v.SetDefault("link.name_percentile", 0.10)
	v.SetDefault("link.secondary_pool", "stage")
	v.SetDefault("link.august_cutoff_year", 2000)
	v.SetDefault("link.missing_cusip", []string{"NA", "0", "#N/A"})
	v.SetDefault("link.missing_ticker", []string{"NA", "#N/A"})
	v.SetDefault("link.excluded_targets", []string{"00030710"})
	v.SetDefault("link.manual_corrections", map[string]string{
		"18772103": "01877210",
		"01877230": "01877210",
		"886309":   "00088630",
	})
	v.SetDefault("link.corrections_file", "")
	v.SetDefault("output.path", "kld_crsp_link.csv")
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.delimiter", ",")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "xlink.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.unmatched_rate_threshold", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Link.CorrectionsFile != "" {
		c, err := LoadCorrections(cfg.Link.CorrectionsFile)
		if err != nil {
			return nil, err
		}
		if c.ExcludedTargets != nil {
			cfg.Link.ExcludedTargets = c.ExcludedTargets
		}
		if c.Manual != nil {
			cfg.Link.Manual = c.Manual
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return eris.Wrap(err, "config: validate")
	}
	return nil
}

// LoadCorrections reads a corrections file.
func LoadCorrections(path string) (*Corrections, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read corrections file %s", path)
	}
	var c Corrections
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrapf(err, "config: parse corrections file %s", path)
	}
	for k, v := range c.Manual {
		if k == v {
			return nil, eris.Errorf("config: corrections file %s maps %s to itself", path, k)
		}
	}
	return &c, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
