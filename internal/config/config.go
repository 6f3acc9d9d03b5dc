package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Portal PortalConfig `yaml:"portal" mapstructure:"portal"`
	Scrape ScrapeConfig `yaml:"scrape" mapstructure:"scrape"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// PortalConfig configures how the disclosure portal is reached.
type PortalConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
}

// ScrapeConfig configures the worker pool and proxy rotation.
type ScrapeConfig struct {
	Workers    int    `yaml:"workers" mapstructure:"workers"`
	UseProxies bool   `yaml:"use_proxies" mapstructure:"use_proxies"`
	ProxyFile  string `yaml:"proxy_file" mapstructure:"proxy_file"`
}

// OutputConfig configures where results are written.
type OutputConfig struct {
	Dir      string   `yaml:"dir" mapstructure:"dir"`
	Basename string   `yaml:"basename" mapstructure:"basename"`
	Formats  []string `yaml:"formats" mapstructure:"formats"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MaxWorkers bounds the worker pool size.
const MaxWorkers = 10

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("portal.base_url", "https://edge.pse.com.ph")
	v.SetDefault("portal.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("portal.timeout_secs", 30)
	v.SetDefault("portal.max_retries", 3)
	v.SetDefault("portal.rate_per_sec", 4.0)
	v.SetDefault("portal.burst", 4)
	v.SetDefault("scrape.workers", 5)
	v.SetDefault("scrape.use_proxies", false)
	v.SetDefault("scrape.proxy_file", "proxies.txt")
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.basename", "pse_data")
	v.SetDefault("output.formats", []string{"csv"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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

	return &cfg, nil
}

// Validate checks value ranges that would otherwise fail late in a run.
func (c *Config) Validate() error {
	var errs []string
	if c.Portal.BaseURL == "" {
		errs = append(errs, "portal.base_url is required")
	}
	if c.Scrape.Workers < 1 || c.Scrape.Workers > MaxWorkers {
		errs = append(errs, "scrape.workers must be between 1 and 10")
	}
	if c.Portal.MaxRetries < 0 {
		errs = append(errs, "portal.max_retries must be >= 0")
	}
	if c.Portal.RatePerSec < 0 {
		errs = append(errs, "portal.rate_per_sec must be >= 0")
	}
	for _, f := range c.Output.Formats {
		switch strings.ToLower(f) {
		case "csv", "json", "xlsx":
		default:
			errs = append(errs, "output.formats: unsupported format "+f)
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
