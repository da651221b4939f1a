package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/sanspareilsmyn/factorlens/internal/factor"
)

const (
	defaultKafkaGroupID      = "factorlens-default-group"
	defaultWindowSize        = 20
	defaultBatchSize         = 1
	defaultHalfLife          = 10.0
	defaultWorkers           = 4
	defaultChannelBufferSize = 100
	defaultMetricsListenAddr = ":2112"
	defaultLogLevel          = "info"
	defaultLogFormat         = "console"
	defaultLogFileEnabled    = false
	defaultLogDirectory      = "log"
	defaultLogFilename       = "factorlens.log"
	defaultLogMaxSizeMB      = 100
	defaultLogMaxBackups     = 3
	defaultLogMaxAgeDays     = 7
	defaultLogCompress       = false

	// Environment variable prefix
	envPrefix = "FACTORLENS"
)

type Config struct {
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Factors  []FactorConfig `mapstructure:"factors"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type KafkaConfig struct {
	Brokers   []string `mapstructure:"brokers"`
	Topic     string   `mapstructure:"topic"`
	GroupID   string   `mapstructure:"groupID"`
	FromStart bool     `mapstructure:"fromStart"` // new groups begin at the oldest offset
}

// PipelineConfig sizes are counted in steps, not wall-clock time.
type PipelineConfig struct {
	WindowSize        int     `mapstructure:"windowSize"`
	BatchSize         int     `mapstructure:"batchSize"`
	HalfLife          float64 `mapstructure:"halfLife"` // <= 0 weights the window evenly
	Workers           int     `mapstructure:"workers"`
	ChannelBufferSize int     `mapstructure:"channelBufferSize"`
}

type FactorConfig struct {
	Name       string     `mapstructure:"name"`
	Kind       string     `mapstructure:"kind"`   // e.g., "volatility", "ewm_beta"
	Series     string     `mapstructure:"series"` // ret, cap or vol
	Thresholds Thresholds `mapstructure:"thresholds"`
}

type MetricsConfig struct {
	ListenAddr string `mapstructure:"listenAddr"` // empty disables the endpoint
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	FileLoggingEnabled bool   `mapstructure:"fileLoggingEnabled"`
	Directory          string `mapstructure:"directory"`
	Filename           string `mapstructure:"filename"`
	MaxSize            int    `mapstructure:"maxSize"`    // Max size in MB
	MaxBackups         int    `mapstructure:"maxBackups"` // Max backup files
	MaxAge             int    `mapstructure:"maxAge"`     // Max days to retain
	Compress           bool   `mapstructure:"compress"`
}

type Thresholds struct {
	Min *float64 `mapstructure:"min"`
	Max *float64 `mapstructure:"max"`
}

// Load initializes viper, reads config, applies defaults, unmarshals, and validates.
// Kafka settings are checked by the consumer, so a file without them still
// loads for offline replay.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	configureViper(v, configPath)

	setDefaults(v)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshallingConfig, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FactorSpecs converts the configured factors into engine specs.
func (c *Config) FactorSpecs() ([]factor.Spec, error) {
	specs := make([]factor.Spec, 0, len(c.Factors))
	for _, f := range c.Factors {
		kind, err := factor.ParseKind(f.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidFactor, f.Name, err)
		}
		series, err := factor.ParseSeries(f.Series)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidFactor, f.Name, err)
		}
		specs = append(specs, factor.Spec{Name: f.Name, Kind: kind, Series: series})
	}
	if err := factor.ValidateSpecs(specs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFactor, err)
	}
	return specs, nil
}

func configureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("kafka.groupID", defaultKafkaGroupID)
	v.SetDefault("pipeline.windowSize", defaultWindowSize)
	v.SetDefault("pipeline.batchSize", defaultBatchSize)
	v.SetDefault("pipeline.halfLife", defaultHalfLife)
	v.SetDefault("pipeline.workers", defaultWorkers)
	v.SetDefault("pipeline.channelBufferSize", defaultChannelBufferSize)
	v.SetDefault("metrics.listenAddr", defaultMetricsListenAddr)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("log.fileLoggingEnabled", defaultLogFileEnabled)
	v.SetDefault("log.directory", defaultLogDirectory)
	v.SetDefault("log.filename", defaultLogFilename)
	v.SetDefault("log.maxSize", defaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", defaultLogMaxBackups)
	v.SetDefault("log.maxAge", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", defaultLogCompress)
}

func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return ErrConfigFileMissing
		}
		return fmt.Errorf("%w: %w", ErrReadingConfigFile, err)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	p := cfg.Pipeline
	if p.WindowSize < 2 {
		return fmt.Errorf("%w: got %d", ErrInvalidWindowSize, p.WindowSize)
	}
	if p.BatchSize < 1 || p.BatchSize > p.WindowSize {
		return fmt.Errorf("%w: got %d for window %d", ErrInvalidBatchSize, p.BatchSize, p.WindowSize)
	}
	if p.Workers < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, p.Workers)
	}
	if p.ChannelBufferSize < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidChannelBufferSize, p.ChannelBufferSize)
	}

	if len(cfg.Factors) == 0 {
		return ErrNoFactors
	}
	if _, err := cfg.FactorSpecs(); err != nil {
		return err
	}
	for _, f := range cfg.Factors {
		t := f.Thresholds
		if t.Min != nil && t.Max != nil && *t.Min > *t.Max {
			return fmt.Errorf("%w: %q has min %v above max %v", ErrInvalidThresholds, f.Name, *t.Min, *t.Max)
		}
	}
	return nil
}
