package config

import "errors"

var (
	ErrReadingConfigFile        = errors.New("failed to read config file")
	ErrUnmarshallingConfig      = errors.New("failed to unmarshal config")
	ErrConfigFileMissing        = errors.New("config file not found")
	ErrInvalidWindowSize        = errors.New("pipeline windowSize must be at least 2")
	ErrInvalidBatchSize         = errors.New("pipeline batchSize must be between 1 and windowSize")
	ErrInvalidWorkers           = errors.New("pipeline workers must be positive")
	ErrInvalidChannelBufferSize = errors.New("pipeline channelBufferSize cannot be negative")
	ErrNoFactors                = errors.New("at least one factor must be configured")
	ErrInvalidFactor            = errors.New("invalid factor configuration")
	ErrInvalidThresholds        = errors.New("invalid factor thresholds")
)
