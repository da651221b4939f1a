package pipeline

import "errors"

var (
	ErrInvalidKafkaConfig       = errors.New("invalid Kafka configuration provided")
	ErrKafkaFetchFailed         = errors.New("failed to fetch message from Kafka")
	ErrInvalidPipelineConfig    = errors.New("invalid pipeline configuration")
	ErrReplayReadFailed         = errors.New("failed to read replay file")
	ErrConsumerCreationFailed   = errors.New("failed to create consumer")
	ErrCalculatorCreationFailed = errors.New("failed to create calculator")
	ErrConsumerRunFailed        = errors.New("consumer component failed")
	ErrCalculatorRunFailed      = errors.New("calculator component failed")
	ErrAlerterRunFailed         = errors.New("alerter component failed")
)
