package ring

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid ring buffer argument")
	ErrOutOfRange      = errors.New("ring buffer index out of range")
)
