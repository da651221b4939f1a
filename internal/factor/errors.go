package factor

import "errors"

var (
	ErrUnknownKind     = errors.New("unknown factor kind")
	ErrUnknownSeries   = errors.New("unknown series")
	ErrDuplicateFactor = errors.New("duplicate factor name")
	ErrInvalidFactor   = errors.New("invalid factor")
	ErrMissingSeries   = errors.New("series missing from input")
	ErrUpdateFailed    = errors.New("factor update failed")
)
