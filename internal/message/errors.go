package message

import "errors"

var (
	ErrJSONUnmarshalFailed = errors.New("failed to unmarshal JSON tick")
	ErrJSONMarshalFailed   = errors.New("failed to marshal JSON tick")
	ErrInvalidTick         = errors.New("invalid tick")
)
