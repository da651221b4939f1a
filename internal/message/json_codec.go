package message

import (
	"fmt"

	"github.com/goccy/go-json"
)

// ParseTick decodes a JSON tick and checks that it carries a usable step.
func ParseTick(data []byte) (Tick, error) {
	var tick Tick
	if err := json.Unmarshal(data, &tick); err != nil {
		return Tick{}, fmt.Errorf("%w: %w", ErrJSONUnmarshalFailed, err)
	}
	if tick.Step == 0 {
		return Tick{}, fmt.Errorf("%w: step must be at least 1", ErrInvalidTick)
	}
	if len(tick.Instruments) == 0 {
		return Tick{}, fmt.Errorf("%w: step %d has no instruments", ErrInvalidTick, tick.Step)
	}
	return tick, nil
}

// EncodeTick is the inverse of ParseTick.
func EncodeTick(tick Tick) ([]byte, error) {
	data, err := json.Marshal(tick)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSONMarshalFailed, err)
	}
	return data, nil
}
