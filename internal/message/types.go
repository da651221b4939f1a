package message

import (
	"fmt"
	"time"
)

// Tick is one step of market data: every instrument's fields observed at the
// same step. Steps are the engine's update versions, so they start at 1 and
// must increase.
type Tick struct {
	Step        uint64            `json:"step"`
	Timestamp   time.Time         `json:"timestamp"`
	Instruments map[string]Fields `json:"instruments"`
}

// Fields holds one instrument's values for a step, keyed by series name
// ("ret", "cap", "vol"). A missing key and an explicit null both mean the
// value was not observed.
type Fields map[string]interface{}

// GetFloat64 retrieves a float64 value for a given key.
// Handles missing keys, null values, and potential integer-to-float conversion.
func (f Fields) GetFloat64(key string) (float64, bool) {
	val, exists := f[key]
	if !exists || val == nil {
		return 0, false
	}

	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	}

	// Value exists but is not a convertible numeric type
	return 0, false
}

// HasNonNull checks if a key exists and its value is not explicitly null.
func (f Fields) HasNonNull(key string) bool {
	val, exists := f[key]
	return exists && val != nil
}

// GetFieldSnippet returns a string snippet of a field's value, useful for logging.
// It handles missing keys and truncates long values.
func (f Fields) GetFieldSnippet(fieldName string, maxLength int) string {
	value, exists := f[fieldName]
	if !exists {
		return "<missing>"
	}
	if maxLength <= 0 {
		return "..."
	}

	strValue := fmt.Sprintf("%v", value)
	if len(strValue) > maxLength {
		return strValue[:maxLength] + "..."
	}
	return strValue
}
