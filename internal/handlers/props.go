package handlers

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// stringProperty extracts a required non-empty string from the event
// payload.
func stringProperty(props map[string]interface{}, key string) (string, error) {
	raw, ok := props[key]
	if !ok {
		return "", fmt.Errorf("%q is required", key)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%q must be a non-empty string", key)
	}
	return s, nil
}

// decimalProperty extracts a required numeric value from the event
// payload as an exact decimal. JSON numbers unmarshal to float64, the
// common path; NewFromFloat converts to an exact decimal representation.
func decimalProperty(props map[string]interface{}, key string) (decimal.Decimal, error) {
	raw, ok := props[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("%q is required", key)
	}
	switch val := raw.(type) {
	case float64:
		return decimal.NewFromFloat(val), nil
	case float32:
		return decimal.NewFromFloat(float64(val)), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case int32:
		return decimal.NewFromInt(int64(val)), nil
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%q is not a valid number: %w", key, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("%q must be numeric", key)
	}
}
