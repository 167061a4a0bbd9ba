// Package extraction provides defensive field access over duck-typed
// payloads. Upstream template schemas evolve; callers pass an ordered
// list of candidate keys (newest schema first) and the helpers try each
// in turn. Nothing here panics or returns an error: a missing or
// unparseable field is reported through the ok result and the caller
// decides whether that is an anomaly.
package extraction

import (
	"encoding/json"
	"math/big"
	"strconv"
)

// Field returns the value of the first candidate key present in payload.
func Field(payload map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// String returns the first candidate that holds a non-empty string.
func String(payload map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := payload[k].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Amount parses the first present candidate as a decimal amount. It
// accepts the forms the API has shipped: decimal strings, JSON numbers,
// and one level of nesting ({"amount": {"initialAmount": "10.0"}}).
// Results are exact rationals; ledger sums must not drift.
func Amount(payload map[string]any, keys ...string) (*big.Rat, bool) {
	v, ok := Field(payload, keys...)
	if !ok {
		return nil, false
	}
	if nested, ok := v.(map[string]any); ok {
		v, ok = Field(nested, keys...)
		if !ok {
			return nil, false
		}
	}
	return ratValue(v)
}

// Int parses the first present candidate as an integer. Round numbers
// arrive as JSON numbers, numeric strings, or {"number": "5"} records.
func Int(payload map[string]any, keys ...string) (int64, bool) {
	v, ok := Field(payload, keys...)
	if !ok {
		return 0, false
	}
	if nested, ok := v.(map[string]any); ok {
		v, ok = Field(nested, "number")
		if !ok {
			return 0, false
		}
	}
	return intValue(v)
}

func ratValue(v any) (*big.Rat, bool) {
	switch x := v.(type) {
	case string:
		r, ok := new(big.Rat).SetString(x)
		return r, ok
	case json.Number:
		r, ok := new(big.Rat).SetString(x.String())
		return r, ok
	case float64:
		return new(big.Rat).SetFloat64(x), true
	case int64:
		return new(big.Rat).SetInt64(x), true
	case int:
		return new(big.Rat).SetInt64(int64(x)), true
	default:
		return nil, false
	}
}

func intValue(v any) (int64, bool) {
	switch x := v.(type) {
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case float64:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	default:
		return 0, false
	}
}
