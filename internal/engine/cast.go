package engine

import (
	"math"
	"strconv"
	"strings"

	"github.com/reoring/typecodec/types"
)

// Cast converts raw to scalar s with lenient rules: numeric strings cast to
// numbers, integral floats to int, numbers to strings. ok is false when the
// value cannot be represented.
func Cast(s types.Scalar, raw any) (any, bool) {
	switch s {
	case types.Mixed:
		return raw, true
	case types.Null:
		return nil, raw == nil
	case types.Int:
		n, ok := CastInt(raw)
		return n, ok
	case types.Float:
		f, ok := CastFloat(raw)
		return f, ok
	case types.String:
		str, ok := CastString(raw)
		return str, ok
	case types.Bool:
		b, ok := CastBool(raw)
		return b, ok
	}
	return nil, false
}

// CastInt casts to int64.
func CastInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 {
			return int64(v), true
		}
	case string:
		t := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return CastInt(f)
		}
	}
	return 0, false
}

// CastFloat casts to float64.
func CastFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// CastString casts to string. Numbers render in their shortest form.
func CastString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

// CastBool casts to bool. Strings true/false/1/0 and the ints 0 and 1 are
// accepted.
func CastBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case int64:
		if v == 0 || v == 1 {
			return v == 1, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	}
	return false, false
}
