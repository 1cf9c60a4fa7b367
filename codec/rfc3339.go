// Package codec provides ready-made type hooks.
package codec

import (
	"fmt"
	"time"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/hook"
	"github.com/reoring/typecodec/types"
)

// TimeKey is the type hook key of time.Time fields.
const TimeKey = "time.Time"

// TimeRFC3339 installs type hooks that read time.Time (and *time.Time) from
// RFC3339 strings and write them back as canonical UTC RFC3339Nano.
func TimeRFC3339(h *hook.Hooks) error {
	if err := h.Serialize.Set(TimeKey, func(types.Type, hook.Context) (hook.Override, error) {
		return hook.Override{Encode: encodeTime}, nil
	}); err != nil {
		return err
	}
	return h.Deserialize.Set(TimeKey, func(types.Type, hook.Context) (hook.Override, error) {
		return hook.Override{Decode: decodeTime}, nil
	})
}

func decodeTime(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		it := typecodec.NewIssue(typecodec.CodeUnexpectedValue, "", TimeKey)
		it.Message = fmt.Sprintf("expected an RFC3339 string, got %T", raw)
		return nil, it
	}
	t, err := parseRFC3339(s)
	if err != nil {
		it := typecodec.NewIssue(typecodec.CodeUnexpectedValue, "", TimeKey).WithCause(err)
		it.Message = "invalid RFC3339 time"
		return nil, it
	}
	return t, nil
}

func encodeTime(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return formatRFC3339Canonical(t), nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return formatRFC3339Canonical(*t), nil
	}
	it := typecodec.NewIssue(typecodec.CodeUnexpectedType, "", TimeKey)
	it.Message = fmt.Sprintf("expected time.Time, got %T", v)
	return nil, it
}

func parseRFC3339(s string) (time.Time, error) {
	// Accept RFC3339Nano (trailing zeros optional)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return time.Time{}, err
	}
	return t, nil
}

func formatRFC3339Canonical(t time.Time) string {
	// Normalize to UTC and format using RFC3339Nano (Go trims trailing zeros)
	return t.UTC().Format(time.RFC3339Nano)
}
