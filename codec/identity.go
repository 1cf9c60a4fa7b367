package codec

import (
	"github.com/reoring/typecodec/hook"
	"github.com/reoring/typecodec/types"
)

// Identity installs type hooks that pass the native value of key through
// untouched in both directions. Use it to keep a subtree as raw []any /
// *value.Dict data instead of decoding it into its declared type.
func Identity(h *hook.Hooks, key string) error {
	if err := h.Serialize.Set(key, func(types.Type, hook.Context) (hook.Override, error) {
		return hook.Override{Encode: identity}, nil
	}); err != nil {
		return err
	}
	return h.Deserialize.Set(key, func(types.Type, hook.Context) (hook.Override, error) {
		return hook.Override{Decode: identity}, nil
	})
}

func identity(v any) (any, error) { return v, nil }
