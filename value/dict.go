// Package value holds the native containers decoded values are built from.
package value

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Dict is a string-keyed map that remembers insertion order. Decoded JSON
// objects keep their wire order so re-encoding reproduces the same bytes.
// The zero value is an empty dict.
type Dict struct {
	om *orderedmap.OrderedMap[string, any]
}

// NewDict returns an empty dict with room for n entries.
func NewDict(n int) *Dict {
	return &Dict{om: orderedmap.New[string, any](orderedmap.WithCapacity[string, any](n))}
}

// DictOf builds a dict from alternating key/value pairs.
func DictOf(kv ...any) *Dict {
	d := NewDict(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		d.Set(kv[i].(string), kv[i+1])
	}
	return d
}

// Set stores v under k. A new key is appended; an existing key keeps its
// position.
func (d *Dict) Set(k string, v any) {
	if d.om == nil {
		d.om = orderedmap.New[string, any]()
	}
	d.om.Set(k, v)
}

// Get returns the value stored under k.
func (d *Dict) Get(k string) (any, bool) {
	if d == nil || d.om == nil {
		return nil, false
	}
	return d.om.Get(k)
}

// Has reports whether k is present.
func (d *Dict) Has(k string) bool {
	_, ok := d.Get(k)
	return ok
}

// Delete removes k.
func (d *Dict) Delete(k string) {
	if d == nil || d.om == nil {
		return
	}
	d.om.Delete(k)
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	if d == nil || d.om == nil {
		return 0
	}
	return d.om.Len()
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string {
	if d.Len() == 0 {
		return nil
	}
	keys := make([]string, 0, d.om.Len())
	for p := d.om.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Range calls fn for each entry in order until fn returns false.
func (d *Dict) Range(fn func(k string, v any) bool) {
	if d.Len() == 0 {
		return
	}
	for p := d.om.Oldest(); p != nil; p = p.Next() {
		if !fn(p.Key, p.Value) {
			return
		}
	}
}
