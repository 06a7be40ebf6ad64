package mcp

import (
	"encoding/json"

	"github.com/spf13/cast"
)

// arguments is the loosely typed argument bag of one tool call.
type arguments map[string]any

// has reports whether key was supplied with a non-null value.
func (a arguments) has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

func (a arguments) getString(key string) string {
	return cast.ToString(a[key])
}

func (a arguments) getBool(key string, def bool) bool {
	if !a.has(key) {
		return def
	}
	b, err := cast.ToBoolE(a[key])
	if err != nil {
		return def
	}
	return b
}

func (a arguments) getInt(key string, def int) int {
	if !a.has(key) {
		return def
	}
	n, err := cast.ToIntE(a[key])
	if err != nil {
		return def
	}
	return n
}

func (a arguments) getStrings(key string) []string {
	if !a.has(key) {
		return nil
	}
	return cast.ToStringSlice(a[key])
}

// optionalBool returns nil when key was not supplied.
func (a arguments) optionalBool(key string) *bool {
	if !a.has(key) {
		return nil
	}
	b := a.getBool(key, false)
	return &b
}

// raw re-encodes the value under key, or returns fallback when it is absent.
func (a arguments) raw(key string, fallback json.RawMessage) (json.RawMessage, error) {
	if !a.has(key) {
		return fallback, nil
	}
	return json.Marshal(a[key])
}
