package config

import (
	"fmt"
	"strings"
)

// Lookup returns the value at a dotted key such as "flow.iterations", in the
// generic form produced by ToMap. Keys naming a group return its map.
func (c *Config) Lookup(key string) (any, bool) {
	m, err := c.ToMap()
	if err != nil {
		return nil, false
	}
	var cur any = m
	for _, part := range strings.Split(key, ".") {
		group, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = group[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPath stores value under a dotted key in a nested override map,
// creating intermediate groups. A non-map value on the path is replaced.
func SetPath(m map[string]any, key string, value any) error {
	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("invalid key %q", key)
		}
	}
	for _, p := range parts[:len(parts)-1] {
		next, ok := asStringMap(m[p])
		if !ok {
			next = make(map[string]any)
		}
		m[p] = next
		m = next
	}
	m[parts[len(parts)-1]] = value
	return nil
}
