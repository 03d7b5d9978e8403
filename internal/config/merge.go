package config

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Merge returns a new Config with overrides applied over base. Overrides is
// a nested map using the YAML key names: nested maps merge key by key, any
// other value (including lists) replaces the base value, and unknown keys
// are ignored. base is not modified.
func Merge(base *Config, overrides map[string]any) (*Config, error) {
	m, err := base.ToMap()
	if err != nil {
		return nil, err
	}
	deepMerge(m, overrides)
	out, err := FromMap(m)
	if err != nil {
		return nil, fmt.Errorf("merging config overrides: %w", err)
	}
	return out, nil
}

// deepMerge copies src into dst, recursing into maps present on both sides.
func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := asStringMap(v)
		dstMap, dstIsMap := asStringMap(dst[k])
		if srcIsMap && dstIsMap {
			deepMerge(dstMap, srcMap)
			dst[k] = dstMap
			continue
		}
		dst[k] = v
	}
}

// asStringMap normalizes the map shapes produced by YAML and JSON decoders.
func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

// FromMap decodes a complete configuration map without applying defaults.
// Missing keys stay zero, so the result should be validated before use.
func FromMap(m map[string]any) (*Config, error) {
	out := &Config{}
	if err := decodeInto(out, m); err != nil {
		return nil, fmt.Errorf("decoding config map: %w", err)
	}
	return out, nil
}

// ToMap returns the configuration as a nested generic map keyed by YAML
// names. Numbers are float64.
func (c *Config) ToMap() (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return m, nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() (*Config, error) {
	m, err := c.ToMap()
	if err != nil {
		return nil, err
	}
	return FromMap(m)
}

func decodeInto(out *Config, m map[string]any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(m)
}
