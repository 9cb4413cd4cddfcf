package util

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ApplyParams overlays params onto target by YAML field name. target must be
// a pointer to a struct with yaml tags. Keys that target does not declare are
// returned unapplied so a caller can route them elsewhere.
func ApplyParams(target any, params map[string]any) ([]string, error) {
	if len(params) == 0 {
		return nil, nil
	}

	raw, err := yaml.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("encoding params target: %w", err)
	}
	fields := map[string]any{}
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decoding params target: %w", err)
	}

	var unknown []string
	applied := 0
	for k, v := range params {
		if _, ok := fields[k]; !ok {
			unknown = append(unknown, k)
			continue
		}
		fields[k] = v
		applied++
	}
	if applied == 0 {
		return unknown, nil
	}

	raw, err = yaml.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding params: %w", err)
	}
	if err := yaml.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("applying params: %w", err)
	}
	return unknown, nil
}
