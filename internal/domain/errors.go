package domain

import "fmt"

// ConfigError reports an invalid run or strategy parameter. It is always
// detected before a pipeline starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}
