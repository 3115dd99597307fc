package polyinject

import "fmt"

// ConfigError reports invalid plugin configuration. It is only ever returned
// while constructing a Plugin or decoding configuration, never while a file
// is being transformed.
type ConfigError struct {
	// Field is the configuration key at fault, such as "method" or
	// "providers".
	Field string
	// Provider names the offending provider, if any.
	Provider string
	Msg      string
}

func (e *ConfigError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("polyinject: config: provider %q: %s", e.Provider, e.Msg)
	}
	if e.Field != "" {
		return fmt.Sprintf("polyinject: config: %s: %s", e.Field, e.Msg)
	}
	return "polyinject: config: " + e.Msg
}

func configErrorf(field, provider, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Provider: provider, Msg: fmt.Sprintf(format, args...)}
}
