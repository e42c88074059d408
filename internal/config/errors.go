package config

import "fmt"

// MalformedConfigError reports a layer file that exists but is not a valid
// JSON object.
type MalformedConfigError struct {
	Path string
	Err  error
}

func (e *MalformedConfigError) Error() string {
	return fmt.Sprintf("malformed config %s: %v", e.Path, e.Err)
}

func (e *MalformedConfigError) Unwrap() error { return e.Err }

// ConfigIOError reports a filesystem failure other than a missing file.
type ConfigIOError struct {
	Path string
	Op   string
	Err  error
}

func (e *ConfigIOError) Error() string {
	return fmt.Sprintf("%s config %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConfigIOError) Unwrap() error { return e.Err }
