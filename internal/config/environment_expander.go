package config

import (
	"os"
)

// EnvironmentExpander expands environment variable placeholders within an
// input byte slice. Configuration files use it to reference secrets as
// ${VAR} without embedding them.
type EnvironmentExpander interface {
	// Expand replaces ${VAR} or $VAR placeholders in the input and returns
	// the expanded bytes.
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander implements EnvironmentExpander with os.ExpandEnv.
// Unset variables expand to the empty string.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander creates a new OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

// Expand implements EnvironmentExpander. os.ExpandEnv itself cannot fail, so
// the returned error is always nil.
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	return []byte(os.ExpandEnv(string(input))), nil
}
