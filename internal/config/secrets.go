package config

import (
	"fmt"
	"os"
	"strings"
)

const envPrefix = "env:"

// Secret is a credential read from YAML. A value of the form "env:NAME" is
// resolved from the environment at load time so that passwords can stay out
// of the config file.
type Secret string

// UnmarshalYAML resolves env: references.
func (s *Secret) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	resolved, err := resolveSecret(raw)
	if err != nil {
		return err
	}

	*s = Secret(resolved)
	return nil
}

// Value returns the plain secret.
func (s Secret) Value() string {
	return string(s)
}

// String redacts the secret so it never ends up in logs.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "****"
}

func resolveSecret(raw string) (string, error) {
	name, ok := strings.CutPrefix(raw, envPrefix)
	if !ok {
		return raw, nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("empty environment variable name in secret")
	}

	val, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return val, nil
}
