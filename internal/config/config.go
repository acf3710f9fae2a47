// Package config loads the server's YAML configuration file, following the
// same gopkg.in/yaml.v3 approach the wider example pack uses for structured
// settings. The default matches the original web server's hardcoded
// BIND_ADDR so an absent config file is never a behavior change, only a
// missed opportunity to override it.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultBindAddr is used when no config file is present, matching the
// original server's hardcoded constant.
const DefaultBindAddr = "127.0.0.1:3000"

// Config is the server's runtime configuration.
type Config struct {
	BindAddr string `yaml:"bind_addr"`
	// MaxBytecodeBytes caps the size of a single decompile request body
	// before it is even base64-decoded. Zero means unbounded.
	MaxBytecodeBytes int64 `yaml:"max_bytecode_bytes"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{BindAddr: DefaultBindAddr}
}

// Load reads and parses a YAML config file at path. A missing file is not
// an error: it yields Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.BindAddr == "" {
		cfg.BindAddr = DefaultBindAddr
	}
	return cfg, nil
}
