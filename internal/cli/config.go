package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional alluvium.yaml configuration file. Flags
// override file values.
type Config struct {
	Database string `yaml:"database"` // default for --db
	Output   string `yaml:"output"`   // default for synth --out
	Grid     string `yaml:"grid"`     // default grid file for matrix
	Verbose  bool   `yaml:"verbose"`
}

// loadConfig reads the config file at path. A missing file is an error
// only when the path was set explicitly; the default path is optional.
func loadConfig(path string, explicit bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like
	// "databse:" vs "database:")
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file, all defaults.
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}
