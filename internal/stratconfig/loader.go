package stratconfig

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML run configuration from path, strictly decoding it
// (unknown fields fail immediately rather than silently being dropped)
// and validating it before returning.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
