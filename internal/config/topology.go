package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/water-reuse-sim/internal/domain"
	"gopkg.in/yaml.v3"
)

// LoadTopology reads a YAML network description. Fields absent from the file
// keep their default values; lists present in the file replace the defaults.
func LoadTopology(path string) (domain.Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Topology{}, fmt.Errorf("read topology: %w", err)
	}
	return ParseTopology(data)
}

// ParseTopology decodes YAML over the default topology. Unknown keys are rejected.
func ParseTopology(data []byte) (domain.Topology, error) {
	t := domain.DefaultTopology()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return domain.Topology{}, fmt.Errorf("parse topology: %w", err)
	}
	return t, nil
}
