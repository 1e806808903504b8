package directory

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the portable form of a directory, used by `stkgate directory
// import` and `directory show`.
type Seed struct {
	Stockers []Stocker    `yaml:"stockers"`
	Ports    []Port       `yaml:"ports"`
	Carriers []Carrier    `yaml:"carriers"`
	Tags     []TagMapping `yaml:"tags,omitempty"`
	Lots     []Lot        `yaml:"lots,omitempty"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed: %w", err)
	}
	defer f.Close()
	return ReadSeed(f)
}

// ReadSeed decodes and validates a YAML seed.
func ReadSeed(r io.Reader) (*Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// WriteYAML encodes the seed.
func (s *Seed) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

// Validate checks type codes, port directions and that no logical ID is
// bound to two carriers.
func (s *Seed) Validate() error {
	for _, st := range s.Stockers {
		if st.Name == "" {
			return fmt.Errorf("stocker with empty name")
		}
		if _, err := st.Type(); err != nil {
			return fmt.Errorf("stocker %s: %w", st.Name, err)
		}
	}
	for _, p := range s.Ports {
		if p.Name == "" {
			return fmt.Errorf("port with empty name")
		}
		switch p.Direction {
		case DirInput, DirOutput, DirClosed:
		default:
			return fmt.Errorf("port %s: invalid direction %q", p.Name, p.Direction)
		}
	}
	owners := make(map[string]string)
	for _, c := range s.Carriers {
		if c.ID == "" {
			return fmt.Errorf("carrier with empty id")
		}
		l := normLogical(c.LogicalID)
		if l == "" {
			continue
		}
		if prev, ok := owners[l]; ok && prev != c.ID {
			return fmt.Errorf("logical %s bound to %s and %s: %w", l, prev, c.ID, ErrConflict)
		}
		owners[l] = c.ID
	}
	for _, t := range s.Tags {
		if t.Barcode == "" || t.Tag == "" {
			return fmt.Errorf("tag mapping %q -> %q incomplete", t.Barcode, t.Tag)
		}
	}
	return nil
}
