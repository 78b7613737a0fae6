package rules

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk rule file format.
//
//	rules:
//	  - id: mrp
//	    name: MRP Mandatory Check
//	    priority: High
//	    check: presence
//	    field: mrp
//	    active: true
type Catalog struct {
	Rules []Rule `yaml:"rules"`
}

// LoadCatalog reads and validates a YAML rule catalog.
func LoadCatalog(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return DecodeCatalog(f)
}

// DecodeCatalog parses a YAML catalog. Unknown fields and invalid definitions
// are rejected so a bad file fails at load time rather than mid-evaluation.
func DecodeCatalog(r io.Reader) ([]Rule, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cat Catalog
	if err := dec.Decode(&cat); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	snap, err := NewSnapshot(cat.Rules)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return snap.Rules(), nil
}

// EncodeCatalog writes rules in catalog form.
func EncodeCatalog(w io.Writer, rules []Rule) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Catalog{Rules: rules}); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return enc.Close()
}
