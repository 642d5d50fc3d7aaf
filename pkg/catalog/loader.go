// Package catalog carries a small embedded catalog of known
// access-terminal vendors, used to annotate discovery diagnostics when
// an unmatched responder's model is recognized.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogRawData []byte

// Entry describes one known vendor's model families.
type Entry struct {
	Vendor        string   `yaml:"vendor"`
	ModelPrefixes []string `yaml:"model_prefixes"`
	Kind          string   `yaml:"kind"`
}

type catalogFile struct {
	Entries []Entry `yaml:"entries"`
}

// Catalog provides lazy-loaded access to the embedded vendor catalog.
type Catalog struct {
	once    sync.Once
	entries []Entry
	err     error
}

// New creates a Catalog that parses the embedded YAML on first access.
func New() *Catalog {
	return &Catalog{}
}

// Entries returns a copy of all catalog entries.
func (c *Catalog) Entries() ([]Entry, error) {
	c.once.Do(c.load)
	if c.err != nil {
		return nil, c.err
	}
	cp := make([]Entry, len(c.entries))
	copy(cp, c.entries)
	return cp, nil
}

// Lookup finds the entry whose model prefixes match the given model
// string, case-insensitively.
func (c *Catalog) Lookup(model string) (Entry, bool) {
	c.once.Do(c.load)
	if c.err != nil || model == "" {
		return Entry{}, false
	}
	model = strings.ToLower(model)
	for _, entry := range c.entries {
		for _, prefix := range entry.ModelPrefixes {
			if strings.HasPrefix(model, strings.ToLower(prefix)) {
				return entry, true
			}
		}
	}
	return Entry{}, false
}

func (c *Catalog) load() {
	var f catalogFile
	if err := yaml.Unmarshal(catalogRawData, &f); err != nil {
		c.err = fmt.Errorf("catalog: parse yaml: %w", err)
		return
	}
	c.entries = f.Entries
}
