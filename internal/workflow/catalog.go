package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Template is a named, reusable approval chain.
type Template struct {
	Name                string      `yaml:"name"`
	AutoAdvance         bool        `yaml:"autoAdvance"`
	RequireAllApprovals bool        `yaml:"requireAllApprovals"`
	Steps               []StepInput `yaml:"steps"`
}

func (t Template) Options() Options {
	return Options{AutoAdvance: t.AutoAdvance, RequireAllApprovals: t.RequireAllApprovals}
}

// Catalog indexes templates by name.
type Catalog struct {
	templates map[string]Template
}

type catalogFile struct {
	Templates []Template `yaml:"templates"`
}

// ParseCatalog decodes a YAML template catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("could not decode workflow templates: %w", err)
	}

	c := &Catalog{templates: make(map[string]Template, len(f.Templates))}
	for i, t := range f.Templates {
		if t.Name == "" {
			return nil, fmt.Errorf("template %d has no name", i)
		}
		if _, ok := c.templates[t.Name]; ok {
			return nil, fmt.Errorf("template %q is defined twice", t.Name)
		}
		if len(t.Steps) == 0 {
			return nil, fmt.Errorf("template %q has no steps", t.Name)
		}
		for j, s := range t.Steps {
			if !s.Type.Valid() {
				return nil, fmt.Errorf("template %q step %d: unknown type %q", t.Name, j+1, s.Type)
			}
		}
		c.templates[t.Name] = t
	}
	return c, nil
}

// LoadCatalog reads a YAML template catalog from disk. An empty path yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return &Catalog{templates: map[string]Template{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read workflow templates: %w", err)
	}
	return ParseCatalog(data)
}

// Lookup returns the template with the given name.
func (c *Catalog) Lookup(name string) (Template, bool) {
	if c == nil {
		return Template{}, false
	}
	t, ok := c.templates[name]
	return t, ok
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.templates)
}
