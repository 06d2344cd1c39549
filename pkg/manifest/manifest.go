// Package manifest loads package.json documents from a URL or a local path.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sambabib/depconfusion/pkg/errdefs"
)

// Section names a dependency mapping inside package.json.
type Section string

const (
	SectionDependencies    Section = "dependencies"
	SectionDevDependencies Section = "devDependencies"
)

// Dependency is one declaration from a manifest section.
type Dependency struct {
	Name    string  `json:"name"`
	Version string  `json:"version"` // declared specifier, e.g. "^1.3.0"
	Section Section `json:"section"`
}

// Manifest holds the dependency sections of a package.json in declaration order.
// A nil section was absent (or null) in the document.
type Manifest struct {
	Dependencies    []Dependency
	DevDependencies []Dependency
}

// Sections returns the present sections in the order they are classified.
func (m *Manifest) Sections() [][]Dependency {
	var out [][]Dependency
	if m.Dependencies != nil {
		out = append(out, m.Dependencies)
	}
	if m.DevDependencies != nil {
		out = append(out, m.DevDependencies)
	}
	return out
}

// Count returns the number of declarations across both sections.
func (m *Manifest) Count() int {
	return len(m.Dependencies) + len(m.DevDependencies)
}

// packageJSON represents the structure of package.json for dependencies
type packageJSON struct {
	Dependencies    depList `json:"dependencies"`
	DevDependencies depList `json:"devDependencies"`
}

// depList decodes a JSON object into its entries, keeping key order.
type depList struct {
	present bool
	entries []Dependency
}

func (d *depList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected an object of name to version, got %s", bytes.TrimSpace(data))
	}
	d.present = true
	d.entries = []Dependency{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name := tok.(string) // object keys are always strings
		var version string
		if err := dec.Decode(&version); err != nil {
			return fmt.Errorf("version of %q must be a string", name)
		}
		if name == "" {
			return fmt.Errorf("empty package name")
		}
		d.entries = append(d.entries, Dependency{Name: name, Version: version})
	}
	_, err = dec.Token() // closing brace
	return err
}

// Parse decodes a package.json document.
func Parse(data []byte) (*Manifest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: document is not a JSON object", errdefs.ErrInvalidManifest)
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrInvalidManifest, err)
	}
	m := &Manifest{}
	if pkg.Dependencies.present {
		m.Dependencies = withSection(pkg.Dependencies.entries, SectionDependencies)
	}
	if pkg.DevDependencies.present {
		m.DevDependencies = withSection(pkg.DevDependencies.entries, SectionDevDependencies)
	}
	return m, nil
}

func withSection(deps []Dependency, s Section) []Dependency {
	for i := range deps {
		deps[i].Section = s
	}
	return deps
}
