// Package texts provides the message catalog used for every user-facing string.
package texts

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

var placeholderRe = regexp.MustCompile(`\{([A-Z][A-Z0-9_]*)\}`)

// Vars holds placeholder values keyed by upper-case name.
type Vars map[string]string

// Translator resolves a dotted key into display text.
type Translator interface {
	T(key string, vars Vars) string
}

// Catalog is a flattened key -> template map.
type Catalog struct {
	entries map[string]string
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("texts: embedded catalog: %v", err))
	}
	return c
}

// Load returns the embedded catalog overlaid with the YAML file at path.
// An empty path yields the embedded catalog.
func Load(path string) (*Catalog, error) {
	base := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("texts: read %s: %w", path, err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for k, v := range override.entries {
		base.entries[k] = v
	}
	return base, nil
}

// Parse flattens nested YAML maps into dotted keys.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("texts: parse catalog: %w", err)
	}
	c := &Catalog{entries: make(map[string]string)}
	flatten("", raw, c.entries)
	return c, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = strings.TrimRight(val, "\n")
		case nil:
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// T renders key with vars. Unknown keys render as the key itself and
// placeholders without a value are left untouched.
func (c *Catalog) T(key string, vars Vars) string {
	if c == nil {
		return key
	}
	tpl, ok := c.entries[key]
	if !ok {
		return key
	}
	if len(vars) == 0 {
		return tpl
	}
	return placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// Has reports whether key exists in the catalog.
func (c *Catalog) Has(key string) bool {
	if c == nil {
		return false
	}
	_, ok := c.entries[key]
	return ok
}
