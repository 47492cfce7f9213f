package rules

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Catalog is the set of named rule sets a host can pick from.
type Catalog struct {
	Base     RuleSet            `yaml:"standard"`
	Overlays map[string]RuleSet `yaml:"overlays"`
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// DefaultCatalog returns the built-in catalog. It panics if the embedded file is broken,
// which is a build defect rather than a runtime condition.
func DefaultCatalog() *Catalog {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = ParseCatalog(defaultCatalogYAML)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("rules: embedded catalog: %v", defaultErr))
	}
	return defaultCat
}

// Standard returns a copy of the built-in standard rule set.
func Standard() RuleSet { return DefaultCatalog().Base.Clone() }

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse rule catalog: %w", err)
	}
	if len(c.Base.Rules) == 0 {
		return nil, fmt.Errorf("rule catalog: empty standard rule set")
	}
	if c.Base.Name == "" {
		c.Base.Name = "standard"
	}
	if err := c.Base.Validate(); err != nil {
		return nil, fmt.Errorf("rule catalog standard: %w", err)
	}
	for name, o := range c.Overlays {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("rule catalog overlay %s: %w", name, err)
		}
		if o.Name == "" {
			o.Name = name
			c.Overlays[name] = o
		}
	}
	return &c, nil
}

func (c *Catalog) Overlay(name string) (RuleSet, bool) {
	o, ok := c.Overlays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return RuleSet{}, false
	}
	return o.Clone(), true
}

// OverlayNames lists overlays alphabetically.
func (c *Catalog) OverlayNames() []string {
	out := make([]string, 0, len(c.Overlays))
	for n := range c.Overlays {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Variant is what a host submits to pick rules: named overlays applied in order, then
// custom rules and flags as a final layer.
type Variant struct {
	Overlays []string        `yaml:"overlays,omitempty" json:"overlays,omitempty"`
	Rules    []Rule          `yaml:"rules,omitempty" json:"rules,omitempty"`
	Flags    map[string]bool `yaml:"flags,omitempty" json:"flags,omitempty"`
}

// Build merges the standard set with v. Unknown overlays and malformed rules are rejected.
func (c *Catalog) Build(v Variant) (RuleSet, error) {
	layers := make([]RuleSet, 0, len(v.Overlays)+1)
	for _, name := range v.Overlays {
		o, ok := c.Overlay(name)
		if !ok {
			return RuleSet{}, fmt.Errorf("unknown rule overlay %q", name)
		}
		layers = append(layers, o)
	}
	if len(v.Rules) > 0 || len(v.Flags) > 0 {
		custom := RuleSet{Name: "custom", Rules: v.Rules, Flags: v.Flags}
		if err := custom.Validate(); err != nil {
			return RuleSet{}, err
		}
		layers = append(layers, custom)
	}
	return Merge(c.Base, layers...), nil
}
