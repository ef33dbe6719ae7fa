// Package indicator holds the static table of indicator definitions fetched per timeframe.
package indicator

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"updown/internal/logger"
)

type Shape string

const (
	// ShapeSingle 只取最新值。
	ShapeSingle Shape = "single"
	// ShapeSeries 取最近 N 个值，最新值为序列末尾。
	ShapeSeries Shape = "series"
	// ShapeMulti 一次上游调用拆成多个命名输出，例如布林带上中下轨。
	ShapeMulti Shape = "multi"
)

type Horizon string

const (
	Intraday Horizon = "intraday"
	LongTerm Horizon = "long_term"
)

type Output struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
}

// Definition describes one fetch against the indicator backend.
type Definition struct {
	ID        string         `yaml:"id"`
	Indicator string         `yaml:"indicator"`
	Params    map[string]any `yaml:"params"`
	Shape     Shape          `yaml:"shape"`
	Key       string         `yaml:"key"`
	Outputs   []Output       `yaml:"outputs"`
}

// OutputID names one decomposed series of a multi definition, e.g. bbands_upper.
func (d Definition) OutputID(out Output) string {
	return d.ID + "_" + out.Name
}

func (d Definition) validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("indicator definition missing id")
	}
	if strings.TrimSpace(d.Indicator) == "" {
		return fmt.Errorf("indicator %s missing upstream indicator name", d.ID)
	}
	switch d.Shape {
	case ShapeSingle, ShapeSeries:
	case ShapeMulti:
		if len(d.Outputs) == 0 {
			return fmt.Errorf("indicator %s: multi shape requires outputs", d.ID)
		}
		for _, out := range d.Outputs {
			if out.Name == "" || out.Key == "" {
				return fmt.Errorf("indicator %s: output requires name and key", d.ID)
			}
		}
	default:
		return fmt.Errorf("indicator %s: unknown shape %q", d.ID, d.Shape)
	}
	return nil
}

// Catalog 是只读的 id -> Definition 表，外加每个周期的默认列表。
type Catalog struct {
	defs     map[string]Definition
	defaults map[Horizon][]string
}

func New(defs []Definition, defaults map[Horizon][]string) (*Catalog, error) {
	c := &Catalog{
		defs:     make(map[string]Definition, len(defs)),
		defaults: make(map[Horizon][]string, len(defaults)),
	}
	for _, d := range defs {
		d = normalize(d)
		if err := d.validate(); err != nil {
			return nil, err
		}
		c.defs[d.ID] = d
	}
	for h, ids := range defaults {
		for _, id := range ids {
			if _, ok := c.defs[id]; !ok {
				return nil, fmt.Errorf("default %s list references unknown indicator %s", h, id)
			}
		}
		c.defaults[h] = append([]string(nil), ids...)
	}
	return c, nil
}

func normalize(d Definition) Definition {
	d.ID = strings.ToLower(strings.TrimSpace(d.ID))
	d.Indicator = strings.ToLower(strings.TrimSpace(d.Indicator))
	if d.Shape == "" {
		d.Shape = ShapeSeries
	}
	if d.Shape != ShapeMulti && d.Key == "" {
		d.Key = "value"
	}
	return d
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(builtinDefinitions(), builtinDefaults())
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Lookup(id string) (Definition, bool) {
	d, ok := c.defs[strings.ToLower(strings.TrimSpace(id))]
	return d, ok
}

func (c *Catalog) IDs() []string {
	out := make([]string, 0, len(c.defs))
	for id := range c.defs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) Defaults(h Horizon) []string {
	return append([]string(nil), c.defaults[h]...)
}

// Resolve maps ids to definitions in order. An empty list falls back to the horizon default;
// unknown ids are skipped with a warning.
func (c *Catalog) Resolve(ids []string, h Horizon) []Definition {
	if len(ids) == 0 {
		ids = c.defaults[h]
	}
	out := make([]Definition, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		d, ok := c.Lookup(id)
		if !ok {
			logger.Warnf("indicator catalog: unknown id %q ignored", id)
			continue
		}
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out
}

type fileCatalog struct {
	Indicators []Definition         `yaml:"indicators"`
	Defaults   map[Horizon][]string `yaml:"defaults"`
}

// Load merges the built-in catalog with a YAML override file: definitions replace by id,
// default lists replace per horizon.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read indicator catalog: %w", err)
	}
	var file fileCatalog
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse indicator catalog failed: %w", err)
	}
	merged := make(map[string]Definition)
	for _, d := range builtinDefinitions() {
		merged[d.ID] = d
	}
	for _, d := range file.Indicators {
		d = normalize(d)
		merged[d.ID] = d
	}
	defs := make([]Definition, 0, len(merged))
	for _, d := range merged {
		defs = append(defs, d)
	}
	defaults := builtinDefaults()
	for h, ids := range file.Defaults {
		if h != Intraday && h != LongTerm {
			return nil, fmt.Errorf("indicator catalog: unknown horizon %q", h)
		}
		defaults[h] = ids
	}
	return New(defs, defaults)
}
