// Package resources defines the osparc list resources that can be shown as
// tables: endpoint path, columns and default ordering. Built-in definitions
// are embedded; a YAML file with the same layout can replace or add
// resources by name.
package resources

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/itisfoundation/osparc-tables/internal/rows"
)

//go:embed defs.yaml
var builtinDefs []byte

// Sentinel errors
var (
	ErrUnknownResource = errors.New("unknown resource")
	ErrInvalidDef      = errors.New("invalid resource definition")
)

// Sort is the default ordering of a resource.
type Sort struct {
	Field     string         `yaml:"field"`
	Direction rows.Direction `yaml:"direction"`
}

// Definition describes one list resource.
type Definition struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Path        string            `yaml:"path"`
	Scope       []string          `yaml:"scope,omitempty"`      // placeholders the path needs
	DateField   string            `yaml:"date_field,omitempty"` // field of the from/to range filter
	DefaultSort Sort              `yaml:"default_sort,omitempty"`
	Columns     []rows.ColumnSpec `yaml:"columns"`
}

// OrderBy returns the default ordering, zero when none is set.
func (d Definition) OrderBy() rows.OrderBy {
	if d.DefaultSort.Field == "" {
		return rows.OrderBy{}
	}
	dir := d.DefaultSort.Direction
	if dir == "" {
		dir = rows.Asc
	}
	return rows.OrderBy{Field: d.DefaultSort.Field, Direction: dir}
}

// Validate checks a definition for the mistakes a hand-edited file makes.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidDef)
	}
	if !strings.HasPrefix(d.Path, "/") {
		return fmt.Errorf("%w: %s: path must start with /", ErrInvalidDef, d.Name)
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("%w: %s: no columns", ErrInvalidDef, d.Name)
	}
	seen := make(map[string]bool, len(d.Columns))
	for _, c := range d.Columns {
		if c.ID == "" || c.Field == "" {
			return fmt.Errorf("%w: %s: column needs id and field", ErrInvalidDef, d.Name)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: %s: duplicate column %q", ErrInvalidDef, d.Name, c.ID)
		}
		seen[c.ID] = true
		if c.Format == rows.FormatDuration && c.EndField == "" {
			return fmt.Errorf("%w: %s: duration column %q needs end_field", ErrInvalidDef, d.Name, c.ID)
		}
	}
	switch d.DefaultSort.Direction {
	case "", rows.Asc, rows.Desc:
	default:
		return fmt.Errorf("%w: %s: direction must be asc or desc", ErrInvalidDef, d.Name)
	}
	return nil
}

type defsFile struct {
	Aliases   map[string]string `yaml:"aliases"`
	Resources []Definition      `yaml:"resources"`
}

// Catalog is the set of known resources.
type Catalog struct {
	defs    map[string]Definition
	order   []string
	aliases map[string]string
}

// Builtin returns the catalog of embedded definitions.
func Builtin() (*Catalog, error) {
	c := &Catalog{defs: make(map[string]Definition), aliases: make(map[string]string)}
	if err := c.merge(builtinDefs, "builtin"); err != nil {
		return nil, err
	}
	return c, nil
}

// Load returns the built-in catalog with the definitions of path merged
// over it. An empty path returns the built-in catalog.
func Load(path string) (*Catalog, error) {
	c, err := Builtin()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource definitions %q: %w", path, err)
	}
	if err := c.merge(data, path); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) merge(data []byte, origin string) error {
	var f defsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse resource definitions %q: %w", origin, err)
	}
	for _, d := range f.Resources {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%s: %w", origin, err)
		}
		if _, exists := c.defs[d.Name]; !exists {
			c.order = append(c.order, d.Name)
		}
		c.defs[d.Name] = d
	}
	for alias, name := range f.Aliases {
		c.aliases[alias] = name
	}
	return nil
}

// Names returns resource names in definition order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Aliases returns the aliases of a resource, sorted.
func (c *Catalog) Aliases(name string) []string {
	var out []string
	for alias, target := range c.aliases {
		if target == name {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// Get looks a resource up by name or alias.
func (c *Catalog) Get(name string) (Definition, error) {
	if d, ok := c.defs[name]; ok {
		return d, nil
	}
	if target, ok := c.aliases[name]; ok {
		if d, ok := c.defs[target]; ok {
			return d, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %s", ErrUnknownResource, name)
}
