package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"buildgrid.ai/internal/sim/economy"
	"buildgrid.ai/internal/sim/grid"
)

const (
	DefinitionsFile = "definitions.json"

	defaultExpand       = 2
	defaultChainSpacing = 1.0
)

//go:embed definitions.schema.json
var definitionsSchema string

type Catalog struct {
	ByID   map[int]Definition
	Order  []int
	Digest string
}

type Definition struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
	// Layer is "floor" or "structure".
	Layer    string    `json:"layer"`
	Variants []Variant `json:"variants"`

	ExpandWidth  int `json:"expand_width"`
	ExpandLength int `json:"expand_length"`

	Cost         []ItemCount `json:"cost"`
	Dependencies []string    `json:"dependencies,omitempty"`

	Mobile       bool    `json:"mobile,omitempty"`
	Chainable    bool    `json:"chainable,omitempty"`
	ChainSpacing float64 `json:"chain_spacing"`
	Sellable     bool    `json:"sellable,omitempty"`
	Base         bool    `json:"base,omitempty"`
}

type Variant struct {
	Model string `json:"model,omitempty"`
	Size  [2]int `json:"size"`
}

type ItemCount struct {
	Resource string `json:"resource"`
	Amount   int    `json:"amount"`
}

// rawDefinition distinguishes omitted numeric fields from explicit zeros.
type rawDefinition struct {
	Definition
	ExpandWidth  *int     `json:"expand_width"`
	ExpandLength *int     `json:"expand_length"`
	ChainSpacing *float64 `json:"chain_spacing"`
}

func (d Definition) VariantCount() int { return len(d.Variants) }

// VariantSize returns the unrotated footprint of variant i, wrapping out of
// range indices back onto the list.
func (d Definition) VariantSize(i int) grid.Size {
	if len(d.Variants) == 0 {
		return grid.NewSize(1, 1)
	}
	i %= len(d.Variants)
	if i < 0 {
		i += len(d.Variants)
	}
	v := d.Variants[i]
	return grid.NewSize(v.Size[0], v.Size[1])
}

func (d Definition) Size() grid.Size { return d.VariantSize(0) }

func (d Definition) UnitCost() economy.Cost {
	out := economy.Cost{}
	for _, c := range d.Cost {
		if c.Resource == "" || c.Amount <= 0 {
			continue
		}
		out[c.Resource] += c.Amount
	}
	return out
}

func (c *Catalog) Get(id int) (Definition, bool) {
	if c == nil {
		return Definition{}, false
	}
	d, ok := c.ByID[id]
	return d, ok
}

// Definitions returns every definition in id order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, 0, len(c.Order))
	for _, id := range c.Order {
		out = append(out, c.ByID[id])
	}
	return out
}

// BaseDefinition returns the first definition flagged as the base.
func (c *Catalog) BaseDefinition() (Definition, bool) {
	for _, id := range c.Order {
		if d := c.ByID[id]; d.Base {
			return d, true
		}
	}
	return Definition{}, false
}

func Load(configDir string) (*Catalog, error) {
	raw, err := os.ReadFile(filepath.Join(configDir, DefinitionsFile))
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse validates raw against the definitions schema and builds the catalog.
func Parse(raw []byte) (*Catalog, error) {
	if err := validate(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", DefinitionsFile, err)
	}

	var defs []rawDefinition
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&defs); err != nil {
		return nil, fmt.Errorf("%s: %w", DefinitionsFile, err)
	}

	c := &Catalog{ByID: map[int]Definition{}, Digest: sha256Hex(raw)}
	for _, rd := range defs {
		d := rd.Definition
		if _, dup := c.ByID[d.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate id %d", DefinitionsFile, d.ID)
		}
		d.ExpandWidth = intOr(rd.ExpandWidth, defaultExpand)
		d.ExpandLength = intOr(rd.ExpandLength, defaultExpand)
		d.ChainSpacing = defaultChainSpacing
		if rd.ChainSpacing != nil && *rd.ChainSpacing > 0 {
			d.ChainSpacing = *rd.ChainSpacing
		}
		if d.Layer == "" {
			d.Layer = "structure"
		}
		c.ByID[d.ID] = d
		c.Order = append(c.Order, d.ID)
	}
	sort.Ints(c.Order)
	return c, nil
}

func validate(raw []byte) error {
	comp := jsonschema.NewCompiler()
	if err := comp.AddResource("definitions.schema.json", bytes.NewReader([]byte(definitionsSchema))); err != nil {
		return err
	}
	schema, err := comp.Compile("definitions.schema.json")
	if err != nil {
		return err
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
