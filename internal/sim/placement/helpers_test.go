package placement

import (
	"testing"

	"buildgrid.ai/internal/sim/catalogs"
	"buildgrid.ai/internal/sim/economy"
	"buildgrid.ai/internal/sim/grid"
)

const (
	defHut     = 1
	defWall    = 2
	defRoad    = 3
	defDruid   = 4
	defGranary = 5
	defTree    = 9
)

func testCatalog() *catalogs.Catalog {
	defs := []catalogs.Definition{
		{
			ID: defHut, Name: "Hut", Kind: "HUTS", Layer: "structure",
			Variants:    []catalogs.Variant{{Size: [2]int{2, 2}}},
			ExpandWidth: 1, ExpandLength: 1,
			Cost:     []catalogs.ItemCount{{Resource: "wood", Amount: 10}},
			Sellable: true,
		},
		{
			ID: defWall, Name: "Wall", Kind: "WALLS", Layer: "structure",
			Variants:  []catalogs.Variant{{Size: [2]int{2, 1}}},
			Cost:      []catalogs.ItemCount{{Resource: "wood", Amount: 2}},
			Chainable: true, ChainSpacing: 1.0, Sellable: true,
		},
		{
			ID: defRoad, Name: "Road", Kind: "ROAD", Layer: "floor",
			Variants: []catalogs.Variant{{Size: [2]int{1, 1}}},
		},
		{
			ID: defDruid, Name: "Druid", Kind: "DRUID", Layer: "structure",
			Variants:     []catalogs.Variant{{Size: [2]int{1, 1}}},
			Cost:         []catalogs.ItemCount{{Resource: "food", Amount: 5}},
			Dependencies: []string{"HUTS"},
			Mobile:       true,
		},
		{
			ID: defGranary, Name: "Granary", Kind: "GRANARY", Layer: "structure",
			Variants:    []catalogs.Variant{{Size: [2]int{2, 3}}, {Size: [2]int{3, 2}}},
			ExpandWidth: 2, ExpandLength: 2,
			Cost:     []catalogs.ItemCount{{Resource: "wood", Amount: 1}},
			Sellable: true,
		},
		{
			ID: defTree, Name: "Tree", Kind: "SACRED_TREE", Layer: "structure",
			Variants: []catalogs.Variant{{Size: [2]int{3, 3}}},
			Base:     true,
		},
	}
	c := &catalogs.Catalog{ByID: map[int]catalogs.Definition{}}
	for _, d := range defs {
		c.ByID[d.ID] = d
		c.Order = append(c.Order, d.ID)
	}
	return c
}

type fakePreview struct {
	shown       []grid.Size
	removeShown int
	pos         grid.Vec3
	valid       bool
	rotDeg      int
	cells       []grid.Cell
	cellUpdates int
	stops       int
}

func (p *fakePreview) ShowPreview(_ catalogs.Definition, size grid.Size) {
	p.shown = append(p.shown, size)
}
func (p *fakePreview) ShowRemovePreview() { p.removeShown++ }
func (p *fakePreview) SetPreviewPosition(pos grid.Vec3, valid bool) {
	p.pos, p.valid = pos, valid
}
func (p *fakePreview) SetPreviewRotation(deg int) { p.rotDeg = deg }
func (p *fakePreview) SetPreviewCells(cells []grid.Cell) {
	p.cells = append([]grid.Cell(nil), cells...)
	p.cellUpdates++
}
func (p *fakePreview) StopPreview() { p.stops++ }

type cellObstacles map[grid.Cell]bool

func (o cellObstacles) IsObstructed(pos grid.Vec3) bool {
	return o[grid.New(1).WorldToCell(pos)]
}

type fakeFactory struct {
	made      int
	destroyed []string
}

func (f *fakeFactory) Instantiate(def catalogs.Definition, _ grid.Vec3, _ int) string {
	f.made++
	return def.Kind + "#" + string(rune('a'+f.made-1))
}

func (f *fakeFactory) Destroy(id string) { f.destroyed = append(f.destroyed, id) }

type harness struct {
	o       *Orchestrator
	ledger  *economy.Ledger
	preview *fakePreview
	factory *fakeFactory
	obs     cellObstacles
	events  []Event
}

// newHarness builds an orchestrator whose zone covers the 10x10 block
// (0,0)..(9,9).
func newHarness(t *testing.T, balances map[string]int) *harness {
	t.Helper()
	h := &harness{
		ledger:  economy.NewLedger(balances),
		preview: &fakePreview{},
		factory: &fakeFactory{},
		obs:     cellObstacles{},
	}
	h.o = New(Config{
		Grid:      grid.New(1),
		Catalog:   testCatalog(),
		Ledger:    h.ledger,
		Obstacles: h.obs,
		Preview:   h.preview,
		Factory:   h.factory,
		OnEvent:   func(ev Event) { h.events = append(h.events, ev) },
	})
	for x := 0; x < 10; x++ {
		for z := 0; z < 10; z++ {
			h.o.b.zones.AddCell(grid.Cell{X: x, Z: z})
		}
	}
	return h
}

func (h *harness) mustStart(t *testing.T, defID int) {
	t.Helper()
	if err := h.o.StartPlacement(defID); err != nil {
		t.Fatalf("StartPlacement(%d): %v", defID, err)
	}
}

func (h *harness) place(t *testing.T, defID int, at grid.Cell) int {
	t.Helper()
	h.mustStart(t, defID)
	e := h.o.Click(at)
	if e == nil {
		t.Fatalf("place %d at %v failed", defID, at)
	}
	return e.Index
}

func sameCells(a, b []grid.Cell) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
