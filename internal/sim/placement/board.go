package placement

import (
	"fmt"

	"buildgrid.ai/internal/sim/catalogs"
	"buildgrid.ai/internal/sim/economy"
	"buildgrid.ai/internal/sim/grid"
	"buildgrid.ai/internal/sim/occupancy"
	"buildgrid.ai/internal/sim/registry"
	"buildgrid.ai/internal/sim/zone"
)

// board is the shared mutable state sessions operate on. Only the
// orchestrator and its sessions hold a reference.
type board struct {
	grid     grid.Grid
	floor    *occupancy.Grid
	building *occupancy.Grid
	zones    *zone.Set
	entities *registry.Registry

	ledger    Ledger
	obstacles ObstacleChecker
	preview   PreviewRenderer
	factory   EntityFactory

	clock   func() uint64
	onEvent func(Event)
}

func (b *board) layer(l occupancy.Layer) *occupancy.Grid {
	if l == occupancy.LayerFloor {
		return b.floor
	}
	return b.building
}

func (b *board) layerFor(def catalogs.Definition) *occupancy.Grid {
	return b.layer(occupancy.ParseLayer(def.Layer))
}

func (b *board) now() uint64 {
	if b.clock == nil {
		return 0
	}
	return b.clock()
}

func (b *board) emit(ev Event) {
	if b.onEvent == nil {
		return
	}
	ev.Tick = b.now()
	b.onEvent(ev)
}

// cellsValid checks occupancy on layer, zone membership and world obstacles
// for every cell. It does not look at resources.
func (b *board) cellsValid(layer *occupancy.Grid, cells []grid.Cell) bool {
	if len(cells) == 0 || !layer.CanPlaceCells(cells) {
		return false
	}
	for _, c := range cells {
		if !b.zones.IsBuildable(c) {
			return false
		}
		if b.obstacles.IsObstructed(b.grid.CellToWorld(c)) {
			return false
		}
	}
	return true
}

// spawn records occupancy for cells (unless the definition is mobile or cells
// is empty), instantiates the world object and registers the entity. The
// caller has already validated and charged.
func (b *board) spawn(def catalogs.Definition, origin grid.Cell, cells []grid.Cell, size grid.Size, rot, variant int, cost economy.Cost) (*registry.Entity, error) {
	layer := b.layerFor(def)
	index := b.entities.Len()

	var recorded []grid.Cell
	if !def.Mobile && len(cells) > 0 {
		rec, err := layer.AddCells(origin, cells, size, def.ID, index)
		if err != nil {
			return nil, fmt.Errorf("record definition %d: %w", def.ID, err)
		}
		recorded = rec.Cells
	}

	pos := b.grid.CellToWorld(origin)
	e := &registry.Entity{
		ID:           b.factory.Instantiate(def, pos, rot*90),
		DefinitionID: def.ID,
		Kind:         def.Kind,
		Layer:        layer.Layer(),
		Pos:          pos,
		Origin:       origin,
		Rotation:     rot,
		Variant:      variant,
		Cells:        recorded,
		Cost:         cost.Clone(),
		Mobile:       def.Mobile,
		Sellable:     def.Sellable,
		Base:         def.Base,
		PlacedTick:   b.now(),
	}
	b.entities.Add(e)
	return e, nil
}

// grantZone adds the expansion rectangle around a freshly placed footprint.
// Only sellable and base entities remember the touched cells; anything else
// grows the zone for good and gives nothing back on removal.
func (b *board) grantZone(e *registry.Entity, def catalogs.Definition, cells []grid.Cell) {
	if def.Mobile || len(cells) == 0 {
		return
	}
	lo, sz := grid.Bounds(cells)
	cs := b.grid.CellSize
	center := b.grid.CellToWorld(lo).Add(grid.Vec3{
		X: float64(sz.W) * cs / 2,
		Z: float64(sz.L) * cs / 2,
	})
	added := b.zones.AddRectangle(center, sz.W+2*def.ExpandWidth, sz.L+2*def.ExpandLength)
	if def.Sellable || def.Base {
		e.AddedCells = added
	}
}

// entityAt resolves the entity shown at c, structure layer first.
func (b *board) entityAt(c grid.Cell) *registry.Entity {
	for _, layer := range []*occupancy.Grid{b.building, b.floor} {
		if idx, ok := layer.RepresentationIndex(c); ok {
			if e := b.entities.Get(idx); e != nil {
				return e
			}
		}
	}
	return nil
}

// remove tears down e: occupancy, registry slot, world object, then the zone
// cells only e justified. Entities that cannot be sold release nothing.
func (b *board) remove(e *registry.Entity) []grid.Cell {
	if len(e.Cells) > 0 {
		layer := b.layer(e.Layer)
		if rec, ok := layer.RecordAt(e.Cells[0]); ok && rec.EntityIndex == e.Index {
			layer.Remove(e.Cells[0])
		}
	}
	b.entities.Remove(e.Index)
	b.factory.Destroy(e.ID)
	if !e.Sellable {
		return nil
	}
	return b.release(e)
}
