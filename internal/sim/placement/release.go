package placement

import (
	"github.com/zyedidia/generic/mapset"

	"buildgrid.ai/internal/sim/grid"
	"buildgrid.ai/internal/sim/registry"
)

// release revokes the zone cells dead granted, keeping any cell that is still
// occupied by another entity or listed in another live entity's AddedCells.
// The zone set has no reference counts, so every live entity is scanned.
// Base entities never give ground back.
//
// dead must already be out of the registry and the occupancy layers.
func (b *board) release(dead *registry.Entity) []grid.Cell {
	if dead.Base || len(dead.AddedCells) == 0 {
		return nil
	}

	claimed := mapset.New[grid.Cell]()
	b.entities.Each(func(e *registry.Entity) {
		if e.Index == dead.Index {
			return
		}
		for _, c := range e.AddedCells {
			claimed.Put(c)
		}
	})

	var released []grid.Cell
	for _, c := range dead.AddedCells {
		if claimed.Has(c) || b.occupiedByOther(c, dead.Index) {
			continue
		}
		b.zones.RemoveCell(c)
		released = append(released, c)
	}
	return released
}

func (b *board) occupiedByOther(c grid.Cell, index int) bool {
	if idx, ok := b.floor.RepresentationIndex(c); ok && idx != index {
		return true
	}
	if idx, ok := b.building.RepresentationIndex(c); ok && idx != index {
		return true
	}
	return false
}
