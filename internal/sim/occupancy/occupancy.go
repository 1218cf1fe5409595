// Package occupancy tracks which grid cells are held by placed entities.
//
// Every cell covered by a footprint points at the same *Record, so removing
// the record through any of its cells clears all of them at once.
package occupancy

import (
	"errors"
	"fmt"
	"sort"

	"buildgrid.ai/internal/sim/grid"
)

var ErrAlreadyOccupied = errors.New("cell already occupied")

type Layer int

const (
	LayerFloor Layer = iota
	LayerStructure
)

func (l Layer) String() string {
	switch l {
	case LayerFloor:
		return "floor"
	case LayerStructure:
		return "structure"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}

// ParseLayer maps a catalog layer name onto a Layer. Unknown and empty names
// resolve to the structure layer.
func ParseLayer(s string) Layer {
	if s == "floor" {
		return LayerFloor
	}
	return LayerStructure
}

type Record struct {
	Origin       grid.Cell
	Size         grid.Size // post-rotation
	DefinitionID int
	EntityIndex  int
	Cells        []grid.Cell
}

// Reader is the query surface handed to systems outside placement.
type Reader interface {
	CanPlace(origin grid.Cell, size grid.Size) bool
	CanPlaceCells(cells []grid.Cell) bool
	HasObjectAt(c grid.Cell) bool
	RepresentationIndex(c grid.Cell) (int, bool)
	Count() int
	Cells() []grid.Cell
}

type Grid struct {
	layer Layer
	cells map[grid.Cell]*Record
	count int
}

func New(layer Layer) *Grid {
	return &Grid{layer: layer, cells: map[grid.Cell]*Record{}}
}

func (g *Grid) Layer() Layer { return g.layer }

// BlockCells lists origin + [0,W)x[0,L).
func BlockCells(origin grid.Cell, size grid.Size) []grid.Cell {
	return grid.CellsOf(origin, size, 0)
}

func (g *Grid) CanPlace(origin grid.Cell, size grid.Size) bool {
	return g.CanPlaceCells(BlockCells(origin, size))
}

func (g *Grid) CanPlaceCells(cells []grid.Cell) bool {
	for _, c := range cells {
		if _, ok := g.cells[c]; ok {
			return false
		}
	}
	return true
}

func (g *Grid) Add(origin grid.Cell, size grid.Size, definitionID, entityIndex int) (*Record, error) {
	return g.AddCells(origin, BlockCells(origin, size), size, definitionID, entityIndex)
}

// AddCells records an explicit cell list, used when a footprint was rotated
// around its corner. Nothing is written if any cell is taken.
func (g *Grid) AddCells(origin grid.Cell, cells []grid.Cell, size grid.Size, definitionID, entityIndex int) (*Record, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("empty footprint at %v", origin)
	}
	for _, c := range cells {
		if prev, ok := g.cells[c]; ok {
			return nil, fmt.Errorf("%w: %v held by entity %d", ErrAlreadyOccupied, c, prev.EntityIndex)
		}
	}
	rec := &Record{
		Origin:       origin,
		Size:         size,
		DefinitionID: definitionID,
		EntityIndex:  entityIndex,
		Cells:        append([]grid.Cell(nil), cells...),
	}
	for _, c := range rec.Cells {
		g.cells[c] = rec
	}
	g.count++
	return rec, nil
}

// Remove drops the record owning c and every cell it covers. Removing an
// empty cell is a no-op.
func (g *Grid) Remove(c grid.Cell) *Record {
	rec, ok := g.cells[c]
	if !ok {
		return nil
	}
	for _, rc := range rec.Cells {
		if g.cells[rc] == rec {
			delete(g.cells, rc)
		}
	}
	g.count--
	return rec
}

func (g *Grid) HasObjectAt(c grid.Cell) bool {
	_, ok := g.cells[c]
	return ok
}

func (g *Grid) RecordAt(c grid.Cell) (*Record, bool) {
	rec, ok := g.cells[c]
	return rec, ok
}

// RepresentationIndex returns the placed-entity index owning c, or -1.
func (g *Grid) RepresentationIndex(c grid.Cell) (int, bool) {
	rec, ok := g.cells[c]
	if !ok {
		return -1, false
	}
	return rec.EntityIndex, true
}

// Count is the number of records, not cells.
func (g *Grid) Count() int { return g.count }

// Cells returns every occupied cell in a stable order.
func (g *Grid) Cells() []grid.Cell {
	out := make([]grid.Cell, 0, len(g.cells))
	for c := range g.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Z < out[j].Z
	})
	return out
}

func (g *Grid) Reset() {
	g.cells = map[grid.Cell]*Record{}
	g.count = 0
}
