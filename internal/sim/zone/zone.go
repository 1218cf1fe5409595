// Package zone holds the set of cells eligible for construction.
//
// Membership is boolean. A cell granted by two buildings is stored once, so
// callers that revoke area must work out for themselves whether another
// building still justifies the cell.
package zone

import (
	"sort"

	"github.com/zyedidia/generic/mapset"

	"buildgrid.ai/internal/sim/grid"
)

type Set struct {
	grid  grid.Grid
	cells mapset.Set[grid.Cell]
}

func New(g grid.Grid) *Set {
	return &Set{grid: g, cells: mapset.New[grid.Cell]()}
}

func (s *Set) IsBuildable(c grid.Cell) bool { return s.cells.Has(c) }

func (s *Set) AddCell(c grid.Cell) { s.cells.Put(c) }

func (s *Set) RemoveCell(c grid.Cell) { s.cells.Remove(c) }

func (s *Set) Clear() { s.cells = mapset.New[grid.Cell]() }

func (s *Set) Count() int { return s.cells.Size() }

// Cells returns the members sorted by X then Z.
func (s *Set) Cells() []grid.Cell {
	out := make([]grid.Cell, 0, s.cells.Size())
	s.cells.Each(func(c grid.Cell) {
		out = append(out, c)
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Z < out[j].Z
	})
	return out
}

// AddCircle adds every cell within radius of the center, comparing squared
// distances over the bounding square. The radius is rounded up to whole cells.
// It returns every cell touched, including ones that were already members.
func (s *Set) AddCircle(center grid.Vec3, radius float64) []grid.Cell {
	cc := s.grid.WorldToCell(center)
	r := s.grid.CellRadius(radius)

	var added []grid.Cell
	for x := -r; x <= r; x++ {
		for z := -r; z <= r; z++ {
			if x*x+z*z > r*r {
				continue
			}
			c := grid.Cell{X: cc.X + x, Z: cc.Z + z}
			s.cells.Put(c)
			added = append(added, c)
		}
	}
	return added
}

// RectangleCells lists the cells AddRectangle would touch. Half extents use
// truncating division, so odd and even sizes both span 2*(n/2)+1 cells.
func (s *Set) RectangleCells(center grid.Vec3, width, length int) []grid.Cell {
	cc := s.grid.WorldToCell(center)
	hw := width / 2
	hl := length / 2

	out := make([]grid.Cell, 0, (2*hw+1)*(2*hl+1))
	for x := -hw; x <= hw; x++ {
		for z := -hl; z <= hl; z++ {
			out = append(out, grid.Cell{X: cc.X + x, Z: cc.Z + z})
		}
	}
	return out
}

func (s *Set) AddRectangle(center grid.Vec3, width, length int) []grid.Cell {
	cells := s.RectangleCells(center, width, length)
	for _, c := range cells {
		s.cells.Put(c)
	}
	return cells
}

// Expand grows the zone by a square neighborhood around every current member.
// New cells are collected from a snapshot so they do not seed further growth
// in the same call.
func (s *Set) Expand(radius int) {
	if radius <= 0 {
		return
	}
	snapshot := s.Cells()
	for _, c := range snapshot {
		for x := -radius; x <= radius; x++ {
			for z := -radius; z <= radius; z++ {
				s.cells.Put(grid.Cell{X: c.X + x, Z: c.Z + z})
			}
		}
	}
}
