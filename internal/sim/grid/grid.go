package grid

import (
	"fmt"
	"math"
)

// Cell addresses one square of the placement plane. The vertical axis is not
// part of grid addressing.
type Cell struct {
	X int `json:"x"`
	Z int `json:"z"`
}

func (c Cell) Add(o Cell) Cell { return Cell{X: c.X + o.X, Z: c.Z + o.Z} }
func (c Cell) Sub(o Cell) Cell { return Cell{X: c.X - o.X, Z: c.Z - o.Z} }

func (c Cell) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Z) }

func (c Cell) ToArray() [2]int { return [2]int{c.X, c.Z} }

func CellFromArray(a [2]int) Cell { return Cell{X: a[0], Z: a[1]} }

// Vec3 is a world-space position.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }
func (v Vec3) Scale(k float64) Vec3 { return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k} }

func (v Vec3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Normalized returns the unit vector of v, or the zero vector when v is zero.
func (v Vec3) Normalized() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

func (v Vec3) ToArray() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func Vec3FromArray(a [3]float64) Vec3 { return Vec3{X: a[0], Y: a[1], Z: a[2]} }

// Grid converts between world positions and cells. Cells are square; a cell's
// world position is its minimum corner.
type Grid struct {
	CellSize float64
}

func New(cellSize float64) Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return Grid{CellSize: cellSize}
}

func (g Grid) size() float64 {
	if g.CellSize <= 0 {
		return 1
	}
	return g.CellSize
}

func (g Grid) WorldToCell(p Vec3) Cell {
	s := g.size()
	return Cell{
		X: int(math.Floor(p.X / s)),
		Z: int(math.Floor(p.Z / s)),
	}
}

func (g Grid) CellToWorld(c Cell) Vec3 {
	s := g.size()
	return Vec3{X: float64(c.X) * s, Z: float64(c.Z) * s}
}

// CellCenter is the world position of the middle of c.
func (g Grid) CellCenter(c Cell) Vec3 {
	h := g.size() / 2
	return g.CellToWorld(c).Add(Vec3{X: h, Z: h})
}

// CellRadius converts a world-space radius into a whole number of cells,
// rounding up.
func (g Grid) CellRadius(radius float64) int {
	if radius <= 0 {
		return 0
	}
	return int(math.Ceil(radius / g.size()))
}
