package grid

// Size is a footprint in cells. W runs along X and L along Z.
type Size struct {
	W int `json:"w"`
	L int `json:"l"`
}

// NewSize clamps both dimensions to at least one cell.
func NewSize(w, l int) Size {
	if w < 1 {
		w = 1
	}
	if l < 1 {
		l = 1
	}
	return Size{W: w, L: l}
}

func (s Size) Area() int { return s.W * s.L }

// NormalizeRotation converts a client-provided rotation value into a stable
// quarter-turn count in [0,3].
//
// It accepts either quarter-turns (0..3) or degrees (multiples of 90).
func NormalizeRotation(r int) int {
	// Treat large multiples of 90 as degrees.
	if r%90 == 0 && (r > 3 || r < -3) {
		r = r / 90
	}
	r %= 4
	if r < 0 {
		r += 4
	}
	return r
}

// RotatedSize swaps W and L for odd quarter turns.
func RotatedSize(s Size, rot int) Size {
	if NormalizeRotation(rot)%2 == 1 {
		return Size{W: s.L, L: s.W}
	}
	return s
}

// RotateXZ rotates a local footprint offset around the footprint's origin
// corner by rot quarter turns. rot must be normalized.
func RotateXZ(x, z, rot int) (rx, rz int) {
	switch rot & 3 {
	case 0:
		return x, z
	case 1:
		return z, -x
	case 2:
		return -x, -z
	default: // 3
		return -z, x
	}
}

// InverseRotateXZ undoes RotateXZ for the same rot.
func InverseRotateXZ(rx, rz, rot int) (x, z int) {
	return RotateXZ(rx, rz, (4-(rot&3))&3)
}

// CellsOf lists the cells covered by a footprint whose size has already been
// rotation-swapped by the caller. The pivot is the origin corner, not the
// footprint center.
func CellsOf(origin Cell, size Size, rot int) []Cell {
	rot = NormalizeRotation(rot)
	out := make([]Cell, 0, size.Area())
	for x := 0; x < size.W; x++ {
		for y := 0; y < size.L; y++ {
			dx, dz := RotateXZ(x, y, rot)
			out = append(out, Cell{X: origin.X + dx, Z: origin.Z + dz})
		}
	}
	return out
}

// FootprintCells is CellsOf for an unrotated base size.
func FootprintCells(origin Cell, base Size, rot int) []Cell {
	return CellsOf(origin, RotatedSize(base, rot), rot)
}

// PivotAdjust shifts a pointer cell so a rotated footprint stays under the
// cursor. Quarter turn 1 needs no correction.
func PivotAdjust(c Cell, base Size, rot int) Cell {
	switch NormalizeRotation(rot) {
	case 2:
		return Cell{X: c.X + base.W - 1, Z: c.Z + base.L - 1}
	case 3:
		return Cell{X: c.X, Z: c.Z + base.W - 1}
	default:
		return c
	}
}

// Bounds returns the minimum corner and the extent of a cell list.
func Bounds(cells []Cell) (min Cell, size Size) {
	if len(cells) == 0 {
		return Cell{}, Size{}
	}
	min, max := cells[0], cells[0]
	for _, c := range cells[1:] {
		if c.X < min.X {
			min.X = c.X
		}
		if c.Z < min.Z {
			min.Z = c.Z
		}
		if c.X > max.X {
			max.X = c.X
		}
		if c.Z > max.Z {
			max.Z = c.Z
		}
	}
	return min, Size{W: max.X - min.X + 1, L: max.Z - min.Z + 1}
}
