package placement

import (
	"fmt"
	"math"

	"github.com/zyedidia/generic/mapset"

	"buildgrid.ai/internal/sim/catalogs"
	"buildgrid.ai/internal/sim/grid"
	"buildgrid.ai/internal/sim/occupancy"
	"buildgrid.ai/internal/sim/registry"
)

// ChainPath walks from start towards end in world space at the given spacing
// and snaps every step to a cell. The result starts at start, has no
// duplicates and always ends with end.
func ChainPath(g grid.Grid, start, end grid.Cell, spacing float64) []grid.Cell {
	path := []grid.Cell{start}
	seen := mapset.New[grid.Cell]()
	seen.Put(start)

	from := g.CellCenter(start)
	dir := g.CellCenter(end).Sub(from)
	if dist := dir.Len(); dist > 0 && spacing > 0 {
		count := int(math.Ceil(dist / spacing))
		step := dir.Normalized()
		for i := 1; i < count; i++ {
			c := g.WorldToCell(from.Add(step.Scale(spacing * float64(i))))
			if seen.Has(c) {
				continue
			}
			seen.Put(c)
			path = append(path, c)
		}
	}
	if !seen.Has(end) {
		path = append(path, end)
	}
	return path
}

// chainSession places a line of identical units between an anchor click and
// a second click. The whole line commits or nothing does.
type chainSession struct {
	b     *board
	def   catalogs.Definition
	layer *occupancy.Grid

	rot     int
	variant int
	ended   bool

	anchored bool
	anchor   grid.Cell
	path     []grid.Cell
}

func newChainSession(b *board, def catalogs.Definition) *chainSession {
	s := &chainSession{b: b, def: def, layer: b.layerFor(def)}
	b.preview.ShowPreview(def, s.size())
	return s
}

func (s *chainSession) size() grid.Size { return s.def.VariantSize(s.variant) }

func (s *chainSession) unitCells(origin grid.Cell) []grid.Cell {
	return grid.FootprintCells(origin, s.size(), s.rot)
}

// lineFor is the path the session would commit for target.
func (s *chainSession) lineFor(target grid.Cell) []grid.Cell {
	if !s.anchored {
		return []grid.Cell{target}
	}
	return ChainPath(s.b.grid, s.anchor, target, s.def.ChainSpacing)
}

// valid checks every unit against the grid as it is now and the total cost.
func (s *chainSession) valid(path []grid.Cell) bool {
	if len(path) == 0 {
		return false
	}
	for _, p := range path {
		if !s.b.cellsValid(s.layer, s.unitCells(p)) {
			return false
		}
	}
	return s.b.ledger.CanAfford(s.def.UnitCost().Scale(len(path)))
}

func (s *chainSession) OnAction(target grid.Cell) *registry.Entity {
	if s.ended {
		return nil
	}
	if !s.anchored {
		s.anchored = true
		s.anchor = target
		s.UpdatePreview(target)
		return nil
	}

	path := s.lineFor(target)
	if !s.valid(path) {
		s.reset(target)
		return nil
	}

	last, err := s.commit(path)
	s.reset(target)
	if err != nil {
		return nil
	}
	return last
}

// commit places one unit per path cell. Footprints of neighbouring units may
// overlap, so each unit records only the cells no earlier unit took, and its
// record is sized to those cells. Nothing is charged or announced until every
// unit is on the grid; a failed spawn rolls the line back.
func (s *chainSession) commit(path []grid.Cell) (*registry.Entity, error) {
	if len(path) == 0 {
		return nil, nil
	}
	unit := s.def.UnitCost()
	claimed := mapset.New[grid.Cell]()

	placed := make([]*registry.Entity, 0, len(path))
	for _, p := range path {
		var own []grid.Cell
		for _, c := range s.unitCells(p) {
			if claimed.Has(c) {
				continue
			}
			claimed.Put(c)
			own = append(own, c)
		}
		_, size := grid.Bounds(own)
		e, err := s.b.spawn(s.def, p, own, size, s.rot, s.variant, unit)
		if err != nil {
			for _, done := range placed {
				s.b.remove(done)
			}
			return nil, fmt.Errorf("chain unit %d of %d at %v: %w", len(placed)+1, len(path), p, err)
		}
		placed = append(placed, e)
	}

	for _, e := range placed {
		s.b.ledger.Deduct(unit)
		s.b.emit(Event{Kind: EventPlaced, Entity: e, Charged: unit})
	}
	return placed[len(placed)-1], nil
}

func (s *chainSession) reset(target grid.Cell) {
	s.anchored = false
	s.path = nil
	s.UpdatePreview(target)
}

func (s *chainSession) UpdatePreview(target grid.Cell) {
	if s.ended {
		return
	}
	s.path = s.lineFor(target)

	var cells []grid.Cell
	seen := mapset.New[grid.Cell]()
	for _, p := range s.path {
		for _, c := range s.unitCells(p) {
			if !seen.Has(c) {
				seen.Put(c)
				cells = append(cells, c)
			}
		}
	}
	s.b.preview.SetPreviewPosition(s.b.grid.CellToWorld(s.path[0]), s.valid(s.path))
	s.b.preview.SetPreviewCells(cells)
}

func (s *chainSession) UpdateRotation(direction int, target grid.Cell) {
	if s.ended {
		return
	}
	s.rot = (s.rot + grid.NormalizeRotation(direction)) & 3
	s.b.preview.SetPreviewRotation(s.rot * 90)
	s.UpdatePreview(target)
}

func (s *chainSession) CycleVariant(target grid.Cell) {
	if s.ended || s.def.VariantCount() < 2 {
		return
	}
	s.variant = (s.variant + 1) % s.def.VariantCount()
	s.b.preview.ShowPreview(s.def, s.size())
	s.b.preview.SetPreviewRotation(s.rot * 90)
	s.UpdatePreview(target)
}

func (s *chainSession) EndState() {
	if s.ended {
		return
	}
	s.ended = true
	s.anchored = false
	s.path = nil
	s.b.preview.StopPreview()
}
