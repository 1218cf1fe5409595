package placement

import (
	"buildgrid.ai/internal/sim/catalogs"
	"buildgrid.ai/internal/sim/grid"
	"buildgrid.ai/internal/sim/occupancy"
	"buildgrid.ai/internal/sim/registry"
)

// standardSession places one footprint per commit.
type standardSession struct {
	b     *board
	def   catalogs.Definition
	layer *occupancy.Grid

	rot     int
	variant int
	ended   bool
}

func newStandardSession(b *board, def catalogs.Definition) *standardSession {
	s := &standardSession{b: b, def: def, layer: b.layerFor(def)}
	b.preview.ShowPreview(def, s.size())
	return s
}

func (s *standardSession) size() grid.Size { return s.def.VariantSize(s.variant) }

// footprint returns the corrected origin and covered cells for a pointer cell.
func (s *standardSession) footprint(target grid.Cell) (grid.Cell, []grid.Cell) {
	origin := grid.PivotAdjust(target, s.size(), s.rot)
	return origin, grid.FootprintCells(origin, s.size(), s.rot)
}

func (s *standardSession) valid(cells []grid.Cell) bool {
	return s.b.cellsValid(s.layer, cells) && s.b.ledger.CanAfford(s.def.UnitCost())
}

func (s *standardSession) OnAction(target grid.Cell) *registry.Entity {
	if s.ended {
		return nil
	}
	origin, cells := s.footprint(target)
	if !s.valid(cells) {
		s.UpdatePreview(target)
		return nil
	}

	cost := s.def.UnitCost()
	rotated := grid.RotatedSize(s.size(), s.rot)
	e, err := s.b.spawn(s.def, origin, cells, rotated, s.rot, s.variant, cost)
	if err != nil {
		return nil
	}
	s.b.ledger.Deduct(cost)
	s.b.grantZone(e, s.def, cells)
	s.b.emit(Event{Kind: EventPlaced, Entity: e, Charged: cost})

	s.UpdatePreview(target)
	return e
}

func (s *standardSession) UpdatePreview(target grid.Cell) {
	if s.ended {
		return
	}
	origin, cells := s.footprint(target)
	s.b.preview.SetPreviewPosition(s.b.grid.CellToWorld(origin), s.valid(cells))
	s.b.preview.SetPreviewCells(cells)
}

func (s *standardSession) UpdateRotation(direction int, target grid.Cell) {
	if s.ended {
		return
	}
	s.rot = (s.rot + grid.NormalizeRotation(direction)) & 3
	s.b.preview.SetPreviewRotation(s.rot * 90)
	s.UpdatePreview(target)
}

// CycleVariant switches to the next footprint variant. Rotation is kept.
func (s *standardSession) CycleVariant(target grid.Cell) {
	if s.ended || s.def.VariantCount() < 2 {
		return
	}
	s.variant = (s.variant + 1) % s.def.VariantCount()
	s.b.preview.ShowPreview(s.def, s.size())
	s.b.preview.SetPreviewRotation(s.rot * 90)
	s.UpdatePreview(target)
}

func (s *standardSession) EndState() {
	if s.ended {
		return
	}
	s.ended = true
	s.b.preview.StopPreview()
}
