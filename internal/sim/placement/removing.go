package placement

import (
	"buildgrid.ai/internal/sim/economy"
	"buildgrid.ai/internal/sim/grid"
	"buildgrid.ai/internal/sim/registry"
)

// removingSession sells or clears whatever the pointer is on.
type removingSession struct {
	b     *board
	ended bool
}

func newRemovingSession(b *board) *removingSession {
	b.preview.ShowRemovePreview()
	return &removingSession{b: b}
}

func (s *removingSession) OnAction(target grid.Cell) *registry.Entity {
	if s.ended {
		return nil
	}
	e := s.b.entityAt(target)
	if e == nil {
		return nil
	}

	var refund economy.Cost
	if e.Sellable && len(e.Cost) > 0 {
		refund = e.Cost.Clone()
		s.b.ledger.Refund(refund)
	}
	released := s.b.remove(e)
	s.b.emit(Event{Kind: EventRemoved, Entity: e, Refund: refund, Released: released})

	s.UpdatePreview(target)
	return e
}

func (s *removingSession) UpdatePreview(target grid.Cell) {
	if s.ended {
		return
	}
	e := s.b.entityAt(target)
	cells := []grid.Cell{target}
	if e != nil && len(e.Cells) > 0 {
		cells = e.Cells
	}
	s.b.preview.SetPreviewPosition(s.b.grid.CellToWorld(target), e != nil)
	s.b.preview.SetPreviewCells(cells)
}

// UpdateRotation has nothing to rotate; it only refreshes the preview.
func (s *removingSession) UpdateRotation(_ int, target grid.Cell) {
	s.UpdatePreview(target)
}

func (s *removingSession) EndState() {
	if s.ended {
		return
	}
	s.ended = true
	s.b.preview.StopPreview()
}
