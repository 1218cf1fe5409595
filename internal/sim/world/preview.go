package world

import (
	"buildgrid.ai/internal/protocol"
	"buildgrid.ai/internal/sim/catalogs"
	"buildgrid.ai/internal/sim/grid"
)

// clientPreview buffers the ghost state during a step; the world flushes it
// to connected clients once per tick when it changed.
type clientPreview struct {
	active bool
	defID  int
	size   grid.Size
	pos    grid.Vec3
	valid  bool
	rotDeg int
	cells  []grid.Cell

	dirty bool
}

func (p *clientPreview) ShowPreview(def catalogs.Definition, size grid.Size) {
	p.active = true
	p.defID = def.ID
	p.size = size
	p.rotDeg = 0
	p.cells = nil
	p.dirty = true
}

func (p *clientPreview) ShowRemovePreview() {
	p.active = true
	p.defID = 0
	p.size = grid.NewSize(1, 1)
	p.rotDeg = 0
	p.cells = nil
	p.dirty = true
}

func (p *clientPreview) SetPreviewPosition(pos grid.Vec3, valid bool) {
	if p.pos != pos || p.valid != valid {
		p.pos, p.valid = pos, valid
		p.dirty = true
	}
}

func (p *clientPreview) SetPreviewRotation(deg int) {
	if p.rotDeg != deg {
		p.rotDeg = deg
		p.dirty = true
	}
}

func (p *clientPreview) SetPreviewCells(cells []grid.Cell) {
	if sameCells(p.cells, cells) {
		return
	}
	p.cells = append(p.cells[:0], cells...)
	p.dirty = true
}

func (p *clientPreview) StopPreview() {
	if !p.active {
		return
	}
	p.active = false
	p.cells = nil
	p.valid = false
	p.dirty = true
}

func (p *clientPreview) message(tick uint64, mode string) protocol.PreviewMsg {
	cells := make([][2]int, 0, len(p.cells))
	for _, c := range p.cells {
		cells = append(cells, c.ToArray())
	}
	return protocol.PreviewMsg{
		Type:            protocol.TypePreview,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Active:          p.active,
		Mode:            mode,
		DefinitionID:    p.defID,
		Size:            [2]int{p.size.W, p.size.L},
		Pos:             p.pos.ToArray(),
		Valid:           p.valid,
		RotationDeg:     p.rotDeg,
		Cells:           cells,
	}
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
