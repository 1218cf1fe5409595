package world

import (
	"buildgrid.ai/internal/protocol"
	"buildgrid.ai/internal/sim/grid"
	"buildgrid.ai/internal/sim/placement"
)

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// TickLogEntry is written for every tick that received joins, leaves or
// inputs. Replaying the entries in order against the same configs
// reproduces the session.
type TickLogEntry struct {
	Tick   uint64          `json:"tick"`
	Joins  []RecordedJoin  `json:"joins,omitempty"`
	Leaves []string        `json:"leaves,omitempty"`
	Inputs []RecordedInput `json:"inputs,omitempty"`
}

type RecordedJoin struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
}

type RecordedInput struct {
	SessionID string            `json:"session_id"`
	Input     protocol.InputMsg `json:"input"`
}

// AuditEntry records one committed grid change.
type AuditEntry struct {
	Tick         uint64         `json:"tick"`
	WorldID      string         `json:"world_id"`
	Action       string         `json:"action"` // PLACED, REMOVED, DESTROYED
	EntityIndex  int            `json:"entity_index"`
	EntityID     string         `json:"entity_id"`
	DefinitionID int            `json:"definition_id"`
	Kind         string         `json:"kind"`
	Layer        string         `json:"layer"`
	Origin       [2]int         `json:"origin"`
	Rotation     int            `json:"rotation"`
	Cells        [][2]int       `json:"cells,omitempty"`
	ZoneAdded    int            `json:"zone_added,omitempty"`
	ZoneReleased [][2]int       `json:"zone_released,omitempty"`
	Charged      map[string]int `json:"charged,omitempty"`
	Refund       map[string]int `json:"refund,omitempty"`
	Base         bool           `json:"base,omitempty"`
}

func (w *World) onPlacementEvent(ev placement.Event) {
	w.events = append(w.events, ev)

	e := ev.Entity
	switch ev.Kind {
	case placement.EventPlaced:
		w.logger.Printf("placed %s #%d at %v rot=%d", e.Kind, e.Index, e.Origin, e.Rotation)
	default:
		w.logger.Printf("%s %s #%d released=%d", ev.Kind, e.Kind, e.Index, len(ev.Released))
	}

	entry := AuditEntry{
		Tick:         ev.Tick,
		WorldID:      w.cfg.ID,
		Action:       string(ev.Kind),
		EntityIndex:  e.Index,
		EntityID:     e.ID,
		DefinitionID: e.DefinitionID,
		Kind:         e.Kind,
		Layer:        e.Layer.String(),
		Origin:       e.Origin.ToArray(),
		Rotation:     e.Rotation,
		Cells:        cellArrays(e.Cells),
		ZoneAdded:    zoneAdded(ev),
		ZoneReleased: cellArrays(ev.Released),
		Charged:      ev.Charged,
		Refund:       ev.Refund,
		Base:         e.Base,
	}
	switch {
	case w.auditLogger != nil:
		_ = w.auditLogger.WriteAudit(entry)
	case w.booting:
		w.bootAudit = append(w.bootAudit, entry)
	}
}

func zoneAdded(ev placement.Event) int {
	if ev.Kind != placement.EventPlaced {
		return 0
	}
	return len(ev.Entity.AddedCells)
}

func cellArrays(cells []grid.Cell) [][2]int {
	if len(cells) == 0 {
		return nil
	}
	out := make([][2]int, 0, len(cells))
	for _, c := range cells {
		out = append(out, c.ToArray())
	}
	return out
}
