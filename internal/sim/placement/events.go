package placement

import (
	"buildgrid.ai/internal/sim/economy"
	"buildgrid.ai/internal/sim/grid"
	"buildgrid.ai/internal/sim/registry"
)

type EventKind string

const (
	EventPlaced    EventKind = "PLACED"
	EventRemoved   EventKind = "REMOVED"
	EventDestroyed EventKind = "DESTROYED"
)

// Event describes one committed change. Entity points at the registry entry,
// which may already have been removed from the registry.
type Event struct {
	Kind   EventKind
	Tick   uint64
	Entity *registry.Entity

	// Charged is what the placement cost; Refund is what a sale returned.
	Charged economy.Cost
	Refund  economy.Cost

	// Released lists zone cells revoked by a removal.
	Released []grid.Cell
}
