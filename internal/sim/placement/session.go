// Package placement turns player input into committed changes on the
// occupancy layers and the buildable zone.
//
// An Orchestrator holds at most one Session at a time. Standard, Chain and
// Removing sessions share the same four-call contract; validation failures
// are plain boolean outcomes and never surface as errors.
package placement

import (
	"errors"

	"buildgrid.ai/internal/sim/grid"
	"buildgrid.ai/internal/sim/registry"
)

var ErrUnknownDefinition = errors.New("unknown definition")

type Session interface {
	// OnAction commits or advances the interaction at target. It returns the
	// entity placed or removed, or nil when nothing changed.
	OnAction(target grid.Cell) *registry.Entity
	UpdatePreview(target grid.Cell)
	UpdateRotation(direction int, target grid.Cell)
	// EndState releases preview resources. Calling it twice is a no-op.
	EndState()
}

// VariantCycler is implemented by sessions that can switch to the next
// footprint variant of their definition.
type VariantCycler interface {
	CycleVariant(target grid.Cell)
}

type Mode string

const (
	ModeIdle     Mode = "IDLE"
	ModePlacing  Mode = "PLACING"
	ModeChain    Mode = "CHAIN"
	ModeRemoving Mode = "REMOVING"
)
