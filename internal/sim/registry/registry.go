// Package registry keeps the world entities created by placement.
//
// Slots are append-only and a removed entity leaves a nil slot behind, so an
// index handed to an occupancy record stays valid for the life of the session.
package registry

import (
	"buildgrid.ai/internal/sim/economy"
	"buildgrid.ai/internal/sim/grid"
	"buildgrid.ai/internal/sim/occupancy"
)

type Entity struct {
	Index        int
	ID           string
	DefinitionID int
	Kind         string
	Layer        occupancy.Layer

	Pos      grid.Vec3
	Origin   grid.Cell
	Rotation int
	Variant  int

	// Cells holds the occupancy cells recorded for this entity. Mobile
	// entities have none.
	Cells []grid.Cell
	// AddedCells are the buildable-zone cells this entity granted.
	AddedCells []grid.Cell
	Cost       economy.Cost

	Mobile   bool
	Sellable bool
	Base     bool

	PlacedTick uint64
}

// Reader is the read-only view handed outside the placement package.
type Reader interface {
	Get(index int) *Entity
	Len() int
	Live() int
	Each(fn func(e *Entity))
}

type Registry struct {
	slots []*Entity
	live  int
}

func New() *Registry { return &Registry{} }

// Add appends e and stamps its index.
func (r *Registry) Add(e *Entity) int {
	e.Index = len(r.slots)
	r.slots = append(r.slots, e)
	r.live++
	return e.Index
}

func (r *Registry) Get(index int) *Entity {
	if index < 0 || index >= len(r.slots) {
		return nil
	}
	return r.slots[index]
}

// Remove nils the slot. Unknown or already removed indices return nil.
func (r *Registry) Remove(index int) *Entity {
	e := r.Get(index)
	if e == nil {
		return nil
	}
	r.slots[index] = nil
	r.live--
	return e
}

// Len is the number of slots ever allocated, including removed ones.
func (r *Registry) Len() int { return len(r.slots) }

func (r *Registry) Live() int { return r.live }

// Each visits live entities in index order.
func (r *Registry) Each(fn func(e *Entity)) {
	for _, e := range r.slots {
		if e != nil {
			fn(e)
		}
	}
}

// KindCounts tallies live entities by kind.
func (r *Registry) KindCounts() map[string]int {
	out := map[string]int{}
	r.Each(func(e *Entity) {
		if e.Kind != "" {
			out[e.Kind]++
		}
	})
	return out
}

func (r *Registry) Reset() {
	r.slots = nil
	r.live = 0
}
