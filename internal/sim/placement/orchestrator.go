package placement

import (
	"fmt"
	"strconv"

	"buildgrid.ai/internal/sim/catalogs"
	"buildgrid.ai/internal/sim/grid"
	"buildgrid.ai/internal/sim/occupancy"
	"buildgrid.ai/internal/sim/registry"
	"buildgrid.ai/internal/sim/zone"
)

type Config struct {
	Grid    grid.Grid
	Catalog *catalogs.Catalog

	Ledger    Ledger
	Obstacles ObstacleChecker
	Preview   PreviewRenderer
	Factory   EntityFactory

	// Clock stamps entities and events; nil stamps zero.
	Clock func() uint64
	// OnEvent receives every committed placement and removal.
	OnEvent func(Event)

	// Debounce skips UpdatePreview while the pointer stays in one cell.
	Debounce bool
}

// Orchestrator owns both occupancy layers, the buildable zone and the entity
// registry, and routes input to the active Session.
type Orchestrator struct {
	b       *board
	catalog *catalogs.Catalog

	session Session
	mode    Mode

	debounce bool
	pointer  grid.Cell
	seen     bool // pointer has been set since the session started
}

func New(cfg Config) *Orchestrator {
	if cfg.Grid.CellSize <= 0 {
		cfg.Grid = grid.New(1)
	}
	if cfg.Catalog == nil {
		cfg.Catalog = &catalogs.Catalog{ByID: map[int]catalogs.Definition{}}
	}
	if cfg.Ledger == nil {
		cfg.Ledger = freeLedger{}
	}
	if cfg.Obstacles == nil {
		cfg.Obstacles = noObstacles{}
	}
	if cfg.Preview == nil {
		cfg.Preview = nopPreview{}
	}
	if cfg.Factory == nil {
		cfg.Factory = &seqFactory{}
	}
	b := &board{
		grid:      cfg.Grid,
		floor:     occupancy.New(occupancy.LayerFloor),
		building:  occupancy.New(occupancy.LayerStructure),
		zones:     zone.New(cfg.Grid),
		entities:  registry.New(),
		ledger:    cfg.Ledger,
		obstacles: cfg.Obstacles,
		preview:   cfg.Preview,
		factory:   cfg.Factory,
		clock:     cfg.Clock,
		onEvent:   cfg.OnEvent,
	}
	return &Orchestrator{b: b, catalog: cfg.Catalog, mode: ModeIdle, debounce: cfg.Debounce}
}

func (o *Orchestrator) Grid() grid.Grid { return o.b.grid }

func (o *Orchestrator) Catalog() *catalogs.Catalog { return o.catalog }

func (o *Orchestrator) Mode() Mode { return o.mode }

// StartPlacement replaces any active session with one for defID. Chainable
// definitions get a chain session.
func (o *Orchestrator) StartPlacement(defID int) error {
	def, ok := o.catalog.Get(defID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDefinition, defID)
	}
	o.StopPlacement()
	if def.Chainable {
		o.session = newChainSession(o.b, def)
		o.mode = ModeChain
	} else {
		o.session = newStandardSession(o.b, def)
		o.mode = ModePlacing
	}
	o.refresh()
	return nil
}

func (o *Orchestrator) StartRemoving() {
	o.StopPlacement()
	o.session = newRemovingSession(o.b)
	o.mode = ModeRemoving
	o.refresh()
}

// StopPlacement ends the active session. It is safe to call when idle.
func (o *Orchestrator) StopPlacement() {
	if o.session == nil {
		return
	}
	o.session.EndState()
	o.session = nil
	o.mode = ModeIdle
}

// Click forwards a commit at target. A successful placement ends the
// session; removal stays active until stopped.
func (o *Orchestrator) Click(target grid.Cell) *registry.Entity {
	if o.session == nil {
		return nil
	}
	o.pointer, o.seen = target, true
	e := o.session.OnAction(target)
	if e != nil && (o.mode == ModePlacing || o.mode == ModeChain) {
		o.StopPlacement()
	}
	return e
}

// ChainAnchor returns the anchor of an active chain session that has one.
func (o *Orchestrator) ChainAnchor() (grid.Cell, bool) {
	cs, ok := o.session.(*chainSession)
	if !ok || !cs.anchored {
		return grid.Cell{}, false
	}
	return cs.anchor, true
}

func (o *Orchestrator) Rotate(direction int) {
	if o.session == nil {
		return
	}
	o.session.UpdateRotation(direction, o.pointer)
}

// CycleVariant reports whether the active session supports variants.
func (o *Orchestrator) CycleVariant() bool {
	vc, ok := o.session.(VariantCycler)
	if !ok {
		return false
	}
	vc.CycleVariant(o.pointer)
	return true
}

// Tick refreshes the preview for the pointer cell.
func (o *Orchestrator) Tick(pointer grid.Cell) {
	if o.session == nil {
		return
	}
	if o.debounce && o.seen && pointer == o.pointer {
		return
	}
	o.pointer, o.seen = pointer, true
	o.session.UpdatePreview(pointer)
}

func (o *Orchestrator) refresh() {
	if o.seen {
		o.session.UpdatePreview(o.pointer)
	}
}

func (o *Orchestrator) Occupancy(layer occupancy.Layer) occupancy.Reader {
	return o.b.layer(layer)
}

func (o *Orchestrator) Entities() registry.Reader { return o.b.entities }

func (o *Orchestrator) ZoneCount() int { return o.b.zones.Count() }

func (o *Orchestrator) IsBuildable(c grid.Cell) bool { return o.b.zones.IsBuildable(c) }

func (o *Orchestrator) ZoneCells() []grid.Cell { return o.b.zones.Cells() }

// ExpandZone grows the whole zone by radius cells. The new cells belong to
// no entity and are never released.
func (o *Orchestrator) ExpandZone(radius int) { o.b.zones.Expand(radius) }

// AddZoneRectangle grants unowned zone cells, used to seed a session without
// a base.
func (o *Orchestrator) AddZoneRectangle(center grid.Vec3, width, length int) []grid.Cell {
	return o.b.zones.AddRectangle(center, width, length)
}

// PlaceBase puts the base definition centred on pos and opens a circular zone
// around it. The base is free and never releases its zone.
func (o *Orchestrator) PlaceBase(defID int, pos grid.Vec3, zoneRadius float64) (*registry.Entity, error) {
	def, ok := o.catalog.Get(defID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDefinition, defID)
	}
	def.Base = true
	size := def.Size()
	origin := o.b.grid.WorldToCell(pos).Sub(grid.Cell{X: size.W / 2, Z: size.L / 2})

	e, err := o.b.spawn(def, origin, occupancy.BlockCells(origin, size), size, 0, 0, nil)
	if err != nil {
		return nil, err
	}
	e.AddedCells = o.b.zones.AddCircle(pos, zoneRadius)
	o.b.emit(Event{Kind: EventPlaced, Entity: e})
	return e, nil
}

// Destroy removes an entity without refund, as when it is killed. It returns
// nil for unknown or already removed indices.
func (o *Orchestrator) Destroy(index int) *registry.Entity {
	e := o.b.entities.Get(index)
	if e == nil {
		return nil
	}
	released := o.b.remove(e)
	o.b.emit(Event{Kind: EventDestroyed, Entity: e, Released: released})
	if o.session != nil && o.seen {
		o.session.UpdatePreview(o.pointer)
	}
	return e
}

// Available reports whether defID can be bought right now: every cost entry
// is affordable and every dependency kind has at least one live entity.
func (o *Orchestrator) Available(defID int) bool {
	def, ok := o.catalog.Get(defID)
	if !ok {
		return false
	}
	if !o.b.ledger.CanAfford(def.UnitCost()) {
		return false
	}
	if len(def.Dependencies) == 0 {
		return true
	}
	counts := o.b.entities.KindCounts()
	for _, kind := range def.Dependencies {
		if counts[kind] == 0 {
			return false
		}
	}
	return true
}

func (o *Orchestrator) KindCounts() map[string]int { return o.b.entities.KindCounts() }

// Reset clears all grid state, as at the end of a game session.
func (o *Orchestrator) Reset() {
	o.StopPlacement()
	o.b.entities.Each(func(e *registry.Entity) { o.b.factory.Destroy(e.ID) })
	o.b.entities.Reset()
	o.b.floor.Reset()
	o.b.building.Reset()
	o.b.zones.Clear()
	o.seen = false
}

type seqFactory struct{ n int }

func (f *seqFactory) Instantiate(def catalogs.Definition, _ grid.Vec3, _ int) string {
	f.n++
	return def.Kind + "-" + strconv.Itoa(f.n)
}

func (f *seqFactory) Destroy(string) {}
