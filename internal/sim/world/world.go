package world

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"buildgrid.ai/internal/protocol"
	"buildgrid.ai/internal/sim/catalogs"
	"buildgrid.ai/internal/sim/economy"
	"buildgrid.ai/internal/sim/grid"
	"buildgrid.ai/internal/sim/placement"
	"buildgrid.ai/internal/sim/tuning"
)

type WorldConfig struct {
	ID         string
	TickRateHz int
	CellSize   float64

	StartingResources map[string]int
	Base              tuning.Base
	InitialZoneExpand int
	Obstacles         [][2]int
	PointerDebounce   bool
}

// ConfigFromTuning maps tuning.yaml onto a world config.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                id,
		TickRateHz:        t.TickRateHz,
		CellSize:          t.CellSize,
		StartingResources: t.StartingResources,
		Base:              t.Base,
		InitialZoneExpand: t.InitialZoneExpand,
		Obstacles:         t.Obstacles,
		PointerDebounce:   t.PointerDebounce,
	}
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome  protocol.WelcomeMsg
	Catalogs []protocol.CatalogMsg
}

type InputEnvelope struct {
	SessionID string
	Input     protocol.InputMsg
}

type clientState struct {
	Name string
	Out  chan []byte
}

// World is one game session: a single player's grid, zone, entities and
// resources. All state must be accessed only from the world loop goroutine.
type World struct {
	cfg     WorldConfig
	catalog *catalogs.Catalog
	logger  *log.Logger

	tick atomic.Uint64

	grid      grid.Grid
	ledger    *economy.Ledger
	factory   *entityFactory
	preview   *clientPreview
	placement *placement.Orchestrator

	clients map[string]*clientState

	pointer    grid.Cell
	hasPointer bool

	// events collects placement events raised while applying one input.
	events []placement.Event

	inbox   chan InputEnvelope
	join    chan JoinRequest
	leave   chan string
	destroy chan destroyReq
	stop    chan struct{}

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Changes made by New (the base) wait here for the first audit logger.
	booting   bool
	bootAudit []AuditEntry

	status atomic.Value // protocol.StatusMsg
}

func New(cfg WorldConfig, cat *catalogs.Catalog, logger *log.Logger) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("tick rate must be > 0, got %d", cfg.TickRateHz)
	}
	if cat == nil {
		return nil, fmt.Errorf("nil catalog")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	w := &World{
		cfg:     cfg,
		catalog: cat,
		logger:  logger,
		grid:    grid.New(cfg.CellSize),
		ledger:  economy.NewLedger(cfg.StartingResources),
		factory: newEntityFactory(),
		preview: &clientPreview{},
		clients: map[string]*clientState{},
		inbox:   make(chan InputEnvelope, 1024),
		join:    make(chan JoinRequest, 64),
		leave:   make(chan string, 64),
		destroy: make(chan destroyReq, 16),
		stop:    make(chan struct{}),
	}
	w.placement = placement.New(placement.Config{
		Grid:      w.grid,
		Catalog:   cat,
		Ledger:    w.ledger,
		Obstacles: newObstacleMap(w.grid, cfg.Obstacles),
		Preview:   w.preview,
		Factory:   w.factory,
		Clock:     w.tick.Load,
		OnEvent:   w.onPlacementEvent,
		Debounce:  cfg.PointerDebounce,
	})

	w.booting = true
	defer func() { w.booting = false }()
	if cfg.Base.Enabled {
		pos := grid.Vec3FromArray(cfg.Base.Pos)
		if _, err := w.placement.PlaceBase(cfg.Base.DefinitionID, pos, cfg.Base.ZoneRadius); err != nil {
			return nil, fmt.Errorf("place base: %w", err)
		}
	}
	w.placement.ExpandZone(cfg.InitialZoneExpand)
	w.events = w.events[:0]
	w.publishStatus()
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger) { w.tickLogger = l }

// SetAuditLogger attaches l and hands it the entries recorded while the world
// was being built. Call it before Run.
func (w *World) SetAuditLogger(l AuditLogger) {
	w.auditLogger = l
	if l == nil {
		return
	}
	for _, e := range w.bootAudit {
		_ = l.WriteAudit(e)
	}
	w.bootAudit = nil
}

func (w *World) Inbox() chan<- InputEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest    { return w.join }
func (w *World) Leave() chan<- string        { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) ID() string { return w.cfg.ID }

func (w *World) TickRateHz() int { return w.cfg.TickRateHz }

func (w *World) Catalog() *catalogs.Catalog { return w.catalog }

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingInputs []InputEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			w.placement.StopPlacement()
			return ctx.Err()
		case <-w.stop:
			w.placement.StopPlacement()
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-w.inbox:
			pendingInputs = append(pendingInputs, env)
		case req := <-w.destroy:
			w.handleDestroy(req)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingInputs)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingInputs = pendingInputs[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering
// semantics as Run. It is intended for tests and replays.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, inputs []InputEnvelope) uint64 {
	tick := w.tick.Load()
	w.step(joins, leaves, inputs)
	return tick
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
