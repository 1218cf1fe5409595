package world

import (
	"context"
	"errors"

	"buildgrid.ai/internal/protocol"
)

// Status returns the snapshot published at the end of the last step. Safe
// to call from any goroutine.
func (w *World) Status() protocol.StatusMsg {
	if w == nil {
		return protocol.StatusMsg{}
	}
	v, ok := w.status.Load().(protocol.StatusMsg)
	if !ok {
		return protocol.StatusMsg{}
	}
	return v
}

func (w *World) publishStatus() {
	var available []int
	for _, id := range w.catalog.Order {
		if w.placement.Available(id) {
			available = append(available, id)
		}
	}
	w.status.Store(protocol.StatusMsg{
		Type:            protocol.TypeStatus,
		ProtocolVersion: protocol.Version,
		WorldID:         w.cfg.ID,
		Tick:            w.tick.Load(),
		Mode:            string(w.placement.Mode()),
		Clients:         len(w.clients),
		Entities:        w.placement.Entities().Live(),
		ZoneCount:       w.placement.ZoneCount(),
		Kinds:           w.placement.KindCounts(),
		Resources:       w.ledger.Balances(),
		Available:       available,
	})
}

type destroyReq struct {
	Index int
	Resp  chan bool
}

var ErrWorldStopped = errors.New("world stopped")

// RequestDestroy asks the world loop to destroy the entity at index, as a
// damage system would. It reports whether an entity was removed.
func (w *World) RequestDestroy(ctx context.Context, index int) (bool, error) {
	req := destroyReq{Index: index, Resp: make(chan bool, 1)}
	select {
	case w.destroy <- req:
	case <-ctx.Done():
		return false, ctx.Err()
	case <-w.stop:
		return false, ErrWorldStopped
	}
	select {
	case ok := <-req.Resp:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-w.stop:
		return false, ErrWorldStopped
	}
}

func (w *World) handleDestroy(req destroyReq) {
	w.events = w.events[:0]
	e := w.placement.Destroy(req.Index)
	w.events = w.events[:0]
	if req.Resp != nil {
		req.Resp <- e != nil
	}
}
