package world

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"buildgrid.ai/internal/protocol"
	"buildgrid.ai/internal/sim/economy"
	"buildgrid.ai/internal/sim/grid"
	"buildgrid.ai/internal/sim/placement"
	"buildgrid.ai/internal/sim/registry"
)

func (w *World) step(joins []JoinRequest, leaves []string, inputs []InputEnvelope) {
	nowTick := w.tick.Load()

	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := w.clients[id]; ok {
			delete(w.clients, id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := w.joinClient(req.Name, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, RecordedJoin{SessionID: resp.Welcome.SessionID, Name: req.Name})
	}

	// Apply inputs in arrival order.
	recorded := make([]RecordedInput, 0, len(inputs))
	for _, env := range inputs {
		if _, ok := w.clients[env.SessionID]; !ok && env.SessionID != "" {
			continue
		}
		recorded = append(recorded, RecordedInput{SessionID: env.SessionID, Input: env.Input})
		if res := w.applyInput(env.Input, nowTick); res != nil {
			w.sendResult(env.SessionID, *res)
		}
	}

	if w.hasPointer {
		w.placement.Tick(w.pointer)
	}
	w.flushPreview(nowTick)

	if w.tickLogger != nil && (len(recorded) > 0 || len(recordedJoins) > 0 || len(recordedLeaves) > 0) {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:   nowTick,
			Joins:  recordedJoins,
			Leaves: recordedLeaves,
			Inputs: recorded,
		})
	}

	w.publishStatus()
	w.tick.Add(1)
}

func (w *World) joinClient(name string, out chan []byte) JoinResponse {
	if name == "" {
		name = "player"
	}
	id := uuid.NewString()
	w.clients[id] = &clientState{Name: name, Out: out}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       id,
		WorldID:         w.cfg.ID,
		WorldParams: protocol.WorldParams{
			TickRateHz: w.cfg.TickRateHz,
			CellSize:   w.grid.CellSize,
		},
		Catalogs: protocol.CatalogDigests{
			Definitions: protocol.DigestRef{Digest: w.catalog.Digest, Count: len(w.catalog.Order)},
		},
		Resources: w.ledger.Balances(),
	}
	catalogMsgs := []protocol.CatalogMsg{
		{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "definitions",
			Digest:          w.catalog.Digest,
			Part:            1,
			TotalParts:      1,
			Data:            w.catalog.Definitions(),
		},
	}
	w.logger.Printf("join session=%s name=%q", id, name)
	return JoinResponse{Welcome: welcome, Catalogs: catalogMsgs}
}

// applyInput runs one input and returns the RESULT to send back, or nil for
// inputs that do not get one.
func (w *World) applyInput(in protocol.InputMsg, tick uint64) *protocol.ResultMsg {
	w.events = w.events[:0]
	res := &protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Seq:             in.Seq,
		Kind:            in.Kind,
		OK:              true,
	}
	fail := func(code, msg string) {
		res.OK = false
		res.Code = code
		res.Message = msg
	}

	if in.Pos != nil {
		w.pointer = w.grid.WorldToCell(grid.Vec3FromArray(*in.Pos))
		w.hasPointer = true
	}

	switch in.Kind {
	case protocol.InputPointer:
		if in.Pos == nil {
			fail(protocol.ErrBadRequest, "missing pos")
			break
		}
		return nil

	case protocol.InputStartPlacement:
		if in.DefinitionID == nil {
			fail(protocol.ErrBadRequest, "missing definition_id")
			break
		}
		id := *in.DefinitionID
		if _, ok := w.catalog.Get(id); ok && !w.placement.Available(id) {
			fail(protocol.ErrUnavailable, fmt.Sprintf("definition %d unavailable", id))
			break
		}
		if err := w.placement.StartPlacement(id); err != nil {
			w.logger.Printf("start placement: %v", err)
			fail(protocol.ErrUnknownDefinition, err.Error())
		}

	case protocol.InputStartRemoving:
		w.placement.StartRemoving()

	case protocol.InputStop, protocol.InputExit:
		w.placement.StopPlacement()

	case protocol.InputRotate:
		if w.placement.Mode() == placement.ModeIdle {
			fail(protocol.ErrNoSession, "no active session")
			break
		}
		dir := in.Direction
		if dir == 0 {
			dir = 1
		}
		w.placement.Rotate(dir)

	case protocol.InputVariant:
		if w.placement.Mode() == placement.ModeIdle {
			fail(protocol.ErrNoSession, "no active session")
			break
		}
		if !w.placement.CycleVariant() {
			fail(protocol.ErrBadRequest, "session has no variants")
		}

	case protocol.InputClick:
		w.click(fail)

	default:
		fail(protocol.ErrBadRequest, fmt.Sprintf("unknown input kind %q", in.Kind))
	}

	w.fillResult(res)
	return res
}

func (w *World) click(fail func(code, msg string)) {
	mode := w.placement.Mode()
	if mode == placement.ModeIdle {
		fail(protocol.ErrNoSession, "no active session")
		return
	}
	if !w.hasPointer {
		fail(protocol.ErrBadRequest, "no pointer position")
		return
	}

	_, anchoredBefore := w.placement.ChainAnchor()
	if e := w.placement.Click(w.pointer); e != nil {
		return
	}
	switch mode {
	case placement.ModeRemoving:
		fail(protocol.ErrInvalidTarget, fmt.Sprintf("nothing to remove at %v", w.pointer))
	case placement.ModeChain:
		if _, anchored := w.placement.ChainAnchor(); anchored && !anchoredBefore {
			return
		}
		fail(protocol.ErrBlocked, "chain blocked")
	default:
		fail(protocol.ErrBlocked, fmt.Sprintf("cannot place at %v", w.pointer))
	}
}

func (w *World) fillResult(res *protocol.ResultMsg) {
	charged := economy.Cost{}
	refund := economy.Cost{}
	for _, ev := range w.events {
		switch ev.Kind {
		case placement.EventPlaced:
			res.Placed = append(res.Placed, entityRef(ev.Entity))
		case placement.EventRemoved, placement.EventDestroyed:
			res.Removed = append(res.Removed, entityRef(ev.Entity))
		}
		for k, v := range ev.Charged {
			charged[k] += v
		}
		for k, v := range ev.Refund {
			refund[k] += v
		}
		res.Released += len(ev.Released)
	}
	if len(charged) > 0 {
		res.Charged = charged.Pairs()
	}
	if len(refund) > 0 {
		res.Refund = refund.Pairs()
	}
	res.Mode = string(w.placement.Mode())
	res.Resources = w.ledger.Balances()
	res.ZoneCount = w.placement.ZoneCount()
	w.events = w.events[:0]
}

func entityRef(e *registry.Entity) protocol.EntityRef {
	return protocol.EntityRef{
		Index:        e.Index,
		ID:           e.ID,
		DefinitionID: e.DefinitionID,
		Kind:         e.Kind,
		Origin:       e.Origin.ToArray(),
		Rotation:     e.Rotation,
		Cells:        len(e.Cells),
	}
}

func (w *World) sendResult(sessionID string, res protocol.ResultMsg) {
	c := w.clients[sessionID]
	if c == nil || c.Out == nil {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	select {
	case c.Out <- b:
	default:
		w.logger.Printf("drop result session=%s seq=%d", sessionID, res.Seq)
	}
}

func (w *World) flushPreview(tick uint64) {
	if !w.preview.dirty {
		return
	}
	msg := w.preview.message(tick, string(w.placement.Mode()))
	w.preview.dirty = false
	if len(w.clients) == 0 {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, c := range w.clients {
		if c.Out != nil {
			sendLatest(c.Out, b)
		}
	}
}
