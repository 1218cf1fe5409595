package world

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"buildgrid.ai/internal/protocol"
	"buildgrid.ai/internal/sim/catalogs"
	"buildgrid.ai/internal/sim/tuning"
)

const testDefinitions = `[
  {"id": 0, "name": "Tree", "kind": "SACRED_TREE", "variants": [{"size": [3, 3]}], "cost": [], "base": true,
   "expand_width": 0, "expand_length": 0},
  {"id": 1, "name": "Hut", "kind": "HUTS", "variants": [{"size": [2, 2]}],
   "cost": [{"resource": "wood", "amount": 20}], "sellable": true},
  {"id": 4, "name": "Fence", "kind": "WOODEN_FENCE", "variants": [{"size": [1, 1]}],
   "cost": [{"resource": "wood", "amount": 2}], "chainable": true, "sellable": true},
  {"id": 20, "name": "Druid", "kind": "DRUID", "variants": [{"size": [1, 1]}],
   "cost": [{"resource": "food", "amount": 10}], "dependencies": ["HUTS"], "mobile": true}
]`

type memAudit struct{ entries []AuditEntry }

func (m *memAudit) WriteAudit(e AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

type memTicks struct{ entries []TickLogEntry }

func (m *memTicks) WriteTick(e TickLogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	cat, err := catalogs.Parse([]byte(testDefinitions))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	tu := tuning.Defaults()
	tu.TickRateHz = 100
	tu.StartingResources = map[string]int{"wood": 200, "food": 50}
	tu.Base = tuning.Base{Enabled: true, DefinitionID: 0, Pos: [3]float64{0.5, 0, 0.5}, ZoneRadius: 5}
	tu.Obstacles = [][2]int{{-3, -3}}
	w, err := New(ConfigFromTuning("test", tu), cat, nil)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

func intp(v int) *int { return &v }

func posp(x, z float64) *[3]float64 { return &[3]float64{x, 0, z} }

func input(kind string) protocol.InputMsg {
	return protocol.InputMsg{Type: protocol.TypeInput, ProtocolVersion: protocol.Version, Kind: kind}
}

func TestWorld_NewPlacesBase(t *testing.T) {
	w := newTestWorld(t)
	st := w.Status()
	if st.Entities != 1 || st.Kinds["SACRED_TREE"] != 1 {
		t.Fatalf("status=%+v", st)
	}
	if st.ZoneCount != 81 {
		t.Fatalf("zone=%d want 81", st.ZoneCount)
	}
	if w.factory.Live() != 1 {
		t.Fatalf("factory live=%d", w.factory.Live())
	}

	cat, _ := catalogs.Parse([]byte(testDefinitions))
	cfg := ConfigFromTuning("bad", tuning.Defaults())
	cfg.Base = tuning.Base{Enabled: true, DefinitionID: 99}
	if _, err := New(cfg, cat, nil); err == nil {
		t.Fatalf("expected error for unknown base definition")
	}
	cfg.TickRateHz = 0
	if _, err := New(cfg, cat, nil); err == nil {
		t.Fatalf("expected error for zero tick rate")
	}
}

func TestWorld_JoinAndPlace(t *testing.T) {
	w := newTestWorld(t)
	audit := &memAudit{}
	ticks := &memTicks{}
	w.SetAuditLogger(audit)
	w.SetTickLogger(ticks)

	out := make(chan []byte, 64)
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{Name: "p1", Out: out, Resp: resp}}, nil, nil)
	welcome := (<-resp).Welcome
	if welcome.SessionID == "" || welcome.Catalogs.Definitions.Count != 4 || welcome.Resources["wood"] != 200 {
		t.Fatalf("welcome=%+v", welcome)
	}
	sid := welcome.SessionID

	start := input(protocol.InputStartPlacement)
	start.Seq = 1
	start.DefinitionID = intp(1)
	ptr := input(protocol.InputPointer)
	ptr.Pos = posp(2.5, 0.5)
	click := input(protocol.InputClick)
	click.Seq = 2
	w.StepOnce(nil, nil, []InputEnvelope{
		{SessionID: sid, Input: start},
		{SessionID: sid, Input: ptr},
		{SessionID: sid, Input: click},
	})

	var results []protocol.ResultMsg
	previews := 0
	for len(out) > 0 {
		b := <-out
		base, _ := protocol.DecodeBase(b)
		switch base.Type {
		case protocol.TypeResult:
			var r protocol.ResultMsg
			if err := json.Unmarshal(b, &r); err != nil {
				t.Fatalf("decode: %v", err)
			}
			results = append(results, r)
		case protocol.TypePreview:
			previews++
		}
	}
	if len(results) != 2 {
		t.Fatalf("results=%d want 2", len(results))
	}
	if !results[0].OK || results[0].Mode != "PLACING" {
		t.Fatalf("start result=%+v", results[0])
	}
	r := results[1]
	if !r.OK || r.Seq != 2 || len(r.Placed) != 1 || r.Placed[0].Kind != "HUTS" || r.Mode != "IDLE" {
		t.Fatalf("click result=%+v", r)
	}
	if r.Resources["wood"] != 180 || r.Placed[0].Origin != [2]int{2, 0} {
		t.Fatalf("click result=%+v", r)
	}
	if previews != 1 {
		t.Fatalf("previews=%d want 1", previews)
	}

	if len(audit.entries) != 2 {
		t.Fatalf("audit=%+v", audit.entries)
	}
	if base := audit.entries[0]; !base.Base || base.Tick != 0 || base.EntityIndex != 0 || base.ZoneAdded == 0 {
		t.Fatalf("base audit=%+v", base)
	}
	if hut := audit.entries[1]; hut.Action != "PLACED" || hut.Charged["wood"] != 20 || hut.EntityIndex != 1 {
		t.Fatalf("hut audit=%+v", hut)
	}
	if len(ticks.entries) != 2 || len(ticks.entries[1].Inputs) != 3 || len(ticks.entries[0].Joins) != 1 {
		t.Fatalf("ticks=%+v", ticks.entries)
	}
	if st := w.Status(); st.Entities != 2 || st.Clients != 1 || st.Tick != 1 {
		t.Fatalf("status=%+v", st)
	}
}

func TestWorld_InputErrors(t *testing.T) {
	w := newTestWorld(t)
	cases := []struct {
		name string
		in   protocol.InputMsg
		code string
	}{
		{"unknown definition", func() protocol.InputMsg {
			in := input(protocol.InputStartPlacement)
			in.DefinitionID = intp(42)
			return in
		}(), protocol.ErrUnknownDefinition},
		{"dependency missing", func() protocol.InputMsg {
			in := input(protocol.InputStartPlacement)
			in.DefinitionID = intp(20)
			return in
		}(), protocol.ErrUnavailable},
		{"missing definition", input(protocol.InputStartPlacement), protocol.ErrBadRequest},
		{"rotate idle", input(protocol.InputRotate), protocol.ErrNoSession},
		{"variant idle", input(protocol.InputVariant), protocol.ErrNoSession},
		{"click idle", input(protocol.InputClick), protocol.ErrNoSession},
		{"pointer without pos", input(protocol.InputPointer), protocol.ErrBadRequest},
		{"unknown kind", input("JUMP"), protocol.ErrBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := w.applyInput(tc.in, 0)
			if res == nil || res.OK || res.Code != tc.code {
				t.Fatalf("res=%+v want %s", res, tc.code)
			}
			if !protocol.IsKnownCode(res.Code) {
				t.Fatalf("unknown code %q", res.Code)
			}
		})
	}
}

func TestWorld_ChainAnchorThenCommit(t *testing.T) {
	w := newTestWorld(t)
	start := input(protocol.InputStartPlacement)
	start.DefinitionID = intp(4)
	if res := w.applyInput(start, 0); !res.OK || res.Mode != "CHAIN" {
		t.Fatalf("start=%+v", res)
	}

	anchor := input(protocol.InputClick)
	anchor.Pos = posp(-2.5, 2.5)
	res := w.applyInput(anchor, 0)
	if !res.OK || len(res.Placed) != 0 || res.Mode != "CHAIN" {
		t.Fatalf("anchor=%+v", res)
	}

	end := input(protocol.InputClick)
	end.Pos = posp(1.5, 2.5)
	res = w.applyInput(end, 0)
	if !res.OK || len(res.Placed) != 5 || res.Resources["wood"] != 190 {
		t.Fatalf("commit=%+v", res)
	}
}

func TestWorld_ChainBlockedByObstacle(t *testing.T) {
	w := newTestWorld(t)
	start := input(protocol.InputStartPlacement)
	start.DefinitionID = intp(4)
	w.applyInput(start, 0)

	anchor := input(protocol.InputClick)
	anchor.Pos = posp(-3.5, -1.5)
	w.applyInput(anchor, 0)
	end := input(protocol.InputClick)
	end.Pos = posp(-3.5, -3.5)
	res := w.applyInput(end, 0)
	if res.OK || res.Code != protocol.ErrBlocked || len(res.Placed) != 0 {
		t.Fatalf("res=%+v", res)
	}
	if res.Resources["wood"] != 200 {
		t.Fatalf("charged on failure: %+v", res.Resources)
	}
}

func TestWorld_RemoveRefunds(t *testing.T) {
	w := newTestWorld(t)
	start := input(protocol.InputStartPlacement)
	start.DefinitionID = intp(1)
	w.applyInput(start, 0)
	click := input(protocol.InputClick)
	click.Pos = posp(2.5, 0.5)
	if res := w.applyInput(click, 0); !res.OK {
		t.Fatalf("place=%+v", res)
	}

	w.applyInput(input(protocol.InputStartRemoving), 0)
	res := w.applyInput(click, 0)
	if !res.OK || len(res.Removed) != 1 || res.Resources["wood"] != 200 || len(res.Refund) != 1 {
		t.Fatalf("remove=%+v", res)
	}
	res = w.applyInput(click, 0)
	if res.OK || res.Code != protocol.ErrInvalidTarget || res.Mode != "REMOVING" {
		t.Fatalf("second remove=%+v", res)
	}
	if res := w.applyInput(input(protocol.InputExit), 0); !res.OK || res.Mode != "IDLE" {
		t.Fatalf("exit=%+v", res)
	}
}

func TestWorld_RunAndRequestDestroy(t *testing.T) {
	w := newTestWorld(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer reqCancel()
	ok, err := w.RequestDestroy(reqCtx, 0)
	if err != nil || !ok {
		t.Fatalf("destroy ok=%v err=%v", ok, err)
	}
	ok, err = w.RequestDestroy(reqCtx, 0)
	if err != nil || ok {
		t.Fatalf("second destroy ok=%v err=%v", ok, err)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run err=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("world did not stop")
	}
}

func TestWorld_BaseAuditWaitsForLogger(t *testing.T) {
	w := newTestWorld(t)
	w.StepOnce(nil, nil, nil)

	first := &memAudit{}
	w.SetAuditLogger(first)
	if len(first.entries) != 1 || first.entries[0].Kind != "SACRED_TREE" || !first.entries[0].Base {
		t.Fatalf("first logger=%+v", first.entries)
	}

	second := &memAudit{}
	w.SetAuditLogger(second)
	if len(second.entries) != 0 {
		t.Fatalf("base audited twice: %+v", second.entries)
	}
}
