package main

import (
	"testing"
	"time"

	persistlog "buildgrid.ai/internal/persistence/log"
	"buildgrid.ai/internal/protocol"
	"buildgrid.ai/internal/sim/catalogs"
	"buildgrid.ai/internal/sim/tuning"
	"buildgrid.ai/internal/sim/world"
)

// record runs a scripted session as one server run under worldDir and
// returns the run directory.
func record(t *testing.T, worldDir string) (string, *catalogs.Catalog, tuning.Tuning) {
	t.Helper()
	cat, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	tune, err := tuning.Load("../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("tuning: %v", err)
	}
	w, err := world.New(world.ConfigFromTuning("w", tune), cat, nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	dir := persistlog.RunDir(worldDir, persistlog.NewRunID(time.Now()))
	tl := persistlog.NewTickLogger(dir)
	al := persistlog.NewAuditLogger(dir)
	w.SetTickLogger(tl)
	w.SetAuditLogger(al)

	in := func(kind string, pos *[3]float64, def *int) world.InputEnvelope {
		return world.InputEnvelope{Input: protocol.InputMsg{
			Type: protocol.TypeInput, ProtocolVersion: protocol.Version,
			Kind: kind, Pos: pos, DefinitionID: def,
		}}
	}
	hut := 1
	fence := 4
	w.StepOnce(nil, nil, []world.InputEnvelope{
		in(protocol.InputStartPlacement, nil, &hut),
		in(protocol.InputClick, &[3]float64{2.5, 0, 0.5}, nil),
	})
	w.StepOnce(nil, nil, nil)
	w.StepOnce(nil, nil, []world.InputEnvelope{
		in(protocol.InputStartPlacement, nil, &fence),
		in(protocol.InputClick, &[3]float64{-3.5, 0, 3.5}, nil),
		in(protocol.InputClick, &[3]float64{-0.5, 0, 3.5}, nil),
	})
	w.StepOnce(nil, nil, []world.InputEnvelope{
		in(protocol.InputStartRemoving, nil, nil),
		in(protocol.InputClick, &[3]float64{2.5, 0, 0.5}, nil),
	})
	_ = tl.Close()
	_ = al.Close()
	return dir, cat, tune
}

func TestReplay_ReproducesAuditLog(t *testing.T) {
	dir, cat, tune := record(t, t.TempDir())

	sum, err := summarize(dir)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.actions["PLACED"] != 6 || sum.actions["REMOVED"] != 1 || sum.live["HUTS"] != 0 ||
		sum.live["WOODEN_FENCE"] != 4 || sum.live["SACRED_TREE"] != 1 {
		t.Fatalf("summary=%+v", sum)
	}

	res, err := replay(dir, "w", cat, tune)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Ticks != 3 || res.Inputs != 7 || res.Checked != 7 || res.StoppedAt != 0 {
		t.Fatalf("res=%+v", res)
	}
}

func TestReplay_RestartStartsANewRun(t *testing.T) {
	worldDir := t.TempDir()
	first, cat, tune := record(t, worldDir)
	second, _, _ := record(t, worldDir)
	if first == second {
		t.Fatalf("both runs share %s", first)
	}

	runs, err := persistlog.Runs(worldDir)
	if err != nil || len(runs) != 2 {
		t.Fatalf("runs=%v err=%v", runs, err)
	}
	for _, dir := range []string{first, second} {
		sum, err := summarize(dir)
		if err != nil {
			t.Fatalf("summarize %s: %v", dir, err)
		}
		if sum.live["WOODEN_FENCE"] != 4 || sum.live["SACRED_TREE"] != 1 {
			t.Fatalf("%s summary=%+v", dir, sum)
		}
		if _, err := replay(dir, "w", cat, tune); err != nil {
			t.Fatalf("replay %s: %v", dir, err)
		}
	}
}

func TestReplay_DetectsDivergence(t *testing.T) {
	dir, cat, tune := record(t, t.TempDir())

	// Starting with no wood the hut can never be placed.
	tune.StartingResources = map[string]int{}
	if _, err := replay(dir, "w", cat, tune); err == nil {
		t.Fatalf("expected mismatch")
	}
}
