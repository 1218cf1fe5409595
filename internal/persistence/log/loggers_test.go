package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"buildgrid.ai/internal/protocol"
	"buildgrid.ai/internal/sim/world"
)

func TestJSONLZstdWriter_RotatesPerHour(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "x")
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir, "x")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "x-2026-03-01-10.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}
	if w.Lines() != 2 {
		t.Fatalf("lines=%d", w.Lines())
	}
}

func TestJSONLZstdWriter_ReopenAppendsFrame(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		w := NewJSONLZstdWriter(dir, "x")
		w.now = func() time.Time { return fixed }
		if err := w.Write(map[string]int{"n": i}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	files, _ := Files(dir, "x")
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}
	n := 0
	if err := ReadLines(files[0], func([]byte) error { n++; return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 2 {
		t.Fatalf("lines=%d want 2", n)
	}
}

func TestLoggers_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	tl := NewTickLogger(dir)
	al := NewAuditLogger(dir)

	in := protocol.InputMsg{Type: protocol.TypeInput, ProtocolVersion: protocol.Version, Kind: protocol.InputClick}
	if err := tl.WriteTick(world.TickLogEntry{Tick: 3, Inputs: []world.RecordedInput{{SessionID: "s", Input: in}}}); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if err := al.WriteAudit(world.AuditEntry{Tick: 3, Action: "PLACED", Kind: "HUTS", Charged: map[string]int{"wood": 20}}); err != nil {
		t.Fatalf("audit: %v", err)
	}
	_ = tl.Close()
	_ = al.Close()

	var ticks []world.TickLogEntry
	if err := ReadTicks(dir, func(e world.TickLogEntry) error { ticks = append(ticks, e); return nil }); err != nil {
		t.Fatalf("read ticks: %v", err)
	}
	if len(ticks) != 1 || ticks[0].Tick != 3 || ticks[0].Inputs[0].Input.Kind != protocol.InputClick {
		t.Fatalf("ticks=%+v", ticks)
	}

	var audits []world.AuditEntry
	if err := ReadAudits(dir, func(e world.AuditEntry) error { audits = append(audits, e); return nil }); err != nil {
		t.Fatalf("read audits: %v", err)
	}
	if len(audits) != 1 || audits[0].Kind != "HUTS" || audits[0].Charged["wood"] != 20 {
		t.Fatalf("audits=%+v", audits)
	}
}

func TestFiles_IgnoresOtherPrefixes(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"audit-2026-01-01-00.jsonl.zst", "ticks-2026-01-01-00.jsonl.zst", "audit.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := Files(dir, "audit")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}
}

func TestRuns_LatestSortsByStartTime(t *testing.T) {
	dir := t.TempDir()
	if _, err := LatestRun(dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("empty world err=%v", err)
	}

	early := NewRunID(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	late := NewRunID(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	if !strings.HasPrefix(early, "20260301T090000Z-") || early == late {
		t.Fatalf("run ids %q %q", early, late)
	}
	for _, id := range []string{late, early} {
		l := NewTickLogger(RunDir(dir, id))
		if err := l.WriteTick(world.TickLogEntry{Tick: 0}); err != nil {
			t.Fatalf("write: %v", err)
		}
		_ = l.Close()
	}

	runs, err := Runs(dir)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 || runs[0] != early || runs[1] != late {
		t.Fatalf("runs=%v", runs)
	}
	got, err := LatestRun(dir)
	if err != nil || got != late {
		t.Fatalf("latest=%q err=%v", got, err)
	}

	n := 0
	if err := ReadTicks(RunDir(dir, early), func(world.TickLogEntry) error { n++; return nil }); err != nil || n != 1 {
		t.Fatalf("early run ticks=%d err=%v", n, err)
	}
}
