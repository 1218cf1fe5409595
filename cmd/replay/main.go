package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "buildgrid.ai/internal/persistence/log"
	"buildgrid.ai/internal/sim/catalogs"
	"buildgrid.ai/internal/sim/tuning"
	"buildgrid.ai/internal/sim/world"
)

func main() {
	var (
		worldDir   = flag.String("world_dir", "", "world data dir containing runs/")
		runID      = flag.String("run", "", "run id under <world_dir>/runs (default: latest)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		verify     = flag.Bool("verify", true, "replay the tick log and compare against the audit log")
	)
	flag.Parse()

	if *worldDir == "" {
		fmt.Fprintln(os.Stderr, "missing -world_dir")
		os.Exit(2)
	}

	run := *runID
	if run == "" {
		latest, err := persistlog.LatestRun(*worldDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "runs:", err)
			os.Exit(1)
		}
		run = latest
	}
	runDir := persistlog.RunDir(*worldDir, run)
	fmt.Printf("run %s\n", run)

	sum, err := summarize(runDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "audit:", err)
		os.Exit(1)
	}
	sum.print()

	if !*verify {
		return
	}
	cat, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}

	res, err := replay(runDir, filepath.Base(filepath.Clean(*worldDir)), cat, tune)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: ticks=%d inputs=%d audits_checked=%d\n", res.Ticks, res.Inputs, res.Checked)
	if res.StoppedAt != 0 {
		fmt.Printf("verification stopped at tick %d: entity destroyed outside the input log\n", res.StoppedAt)
	}
}

type summary struct {
	actions map[string]int
	live    map[string]int
	total   int
}

// summarize tallies one run's audit log per action and the net live count
// per kind.
func summarize(runDir string) (summary, error) {
	s := summary{actions: map[string]int{}, live: map[string]int{}}
	err := persistlog.ReadAudits(runDir, func(e world.AuditEntry) error {
		s.total++
		s.actions[e.Action]++
		if e.Action == "PLACED" {
			s.live[e.Kind]++
		} else {
			s.live[e.Kind]--
		}
		return nil
	})
	return s, err
}

func (s summary) print() {
	fmt.Printf("audit entries=%d\n", s.total)
	for _, k := range sortedKeys(s.actions) {
		fmt.Printf("  %-10s %d\n", k, s.actions[k])
	}
	fmt.Println("net placed by kind:")
	for _, k := range sortedKeys(s.live) {
		fmt.Printf("  %-16s %d\n", k, s.live[k])
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type replayResult struct {
	Ticks     int
	Inputs    int
	Checked   int
	StoppedAt uint64
}

type auditBuffer struct{ entries []world.AuditEntry }

func (b *auditBuffer) WriteAudit(e world.AuditEntry) error {
	b.entries = append(b.entries, e)
	return nil
}

// replay feeds one run's recorded inputs into a fresh world and checks that
// it commits the same grid changes in the same order, the base included.
// Session ids are dropped: the world accepts anonymous inputs and RESULT
// routing does not matter here.
func replay(runDir, worldID string, cat *catalogs.Catalog, tune tuning.Tuning) (replayResult, error) {
	var recorded []world.AuditEntry
	if err := persistlog.ReadAudits(runDir, func(e world.AuditEntry) error {
		recorded = append(recorded, e)
		return nil
	}); err != nil && !os.IsNotExist(err) {
		return replayResult{}, err
	}

	w, err := world.New(world.ConfigFromTuning(worldID, tune), cat, nil)
	if err != nil {
		return replayResult{}, err
	}
	got := &auditBuffer{}
	w.SetAuditLogger(got)

	var res replayResult
	stopAt := uint64(0)
	for _, e := range recorded {
		if e.Action == "DESTROYED" {
			stopAt = e.Tick
			break
		}
	}

	err = persistlog.ReadTicks(runDir, func(entry world.TickLogEntry) error {
		if stopAt != 0 && entry.Tick >= stopAt {
			return errStop
		}
		if entry.Tick < w.CurrentTick() {
			return fmt.Errorf("tick log out of order: entry=%d world=%d", entry.Tick, w.CurrentTick())
		}
		for w.CurrentTick() < entry.Tick {
			w.StepOnce(nil, nil, nil)
		}
		inputs := make([]world.InputEnvelope, 0, len(entry.Inputs))
		for _, in := range entry.Inputs {
			inputs = append(inputs, world.InputEnvelope{Input: in.Input})
		}
		w.StepOnce(nil, nil, inputs)
		res.Ticks++
		res.Inputs += len(inputs)
		return nil
	})
	if err != nil && err != errStop && !os.IsNotExist(err) {
		return res, err
	}
	res.StoppedAt = stopAt

	want := recorded
	if stopAt != 0 {
		want = want[:0:0]
		for _, e := range recorded {
			if e.Tick < stopAt {
				want = append(want, e)
			}
		}
	}
	if len(got.entries) != len(want) {
		return res, fmt.Errorf("audit count mismatch: replayed=%d recorded=%d", len(got.entries), len(want))
	}
	for i := range want {
		if err := sameChange(got.entries[i], want[i]); err != nil {
			return res, fmt.Errorf("audit %d: %w", i, err)
		}
		res.Checked++
	}
	return res, nil
}

var errStop = fmt.Errorf("stop")

func sameChange(got, want world.AuditEntry) error {
	var diffs []string
	if got.Tick != want.Tick {
		diffs = append(diffs, fmt.Sprintf("tick %d!=%d", got.Tick, want.Tick))
	}
	if got.Action != want.Action || got.Kind != want.Kind {
		diffs = append(diffs, fmt.Sprintf("%s %s != %s %s", got.Action, got.Kind, want.Action, want.Kind))
	}
	if got.EntityIndex != want.EntityIndex || got.Origin != want.Origin || got.Rotation != want.Rotation {
		diffs = append(diffs, fmt.Sprintf("entity #%d %v r%d != #%d %v r%d",
			got.EntityIndex, got.Origin, got.Rotation, want.EntityIndex, want.Origin, want.Rotation))
	}
	if len(got.ZoneReleased) != len(want.ZoneReleased) {
		diffs = append(diffs, fmt.Sprintf("released %d!=%d", len(got.ZoneReleased), len(want.ZoneReleased)))
	}
	if len(diffs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(diffs, "; "))
}
