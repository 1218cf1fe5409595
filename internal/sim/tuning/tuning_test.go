package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_RepoTuning(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.TickRateHz != 20 || tu.CellSize != 1.0 {
		t.Fatalf("tick=%d cell=%v", tu.TickRateHz, tu.CellSize)
	}
	if !tu.Base.Enabled || tu.Base.ZoneRadius != 8 {
		t.Fatalf("base=%+v", tu.Base)
	}
	if len(tu.Obstacles) != 3 || tu.Obstacles[2] != [2]int{-6, 2} {
		t.Fatalf("obstacles=%v", tu.Obstacles)
	}
	if tu.StartingResources["wood"] != 200 {
		t.Fatalf("resources=%v", tu.StartingResources)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("cell_size: 2.5\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Defaults()
	if tu.CellSize != 2.5 {
		t.Fatalf("cell_size=%v", tu.CellSize)
	}
	if tu.TickRateHz != def.TickRateHz || tu.Base.ZoneRadius != def.Base.ZoneRadius || !tu.PointerDebounce {
		t.Fatalf("defaults lost: %+v", tu)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"zero tick":       "tick_rate_hz: 0\n",
		"negative cell":   "cell_size: -1\n",
		"negative expand": "initial_zone_expand: -2\n",
		"bad yaml":        "cell_size: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "tuning.yaml")
			if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := Load(p)
			if err == nil || !strings.HasPrefix(err.Error(), "tuning.yaml:") {
				t.Fatalf("err=%v", err)
			}
		})
	}
}
