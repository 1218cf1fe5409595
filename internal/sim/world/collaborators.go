package world

import (
	"github.com/google/uuid"
	"github.com/zyedidia/generic/mapset"

	"buildgrid.ai/internal/sim/catalogs"
	"buildgrid.ai/internal/sim/grid"
)

// obstacleMap blocks whole cells listed in tuning.
type obstacleMap struct {
	grid  grid.Grid
	cells mapset.Set[grid.Cell]
}

func newObstacleMap(g grid.Grid, cells [][2]int) *obstacleMap {
	m := &obstacleMap{grid: g, cells: mapset.New[grid.Cell]()}
	for _, c := range cells {
		m.cells.Put(grid.CellFromArray(c))
	}
	return m
}

func (m *obstacleMap) IsObstructed(pos grid.Vec3) bool {
	return m.cells.Has(m.grid.WorldToCell(pos))
}

// entityFactory hands out uuid handles and remembers which definition each
// live handle was made from.
type entityFactory struct {
	live map[string]int
}

func newEntityFactory() *entityFactory {
	return &entityFactory{live: map[string]int{}}
}

func (f *entityFactory) Instantiate(def catalogs.Definition, _ grid.Vec3, _ int) string {
	id := uuid.NewString()
	f.live[id] = def.ID
	return id
}

func (f *entityFactory) Destroy(id string) { delete(f.live, id) }

func (f *entityFactory) Live() int { return len(f.live) }
