package placement

import (
	"buildgrid.ai/internal/sim/catalogs"
	"buildgrid.ai/internal/sim/economy"
	"buildgrid.ai/internal/sim/grid"
)

// ObstacleChecker answers collision queries against hazards that are not on
// the placement grid (trees, rocks, resource nodes).
type ObstacleChecker interface {
	IsObstructed(pos grid.Vec3) bool
}

type Ledger interface {
	CanAfford(cost economy.Cost) bool
	Deduct(cost economy.Cost)
	Refund(cost economy.Cost)
}

// PreviewRenderer draws the ghost footprint. Implementations must tolerate
// calls in any order, including StopPreview without a preceding Show.
type PreviewRenderer interface {
	ShowPreview(def catalogs.Definition, size grid.Size)
	ShowRemovePreview()
	SetPreviewPosition(pos grid.Vec3, valid bool)
	SetPreviewRotation(deg int)
	SetPreviewCells(cells []grid.Cell)
	StopPreview()
}

// EntityFactory creates the world object behind a placement and returns its
// handle.
type EntityFactory interface {
	Instantiate(def catalogs.Definition, pos grid.Vec3, rotationDeg int) string
	Destroy(id string)
}

// freeLedger affords everything. It backs orchestrators built without a
// ledger, such as editor tools.
type freeLedger struct{}

func (freeLedger) CanAfford(economy.Cost) bool { return true }
func (freeLedger) Deduct(economy.Cost)         {}
func (freeLedger) Refund(economy.Cost)         {}

type noObstacles struct{}

func (noObstacles) IsObstructed(grid.Vec3) bool { return false }

type nopPreview struct{}

func (nopPreview) ShowPreview(catalogs.Definition, grid.Size) {}
func (nopPreview) ShowRemovePreview()                         {}
func (nopPreview) SetPreviewPosition(grid.Vec3, bool)         {}
func (nopPreview) SetPreviewRotation(int)                     {}
func (nopPreview) SetPreviewCells([]grid.Cell)                {}
func (nopPreview) StopPreview()                               {}
