package polyinject

import (
	"github.com/jward/polyinject/internal/jsast"
	"github.com/jward/polyinject/internal/resolve"
	"github.com/jward/polyinject/internal/targets"
)

// Public type aliases for internal types that appear in the provider API.
// External providers use these names; no conversion is needed.

type Anchor = jsast.Path
type Position = jsast.Position
type SourceType = jsast.SourceType
type DebugEntry = jsast.DebugEntry
type Placement = resolve.Placement
type Targets = targets.Targets
type Support = targets.Support
type CompatData = targets.CompatData
type Set = targets.Set

const (
	PlacementNone      = resolve.PlacementNone
	PlacementStatic    = resolve.PlacementStatic
	PlacementPrototype = resolve.PlacementPrototype

	PositionInline = jsast.PositionInline
	PositionTop    = jsast.PositionTop

	SourceModule      = jsast.SourceModule
	SourceScript      = jsast.SourceScript
	SourceUnambiguous = jsast.SourceUnambiguous
)

// NewSet returns a set holding names.
func NewSet(names ...string) Set {
	return targets.NewSet(names...)
}
