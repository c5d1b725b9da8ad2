// Package physics defines the narrow collaborator the Simulation Engine
// calls into on every Step (spec.md §4.4/§6): something that
// advances PhysicalObject2Ds' position/velocity by dt and reports the
// result, independent of how collisions are actually resolved.
package physics

import "github.com/solstice-games/syncstep/pkg/object"

// Physics advances every object in objects by dtSeconds. The engine passes
// every PhysicalObject2D in its world, leaving out shadow objects during
// re-enactment. Implementations read
// and write Position/Velocity/Angle/AngularVelocity in place via
// object.CopyVector or direct field assignment; they must not touch
// bending state, which belongs to the sync strategies.
type Physics interface {
	Step(dtSeconds float64, objects []*object.PhysicalObject2D) error
}

// NoOp performs no physics at all. It is the default for configurations
// that rely entirely on client/server-authoritative position updates
// (e.g. InterpolateStrategy-only deployments) and exists so Simulation
// never has to nil-check its physics collaborator.
type NoOp struct{}

func (NoOp) Step(dtSeconds float64, objects []*object.PhysicalObject2D) error { return nil }
