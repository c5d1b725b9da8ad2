package object

import "math"

// BendingRange clamps a computed bending delta: a delta whose magnitude
// falls outside [Min, Max] collapses to zero rather than being applied.
// The zero value (Min=0, Max=0) is not useful as a "no clamp" default, so
// DefaultBendingConfig sets Max to the largest representable float32.
type BendingRange struct {
	Min float32
	Max float32
}

func unclamped() BendingRange {
	return BendingRange{Min: 0, Max: math.MaxFloat32}
}

// BendingConfig is the per-class (or per-object, for overrides) bending
// descriptor described in spec.md §4.8.4/Design Notes. The *Local variants
// apply when the object is owned by the reconciling client.
type BendingConfig struct {
	Position      BendingRange
	PositionLocal BendingRange

	Velocity      BendingRange
	VelocityLocal BendingRange

	Angle      BendingRange
	AngleLocal BendingRange

	AngularVelocity      BendingRange
	AngularVelocityLocal BendingRange
}

// DefaultBendingConfig imposes no clamping: every computed delta is kept.
func DefaultBendingConfig() BendingConfig {
	return BendingConfig{
		Position:             unclamped(),
		PositionLocal:        unclamped(),
		Velocity:             unclamped(),
		VelocityLocal:        unclamped(),
		Angle:                unclamped(),
		AngleLocal:           unclamped(),
		AngularVelocity:      unclamped(),
		AngularVelocityLocal: unclamped(),
	}
}

// PhysicalSnapshot is the scalar numeric state bendToCurrent reverts to and
// applyIncrementalBending converges toward. It intentionally excludes
// everything that isn't position/velocity/angle/angular velocity.
type PhysicalSnapshot struct {
	Position        Vector
	Velocity        Vector
	Angle           float32
	AngularVelocity float32
}

// PhysicalObject2D is the one concrete GameObject subclass the engine
// ships with: a 2D body with position, velocity, angle, angular velocity,
// and the bending transient state spec.md §3 describes.
type PhysicalObject2D struct {
	Base

	// Name and Tags exist to exercise the STRING and LIST<STRING> wire
	// types end-to-end; a real game would put gameplay fields here.
	Name string
	Tags []string

	Position        Vector
	Velocity        Vector
	Angle           float32
	AngularVelocity float32

	Bending BendingConfig

	BendingPositionDelta Vector
	BendingVelocityDelta Vector
	BendingAngleDelta    float32
	BendingAVDelta       float32
	BendingIncrements    int
	BendingTarget        *PhysicalSnapshot
}

func NewPhysicalObject2D(id uint32) *PhysicalObject2D {
	return &PhysicalObject2D{
		Base:    NewBase(id),
		Bending: DefaultBendingConfig(),
	}
}

func (p *PhysicalObject2D) ClassName() string { return "PhysicalObject2D" }

func (p *PhysicalObject2D) NetScheme() NetScheme {
	return NetScheme{
		{Name: "PlayerID", Type: FieldInt32},
		{Name: "InputID", Type: FieldInt32},
		{Name: "Position", Type: FieldClassInstance},
		{Name: "Velocity", Type: FieldClassInstance},
		{Name: "Angle", Type: FieldFloat32},
		{Name: "AngularVelocity", Type: FieldFloat32},
		{Name: "Name", Type: FieldString},
		{Name: "Tags", Type: FieldList, Elem: &FieldScheme{Type: FieldString}},
	}
}

// Clone returns a deep copy suitable as a bending/reconciliation snapshot.
// The copy does not share the Components map or savedCopy with the
// original.
func (p *PhysicalObject2D) Clone() *PhysicalObject2D {
	clone := &PhysicalObject2D{
		Base: Base{
			ID:       p.ID,
			PlayerID: p.PlayerID,
			InputID:  p.InputID,
			RoomName: p.RoomName,
		},
		Name:            p.Name,
		Position:        p.Position,
		Velocity:        p.Velocity,
		Angle:           p.Angle,
		AngularVelocity: p.AngularVelocity,
		Bending:         p.Bending,
	}
	clone.Components = Components{}
	for k := range p.Components {
		clone.Components[k] = struct{}{}
	}
	if len(p.Tags) > 0 {
		clone.Tags = append([]string(nil), p.Tags...)
	}
	return clone
}

// CloneInstance satisfies the transmitter's diffing collaborator
// interface, returning Clone() widened to Instance.
func (p *PhysicalObject2D) CloneInstance() Instance { return p.Clone() }

// Snapshot captures the numeric state bending operates over.
func (p *PhysicalObject2D) Snapshot() PhysicalSnapshot {
	return PhysicalSnapshot{
		Position:        p.Position,
		Velocity:        p.Velocity,
		Angle:           p.Angle,
		AngularVelocity: p.AngularVelocity,
	}
}

// CopyVector copies the fields of src into dst. It is the helper a Physics
// collaborator uses to write authoritative position/velocity back onto a
// PhysicalObject2D (spec.md §6).
func CopyVector(dst *Vector, src Vector) {
	dst.X = src.X
	dst.Y = src.Y
}

// AdoptVectors copies src's Position and Velocity onto p via CopyVector.
// SyncTo's PreserveNested option deliberately skips CLASSINSTANCE fields
// so a destination's other nested fields keep their local identity, but
// Position/Velocity still need to move onto an already-tracked object
// when reconciling against a server frame — this is the syncTo/copyVector
// pairing spec.md §6 describes.
func (p *PhysicalObject2D) AdoptVectors(src *PhysicalObject2D) {
	CopyVector(&p.Position, src.Position)
	CopyVector(&p.Velocity, src.Velocity)
}
