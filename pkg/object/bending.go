package object

import "math"

const twoPi = 2 * math.Pi

// clampRange zeroes v if its magnitude falls outside [r.Min, r.Max].
func clampRange(v float32, r BendingRange) float32 {
	m := float32(math.Abs(float64(v)))
	if m < r.Min || m > r.Max {
		return 0
	}
	return v
}

func clampVector(v Vector, r BendingRange) Vector {
	m := float32(math.Hypot(float64(v.X), float64(v.Y)))
	if m < r.Min || m > r.Max {
		return Vector{}
	}
	return v
}

// wrapAngleDelta returns the shortest-path difference to wrap from "from"
// to "to", as a signed angle in (-pi, pi].
func wrapAngleDelta(from, to float32) float32 {
	d := float64(to - from)
	d = math.Mod(d, twoPi)
	if d < 0 {
		d += twoPi
	}
	if d > math.Pi {
		d -= twoPi
	}
	return float32(d)
}

// BendToCurrent implements spec.md §4.8.4: p currently holds its post-
// re-enact "current" values. It computes per-increment deltas toward that
// current state from fromSource, snapshots the current state as the
// bending target, then reverts p's numeric state to fromSource so that
// ApplyIncrementalBending can walk it back up over increments steps.
func (p *PhysicalObject2D) BendToCurrent(fromSource PhysicalSnapshot, percent float64, isLocal bool, increments int) {
	if increments <= 0 {
		return
	}

	posRange, velRange, angleRange, avRange := p.Bending.Position, p.Bending.Velocity, p.Bending.Angle, p.Bending.AngularVelocity
	if isLocal {
		posRange, velRange, angleRange, avRange = p.Bending.PositionLocal, p.Bending.VelocityLocal, p.Bending.AngleLocal, p.Bending.AngularVelocityLocal
	}

	scale := float32(percent / float64(increments))

	posDelta := Vector{
		X: (p.Position.X - fromSource.Position.X) * scale,
		Y: (p.Position.Y - fromSource.Position.Y) * scale,
	}
	velDelta := Vector{
		X: (p.Velocity.X - fromSource.Velocity.X) * scale,
		Y: (p.Velocity.Y - fromSource.Velocity.Y) * scale,
	}
	angleDelta := wrapAngleDelta(fromSource.Angle, p.Angle) / float32(increments)
	avDelta := (p.AngularVelocity - fromSource.AngularVelocity) * scale

	p.BendingPositionDelta = clampVector(posDelta, posRange)
	p.BendingVelocityDelta = clampVector(velDelta, velRange)
	p.BendingAngleDelta = clampRange(angleDelta, angleRange)
	p.BendingAVDelta = clampRange(avDelta, avRange)

	target := p.Snapshot()
	p.BendingTarget = &target

	p.Position = fromSource.Position
	p.Velocity = fromSource.Velocity
	p.Angle = fromSource.Angle
	p.AngularVelocity = fromSource.AngularVelocity

	p.BendingIncrements = increments
}

// ApplyIncrementalBending advances the object one step toward its bending
// target. dtMs is the step's delta time in milliseconds; timeFactor is
// dt / (1000/60), so a 60Hz step has timeFactor 1.
func (p *PhysicalObject2D) ApplyIncrementalBending(dtMs float64) {
	if p.BendingIncrements <= 0 {
		return
	}

	timeFactor := float32(dtMs / (1000.0 / 60.0))

	p.Position.X += p.BendingPositionDelta.X * timeFactor
	p.Position.Y += p.BendingPositionDelta.Y * timeFactor
	p.Velocity.X += p.BendingVelocityDelta.X * timeFactor
	p.Velocity.Y += p.BendingVelocityDelta.Y * timeFactor
	p.Angle += p.BendingAngleDelta * timeFactor
	p.AngularVelocity += p.BendingAVDelta * timeFactor

	p.BendingIncrements--
	if p.BendingIncrements <= 0 {
		p.BendingIncrements = 0
	}
}

// IsBending reports whether the object still has bending increments left.
func (p *PhysicalObject2D) IsBending() bool {
	return p.BendingIncrements > 0
}
