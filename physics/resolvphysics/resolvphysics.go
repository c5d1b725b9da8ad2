// Package resolvphysics is the reference physics.Physics implementation,
// grounded in the teacher's collision space (pkg/collisions/space.go) and
// its player/NPC resolv.Object usage (client/objects/player.go). It gives
// every PhysicalObject2D a same-sized square resolv.Object, moves it by
// velocity*dt with axis-separated collision checks against the space's
// static bounds and the other tracked bodies, and zeroes the velocity
// component that collided.
package resolvphysics

import (
	"sync"

	"github.com/solarlune/resolv"

	"github.com/solstice-games/syncstep/pkg/object"
)

const defaultBodySize = 16

// Options configures the collision space's world bounds, mirroring
// NewCollisionSpace's hard-coded 640x480 arena but made configurable.
type Options struct {
	Width, Height int
	CellSize      int
	BodySize      float64
}

func (o Options) withDefaults() Options {
	if o.Width == 0 {
		o.Width = 640
	}
	if o.Height == 0 {
		o.Height = 480
	}
	if o.CellSize == 0 {
		o.CellSize = 16
	}
	if o.BodySize == 0 {
		o.BodySize = defaultBodySize
	}
	return o
}

// Physics is a resolv-backed collision space that tracks one resolv.Object
// per live id.
type Physics struct {
	mu       sync.Mutex
	space    *resolv.Space
	bodySize float64
	bodies   map[uint32]*resolv.Object
}

func New(opts Options) *Physics {
	opts = opts.withDefaults()

	space := resolv.NewSpace(opts.Width, opts.Height, opts.CellSize, opts.CellSize)
	space.Add(
		resolv.NewObject(0, 0, float64(opts.Width), float64(opts.CellSize)),
		resolv.NewObject(0, float64(opts.Height-opts.CellSize), float64(opts.Width), float64(opts.CellSize)),
		resolv.NewObject(0, float64(opts.CellSize), float64(opts.CellSize), float64(opts.Height-2*opts.CellSize)),
		resolv.NewObject(float64(opts.Width-opts.CellSize), float64(opts.CellSize), float64(opts.CellSize), float64(opts.Height-2*opts.CellSize)),
	)

	return &Physics{
		space:    space,
		bodySize: opts.BodySize,
		bodies:   make(map[uint32]*resolv.Object),
	}
}

func (p *Physics) bodyFor(obj *object.PhysicalObject2D) *resolv.Object {
	body, ok := p.bodies[obj.GetID()]
	if !ok {
		body = resolv.NewObject(float64(obj.Position.X), float64(obj.Position.Y), p.bodySize, p.bodySize)
		p.space.Add(body)
		p.bodies[obj.GetID()] = body
	}
	return body
}

// Remove drops the body tracked for id, e.g. once the Simulation Engine
// removes the backing object from the World.
func (p *Physics) Remove(id uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if body, ok := p.bodies[id]; ok {
		p.space.Remove(body)
		delete(p.bodies, id)
	}
}

// Step moves every object by velocity*dtSeconds, one axis at a time, and
// zeroes the velocity component of any move a collision rejected.
func (p *Physics) Step(dtSeconds float64, objects []*object.PhysicalObject2D) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, obj := range objects {
		body := p.bodyFor(obj)
		body.Position.X, body.Position.Y = float64(obj.Position.X), float64(obj.Position.Y)
		body.Update()

		dx := float64(obj.Velocity.X) * dtSeconds
		if check := body.Check(dx, 0); check != nil {
			dx = 0
			obj.Velocity.X = 0
		}
		body.Position.X += dx

		dy := float64(obj.Velocity.Y) * dtSeconds
		if check := body.Check(0, dy); check != nil {
			dy = 0
			obj.Velocity.Y = 0
		}
		body.Position.Y += dy

		body.Update()
		obj.Position.X = float32(body.Position.X)
		obj.Position.Y = float32(body.Position.Y)
	}
	return nil
}
