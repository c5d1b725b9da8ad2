// Package simulation is the Simulation Engine: the fixed-step game logic
// shared verbatim by the server authority and the client engine. It owns
// no network or timing concerns of its own — Scheduler drives when Step
// runs, and Server/Client decide what isReenact and physicsOnly mean for
// their side of the wire.
package simulation

import (
	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/physics"
	"github.com/solstice-games/syncstep/pkg/world"
)

// Input is one player command, already decoded from the wire. InputID is
// a monotonically increasing per-player sequence number the client stamps
// on the way out (spec.md §4.7) and the server echoes back as
// lastHandledInput so the client knows which of its predicted inputs have
// been applied.
type Input struct {
	PlayerID uint32
	InputID  uint32
	// Step is the logical step at which the input was produced (spec.md
	// §3's Input Descriptor `step` field). The server authority buckets
	// queued inputs by it and only dispatches a bucket once its own
	// stepCount has reached it (spec.md §4.6 step 2).
	Step    uint64
	Payload []byte
}

// ApplyInputFunc is the game-specific rule for turning one Input into
// world mutations (e.g. setting a PhysicalObject2D's velocity). Engine has
// no opinion on input semantics beyond sequencing them.
type ApplyInputFunc func(w *world.World, input Input, dtSeconds float64)

// StepHook runs once per Step call, before (PreStep) or after (PostStep)
// physics advances. step is the world's step counter after this step's
// increment; it is identical for a step and its re-enactments of the same
// logical tick.
type StepHook func(step uint64, dtSeconds float64, isReenact bool)

// Options constructs an Engine.
type Options struct {
	World         *world.World
	Physics       physics.Physics
	ClientIDSpace uint32
	ApplyInput    ApplyInputFunc
}

// Engine is the Simulation Engine described in spec.md §4.4.
type Engine struct {
	world         *world.World
	physics       physics.Physics
	clientIDSpace uint32
	applyInput    ApplyInputFunc

	preStep  []StepHook
	postStep []StepHook
}

func New(opts Options) *Engine {
	phys := opts.Physics
	if phys == nil {
		phys = physics.NoOp{}
	}
	clientIDSpace := opts.ClientIDSpace
	if clientIDSpace == 0 {
		clientIDSpace = world.ClientIDSpace
	}
	return &Engine{
		world:         opts.World,
		physics:       phys,
		clientIDSpace: clientIDSpace,
		applyInput:    opts.ApplyInput,
	}
}

func (e *Engine) World() *world.World { return e.world }

// ClientIDSpace returns the id boundary this engine uses to distinguish
// client-predicted shadows from authoritative objects.
func (e *Engine) ClientIDSpace() uint32 { return e.clientIDSpace }

// AddPreStepHook registers a hook Step runs before advancing physics.
func (e *Engine) AddPreStepHook(h StepHook) { e.preStep = append(e.preStep, h) }

// AddPostStepHook registers a hook Step runs after advancing physics.
func (e *Engine) AddPostStepHook(h StepHook) { e.postStep = append(e.postStep, h) }

// Step advances the simulation by one tick. isReenact marks a step as part
// of a client's post-reconciliation replay of already-applied inputs
// (spec.md §4.8.1); hooks receive it so they can, for example, skip
// emitting network side effects during a replay. physicsOnly skips both
// hook passes and the step counter increment and runs only the physics
// collaborator, for advancing bodies without re-running game logic that
// already ran once for that tick.
func (e *Engine) Step(isReenact bool, dtSeconds float64, physicsOnly bool) error {
	if physicsOnly {
		return e.physics.Step(dtSeconds, e.physicalObjects(isReenact))
	}

	step := e.world.AdvanceStepCount()

	for _, h := range e.preStep {
		h(step, dtSeconds, isReenact)
	}

	if err := e.physics.Step(dtSeconds, e.physicalObjects(isReenact)); err != nil {
		return err
	}

	for _, h := range e.postStep {
		h(step, dtSeconds, isReenact)
	}
	return nil
}

// physicalObjects collects every physical body the physics collaborator
// should step. During re-enactment, shadow objects (spec.md §4.4 step 3)
// are skipped: a shadow only ever predicts forward from "now", and
// re-enactment is rebuilding a server-confirmed past, not re-predicting
// the shadow's own future.
func (e *Engine) physicalObjects(isReenact bool) []*object.PhysicalObject2D {
	var out []*object.PhysicalObject2D
	e.world.ForEach(func(o object.WorldObject) bool {
		if isReenact && o.IsShadow(e.clientIDSpace) {
			return true
		}
		if p, ok := o.(*object.PhysicalObject2D); ok {
			out = append(out, p)
		}
		return true
	})
	return out
}

// AddObject inserts obj into the world, unless obj is a client-predicted
// shadow whose InputID already matches a shadow already present — in
// which case the existing object is returned instead of inserting a
// duplicate. This is the rule FindLocalShadow exists to serve: a client
// replaying its own earlier prediction must not spawn a second copy of an
// object it already created.
func (e *Engine) AddObject(obj object.WorldObject) (object.WorldObject, error) {
	if obj.IsShadow(e.clientIDSpace) {
		if existing := e.FindLocalShadow(obj.GetInputID()); existing != nil {
			return existing, nil
		}
	}
	if err := e.world.Add(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// RemoveObject removes the object with the given id from the world.
func (e *Engine) RemoveObject(id uint32) error {
	return e.world.Remove(id)
}

// FindLocalShadow returns the client-predicted shadow object whose
// InputID matches inputID, if one exists. inputID 0 never matches, since
// 0 means "not a shadow" (object.Base.GetInputID).
func (e *Engine) FindLocalShadow(inputID uint32) object.WorldObject {
	if inputID == 0 {
		return nil
	}
	obj, ok := e.world.QueryOne(world.ByShadow(e.clientIDSpace), byInputID(inputID))
	if !ok {
		return nil
	}
	return obj
}

func byInputID(id uint32) world.Filter {
	return func(o object.WorldObject) bool { return o.GetInputID() == id }
}

// ProcessInput applies one input via the engine's configured
// ApplyInputFunc. A nil ApplyInputFunc makes ProcessInput a no-op, which
// is valid for a client that only ever receives authoritative state.
func (e *Engine) ProcessInput(input Input, dtSeconds float64) {
	if e.applyInput != nil {
		e.applyInput(e.world, input, dtSeconds)
	}
}
