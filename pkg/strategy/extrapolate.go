package strategy

import (
	"fmt"

	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/simulation"
	"github.com/solstice-games/syncstep/pkg/transmitter"
	"github.com/solstice-games/syncstep/pkg/world"
)

// ExtrapolateOptions configures client-side prediction reconciliation
// (spec.md §4.8.1). The defaults match spec.md §7's listed values.
type ExtrapolateOptions struct {
	SyncsBufferLength int
	MaxReEnactSteps   uint64
	RTTEstimate       uint64
	Extrapolate       uint64
	LocalObjBending   float64
	RemoteObjBending  float64
	BendingIncrements int

	// StepIntervalSeconds is the fixed dt each re-enact step and the
	// inputs replayed in it use, matching the Scheduler's own tick
	// interval. Bending increments on live steps use that step's own dt.
	StepIntervalSeconds float64
	ClientIDSpace       uint32

	// Movement reports whether an input should be replayed during
	// re-enactment. A nil Movement replays every buffered input.
	Movement func(simulation.Input) bool
}

func DefaultExtrapolateOptions() ExtrapolateOptions {
	return ExtrapolateOptions{
		SyncsBufferLength:   5,
		MaxReEnactSteps:     60,
		RTTEstimate:         2,
		Extrapolate:         2,
		LocalObjBending:     0.1,
		RemoteObjBending:    0.6,
		BendingIncrements:   10,
		StepIntervalSeconds: 1.0 / 60.0,
		ClientIDSpace:       world.ClientIDSpace,
	}
}

// ExtrapolateStrategy is client-side prediction: the local world runs
// ahead of the server, and every sync reconciles, re-enacts buffered
// inputs forward, and bends the visible jump away over several steps.
type ExtrapolateStrategy struct {
	base
	opts ExtrapolateOptions

	recentInputs map[uint64][]simulation.Input
}

func NewExtrapolateStrategy(engine *simulation.Engine, myPlayerID uint32, opts ExtrapolateOptions) *ExtrapolateStrategy {
	if opts.ClientIDSpace == 0 {
		opts.ClientIDSpace = world.ClientIDSpace
	}
	if opts.BendingIncrements <= 0 {
		opts.BendingIncrements = 1
	}
	if opts.StepIntervalSeconds <= 0 {
		opts.StepIntervalSeconds = 1.0 / 60.0
	}
	return &ExtrapolateStrategy{
		base:         newBase(engine, myPlayerID),
		opts:         opts,
		recentInputs: make(map[uint64][]simulation.Input),
	}
}

func (s *ExtrapolateStrategy) Options() ExtrapolateOptions { return s.opts }

// DriftThresholds derives the lead/lag policy from the strategy's own
// extrapolate/RTTEstimate/maxReEnactSteps options: a client may run up to
// Extrapolate steps ahead, tolerate RTTEstimate steps of lag before
// catching up, and abandons re-enactment (snapping outright) once it
// falls MaxReEnactSteps behind — beyond that, re-enact's own clamp would
// fire anyway.
func (s *ExtrapolateStrategy) DriftThresholds() DriftThresholds {
	return DriftThresholds{
		Lead:        s.opts.Extrapolate,
		Lag:         s.opts.RTTEstimate,
		ClientReset: s.opts.MaxReEnactSteps,
	}
}

// RecordInput buffers a locally applied input under the step it was
// applied at, so a future re-enact can replay it (spec.md §4.8.1,
// "Input buffering").
func (s *ExtrapolateStrategy) RecordInput(step uint64, input simulation.Input) {
	s.recentInputs[step] = append(s.recentInputs[step], input)
}

// ApplySync implements spec.md §4.8.1 steps 1-5.
func (s *ExtrapolateStrategy) ApplySync(payload transmitter.Payload, required bool) error {
	localStep := s.engine.World().StepCount()
	serverStep := payload.Step

	if serverStep > localStep && !required {
		return nil
	}

	present := make(map[uint32]struct{}, len(payload.Frames))
	var bending []*object.PhysicalObject2D

	for _, frame := range payload.Frames {
		if frame.Type == transmitter.FrameDestroy {
			_ = s.engine.RemoveObject(frame.ID)
			continue
		}
		present[frame.ID] = struct{}{}

		wo, err := s.reconcileOne(frame)
		if err != nil {
			return err
		}
		if p, ok := wo.(*object.PhysicalObject2D); ok && p.SavedCopy() != nil {
			bending = append(bending, p)
		}
	}

	s.needFirstSync = false

	if payload.FullSync {
		s.destroyMissing(present, s.opts.ClientIDSpace)
	}

	if err := s.reenact(serverStep, localStep); err != nil {
		return err
	}

	s.bendAll(bending)
	return nil
}

func (s *ExtrapolateStrategy) reconcileOne(frame transmitter.Frame) (object.WorldObject, error) {
	decoded, ok := frame.Instance.(*object.PhysicalObject2D)
	if !ok {
		return s.addNewObject(frame.ID, frame.Instance)
	}

	if shadow := s.engine.FindLocalShadow(decoded.GetInputID()); shadow != nil {
		return s.reconcileShadowMatch(frame, shadow, decoded)
	}
	if existing, ok := s.engine.World().Get(frame.ID); ok {
		return s.reconcileExisting(frame, existing)
	}
	return s.addNewObject(frame.ID, decoded)
}

// reconcileShadowMatch adopts the server's authoritative object under its
// own id, carrying the shadow's predicted state forward as the bending
// source, then discards the shadow (spec.md §4.8.1 step 2, "Shadow
// match").
func (s *ExtrapolateStrategy) reconcileShadowMatch(frame transmitter.Frame, shadow object.WorldObject, decoded *object.PhysicalObject2D) (object.WorldObject, error) {
	shadowP, ok := shadow.(*object.PhysicalObject2D)
	if !ok {
		return nil, fmt.Errorf("strategy: shadow %d is not a PhysicalObject2D", shadow.GetID())
	}

	if existing, alreadyPresent := s.engine.World().Get(frame.ID); alreadyPresent {
		wo, err := s.reconcileExisting(frame, existing)
		if err != nil {
			return nil, err
		}
		_ = s.engine.RemoveObject(shadow.GetID())
		return wo, nil
	}

	decoded.SetID(frame.ID)
	decoded.SaveCopy(shadowP.Clone())
	if _, err := s.engine.AddObject(decoded); err != nil {
		return nil, err
	}
	if err := s.engine.RemoveObject(shadow.GetID()); err != nil {
		return nil, err
	}
	return decoded, nil
}

// reconcileExisting snapshots the object's current (predicted) state for
// bending, then adopts the server's fields, preserving local identity for
// nested CLASSINSTANCE/LIST fields (spec.md §4.8.1 step 2, "Existing").
func (s *ExtrapolateStrategy) reconcileExisting(frame transmitter.Frame, existing object.WorldObject) (object.WorldObject, error) {
	p, ok := existing.(*object.PhysicalObject2D)
	if !ok {
		object.SyncTo(existing, frame.Instance, object.SyncOptions{PreserveNested: true})
		return existing, nil
	}
	p.SaveCopy(p.Clone())
	object.SyncTo(p, frame.Instance, object.SyncOptions{PreserveNested: true})
	if decoded, ok := frame.Instance.(*object.PhysicalObject2D); ok {
		p.AdoptVectors(decoded)
	}
	return p, nil
}

// reenact replays buffered inputs from serverStep forward to localStep,
// clamped to at most MaxReEnactSteps behind localStep (spec.md §4.8.1
// step 3).
func (s *ExtrapolateStrategy) reenact(serverStep, localStep uint64) error {
	if localStep == 0 || serverStep >= localStep {
		return nil
	}

	from := serverStep
	if localStep > s.opts.MaxReEnactSteps && from < localStep-s.opts.MaxReEnactSteps {
		from = localStep - s.opts.MaxReEnactSteps
	}

	s.engine.World().SetStepCount(from)

	for k := from; k < localStep; k++ {
		for _, in := range s.recentInputs[k] {
			if s.opts.Movement == nil || s.opts.Movement(in) {
				s.engine.ProcessInput(in, s.opts.StepIntervalSeconds)
			}
		}
		if err := s.engine.Step(true, s.opts.StepIntervalSeconds, false); err != nil {
			return err
		}
	}

	for step := range s.recentInputs {
		if step <= serverStep {
			delete(s.recentInputs, step)
		}
	}
	return nil
}

// bendAll starts an incremental bend on every object reconcileOne marked
// as having a saved pre-sync snapshot (spec.md §4.8.1 step 4).
func (s *ExtrapolateStrategy) bendAll(objs []*object.PhysicalObject2D) {
	for _, p := range objs {
		bendOne(p, s.myPlayerID, s.opts.LocalObjBending, s.opts.RemoteObjBending, s.opts.BendingIncrements)
	}
}
