package strategy

import (
	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/simulation"
	"github.com/solstice-games/syncstep/pkg/transmitter"
	"github.com/solstice-games/syncstep/pkg/world"
)

// InterpolateOptions configures the no-local-simulation reconciliation
// strategy (spec.md §4.8.2). The defaults match spec.md §7's listed
// values; a BendingIncrements of 1 with LocalObjBending/RemoteObjBending
// of 1.0 collapses bending into a plain one-step snap.
type InterpolateOptions struct {
	ClientStepHold    int
	LocalObjBending   float64
	RemoteObjBending  float64
	BendingIncrements int
	ClientIDSpace     uint32
}

func DefaultInterpolateOptions() InterpolateOptions {
	return InterpolateOptions{
		ClientStepHold:    6,
		LocalObjBending:   1.0,
		RemoteObjBending:  1.0,
		BendingIncrements: 6,
		ClientIDSpace:     world.ClientIDSpace,
	}
}

// InterpolateStrategy runs no shadow logic and no re-enactment, and its
// RecordInput is a no-op: after each applied sync, objects bend toward
// whatever the server last reported. It does not switch off the engine's
// Physics collaborator or the client's local input handling; both still
// run as configured.
type InterpolateStrategy struct {
	base
	opts InterpolateOptions

	lastAppliedStep uint64
}

func NewInterpolateStrategy(engine *simulation.Engine, myPlayerID uint32, opts InterpolateOptions) *InterpolateStrategy {
	if opts.ClientIDSpace == 0 {
		opts.ClientIDSpace = world.ClientIDSpace
	}
	if opts.BendingIncrements <= 0 {
		opts.BendingIncrements = 1
	}
	return &InterpolateStrategy{base: newBase(engine, myPlayerID), opts: opts}
}

func (s *InterpolateStrategy) Options() InterpolateOptions { return s.opts }

// DriftThresholds ties the lag tolerance to ClientStepHold, the number of
// steps a client is expected to hold its last interpolation target for
// before a fresh one is due.
func (s *InterpolateStrategy) DriftThresholds() DriftThresholds {
	hold := uint64(s.opts.ClientStepHold)
	return DriftThresholds{
		Lead:        1,
		Lag:         hold,
		ClientReset: hold * 4,
	}
}

// RecordInput is a no-op: InterpolateStrategy never re-enacts, so it has
// no use for buffered inputs.
func (s *InterpolateStrategy) RecordInput(step uint64, input simulation.Input) {}

// ApplySync implements spec.md §4.8.2: refuse syncs that aren't strictly
// newer than the last applied one (unless required), adopt fields with no
// shadow logic and no re-enact, then bend toward the new state.
func (s *InterpolateStrategy) ApplySync(payload transmitter.Payload, required bool) error {
	if payload.Step <= s.lastAppliedStep && !required {
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
	s.lastAppliedStep = payload.Step

	if payload.FullSync {
		s.destroyMissing(present, s.opts.ClientIDSpace)
	}

	for _, p := range bending {
		bendOne(p, s.myPlayerID, s.opts.LocalObjBending, s.opts.RemoteObjBending, s.opts.BendingIncrements)
	}
	return nil
}

func (s *InterpolateStrategy) reconcileOne(frame transmitter.Frame) (object.WorldObject, error) {
	existing, ok := s.engine.World().Get(frame.ID)
	if !ok {
		return s.addNewObject(frame.ID, frame.Instance)
	}

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
