package strategy

import (
	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/simulation"
	"github.com/solstice-games/syncstep/pkg/transmitter"
	"github.com/solstice-games/syncstep/pkg/world"
)

// FrameSyncOptions configures the trust-the-server-every-frame strategy
// (spec.md §4.8.3). Defaults match spec.md §7's listed values.
type FrameSyncOptions struct {
	WorldBufferLength int
	ClientStepLag     uint64
	ClientIDSpace     uint32
}

func DefaultFrameSyncOptions() FrameSyncOptions {
	return FrameSyncOptions{
		WorldBufferLength: 60,
		ClientStepLag:     0,
		ClientIDSpace:     world.ClientIDSpace,
	}
}

// FrameSyncStrategy has no bending and no re-enact: it adopts whatever
// the server says, immediately, every time. Intended for small worlds
// where a per-frame sync is cheap enough to afford.
type FrameSyncStrategy struct {
	base
	opts FrameSyncOptions
}

func NewFrameSyncStrategy(engine *simulation.Engine, myPlayerID uint32, opts FrameSyncOptions) *FrameSyncStrategy {
	if opts.ClientIDSpace == 0 {
		opts.ClientIDSpace = world.ClientIDSpace
	}
	return &FrameSyncStrategy{base: newBase(engine, myPlayerID), opts: opts}
}

func (s *FrameSyncStrategy) Options() FrameSyncOptions { return s.opts }

// DriftThresholds ties the lag tolerance to ClientStepLag: FrameSync
// expects to track the server almost exactly, so both lead and lag
// tolerances are tight.
func (s *FrameSyncStrategy) DriftThresholds() DriftThresholds {
	lag := s.opts.ClientStepLag
	if lag == 0 {
		lag = 1
	}
	return DriftThresholds{Lead: 1, Lag: lag, ClientReset: lag * 10}
}

// RecordInput is a no-op: FrameSyncStrategy never re-enacts.
func (s *FrameSyncStrategy) RecordInput(step uint64, input simulation.Input) {}

// ApplySync implements spec.md §4.8.3: create if missing, else syncTo
// directly, then apply the shared destroy rules.
func (s *FrameSyncStrategy) ApplySync(payload transmitter.Payload, required bool) error {
	present := make(map[uint32]struct{}, len(payload.Frames))

	for _, frame := range payload.Frames {
		if frame.Type == transmitter.FrameDestroy {
			_ = s.engine.RemoveObject(frame.ID)
			continue
		}
		present[frame.ID] = struct{}{}

		existing, ok := s.engine.World().Get(frame.ID)
		if !ok {
			if _, err := s.addNewObject(frame.ID, frame.Instance); err != nil {
				return err
			}
			continue
		}
		object.SyncTo(existing, frame.Instance, object.SyncOptions{PreserveNested: true})
		if p, ok := existing.(*object.PhysicalObject2D); ok {
			if decoded, ok := frame.Instance.(*object.PhysicalObject2D); ok {
				p.AdoptVectors(decoded)
			}
		}
	}

	s.needFirstSync = false
	if payload.FullSync {
		s.destroyMissing(present, s.opts.ClientIDSpace)
	}
	return nil
}
