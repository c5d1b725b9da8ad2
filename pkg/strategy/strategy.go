// Package strategy implements the three Sync Strategies spec.md §4.8
// describes: ExtrapolateStrategy (client-side prediction with re-enact and
// bending), InterpolateStrategy (no local simulation, pure bending), and
// FrameSyncStrategy (trust the server every frame). A client engine picks
// one at construction time and feeds it every decoded sync payload.
package strategy

import (
	"fmt"

	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/simulation"
	"github.com/solstice-games/syncstep/pkg/transmitter"
)

// Strategy reconciles one decoded sync payload against the local world.
type Strategy interface {
	// ApplySync reconciles payload. required forces application even
	// when the strategy's own freshness rule would otherwise defer it.
	ApplySync(payload transmitter.Payload, required bool) error
	// RecordInput buffers a locally issued input so a later re-enact (if
	// the strategy performs one) can replay it. Strategies that never
	// re-enact implement this as a no-op.
	RecordInput(step uint64, input simulation.Input)
	// NeedFirstSync reports whether the strategy is still waiting on its
	// first applied sync (spec.md §4.7's handshake gate).
	NeedFirstSync() bool
	// DriftThresholds reports this strategy's STEP_DRIFT_THRESHOLDS
	// (spec.md §4.7's step drift discipline).
	DriftThresholds() DriftThresholds
}

// DriftThresholds are the step-lag policy knobs the Client Engine's drift
// discipline reads after every applied sync (spec.md §4.7): how far the
// local clock may lead or lag sync.stepCount+RTTEstimate before the
// scheduler should be nudged, and the lag beyond which re-enactment is
// abandoned and stepCount snaps straight to the server's.
type DriftThresholds struct {
	Lead        uint64
	Lag         uint64
	ClientReset uint64
}

// base holds the state every strategy shares: the local Simulation
// Engine, this client's own player id, and the handshake flag.
type base struct {
	engine        *simulation.Engine
	myPlayerID    uint32
	needFirstSync bool
}

// newBase also registers a post-step hook that advances every bending
// object by one increment on each non-re-enact step.
func newBase(engine *simulation.Engine, myPlayerID uint32) base {
	engine.AddPostStepHook(func(step uint64, dtSeconds float64, isReenact bool) {
		if isReenact {
			return
		}
		engine.World().ForEach(func(o object.WorldObject) bool {
			if p, ok := o.(*object.PhysicalObject2D); ok {
				p.ApplyIncrementalBending(dtSeconds * 1000)
			}
			return true
		})
	})
	return base{engine: engine, myPlayerID: myPlayerID, needFirstSync: true}
}

func (b *base) NeedFirstSync() bool { return b.needFirstSync }

// addNewObject allocates a local object matching inst's class — inst is
// already a decoded server instance, so its concrete type is whatever the
// Serializer registered for that class — stamps it with the frame's
// out-of-band id, and inserts it into the world.
func (b *base) addNewObject(id uint32, inst object.Instance) (object.WorldObject, error) {
	wo, ok := inst.(object.WorldObject)
	if !ok {
		return nil, fmt.Errorf("strategy: decoded class %q is not a WorldObject", inst.ClassName())
	}
	if setter, ok := wo.(interface{ SetID(uint32) }); ok {
		setter.SetID(id)
	}
	return b.engine.AddObject(wo)
}

// destroyMissing removes every non-shadow local object absent from
// present — the "on a full update, remove anything not in the sync" rule
// shared by all three strategies.
func (b *base) destroyMissing(present map[uint32]struct{}, clientIDSpace uint32) {
	var stale []uint32
	b.engine.World().ForEach(func(o object.WorldObject) bool {
		if o.IsShadow(clientIDSpace) {
			return true
		}
		if _, ok := present[o.GetID()]; !ok {
			stale = append(stale, o.GetID())
		}
		return true
	})
	for _, id := range stale {
		_ = b.engine.RemoveObject(id)
	}
}

// bendPercent returns the localObjBending or remoteObjBending share
// depending on whether obj is owned by this client (spec.md §4.8.1 step
// 4).
func bendPercent(obj object.WorldObject, myPlayerID uint32, local, remote float64) (float64, bool) {
	if obj.GetPlayerID() == myPlayerID && myPlayerID != 0 {
		return local, true
	}
	return remote, false
}

// bendOne starts an incremental bend on p using whatever pre-sync state
// reconcileOne stashed as its saved copy, shared by Extrapolate and
// Interpolate (spec.md §4.8.4).
func bendOne(p *object.PhysicalObject2D, myPlayerID uint32, local, remote float64, increments int) {
	saved, ok := p.SavedCopy().(*object.PhysicalObject2D)
	if !ok {
		p.ClearSavedCopy()
		return
	}
	percent, isLocal := bendPercent(p, myPlayerID, local, remote)
	p.BendToCurrent(saved.Snapshot(), percent, isLocal, increments)
	p.ClearSavedCopy()
}
