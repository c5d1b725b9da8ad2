// Package world holds the authoritative set of live objects, generalizing
// the RWMutex-protected map pattern the teacher repo uses for connected
// clients (pkg/network/clients.go) to arbitrary WorldObjects.
package world

import (
	"fmt"
	"sort"
	"sync"

	"github.com/solstice-games/syncstep/pkg/object"
)

// ClientIDSpace is the id boundary spec.md §3 reserves for client-predicted
// shadow objects: ids at or above this value were allocated locally by a
// client, never by the server authority.
const ClientIDSpace uint32 = 1_000_000

var ErrDuplicateID = fmt.Errorf("world: object id already present")
var ErrUnknownID = fmt.Errorf("world: no object with that id")

// World is the id-indexed object store both the server and client engines
// build their Simulation on top of.
type World struct {
	mu sync.RWMutex

	objects map[uint32]object.WorldObject
	nextID  uint32

	stepCount   uint64
	playerCount int
}

func New() *World {
	return &World{
		objects: make(map[uint32]object.WorldObject),
	}
}

// NewID returns the first unused id at or after an internal counter that
// starts at 0 and only moves forward. It does not stop at ClientIDSpace;
// the server authority uses it for every object it creates.
func (w *World) NewID() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		id := w.nextID
		w.nextID++
		if _, taken := w.objects[id]; !taken {
			return id
		}
	}
}

// Add inserts obj under its own id. It returns ErrDuplicateID if an object
// already occupies that id, and fires OnAddToWorld if obj implements it.
func (w *World) Add(obj object.WorldObject) error {
	w.mu.Lock()
	if _, exists := w.objects[obj.GetID()]; exists {
		w.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrDuplicateID, obj.GetID())
	}
	w.objects[obj.GetID()] = obj
	if obj.GetPlayerID() != 0 {
		w.playerCount++
	}
	w.mu.Unlock()

	if hook, ok := obj.(object.OnAddToWorld); ok {
		hook.OnAddToWorld()
	}
	return nil
}

// Remove deletes the object with the given id and fires OnRemoveFromWorld
// if it implements it.
func (w *World) Remove(id uint32) error {
	w.mu.Lock()
	obj, exists := w.objects[id]
	if !exists {
		w.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	delete(w.objects, id)
	if obj.GetPlayerID() != 0 {
		w.playerCount--
	}
	w.mu.Unlock()

	if hook, ok := obj.(object.OnRemoveFromWorld); ok {
		hook.OnRemoveFromWorld()
	}
	return nil
}

// Get returns the object with the given id, if present.
func (w *World) Get(id uint32) (object.WorldObject, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	obj, ok := w.objects[id]
	return obj, ok
}

// Filter selects objects during Query/QueryOne/ForEach.
type Filter func(object.WorldObject) bool

func ByPlayerID(playerID uint32) Filter {
	return func(o object.WorldObject) bool { return o.GetPlayerID() == playerID }
}

func ByClassName(name string) Filter {
	return func(o object.WorldObject) bool { return o.ClassName() == name }
}

func ByShadow(clientIDSpace uint32) Filter {
	return func(o object.WorldObject) bool { return o.IsShadow(clientIDSpace) }
}

// ByRoom matches objects whose Base carries the given room name. It is a
// type assertion rather than a WorldObject method because room assignment
// is a server concern, not every class's.
func ByRoom(name string) Filter {
	return func(o object.WorldObject) bool {
		getter, ok := o.(interface{ GetRoomName() string })
		return ok && getter.GetRoomName() == name
	}
}

// Query returns every object matching every given filter, ordered by id so
// callers get deterministic iteration (the teacher's broadcast worker
// relies on the same determinism when walking ClientManager's map via a
// sorted id slice).
func (w *World) Query(filters ...Filter) []object.WorldObject {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var ids []uint32
	for id := range w.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	results := make([]object.WorldObject, 0, len(ids))
	for _, id := range ids {
		obj := w.objects[id]
		if matchesAll(obj, filters) {
			results = append(results, obj)
		}
	}
	return results
}

// QueryOne returns the first object (by ascending id) matching every
// filter.
func (w *World) QueryOne(filters ...Filter) (object.WorldObject, bool) {
	matches := w.Query(filters...)
	if len(matches) == 0 {
		return nil, false
	}
	return matches[0], true
}

func matchesAll(obj object.WorldObject, filters []Filter) bool {
	for _, f := range filters {
		if !f(obj) {
			return false
		}
	}
	return true
}

// ForEach walks every object in ascending id order. fn returning false
// stops the walk early.
func (w *World) ForEach(fn func(object.WorldObject) bool) {
	for _, obj := range w.Query() {
		if !fn(obj) {
			return
		}
	}
}

// AdvanceStepCount increments and returns the world's step counter. The
// Simulation Engine calls this once per Step invocation, including
// re-enact steps but not physics-only steps.
func (w *World) AdvanceStepCount() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stepCount++
	return w.stepCount
}

func (w *World) StepCount() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stepCount
}

// SetStepCount rewinds or fast-forwards the step counter directly. A
// client's re-enactment (spec.md §4.8.1 step 3) sets stepCount back to the
// server's reported step before replaying forward through
// AdvanceStepCount, landing back on the original count by the time
// re-enactment finishes; the client's drift discipline also calls it to
// snap straight to the server's step.
func (w *World) SetStepCount(n uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stepCount = n
}

func (w *World) PlayerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.playerCount
}

func (w *World) ObjectCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.objects)
}
