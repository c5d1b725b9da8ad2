// Package object defines the game-entity data model: the base GameObject
// attributes shared by everything in the World, and PhysicalObject2D, the
// one concrete subclass the engine ships with. Game-specific subclasses are
// expected to embed Base the same way PhysicalObject2D does.
package object

// Components is the set of component-type names attached to an object,
// keyed by name for an O(1) "has component" check.
type Components map[string]struct{}

func (c Components) Has(name string) bool {
	_, ok := c[name]
	return ok
}

func (c Components) Add(name string) {
	c[name] = struct{}{}
}

func (c Components) Remove(name string) {
	delete(c, name)
}

// Base carries the attributes every World member has, regardless of
// subclass: identity, ownership, room assignment, and the transient
// bookkeeping the reconciliation strategies need.
type Base struct {
	ID uint32
	// PlayerID is 0 for an unowned object.
	PlayerID uint32
	// InputID pairs a client-predicted shadow with its server twin.
	// 0 means "not a shadow".
	InputID uint32
	// RoomName is empty until the server assigns the object to a room.
	RoomName   string
	Components Components

	// savedCopy is a transient snapshot taken by a sync strategy before it
	// mutates the object, consumed by the bending pass in the same sync.
	savedCopy Instance
}

func NewBase(id uint32) Base {
	return Base{ID: id, Components: Components{}}
}

func (b *Base) GetID() uint32           { return b.ID }
func (b *Base) SetID(id uint32)         { b.ID = id }
func (b *Base) GetPlayerID() uint32     { return b.PlayerID }
func (b *Base) GetInputID() uint32      { return b.InputID }
func (b *Base) GetRoomName() string     { return b.RoomName }
func (b *Base) SetRoomName(name string) { b.RoomName = name }
func (b *Base) IsShadow(clientIDSpace uint32) bool {
	return b.ID >= clientIDSpace
}

func (b *Base) SaveCopy(snapshot Instance) { b.savedCopy = snapshot }
func (b *Base) SavedCopy() Instance        { return b.savedCopy }
func (b *Base) ClearSavedCopy()            { b.savedCopy = nil }

// Instance is implemented by every registered class. ClassName identifies
// the class in the Serializer's registry; NetScheme describes, in wire
// order, the fields that participate in encode/decode and syncTo.
type Instance interface {
	ClassName() string
	NetScheme() NetScheme
}

// WorldObject is the interface the World and Simulation Engine operate on:
// any registered class whose concrete type also carries a Base.
type WorldObject interface {
	Instance
	GetID() uint32
	GetPlayerID() uint32
	GetInputID() uint32
	IsShadow(clientIDSpace uint32) bool
}

// Lifecycle hooks a WorldObject may optionally implement. The Simulation
// Engine calls these at add/remove time; a class that doesn't need them
// simply doesn't implement the interface.
type OnAddToWorld interface {
	OnAddToWorld()
}

type OnRemoveFromWorld interface {
	OnRemoveFromWorld()
}
