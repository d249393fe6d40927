package ecs

import (
	"github.com/phanxgames/sylvan"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// PickEventType is the Donburi event type for sylvan pick events.
// Subscribe to this in your ECS systems to receive scene picks.
var PickEventType = events.NewEventType[sylvan.PickEvent]()

// Selection holds the most recent pick.
type Selection struct {
	Node     sylvan.NodeID
	Name     string
	Distance float64
	Picks    int
}

// SelectionComponent is attached to the single selection entity the store
// creates in its world.
var SelectionComponent = donburi.NewComponentType[Selection]()

type donburiStore struct {
	world     donburi.World
	selection donburi.Entity
}

// NewDonburiStore creates an EntityStore backed by a Donburi world.
// Pick events are published to PickEventType and can be consumed with
// events.Subscribe and ProcessEvents. The store also keeps one entity with a
// SelectionComponent updated to the last pick.
func NewDonburiStore(world donburi.World) sylvan.EntityStore {
	return &donburiStore{
		world:     world,
		selection: world.Create(SelectionComponent),
	}
}

func (s *donburiStore) EmitEvent(event sylvan.PickEvent) {
	if s.world.Valid(s.selection) {
		sel := SelectionComponent.Get(s.world.Entry(s.selection))
		sel.Node = event.Node
		sel.Name = event.Name
		sel.Distance = event.Distance
		sel.Picks++
	}
	PickEventType.Publish(s.world, event)
}
