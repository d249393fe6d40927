// Package ecs provides ECS adapters for sylvan's picking events.
//
// The primary adapter is [NewDonburiStore], which bridges sylvan pick events
// into a [Donburi] world as typed events and keeps a selection entity current.
// Subscribe to [PickEventType] in your ECS systems to receive them.
//
// Usage:
//
//	store := ecs.NewDonburiStore(world)
//	scene.SetEntityStore(store)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
