// Package events carries entity lifecycle notifications from a simulation to
// whoever mirrors it: the sync server, loggers, tests.
package events

// Lifecycle event types.
const (
	TypeCreated     = "entity.created"
	TypeDestroyed   = "entity.destroyed"
	TypeRebuilt     = "entity.rebuilt"
	TypeKindDefined = "kind.defined"
)

// Created is the payload of TypeCreated.
type Created struct {
	ID   uint64
	Kind string
}

type Destroyed struct {
	ID   uint64
	Kind string
}

// Rebuilt is published after an entity's bodies were replaced by an update.
type Rebuilt struct {
	ID uint64
}

type KindDefined struct {
	Kind string
}

func (e Created) Event(src string) Event     { return NewEvent(TypeCreated, src, e) }
func (e Destroyed) Event(src string) Event   { return NewEvent(TypeDestroyed, src, e) }
func (e Rebuilt) Event(src string) Event     { return NewEvent(TypeRebuilt, src, e) }
func (e KindDefined) Event(src string) Event { return NewEvent(TypeKindDefined, src, e) }
