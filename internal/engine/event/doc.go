// Package event defines the canonical event envelope and event-type registry
// used by the engine write path.
//
// Events are immutable business facts emitted by accepted decisions. The
// registry enforces entity addressing and payload validity before persistence
// assigns sequence and integrity fields.
//
// A stable event contract is the foundation for replay, projection
// correctness, and undo/redo, which all fold the same journal.
package event
