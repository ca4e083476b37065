// Package timeline tracks undo and redo over a scenario journal. Events
// appended for one accepted command share a timestamp, so a run of
// equal-timestamp events forms one step. The cursor walks step boundaries;
// the journal itself is never touched here.
package timeline

import (
	"fmt"
	"time"

	"github.com/louisbranch/yourupnext/internal/engine/event"
)

// Step is one undoable unit: the events appended by a single accepted
// command, identified by their shared timestamp.
type Step struct {
	// FirstSeq and LastSeq bound the step's events, inclusive.
	FirstSeq uint64
	LastSeq  uint64
	// Timestamp is shared by every event in the step.
	Timestamp time.Time
	// RequestID correlates the step back to the submitted command.
	RequestID string
	// Types lists the event types in journal order.
	Types []event.Type
}

// Cursor is a position between steps. Position n means steps [0, n) are
// applied; Undo moves the position back, Redo forward. The cursor holds
// only step metadata, never state.
type Cursor struct {
	steps    []Step
	position int
}

// NewCursor groups a full journal into steps and places the cursor at the
// head. Events must be in journal order starting at sequence 1.
func NewCursor(events []event.Event) (*Cursor, error) {
	c := &Cursor{}
	if err := c.extend(events); err != nil {
		return nil, err
	}
	c.position = len(c.steps)
	return c, nil
}

// extend appends steps for events, validating contiguity against the
// current tail.
func (c *Cursor) extend(events []event.Event) error {
	nextSeq := uint64(1)
	if n := len(c.steps); n > 0 {
		nextSeq = c.steps[n-1].LastSeq + 1
	}
	for _, evt := range events {
		if evt.Seq != nextSeq {
			return fmt.Errorf("journal gap: expected seq %d, got %d", nextSeq, evt.Seq)
		}
		nextSeq++

		if n := len(c.steps); n > 0 && c.steps[n-1].Timestamp.Equal(evt.Timestamp) {
			step := &c.steps[n-1]
			step.LastSeq = evt.Seq
			step.Types = append(step.Types, evt.Type)
			continue
		}
		if n := len(c.steps); n > 0 && !evt.Timestamp.After(c.steps[n-1].Timestamp) {
			return fmt.Errorf("journal timestamps regress at seq %d", evt.Seq)
		}
		c.steps = append(c.steps, Step{
			FirstSeq:  evt.Seq,
			LastSeq:   evt.Seq,
			Timestamp: evt.Timestamp,
			RequestID: evt.RequestID,
			Types:     []event.Type{evt.Type},
		})
	}
	return nil
}

// Len returns the number of steps.
func (c *Cursor) Len() int {
	return len(c.steps)
}

// Position returns how many steps are currently applied.
func (c *Cursor) Position() int {
	return c.position
}

// Seq returns the journal sequence of the applied prefix. Zero means no
// steps are applied.
func (c *Cursor) Seq() uint64 {
	if c.position == 0 {
		return 0
	}
	return c.steps[c.position-1].LastSeq
}

// HeadSeq returns the journal sequence of the last known step.
func (c *Cursor) HeadSeq() uint64 {
	if len(c.steps) == 0 {
		return 0
	}
	return c.steps[len(c.steps)-1].LastSeq
}

// HeadTimestamp returns the timestamp of the last known step, or the zero
// time for an empty journal.
func (c *Cursor) HeadTimestamp() time.Time {
	if len(c.steps) == 0 {
		return time.Time{}
	}
	return c.steps[len(c.steps)-1].Timestamp
}

// AtHead reports whether every known step is applied.
func (c *Cursor) AtHead() bool {
	return c.position == len(c.steps)
}

// CanUndo reports whether a step is available to undo.
func (c *Cursor) CanUndo() bool {
	return c.position > 0
}

// CanRedo reports whether an undone step is available to redo.
func (c *Cursor) CanRedo() bool {
	return c.position < len(c.steps)
}

// Undo moves the cursor back one step and returns the step that is no
// longer applied.
func (c *Cursor) Undo() (Step, bool) {
	if !c.CanUndo() {
		return Step{}, false
	}
	c.position--
	return c.steps[c.position], true
}

// Redo reapplies the next undone step.
func (c *Cursor) Redo() (Step, bool) {
	if !c.CanRedo() {
		return Step{}, false
	}
	step := c.steps[c.position]
	c.position++
	return step, true
}

// Truncate discards every step past the cursor. It mirrors a journal
// truncation after a new command diverges from an undone future.
func (c *Cursor) Truncate() []Step {
	if c.AtHead() {
		return nil
	}
	dropped := append([]Step(nil), c.steps[c.position:]...)
	c.steps = c.steps[:c.position]
	return dropped
}

// Append records newly journaled events as steps at the head. The cursor
// must be at the head; a divergent future has to be truncated first.
func (c *Cursor) Append(events []event.Event) error {
	if !c.AtHead() {
		return fmt.Errorf("cursor is %d steps behind the head", len(c.steps)-c.position)
	}
	if err := c.extend(events); err != nil {
		return err
	}
	c.position = len(c.steps)
	return nil
}

// Steps returns a copy of the known steps in journal order.
func (c *Cursor) Steps() []Step {
	out := make([]Step, len(c.steps))
	copy(out, c.steps)
	for i := range out {
		out[i].Types = append([]event.Type(nil), c.steps[i].Types...)
	}
	return out
}
