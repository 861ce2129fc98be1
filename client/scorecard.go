// Package client implements the consuming side of the broadcast channel:
// a scorecard that applies local edits optimistically and reconciles them
// against authoritative events, with the event always winning on conflict.
package client

import (
	"sync"

	"github.com/Seednode/openround/rooms"
	"github.com/Seednode/openround/round"
)

type cell struct {
	slot int
	hole int
}

// Scorecard keeps two layers: the authoritative values last confirmed by
// the server, and a draft overlay of optimistic local edits. Reads see the
// draft where one exists; an inbound event for a cell overwrites the
// authoritative value and clears that cell's draft unconditionally,
// because the event reflects the last value the store actually accepted.
type Scorecard struct {
	mu            sync.Mutex
	authoritative map[cell]int
	draft         map[cell]int
}

func NewScorecard() *Scorecard {
	return &Scorecard{
		authoritative: make(map[cell]int),
		draft:         make(map[cell]int),
	}
}

// Reset adopts a full round snapshot as the authoritative layer and drops
// all drafts. Used after fetching the round or rejoining its room.
func (c *Scorecard) Reset(r *round.Round) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.authoritative = make(map[cell]int)
	c.draft = make(map[cell]int)
	for slot := range r.Slots {
		for hole, strokes := range r.Slots[slot].Strokes {
			if strokes != 0 {
				c.authoritative[cell{slot, hole}] = strokes
			}
		}
	}
}

// SetLocal records an optimistic edit, applied immediately while the
// mutation request is in flight.
func (c *Scorecard) SetLocal(slot, hole, strokes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft[cell{slot, hole}] = strokes
}

// Apply merges an inbound broadcast event. Score events win over any
// local draft for the same cell, even one made after the request that
// produced the event; this is last-write-wins at value granularity.
func (c *Scorecard) Apply(event any) {
	ev, ok := event.(rooms.ScoreUpdated)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := cell{ev.Slot, ev.Hole}
	c.authoritative[key] = ev.Strokes
	delete(c.draft, key)
}

// Strokes returns the current value for a cell: the optimistic draft if
// one is pending, otherwise the last authoritative value, otherwise zero.
func (c *Scorecard) Strokes(slot, hole int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cell{slot, hole}
	if v, ok := c.draft[key]; ok {
		return v
	}
	return c.authoritative[key]
}

// Pending reports whether a cell has an unconfirmed local edit.
func (c *Scorecard) Pending(slot, hole int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.draft[cell{slot, hole}]
	return ok
}
