// Package round implements the shared scorecard domain: the round record,
// its slot-claim protocol, the per-field authorization policy, and the
// mutation pipeline that persists stroke updates and fans them out to
// connected observers.
package round

import (
	"fmt"
	"time"
)

const (
	// MinSlots and MaxSlots bound how many player columns a round may have.
	MinSlots = 1
	MaxSlots = 4

	// MinPar and MaxPar bound the par of a single hole.
	MinPar = 3
	MaxPar = 5
)

// Hole is one fixed position on the card.
type Hole struct {
	Number int `json:"number"`
	Par    int `json:"par"`
}

// Slot is one player's column on the card. UserID is empty while the slot
// is open; Strokes may be shorter than the hole count, with missing
// entries reading as zero.
type Slot struct {
	Name    string `json:"name"`
	UserID  string `json:"user_id,omitempty"`
	Strokes []int  `json:"strokes"`
}

// StrokesAt returns the recorded strokes for the given hole index, or zero
// if nothing has been recorded there yet.
func (s *Slot) StrokesAt(hole int) int {
	if hole < 0 || hole >= len(s.Strokes) {
		return 0
	}
	return s.Strokes[hole]
}

// Round is the shared session record. OwnerID is the identity that created
// the round; Code is the shareable join code, unique across live rounds.
type Round struct {
	ID        string    `json:"id"`
	Code      string    `json:"code,omitempty"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	Holes     []Hole    `json:"holes"`
	Slots     []Slot    `json:"slots"`
}

// Validate checks the structural invariants of a round: 9 or 18 holes,
// pars between 3 and 5, and between 1 and 4 slots.
func (r *Round) Validate() error {
	if len(r.Holes) != 9 && len(r.Holes) != 18 {
		return fmt.Errorf("round must have 9 or 18 holes, got %d", len(r.Holes))
	}
	for _, h := range r.Holes {
		if h.Par < MinPar || h.Par > MaxPar {
			return fmt.Errorf("hole %d: par must be between %d and %d, got %d", h.Number, MinPar, MaxPar, h.Par)
		}
	}
	if len(r.Slots) < MinSlots || len(r.Slots) > MaxSlots {
		return fmt.Errorf("round must have between %d and %d slots, got %d", MinSlots, MaxSlots, len(r.Slots))
	}
	return nil
}

// SlotOf returns the index of the slot bound to userID, or -1 if the
// identity holds no slot in this round.
func (r *Round) SlotOf(userID string) int {
	if userID == "" {
		return -1
	}
	for i := range r.Slots {
		if r.Slots[i].UserID == userID {
			return i
		}
	}
	return -1
}

// TotalFor sums the recorded strokes for one slot. Unrecorded holes count
// as zero.
func (r *Round) TotalFor(slot int) int {
	if slot < 0 || slot >= len(r.Slots) {
		return 0
	}
	total := 0
	for _, s := range r.Slots[slot].Strokes {
		total += s
	}
	return total
}

// Members returns every identity attached to the round: the owner plus
// each slot occupant. Used by the store to maintain per-user indexes.
func (r *Round) Members() []string {
	seen := map[string]bool{r.OwnerID: true}
	members := []string{r.OwnerID}
	for i := range r.Slots {
		id := r.Slots[i].UserID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	return members
}
