package rooms

// Server-to-room event types. Every event carries a "type" tag so clients
// can dispatch without trial decoding.

// ScoreUpdated announces a confirmed stroke value. The REST response is
// authoritative for the request outcome; this event exists so other
// observers converge, and so the originator can confirm its optimistic
// edit was accepted.
type ScoreUpdated struct {
	Type    string `json:"type"` // "score_updated"
	Slot    int    `json:"slot"`
	Hole    int    `json:"hole"`
	Strokes int    `json:"strokes"`
}

// SlotClaimed announces that an identity has bound itself to a slot.
type SlotClaimed struct {
	Type   string `json:"type"` // "slot_claimed"
	Slot   int    `json:"slot"`
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
}

// SlotVacated announces that the owner has released a slot back to open.
type SlotVacated struct {
	Type string `json:"type"` // "slot_vacated"
	Slot int    `json:"slot"`
}

func NewScoreUpdated(slot, hole, strokes int) ScoreUpdated {
	return ScoreUpdated{Type: "score_updated", Slot: slot, Hole: hole, Strokes: strokes}
}

func NewSlotClaimed(slot int, userID, name string) SlotClaimed {
	return SlotClaimed{Type: "slot_claimed", Slot: slot, UserID: userID, Name: name}
}

func NewSlotVacated(slot int) SlotVacated {
	return SlotVacated{Type: "slot_vacated", Slot: slot}
}
