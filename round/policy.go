package round

// The authorization policy is evaluated fresh on every mutation request.
// Slot ownership can change between requests, so nothing here may be
// cached per connection.

// CanEditRound reports whether userID may perform whole-record edits:
// metadata, hole pars, bulk slot replacement, deletion.
func CanEditRound(r *Round, userID string) bool {
	return userID != "" && userID == r.OwnerID
}

// CanEditSlot reports whether userID may edit a single value in the given
// slot. The owner may edit any slot; everyone else only the slot currently
// bound to them. An unclaimed slot is editable only by the owner.
func CanEditSlot(r *Round, slot int, userID string) bool {
	if CanEditRound(r, userID) {
		return true
	}
	if slot < 0 || slot >= len(r.Slots) {
		return false
	}
	return r.Slots[slot].UserID != "" && r.Slots[slot].UserID == userID
}
