package round

import (
	"errors"
	"fmt"
)

// The error taxonomy of the mutation surfaces. Each error maps to a
// distinct, stable reason string via Reason; handlers report these
// verbatim and never retry on behalf of the caller.
var (
	ErrNotFound       = errors.New("round not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidSlot    = errors.New("invalid slot")
	ErrSlotTaken      = errors.New("slot already claimed")
	ErrDuplicateClaim = errors.New("identity already holds a slot in this round")
	ErrOutOfRange     = errors.New("index out of range")
	ErrCodeTaken      = errors.New("join code already in use")
	ErrStorage        = errors.New("storage error")
)

// Reason returns the stable wire-level reason string for err, or
// "internal_error" for anything outside the taxonomy.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidSlot):
		return "invalid_slot"
	case errors.Is(err, ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, ErrDuplicateClaim):
		return "duplicate_claim"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrCodeTaken), errors.Is(err, ErrStorage):
		return "storage_error"
	default:
		return "internal_error"
	}
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
