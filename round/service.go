package round

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Seednode/openround/rooms"
)

// Publisher fans confirmed mutations out to a round's room. The broadcast
// path is independent of persistence; a publish happens only after a
// successful save.
type Publisher interface {
	Publish(roundID string, event any)
}

// Service is the mutation pipeline: it gates requests through the
// authorization policy, validates indices, persists through the store, and
// publishes confirmed events. It performs no implicit retries; retry
// policy belongs to the caller.
type Service struct {
	store Store
	pub   Publisher

	// locks serialize the save→publish pair per round, so broadcast
	// delivery order matches persistence order for a round's room.
	// Striped by round ID; requests for different rounds stay concurrent.
	locks [64]sync.Mutex
}

func NewService(store Store, pub Publisher) *Service {
	return &Service{
		store: store,
		pub:   pub,
	}
}

// lockRound acquires the stripe covering roundID and returns its unlock.
func (s *Service) lockRound(roundID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(roundID))
	mu := &s.locks[h.Sum32()%uint32(len(s.locks))]
	mu.Lock()
	return mu.Unlock
}

// NewRoundParams describes a round to create. Pars is optional; holes
// default to par 4 when it is nil.
type NewRoundParams struct {
	Name      string
	Holes     int
	Pars      []int
	SlotNames []string
}

// maxCreateAttempts bounds how many times a save rejected for a duplicate
// join code triggers re-allocation.
const maxCreateAttempts = 5

// CreateRound builds a round owned by ownerID, allocates a join code, and
// persists it. Allocation does not reserve the code, so a concurrent
// creator can race; the store's save-time uniqueness check settles it and
// a rejected save re-allocates.
func (s *Service) CreateRound(ctx context.Context, ownerID string, params NewRoundParams) (*Round, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}

	// Bounds come straight from the request body; check them before they
	// size any allocation.
	if params.Holes != 9 && params.Holes != 18 {
		return nil, errors.Join(ErrOutOfRange, fmt.Errorf("round must have 9 or 18 holes, got %d", params.Holes))
	}
	if len(params.SlotNames) < MinSlots || len(params.SlotNames) > MaxSlots {
		return nil, errors.Join(ErrOutOfRange, fmt.Errorf("round must have between %d and %d slots, got %d", MinSlots, MaxSlots, len(params.SlotNames)))
	}

	holes := make([]Hole, params.Holes)
	for i := range holes {
		par := 4
		if i < len(params.Pars) {
			par = params.Pars[i]
		}
		holes[i] = Hole{Number: i + 1, Par: par}
	}

	slots := make([]Slot, len(params.SlotNames))
	for i, name := range params.SlotNames {
		slots[i] = Slot{Name: name, Strokes: []int{}}
	}

	r := &Round{
		ID:        uuid.New().String(),
		Name:      params.Name,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
		Holes:     holes,
		Slots:     slots,
	}
	if err := r.Validate(); err != nil {
		return nil, errors.Join(ErrOutOfRange, err)
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		code, err := AllocateCode(ctx, s.store)
		if err != nil {
			return nil, err
		}
		r.Code = code

		err = s.store.Save(ctx, r)
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, storageErr(errors.New("could not persist round with a unique join code"))
}

// Get returns a round by ID.
func (s *Service) Get(ctx context.Context, id string) (*Round, error) {
	return s.store.Get(ctx, id)
}

// GetByCode resolves a join code to its round. This is a pure read; it
// never mutates claim state. Claiming always requires an explicit
// follow-up call naming the chosen slot.
func (s *Service) GetByCode(ctx context.Context, code string) (*Round, error) {
	return s.store.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

// ListRounds returns every round the caller owns or occupies a slot in.
func (s *Service) ListRounds(ctx context.Context, userID string) ([]*Round, error) {
	return s.store.ListForUser(ctx, userID)
}

// ClaimSlot binds userID to the slot at slotIndex in the round behind
// code. Re-claiming a slot the identity already holds is idempotent. The
// claim invariants are re-checked against a fresh read immediately before
// the save that commits the claim, narrowing the window between two
// identities racing for the same slot.
func (s *Service) ClaimSlot(ctx context.Context, code string, slotIndex int, userID string) (*Round, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	r, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := checkClaim(r, slotIndex, userID); err != nil {
		return nil, err
	}
	if r.Slots[slotIndex].UserID == userID {
		return r, nil
	}

	unlock := s.lockRound(r.ID)
	defer unlock()

	// Re-read and re-check before the committing save.
	r, err = s.store.Get(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if err := checkClaim(r, slotIndex, userID); err != nil {
		return nil, err
	}
	if r.Slots[slotIndex].UserID == userID {
		// Our claim already committed between the two reads; re-saving
		// would publish a duplicate slot_claimed.
		return r, nil
	}

	r.Slots[slotIndex].UserID = userID
	if err := s.store.Save(ctx, r); err != nil {
		return nil, err
	}

	s.pub.Publish(r.ID, rooms.NewSlotClaimed(slotIndex, userID, r.Slots[slotIndex].Name))
	return r, nil
}

func checkClaim(r *Round, slotIndex int, userID string) error {
	if slotIndex < 0 || slotIndex >= len(r.Slots) {
		return ErrInvalidSlot
	}
	if held := r.Slots[slotIndex].UserID; held != "" && held != userID {
		return ErrSlotTaken
	}
	if other := r.SlotOf(userID); other >= 0 && other != slotIndex {
		return ErrDuplicateClaim
	}
	return nil
}

// VacateSlot releases a claimed slot back to open, keeping its display
// name and strokes. Only the round owner may vacate.
func (s *Service) VacateSlot(ctx context.Context, roundID string, slotIndex int, callerID string) (*Round, error) {
	unlock := s.lockRound(roundID)
	defer unlock()

	r, err := s.store.Get(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if !CanEditRound(r, callerID) {
		return nil, ErrUnauthorized
	}
	if slotIndex < 0 || slotIndex >= len(r.Slots) {
		return nil, ErrInvalidSlot
	}
	if r.Slots[slotIndex].UserID == "" {
		// Already open; nothing to save and no event to publish.
		return r, nil
	}

	r.Slots[slotIndex].UserID = ""
	if err := s.store.Save(ctx, r); err != nil {
		return nil, err
	}

	s.pub.Publish(r.ID, rooms.NewSlotVacated(slotIndex))
	return r, nil
}

// ApplyStrokes validates, coerces, and applies one stroke value, persists
// the round, and publishes the confirmed value to the round's room. The
// returned value is the coerced integer that was actually stored.
func (s *Service) ApplyStrokes(ctx context.Context, roundID string, slotIndex, holeIndex int, raw any, callerID string) (int, error) {
	unlock := s.lockRound(roundID)
	defer unlock()

	r, err := s.store.Get(ctx, roundID)
	if err != nil {
		return 0, err
	}
	if slotIndex < 0 || slotIndex >= len(r.Slots) {
		return 0, ErrOutOfRange
	}
	if holeIndex < 0 || holeIndex >= len(r.Holes) {
		return 0, ErrOutOfRange
	}
	if !CanEditSlot(r, slotIndex, callerID) {
		return 0, ErrUnauthorized
	}

	strokes := CoerceStrokes(raw)

	// Strokes are sparse by default, dense on demand.
	slot := &r.Slots[slotIndex]
	for len(slot.Strokes) < holeIndex+1 {
		slot.Strokes = append(slot.Strokes, 0)
	}
	slot.Strokes[holeIndex] = strokes

	if err := s.store.Save(ctx, r); err != nil {
		return 0, err
	}

	s.pub.Publish(r.ID, rooms.NewScoreUpdated(slotIndex, holeIndex, strokes))
	return strokes, nil
}

// CoerceStrokes normalizes user input to a non-negative integer. Invalid,
// missing, or negative input becomes 0, never an error; partial scorecard
// input is forgiven rather than rejected.
func CoerceStrokes(raw any) int {
	switch v := raw.(type) {
	case nil:
		return 0
	case int:
		return max(v, 0)
	case int64:
		return max(int(v), 0)
	case float64:
		if v < 0 {
			return 0
		}
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return 0
		}
		return n
	default:
		return 0
	}
}

// UpdateRoundParams carries a whole-record edit. Nil fields are left
// unchanged; SlotNames replaces the slot list by name while preserving
// existing claims and strokes at matching indices.
type UpdateRoundParams struct {
	Name      *string
	Pars      []int
	SlotNames []string
}

// UpdateRound applies a whole-record edit. Owner only.
func (s *Service) UpdateRound(ctx context.Context, roundID string, callerID string, params UpdateRoundParams) (*Round, error) {
	r, err := s.store.Get(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if !CanEditRound(r, callerID) {
		return nil, ErrUnauthorized
	}

	if params.Name != nil {
		r.Name = *params.Name
	}
	if params.Pars != nil {
		if len(params.Pars) != len(r.Holes) {
			return nil, ErrOutOfRange
		}
		for i, par := range params.Pars {
			r.Holes[i].Par = par
		}
	}
	if params.SlotNames != nil {
		slots := make([]Slot, len(params.SlotNames))
		for i, name := range params.SlotNames {
			slots[i] = Slot{Name: name, Strokes: []int{}}
			if i < len(r.Slots) {
				slots[i].UserID = r.Slots[i].UserID
				slots[i].Strokes = r.Slots[i].Strokes
			}
		}
		r.Slots = slots
	}

	if err := r.Validate(); err != nil {
		return nil, errors.Join(ErrOutOfRange, err)
	}
	if err := s.store.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteRound removes a round and frees its join code. Owner only.
func (s *Service) DeleteRound(ctx context.Context, roundID string, callerID string) error {
	r, err := s.store.Get(ctx, roundID)
	if err != nil {
		return err
	}
	if !CanEditRound(r, callerID) {
		return ErrUnauthorized
	}
	return s.store.Delete(ctx, r.ID)
}
