package round

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
)

// Join codes avoid visually confusable characters (I, L, O, 0, 1) so they
// survive being read aloud or scribbled on a scorecard.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	// CodeLength is the fixed length of every join code.
	CodeLength = 6

	// maxCodeAttempts bounds allocator retries so a pathological collision
	// rate surfaces as an error instead of looping forever.
	maxCodeAttempts = 20
)

// AllocateCode generates a candidate join code and checks the store until
// it finds one with no existing attachment. Allocation reserves nothing;
// the store's save-time uniqueness check is the final arbiter, and a save
// rejected with ErrCodeTaken must re-allocate.
func AllocateCode(ctx context.Context, store Store) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", storageErr(err)
		}

		_, err = store.GetByCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
		// Collision; try again.
	}
	return "", storageErr(fmt.Errorf("no unique join code after %d attempts", maxCodeAttempts))
}

func randomCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("crypto/rand failure: %w", err)
	}

	out := make([]byte, CodeLength)
	for i := range out {
		out[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(out), nil
}
