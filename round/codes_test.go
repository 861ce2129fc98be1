package round

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore lets allocator tests script GetByCode responses.
type stubStore struct {
	Store
	getByCode func(code string) (*Round, error)
}

func (s *stubStore) GetByCode(_ context.Context, code string) (*Round, error) {
	return s.getByCode(code)
}

func TestAllocateCode(t *testing.T) {
	ctx := context.Background()

	t.Run("codes use the unambiguous alphabet", func(t *testing.T) {
		store := &stubStore{getByCode: func(string) (*Round, error) { return nil, ErrNotFound }}

		code, err := AllocateCode(ctx, store)
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected character %q in code %q", c, code)
		}
	})

	t.Run("retries past collisions", func(t *testing.T) {
		collisions := 0
		store := &stubStore{getByCode: func(string) (*Round, error) {
			if collisions < 3 {
				collisions++
				return &Round{}, nil
			}
			return nil, ErrNotFound
		}}

		code, err := AllocateCode(ctx, store)
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		assert.Equal(t, 3, collisions)
	})

	t.Run("gives up after bounded retries", func(t *testing.T) {
		lookups := 0
		store := &stubStore{getByCode: func(string) (*Round, error) {
			lookups++
			return &Round{}, nil
		}}

		_, err := AllocateCode(ctx, store)
		assert.ErrorIs(t, err, ErrStorage)
		assert.Equal(t, maxCodeAttempts, lookups)
	})

	t.Run("store failures surface immediately", func(t *testing.T) {
		store := &stubStore{getByCode: func(string) (*Round, error) {
			return nil, storageErr(context.DeadlineExceeded)
		}}

		_, err := AllocateCode(ctx, store)
		assert.ErrorIs(t, err, ErrStorage)
	})
}

func TestAllocateCodePairwiseDistinct(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := AllocateCode(ctx, store)
		require.NoError(t, err)
		assert.False(t, seen[code], "code %q allocated twice", code)
		seen[code] = true

		// Attach the code to a live round so later allocations must avoid it.
		r := testRound(code)
		require.NoError(t, store.Save(ctx, r))

		got, err := store.GetByCode(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, r.ID, got.ID, "code %q resolves to the round it was issued to", code)
	}
}
