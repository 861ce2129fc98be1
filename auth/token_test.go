package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	v := NewVerifier("test-secret")

	t.Run("roundtrip", func(t *testing.T) {
		token, err := v.Issue(Identity{UserID: "user-1", Name: "Alice"}, time.Hour)
		require.NoError(t, err)

		id, err := v.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", id.UserID)
		assert.Equal(t, "Alice", id.Name)
	})

	t.Run("empty token requires authentication", func(t *testing.T) {
		_, err := v.Verify("")
		assert.ErrorIs(t, err, ErrAuthRequired)
	})

	t.Run("garbage is invalid", func(t *testing.T) {
		_, err := v.Verify("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret is invalid", func(t *testing.T) {
		other := NewVerifier("different-secret")
		token, err := other.Issue(Identity{UserID: "user-1"}, time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token is invalid", func(t *testing.T) {
		token, err := v.Issue(Identity{UserID: "user-1"}, -time.Minute)
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing subject is invalid", func(t *testing.T) {
		token, err := v.Issue(Identity{Name: "No Subject"}, time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
