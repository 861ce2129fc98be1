package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/openround/auth"
	"github.com/Seednode/openround/rooms"
	"github.com/Seednode/openround/round"
)

type testServer struct {
	ts       *httptest.Server
	svc      *round.Service
	hub      *rooms.Hub
	verifier *auth.Verifier
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &Config{tokenSecret: "test-secret"}
	store := round.NewRedisStore(rdb)
	hub := rooms.NewHub()
	svc := round.NewService(store, hub)
	verifier := auth.NewVerifier(cfg.tokenSecret)

	mux, _ := newMux(cfg, svc, hub, verifier, store)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return &testServer{
		ts:       ts,
		svc:      svc,
		hub:      hub,
		verifier: verifier,
	}
}

func (s *testServer) tokenFor(t *testing.T, userID string) string {
	t.Helper()

	token, err := s.verifier.Issue(auth.Identity{UserID: userID, Name: userID}, time.Hour)
	require.NoError(t, err)
	return token
}

// do issues a JSON request and decodes the response body into out (when
// out is non-nil), returning the status code.
func (s *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, s.ts.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) createRound(t *testing.T, owner string) *round.Round {
	t.Helper()

	var created round.Round
	status := s.do(t, http.MethodPost, "/api/rounds", s.tokenFor(t, owner), createRoundRequest{
		Name:      "saturday fourball",
		Holes:     18,
		SlotNames: []string{"Alice", "Bob"},
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	return &created
}

func TestCreateAndResolve(t *testing.T) {
	s := setupServer(t)

	created := s.createRound(t, "owner")
	assert.Len(t, created.Code, round.CodeLength)
	assert.Equal(t, "owner", created.OwnerID)

	var resolved round.Round
	status := s.do(t, http.MethodGet, "/api/join/"+created.Code, s.tokenFor(t, "u1"), nil, &resolved)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.ID, resolved.ID)

	t.Run("unknown code is not found", func(t *testing.T) {
		var errResp errorResponse
		status := s.do(t, http.MethodGet, "/api/join/ZZZZZZ", s.tokenFor(t, "u1"), nil, &errResp)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "not_found", errResp.Error)
	})
}

func TestAuthenticationGate(t *testing.T) {
	s := setupServer(t)

	t.Run("missing token", func(t *testing.T) {
		var errResp errorResponse
		status := s.do(t, http.MethodGet, "/api/rounds", "", nil, &errResp)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "authentication_required", errResp.Error)
	})

	t.Run("bogus token", func(t *testing.T) {
		var errResp errorResponse
		status := s.do(t, http.MethodGet, "/api/rounds", "bogus", nil, &errResp)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "invalid_token", errResp.Error)
	})
}

func TestClaimFlow(t *testing.T) {
	s := setupServer(t)
	created := s.createRound(t, "owner")

	u1 := s.tokenFor(t, "u1")
	u2 := s.tokenFor(t, "u2")

	var claimed round.Round
	status := s.do(t, http.MethodPost, "/api/join/"+created.Code+"/claim", u1, claimSlotRequest{Slot: 0}, &claimed)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "u1", claimed.Slots[0].UserID)

	t.Run("second identity on the same slot conflicts", func(t *testing.T) {
		var errResp errorResponse
		status := s.do(t, http.MethodPost, "/api/join/"+created.Code+"/claim", u2, claimSlotRequest{Slot: 0}, &errResp)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "slot_taken", errResp.Error)
	})

	t.Run("second identity takes the other slot", func(t *testing.T) {
		var claimed round.Round
		status := s.do(t, http.MethodPost, "/api/join/"+created.Code+"/claim", u2, claimSlotRequest{Slot: 1}, &claimed)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "u2", claimed.Slots[1].UserID)
	})

	t.Run("holding a slot blocks a second claim", func(t *testing.T) {
		var errResp errorResponse
		status := s.do(t, http.MethodPost, "/api/join/"+created.Code+"/claim", u1, claimSlotRequest{Slot: 1}, &errResp)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "duplicate_claim", errResp.Error)
	})

	t.Run("out of bounds slot", func(t *testing.T) {
		var errResp errorResponse
		status := s.do(t, http.MethodPost, "/api/join/"+created.Code+"/claim", u2, claimSlotRequest{Slot: 7}, &errResp)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_slot", errResp.Error)
	})
}

func TestStrokesFlow(t *testing.T) {
	s := setupServer(t)
	created := s.createRound(t, "owner")

	owner := s.tokenFor(t, "owner")
	u1 := s.tokenFor(t, "u1")

	status := s.do(t, http.MethodPost, "/api/join/"+created.Code+"/claim", u1, claimSlotRequest{Slot: 0}, nil)
	require.Equal(t, http.StatusOK, status)

	holePath := func(slot, hole int) string {
		return fmt.Sprintf("/api/rounds/%s/slots/%d/holes/%d", created.ID, slot, hole)
	}

	t.Run("occupant cannot edit another slot", func(t *testing.T) {
		var errResp errorResponse
		status := s.do(t, http.MethodPut, holePath(1, 0), u1, updateStrokesRequest{Strokes: 4}, &errResp)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "unauthorized", errResp.Error)
	})

	t.Run("owner edits any slot", func(t *testing.T) {
		var confirmed strokesResponse
		status := s.do(t, http.MethodPut, holePath(1, 2), owner, updateStrokesRequest{Strokes: 5}, &confirmed)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, 5, confirmed.Strokes)
	})

	t.Run("non-numeric input coerces to zero", func(t *testing.T) {
		var confirmed strokesResponse
		status := s.do(t, http.MethodPut, holePath(0, 0), u1, updateStrokesRequest{Strokes: "abc"}, &confirmed)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, 0, confirmed.Strokes)
	})

	t.Run("out of range hole", func(t *testing.T) {
		var errResp errorResponse
		status := s.do(t, http.MethodPut, holePath(0, 18), u1, updateStrokesRequest{Strokes: 4}, &errResp)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "out_of_range", errResp.Error)
	})
}

func TestVacateFlow(t *testing.T) {
	s := setupServer(t)
	created := s.createRound(t, "owner")

	owner := s.tokenFor(t, "owner")
	u1 := s.tokenFor(t, "u1")
	u3 := s.tokenFor(t, "u3")

	status := s.do(t, http.MethodPost, "/api/join/"+created.Code+"/claim", u1, claimSlotRequest{Slot: 0}, nil)
	require.Equal(t, http.StatusOK, status)

	vacatePath := fmt.Sprintf("/api/rounds/%s/slots/0/vacate", created.ID)

	t.Run("non-owner cannot vacate", func(t *testing.T) {
		var errResp errorResponse
		status := s.do(t, http.MethodPost, vacatePath, u1, nil, &errResp)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "unauthorized", errResp.Error)
	})

	t.Run("owner vacates, binding is gone", func(t *testing.T) {
		var vacated round.Round
		status := s.do(t, http.MethodPost, vacatePath, owner, nil, &vacated)
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, vacated.Slots[0].UserID)

		var errResp errorResponse
		holePath := fmt.Sprintf("/api/rounds/%s/slots/0/holes/0", created.ID)
		status = s.do(t, http.MethodPut, holePath, u1, updateStrokesRequest{Strokes: 4}, &errResp)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "unauthorized", errResp.Error)
	})

	t.Run("a new identity claims the vacated slot", func(t *testing.T) {
		var claimed round.Round
		status := s.do(t, http.MethodPost, "/api/join/"+created.Code+"/claim", u3, claimSlotRequest{Slot: 0}, &claimed)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "u3", claimed.Slots[0].UserID)
	})
}

func TestListAndUpdateAndDelete(t *testing.T) {
	s := setupServer(t)
	created := s.createRound(t, "owner")

	owner := s.tokenFor(t, "owner")
	u1 := s.tokenFor(t, "u1")

	status := s.do(t, http.MethodPost, "/api/join/"+created.Code+"/claim", u1, claimSlotRequest{Slot: 0}, nil)
	require.Equal(t, http.StatusOK, status)

	t.Run("both owner and occupant list the round", func(t *testing.T) {
		for _, token := range []string{owner, u1} {
			var list roundListResponse
			status := s.do(t, http.MethodGet, "/api/rounds", token, nil, &list)
			require.Equal(t, http.StatusOK, status)
			require.Len(t, list.Rounds, 1)
			assert.Equal(t, created.ID, list.Rounds[0].ID)
		}
	})

	t.Run("whole-record update is owner only", func(t *testing.T) {
		name := "renamed"

		var errResp errorResponse
		status := s.do(t, http.MethodPut, "/api/rounds/"+created.ID, u1, updateRoundRequest{Name: &name}, &errResp)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "unauthorized", errResp.Error)

		var updated round.Round
		status = s.do(t, http.MethodPut, "/api/rounds/"+created.ID, owner, updateRoundRequest{Name: &name}, &updated)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "renamed", updated.Name)
	})

	t.Run("delete is owner only and frees the code", func(t *testing.T) {
		var errResp errorResponse
		status := s.do(t, http.MethodDelete, "/api/rounds/"+created.ID, u1, nil, &errResp)
		assert.Equal(t, http.StatusForbidden, status)

		status = s.do(t, http.MethodDelete, "/api/rounds/"+created.ID, owner, nil, nil)
		assert.Equal(t, http.StatusNoContent, status)

		status = s.do(t, http.MethodGet, "/api/join/"+created.Code, owner, nil, &errResp)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestScaffoldingEndpoints(t *testing.T) {
	s := setupServer(t)

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(s.ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("version", func(t *testing.T) {
		resp, err := http.Get(s.ts.URL + "/version")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("qr for a live round", func(t *testing.T) {
		created := s.createRound(t, "owner")

		resp, err := http.Get(s.ts.URL + "/rounds/code/" + created.Code + "/qr")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	})

	t.Run("qr for an unknown code", func(t *testing.T) {
		resp, err := http.Get(s.ts.URL + "/rounds/code/ZZZZZZ/qr")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
