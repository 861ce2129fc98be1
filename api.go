package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/openround/auth"
	"github.com/Seednode/openround/round"
)

// Request bodies for the mutation surfaces. Shapes are validated here at
// the boundary; the pipeline below only ever sees typed values.

type createRoundRequest struct {
	Name      string   `json:"name"`
	Holes     int      `json:"holes"`
	Pars      []int    `json:"pars,omitempty"`
	SlotNames []string `json:"slots"`
}

type updateRoundRequest struct {
	Name      *string  `json:"name,omitempty"`
	Pars      []int    `json:"pars,omitempty"`
	SlotNames []string `json:"slots,omitempty"`
}

type claimSlotRequest struct {
	Slot int `json:"slot"`
}

type updateStrokesRequest struct {
	// Strokes is deliberately untyped: invalid or missing input coerces
	// to 0 rather than failing the request.
	Strokes any `json:"strokes"`
}

type strokesResponse struct {
	Slot    int `json:"slot"`
	Hole    int `json:"hole"`
	Strokes int `json:"strokes"`
}

type roundListResponse struct {
	Rounds []*round.Round `json:"rounds"`
}

// bearerToken pulls the identity token from the Authorization header, or
// from the token query parameter for clients that cannot set headers.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return r.URL.Query().Get("token")
}

type identityHandle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id auth.Identity)

// withIdentity verifies the caller before the handler runs. The policy
// itself is evaluated per request inside the service; only token
// verification happens here.
func withIdentity(cfg *Config, verifier *auth.Verifier, next identityHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		securityHeaders(cfg, w)

		id, err := verifier.Verify(bearerToken(r))
		if err != nil {
			writeAuthError(w, err)

			return
		}

		next(w, r, ps, id)
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrAuthRequired) {
		writeReason(w, http.StatusUnauthorized, "authentication_required", "a bearer identity token is required")
		return
	}
	writeReason(w, http.StatusUnauthorized, "invalid_token", "the identity token could not be verified")
}

// writeRoundError maps the domain taxonomy onto status codes. Every error
// keeps its stable reason string; none are retried here.
func writeRoundError(w http.ResponseWriter, err error) {
	reason := round.Reason(err)

	status := http.StatusInternalServerError
	switch reason {
	case "not_found":
		status = http.StatusNotFound
	case "unauthorized":
		status = http.StatusForbidden
	case "invalid_slot", "out_of_range":
		status = http.StatusBadRequest
	case "slot_taken", "duplicate_claim":
		status = http.StatusConflict
	case "storage_error":
		status = http.StatusServiceUnavailable
	}

	writeReason(w, status, reason, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeReason(w, http.StatusBadRequest, "malformed_body", "request body must be valid JSON")
		return false
	}
	return true
}

func createRound(cfg *Config, svc *round.Service) identityHandle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params, id auth.Identity) {
		startTime := time.Now()

		var req createRoundRequest
		if !decodeBody(w, r, &req) {
			return
		}

		created, err := svc.CreateRound(r.Context(), id.UserID, round.NewRoundParams{
			Name:      req.Name,
			Holes:     req.Holes,
			Pars:      req.Pars,
			SlotNames: req.SlotNames,
		})
		if err != nil {
			writeRoundError(w, err)

			return
		}

		writeJSON(w, http.StatusCreated, created)

		logf(cfg, "ROUNDS: %s created round %s (code %s) in %s",
			id.UserID,
			created.ID,
			created.Code,
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func listRounds(cfg *Config, svc *round.Service) identityHandle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params, id auth.Identity) {
		rounds, err := svc.ListRounds(r.Context(), id.UserID)
		if err != nil {
			writeRoundError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, roundListResponse{Rounds: rounds})
	}
}

func resolveCode(cfg *Config, svc *round.Service) identityHandle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id auth.Identity) {
		resolved, err := svc.GetByCode(r.Context(), ps.ByName("code"))
		if err != nil {
			writeRoundError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, resolved)
	}
}

func claimSlot(cfg *Config, svc *round.Service) identityHandle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id auth.Identity) {
		var req claimSlotRequest
		if !decodeBody(w, r, &req) {
			return
		}

		claimed, err := svc.ClaimSlot(r.Context(), ps.ByName("code"), req.Slot, id.UserID)
		if err != nil {
			writeRoundError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, claimed)

		logf(cfg, "ROUNDS: %s claimed slot %d in round %s", id.UserID, req.Slot, claimed.ID)
	}
}

func updateRound(cfg *Config, svc *round.Service) identityHandle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id auth.Identity) {
		var req updateRoundRequest
		if !decodeBody(w, r, &req) {
			return
		}

		updated, err := svc.UpdateRound(r.Context(), ps.ByName("id"), id.UserID, round.UpdateRoundParams{
			Name:      req.Name,
			Pars:      req.Pars,
			SlotNames: req.SlotNames,
		})
		if err != nil {
			writeRoundError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteRound(cfg *Config, svc *round.Service) identityHandle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id auth.Identity) {
		if err := svc.DeleteRound(r.Context(), ps.ByName("id"), id.UserID); err != nil {
			writeRoundError(w, err)

			return
		}

		w.WriteHeader(http.StatusNoContent)

		logf(cfg, "ROUNDS: %s deleted round %s", id.UserID, ps.ByName("id"))
	}
}

func vacateSlot(cfg *Config, svc *round.Service) identityHandle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id auth.Identity) {
		slot, err := strconv.Atoi(ps.ByName("slot"))
		if err != nil {
			writeRoundError(w, round.ErrInvalidSlot)

			return
		}

		vacated, err := svc.VacateSlot(r.Context(), ps.ByName("id"), slot, id.UserID)
		if err != nil {
			writeRoundError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, vacated)
	}
}

func updateStrokes(cfg *Config, svc *round.Service) identityHandle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id auth.Identity) {
		slot, err := strconv.Atoi(ps.ByName("slot"))
		if err != nil {
			writeRoundError(w, round.ErrOutOfRange)

			return
		}
		hole, err := strconv.Atoi(ps.ByName("hole"))
		if err != nil {
			writeRoundError(w, round.ErrOutOfRange)

			return
		}

		var req updateStrokesRequest
		if !decodeBody(w, r, &req) {
			return
		}

		confirmed, err := svc.ApplyStrokes(r.Context(), ps.ByName("id"), slot, hole, req.Strokes, id.UserID)
		if err != nil {
			writeRoundError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, strokesResponse{
			Slot:    slot,
			Hole:    hole,
			Strokes: confirmed,
		})

		logf(cfg, "ROUNDS: %s set slot %d hole %d to %d in round %s", id.UserID, slot, hole, confirmed, ps.ByName("id"))
	}
}

// registerRoundAPI sets up the authenticated REST mutation surface:
//   - POST   /api/rounds                              → create (code allocated eagerly)
//   - GET    /api/rounds                              → rounds the caller owns or occupies
//   - GET    /api/join/:code                          → resolve a join code (pure read)
//   - POST   /api/join/:code/claim                    → claim a slot
//   - PUT    /api/rounds/:id                          → whole-record edit (owner)
//   - DELETE /api/rounds/:id                          → delete (owner)
//   - POST   /api/rounds/:id/slots/:slot/vacate       → vacate a slot (owner)
//   - PUT    /api/rounds/:id/slots/:slot/holes/:hole  → single-value edit
func registerRoundAPI(cfg *Config, mux *httprouter.Router, svc *round.Service, verifier *auth.Verifier) {
	mux.POST(cfg.prefix+"/api/rounds", withIdentity(cfg, verifier, createRound(cfg, svc)))
	mux.GET(cfg.prefix+"/api/rounds", withIdentity(cfg, verifier, listRounds(cfg, svc)))
	mux.GET(cfg.prefix+"/api/join/:code", withIdentity(cfg, verifier, resolveCode(cfg, svc)))
	mux.POST(cfg.prefix+"/api/join/:code/claim", withIdentity(cfg, verifier, claimSlot(cfg, svc)))
	mux.PUT(cfg.prefix+"/api/rounds/:id", withIdentity(cfg, verifier, updateRound(cfg, svc)))
	mux.DELETE(cfg.prefix+"/api/rounds/:id", withIdentity(cfg, verifier, deleteRound(cfg, svc)))
	mux.POST(cfg.prefix+"/api/rounds/:id/slots/:slot/vacate", withIdentity(cfg, verifier, vacateSlot(cfg, svc)))
	mux.PUT(cfg.prefix+"/api/rounds/:id/slots/:slot/holes/:hole", withIdentity(cfg, verifier, updateStrokes(cfg, svc)))
}
