/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/openround/round"
)

// qrHandler renders a PNG QR code for a round's join URL, so a code can be
// shared by pointing a phone at the owner's screen.
func qrHandler(cfg *Config, svc *round.Service) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("code")
		if code == "" {
			http.Error(w, "missing join code", http.StatusBadRequest)
			return
		}

		if _, err := svc.GetByCode(r.Context(), code); err != nil {
			if errors.Is(err, round.ErrNotFound) {
				http.Error(w, "unknown join code", http.StatusNotFound)
				return
			}
			http.Error(w, "round lookup failed", http.StatusInternalServerError)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at /rounds/code/:code/qr; strip trailing "/qr" to get the
		// share URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}
