package handlers

import (
	"net/http"
	"time"

	"github.com/statelink/statelink/internal/httpserver/deps"
)

type readyResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

// Ready is the readiness probe; it answers as soon as the process serves
// traffic.
func Ready(d deps.Deps) http.HandlerFunc {
	start := d.StartTime
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, readyResponse{
			Status:        "OK",
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
			UptimeSeconds: time.Since(start).Seconds(),
		})
	}
}

type healthzResponse struct {
	Status string `json:"status"`
	Cause  string `json:"cause,omitempty"`
}

// Healthz is the liveness probe. It is the only path that surfaces raw
// store error detail; every other operation degrades to an empty response
// instead.
func Healthz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		if err := d.Store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusInternalServerError, healthzResponse{
				Status: "FAIL",
				Cause:  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, healthzResponse{Status: "OK"})
	}
}
