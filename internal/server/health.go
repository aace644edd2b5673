package server

import (
	"net/http"
	"time"

	"github.com/landerd/landerd/internal/store"
)

type healthResponse struct {
	Status           string `json:"status"`
	ExperimentsTotal int    `json:"experiments_total"`
	RunningTotal     int    `json:"running_total"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	all, err := s.store.ListExperiments(ctx, "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	running := 0
	for _, e := range all {
		if e.Status == store.StatusRunning {
			running++
		}
	}

	respondJSON(w, http.StatusOK, healthResponse{
		Status:           "ok",
		ExperimentsTotal: len(all),
		RunningTotal:     running,
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
	})
}
