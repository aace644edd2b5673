package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/landerd/landerd/internal/events"
	"github.com/landerd/landerd/internal/experiment"
	"github.com/landerd/landerd/internal/stats"
	"github.com/landerd/landerd/internal/store"
)

type createExperimentRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Variants    []store.Variant         `json:"variants"`
	Goals       []store.Goal            `json:"goals"`
	Config      *store.ExperimentConfig `json:"config"`
}

func (s *Server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req createExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	e := &store.Experiment{
		Name:        req.Name,
		Description: req.Description,
		Variants:    req.Variants,
		Goals:       req.Goals,
	}
	if req.Config != nil {
		e.Config = *req.Config
	}

	if err := s.registry.Create(r.Context(), e); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	status := store.ExperimentStatus(r.URL.Query().Get("status"))
	list, err := s.registry.List(r.Context(), status)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if list == nil {
		list = []*store.Experiment{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	e, err := s.registry.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

type updateExperimentRequest struct {
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	EndDate     *time.Time              `json:"endDate"`
	Config      *store.ExperimentConfig `json:"config"`
	Variants    []store.Variant         `json:"variants"`
	Goals       []store.Goal            `json:"goals"`
}

func (s *Server) handleUpdateExperiment(w http.ResponseWriter, r *http.Request) {
	var req updateExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	e, err := s.registry.Update(r.Context(), mux.Vars(r)["id"], experiment.UpdatePatch{
		Name:        req.Name,
		Description: req.Description,
		EndDate:     req.EndDate,
		Config:      req.Config,
		Variants:    req.Variants,
		Goals:       req.Goals,
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExperiment(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleStartExperiment(w http.ResponseWriter, r *http.Request) {
	e, err := s.registry.Start(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

func (s *Server) handlePauseExperiment(w http.ResponseWriter, r *http.Request) {
	e, err := s.registry.Pause(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

type stopExperimentResponse struct {
	Experiment *store.Experiment `json:"experiment"`
	Analysis   stats.Analysis    `json:"analysis"`
}

func (s *Server) handleStopExperiment(w http.ResponseWriter, r *http.Request) {
	e, analysis, err := s.registry.Stop(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stopExperimentResponse{Experiment: e, Analysis: analysis})
}

func (s *Server) handleCloneExperiment(w http.ResponseWriter, r *http.Request) {
	clone, err := s.registry.Clone(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, clone)
}

type statisticsResponse struct {
	Experiment *store.Experiment    `json:"experiment"`
	Stats      []store.VariantStats `json:"stats"`
	Analysis   stats.Analysis       `json:"analysis"`
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	e, rows, analysis, err := s.registry.Statistics(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if rows == nil {
		rows = []store.VariantStats{}
	}
	respondJSON(w, http.StatusOK, statisticsResponse{Experiment: e, Stats: rows, Analysis: analysis})
}

type recordEventRequest struct {
	VariantID string  `json:"variantId"`
	EventType string  `json:"eventType"`
	SessionID string  `json:"sessionId"`
	Value     float64 `json:"value"`
}

// handleRecordEvent is the public ingestion endpoint. It validates the
// variant against the experiment before enqueueing so bogus ids are
// rejected synchronously; everything after the 202 is fire-and-forget.
func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	experimentID := mux.Vars(r)["id"]

	var req recordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	switch req.EventType {
	case events.TypeVisit, events.TypePageLoad, events.TypeConversion, events.TypeRevenue:
	default:
		respondError(w, http.StatusBadRequest, "unknown event type")
		return
	}

	e, err := s.registry.Get(r.Context(), experimentID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if e.Variant(req.VariantID) == nil {
		respondError(w, http.StatusBadRequest, "unknown variant")
		return
	}

	s.recorder.Record(events.Event{
		ExperimentID: experimentID,
		VariantID:    req.VariantID,
		Type:         req.EventType,
		SessionID:    req.SessionID,
		Value:        req.Value,
	})
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
