package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/landerd/landerd/internal/store"
)

func (s *Server) handleCreateDomain(w http.ResponseWriter, r *http.Request) {
	var d store.Domain
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if d.Domain == "" {
		respondError(w, http.StatusBadRequest, "domain is required")
		return
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = store.DomainActive
	}

	if err := s.store.CreateDomain(r.Context(), &d); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (s *Server) handleGetDomain(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.GetDomain(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var p store.LandingPage
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if p.Name == "" || p.HTML == "" {
		respondError(w, http.StatusBadRequest, "name and html are required")
		return
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Type == "" {
		p.Type = store.PageMain
	}
	p.IsActive = true

	if err := s.store.CreatePage(r.Context(), &p); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPage(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
