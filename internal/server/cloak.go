package server

import (
	"encoding/json"
	"net/http"

	"github.com/landerd/landerd/internal/cloak"
)

type testIPRequest struct {
	IP        string            `json:"ip"`
	UserAgent string            `json:"userAgent"`
	Headers   map[string]string `json:"headers"`
}

// handleTestIP classifies an arbitrary IP/UA pair without serving
// anything, so an operator can check what a given visitor would see.
func (s *Server) handleTestIP(w http.ResponseWriter, r *http.Request) {
	var req testIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.IP == "" {
		respondError(w, http.StatusBadRequest, "ip is required")
		return
	}

	headers := make(http.Header, len(req.Headers))
	for name, value := range req.Headers {
		headers.Set(name, value)
	}

	verdict := s.classifier.Classify(cloak.Signals{
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Headers:   headers,
	})
	respondJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleCloakSettings(w http.ResponseWriter, r *http.Request) {
	lists := s.classifier.Lists()
	respondJSON(w, http.StatusOK, map[string]any{
		"crawlerTokens":       lists.CrawlerTokens,
		"crawlerRanges":       lists.CrawlerRanges,
		"proxyRanges":         lists.ProxyRanges,
		"suspiciousCountries": lists.SuspiciousCountries,
		"browserHeaders":      lists.BrowserHeaders,
	})
}
