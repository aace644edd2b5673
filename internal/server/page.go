package server

import (
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/landerd/landerd/internal/cloak"
	"github.com/landerd/landerd/internal/events"
	"github.com/landerd/landerd/internal/experiment"
	"github.com/landerd/landerd/internal/store"
)

// handlePage is the visitor-facing pipeline: classify the request, cloak
// it when the domain demands so, otherwise assign an experiment variant
// and serve or redirect.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	pageID := mux.Vars(r)["id"]

	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "page not found")
			return
		}
		s.respondServiceError(w, err)
		return
	}
	if !page.IsActive {
		respondError(w, http.StatusNotFound, "page not found")
		return
	}

	domain := s.resolveDomain(r)

	verdict := s.classifier.Classify(cloak.Signals{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Headers:   r.Header,
	})
	s.metrics.ObserveVerdict(verdict.ShouldCloak)

	if decision := cloak.Decide(domain, verdict); decision.Cloak {
		s.serveCloaked(w, r, domain, decision)
		return
	}

	if domain != nil {
		if err := s.store.IncrementDomainVisits(ctx, domain.ID); err != nil {
			s.logger.Error("failed to count domain visit", "domain_id", domain.ID, "error", err)
		}
	}

	exp, err := s.registry.CandidateForPage(ctx, pageID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if exp == nil {
		s.servePage(w, r, page)
		s.recordPageLoad(start)
		return
	}

	session := s.sessionID(w, r)
	variant := experiment.Assign(exp, session)
	if variant == nil {
		s.servePage(w, r, page)
		s.recordPageLoad(start)
		return
	}
	s.metrics.Assignments.Inc()

	if variant.LandingPageID != pageID {
		// The redirect target serves the variant and records the visit;
		// assignment is deterministic so the session lands on the same
		// variant there.
		s.metrics.Redirects.Inc()
		http.Redirect(w, r, "/page/"+variant.LandingPageID, http.StatusFound)
		return
	}

	s.recorder.Record(events.Event{
		ExperimentID: exp.ID,
		VariantID:    variant.ID,
		Type:         events.TypeVisit,
		SessionID:    session,
	})
	s.servePage(w, r, page)
	s.recordPageLoad(start)
}

// resolveDomain looks up the Host header. Unknown hosts are fine; the
// pipeline then runs without domain-level cloak settings.
func (s *Server) resolveDomain(r *http.Request) *store.Domain {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	domain, err := s.store.GetDomainByName(r.Context(), host)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("domain lookup failed", "host", host, "error", err)
		}
		return nil
	}
	return domain
}

func (s *Server) serveCloaked(w http.ResponseWriter, r *http.Request, domain *store.Domain, decision cloak.Decision) {
	ctx := r.Context()
	s.metrics.CloakedRequests.Inc()

	if err := s.store.IncrementDomainVisits(ctx, domain.ID); err != nil {
		s.logger.Error("failed to count domain visit", "domain_id", domain.ID, "error", err)
	}

	if decision.PageID != "" {
		page, err := s.store.GetPage(ctx, decision.PageID)
		if err == nil {
			s.servePage(w, r, page)
			return
		}
		s.logger.Warn("configured cloak page missing, serving decoy",
			"domain_id", domain.ID, "page_id", decision.PageID, "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, cloak.DecoyDocument)
}

// sessionID reads the affinity cookie or mints a fresh token. Two
// first-contact requests racing on the cookie may be bucketed separately
// once; that is accepted.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(experiment.SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	token := experiment.NewSessionToken()
	http.SetCookie(w, &http.Cookie{
		Name:     experiment.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.production,
		MaxAge:   experiment.SessionTTLSeconds,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

// servePage emits the stored content bundle and counts the view.
func (s *Server) servePage(w http.ResponseWriter, r *http.Request, page *store.LandingPage) {
	if err := s.store.IncrementPageViews(r.Context(), page.ID); err != nil {
		s.logger.Error("failed to count page view", "page_id", page.ID, "error", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, renderPage(page))
}

func (s *Server) recordPageLoad(start time.Time) {
	s.metrics.PageLoadSeconds.Observe(time.Since(start).Seconds())
}

// renderPage assembles the stored bundle into a document. Bundles that
// already carry a full document are emitted verbatim; fragments are
// wrapped with the page's SEO metadata, style and script.
func renderPage(page *store.LandingPage) string {
	if strings.Contains(strings.ToLower(page.HTML), "<html") {
		return page.HTML
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	title := page.SEOTitle
	if title == "" {
		title = page.Name
	}
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	if page.SEODescription != "" {
		fmt.Fprintf(&b, "<meta name=\"description\" content=\"%s\">\n", html.EscapeString(page.SEODescription))
	}
	if page.SEOKeywords != "" {
		fmt.Fprintf(&b, "<meta name=\"keywords\" content=\"%s\">\n", html.EscapeString(page.SEOKeywords))
	}
	if page.CSS != "" {
		fmt.Fprintf(&b, "<style>%s</style>\n", page.CSS)
	}
	b.WriteString("</head>\n<body>\n")
	b.WriteString(page.HTML)
	if page.JS != "" {
		fmt.Fprintf(&b, "\n<script>%s</script>", page.JS)
	}
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}
