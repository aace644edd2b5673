package cloak

import "github.com/landerd/landerd/internal/store"

// Decision is the cloak router's outcome for a request.
type Decision struct {
	// Cloak is true when the request must be short-circuited with decoy
	// content instead of continuing to variant assignment.
	Cloak bool
	// PageID is the configured cloak landing page, empty when the generic
	// decoy document should be served instead.
	PageID string
}

// Decide combines a verdict with the resolved domain configuration.
// Cloaking happens only when the domain opted in and the verdict calls
// for it; which content is served depends on whether a cloak page is
// configured.
func Decide(domain *store.Domain, verdict Verdict) Decision {
	if domain == nil || !domain.CloakEnabled || !verdict.ShouldCloak {
		return Decision{}
	}
	return Decision{Cloak: true, PageID: domain.CloakPageID}
}
