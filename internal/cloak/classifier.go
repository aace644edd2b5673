// Package cloak classifies incoming requests as genuine visitors or
// automated reviewers, and decides whether to serve decoy content.
package cloak

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/landerd/landerd/internal/geo"
)

// Signals are the request-derived inputs to classification. They are
// assembled by the HTTP layer; the classifier itself performs no I/O.
type Signals struct {
	IP        string
	UserAgent string
	Headers   http.Header
}

// Verdict is the per-request access classification. It is ephemeral and
// never persisted.
type Verdict struct {
	CrawlerUA         bool     `json:"isKnownCrawlerUA"`
	CrawlerIP         bool     `json:"isKnownCrawlerIP"`
	ProxyIP           bool     `json:"isProxyOrHostingIP"`
	SuspiciousHeaders bool     `json:"hasSuspiciousHeaderProfile"`
	GeoEscalated      bool     `json:"geoEscalated"`
	Country           string   `json:"geoCountry,omitempty"`
	ShouldCloak       bool     `json:"shouldCloak"`
	Reasons           []string `json:"reasons,omitempty"`
}

// Lists are the signal tables the classifier matches against.
type Lists struct {
	CrawlerTokens       []string
	CrawlerRanges       []string
	ProxyRanges         []string
	SuspiciousCountries []string
	BrowserHeaders      []string
}

// DefaultLists returns the built-in signal tables.
func DefaultLists() Lists {
	return Lists{
		CrawlerTokens: []string{
			"facebookexternalhit",
			"facebookcatalog",
			"facebookplatform",
			"facebookbot",
			"facebook",
			"facebookcrawler",
			"facebook-ads-inspector",
			"facebook-ad-inspector",
		},
		CrawlerRanges: []string{
			"31.13.24.0/21",
			"31.13.64.0/18",
			"31.13.66.0/23",
			"31.13.68.0/22",
			"31.13.72.0/21",
			"31.13.80.0/20",
			"31.13.96.0/19",
			"66.220.144.0/20",
			"66.220.160.0/19",
			"69.63.176.0/20",
			"69.171.224.0/19",
			"74.119.76.0/22",
			"173.252.64.0/18",
			"199.201.64.0/22",
			"204.15.20.0/22",
		},
		ProxyRanges: []string{
			"185.220.100.0/22",
			"185.220.101.0/24",
			"199.87.154.0/24",
			"192.42.116.0/22",
		},
		SuspiciousCountries: []string{"US", "GB", "CA", "AU", "IE", "NZ"},
		BrowserHeaders: []string{
			"accept-language",
			"accept-encoding",
			"cache-control",
			"sec-fetch-dest",
			"sec-fetch-mode",
			"sec-fetch-site",
		},
	}
}

// Classifier evaluates request signals against its lists and the local
// geo dataset. It is pure and safe for concurrent use.
type Classifier struct {
	lists  Lists
	geo    *geo.DB
	logger *slog.Logger

	crawlerRanges []cidr
	proxyRanges   []cidr
	suspicious    map[string]bool
}

type cidr struct {
	network uint32
	mask    uint32
}

// NewClassifier builds a Classifier. Malformed CIDR entries are dropped
// with a log line rather than failing construction; the classifier must
// never block serving.
func NewClassifier(lists Lists, geoDB *geo.DB, logger *slog.Logger) *Classifier {
	c := &Classifier{
		lists:      lists,
		geo:        geoDB,
		logger:     logger,
		suspicious: make(map[string]bool, len(lists.SuspiciousCountries)),
	}
	c.crawlerRanges = compileRanges(lists.CrawlerRanges, logger)
	c.proxyRanges = compileRanges(lists.ProxyRanges, logger)
	for _, country := range lists.SuspiciousCountries {
		c.suspicious[strings.ToUpper(country)] = true
	}
	return c
}

func compileRanges(ranges []string, logger *slog.Logger) []cidr {
	compiled := make([]cidr, 0, len(ranges))
	for _, r := range ranges {
		network, mask, err := geo.ParseCIDR(r)
		if err != nil {
			logger.Warn("skipping malformed cidr range", "range", r, "error", err)
			continue
		}
		compiled = append(compiled, cidr{network: network, mask: mask})
	}
	return compiled
}

// Lists returns the signal tables the classifier was built with.
func (c *Classifier) Lists() Lists {
	return c.lists
}

// Classify maps request signals to an access verdict. Every parse failure
// fails open: a malformed IP or absent header set resolves to "not
// suspicious" for that signal, logged at debug, and classification
// continues with the remaining signals.
func (c *Classifier) Classify(sig Signals) Verdict {
	var v Verdict

	ua := strings.ToLower(sig.UserAgent)
	for _, token := range c.lists.CrawlerTokens {
		if strings.Contains(ua, token) {
			v.CrawlerUA = true
			v.Reasons = append(v.Reasons, fmt.Sprintf("crawler user-agent token %q", token))
			break
		}
	}

	addr, err := geo.ParseIPv4(sig.IP)
	if err != nil {
		c.logger.Debug("ip parse failed, skipping ip checks", "ip", sig.IP)
	} else {
		if containedIn(addr, c.crawlerRanges) {
			v.CrawlerIP = true
			v.Reasons = append(v.Reasons, "ip inside known crawler range")
		}
		if containedIn(addr, c.proxyRanges) {
			v.ProxyIP = true
			v.Reasons = append(v.Reasons, "ip inside known proxy range")
		}
	}

	if rec, ok := c.geo.Lookup(sig.IP); ok {
		v.Country = rec.Country
		if isHostingOrg(rec.Org) {
			v.ProxyIP = true
			v.Reasons = append(v.Reasons, fmt.Sprintf("datacenter/hosting org %q", rec.Org))
		}
	}

	if sig.Headers != nil {
		missing := 0
		for _, name := range c.lists.BrowserHeaders {
			if sig.Headers.Get(name) == "" {
				missing++
			}
		}
		if missing > 3 {
			v.SuspiciousHeaders = true
			v.Reasons = append(v.Reasons, fmt.Sprintf("%d browser headers missing", missing))
		}
	} else {
		c.logger.Debug("no headers present, skipping header profile check")
	}

	if v.Country != "" && c.suspicious[v.Country] && (v.CrawlerUA || v.CrawlerIP || v.ProxyIP) {
		v.GeoEscalated = true
		v.Reasons = append(v.Reasons, fmt.Sprintf("suspicious country %s with crawler/proxy signal", v.Country))
	}

	v.ShouldCloak = v.CrawlerUA || v.CrawlerIP || v.ProxyIP || v.SuspiciousHeaders || v.GeoEscalated
	return v
}

func containedIn(addr uint32, ranges []cidr) bool {
	for _, r := range ranges {
		if addr&r.mask == r.network&r.mask {
			return true
		}
	}
	return false
}

func isHostingOrg(org string) bool {
	if org == "" {
		return false
	}
	lower := strings.ToLower(org)
	for _, marker := range []string{"hosting", "datacenter", "server", "cloud"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
