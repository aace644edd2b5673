package cloak_test

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/landerd/landerd/internal/cloak"
	"github.com/landerd/landerd/internal/geo"
	"github.com/landerd/landerd/internal/store"
)

func testClassifier(t *testing.T) *cloak.Classifier {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return cloak.NewClassifier(cloak.DefaultLists(), geo.Default(), logger)
}

// browserHeaders returns the header set a normal browser sends.
func browserHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Cache-Control", "max-age=0")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	return h
}

func TestClassify_CrawlerUserAgent(t *testing.T) {
	c := testClassifier(t)

	v := c.Classify(cloak.Signals{
		IP:        "81.2.69.10",
		UserAgent: "facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)",
		Headers:   browserHeaders(),
	})

	if !v.CrawlerUA {
		t.Error("expected crawler user-agent flag")
	}
	if !v.ShouldCloak {
		t.Error("expected shouldCloak")
	}
}

func TestClassify_CrawlerIP(t *testing.T) {
	c := testClassifier(t)

	v := c.Classify(cloak.Signals{
		IP:        "31.13.24.100",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
		Headers:   browserHeaders(),
	})

	if !v.CrawlerIP {
		t.Error("expected crawler IP flag")
	}
	if !v.ShouldCloak {
		t.Error("expected shouldCloak")
	}
}

func TestClassify_ProxyRange(t *testing.T) {
	c := testClassifier(t)

	v := c.Classify(cloak.Signals{
		IP:        "185.220.100.5",
		UserAgent: "Mozilla/5.0",
		Headers:   browserHeaders(),
	})

	if !v.ProxyIP {
		t.Error("expected proxy IP flag")
	}
	if !v.ShouldCloak {
		t.Error("expected shouldCloak")
	}
}

func TestClassify_HostingOrg(t *testing.T) {
	c := testClassifier(t)

	// 34.64.0.0/10 maps to "Google Cloud Hosting" in the built-in dataset.
	v := c.Classify(cloak.Signals{
		IP:        "34.80.1.1",
		UserAgent: "Mozilla/5.0",
		Headers:   browserHeaders(),
	})

	if !v.ProxyIP {
		t.Error("expected proxy flag for a hosting org")
	}
}

func TestClassify_MissingHeaders(t *testing.T) {
	c := testClassifier(t)

	// Only two of the six browser headers present: four missing, which is
	// over the >3 threshold.
	h := http.Header{}
	h.Set("Accept-Language", "en")
	h.Set("Accept-Encoding", "gzip")

	v := c.Classify(cloak.Signals{IP: "81.2.69.10", UserAgent: "Mozilla/5.0", Headers: h})

	if !v.SuspiciousHeaders {
		t.Error("expected suspicious header flag")
	}
	if !v.ShouldCloak {
		t.Error("expected shouldCloak")
	}
}

func TestClassify_ExactlyThreeMissingIsFine(t *testing.T) {
	c := testClassifier(t)

	h := http.Header{}
	h.Set("Accept-Language", "en")
	h.Set("Accept-Encoding", "gzip")
	h.Set("Cache-Control", "max-age=0")

	v := c.Classify(cloak.Signals{IP: "81.2.69.10", UserAgent: "Mozilla/5.0", Headers: h})

	if v.SuspiciousHeaders {
		t.Error("three missing headers must not trip the profile check")
	}
}

func TestClassify_GeoEscalation(t *testing.T) {
	c := testClassifier(t)

	// GB is a suspicious country, but on its own that is not enough.
	clean := c.Classify(cloak.Signals{
		IP:        "81.2.69.10",
		UserAgent: "Mozilla/5.0",
		Headers:   browserHeaders(),
	})
	if clean.ShouldCloak {
		t.Error("suspicious country alone must not cloak")
	}

	// Combined with a crawler UA the geo signal escalates.
	escalated := c.Classify(cloak.Signals{
		IP:        "81.2.69.10",
		UserAgent: "facebookbot/1.0",
		Headers:   browserHeaders(),
	})
	if !escalated.GeoEscalated {
		t.Error("expected geo escalation for suspicious country plus crawler signal")
	}
}

func TestClassify_FailsOpen(t *testing.T) {
	c := testClassifier(t)

	cases := []cloak.Signals{
		{IP: "not-an-ip", UserAgent: "Mozilla/5.0", Headers: browserHeaders()},
		{IP: "::1", UserAgent: "Mozilla/5.0", Headers: browserHeaders()},
		{IP: "", UserAgent: "Mozilla/5.0", Headers: browserHeaders()},
	}
	for _, sig := range cases {
		v := c.Classify(sig)
		if v.ShouldCloak {
			t.Errorf("malformed ip %q must fail open, got %+v", sig.IP, v)
		}
	}

	// Nil headers skip the profile check rather than flagging.
	v := c.Classify(cloak.Signals{IP: "81.2.69.10", UserAgent: "Mozilla/5.0", Headers: nil})
	if v.SuspiciousHeaders {
		t.Error("nil headers must fail open")
	}
}

func TestClassify_CleanVisitor(t *testing.T) {
	c := testClassifier(t)

	v := c.Classify(cloak.Signals{
		IP:        "100.64.10.20", // not in any dataset range
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15",
		Headers:   browserHeaders(),
	})

	if v.ShouldCloak {
		t.Errorf("clean visitor classified for cloaking: %+v", v)
	}
}

func TestDecide(t *testing.T) {
	cloaking := cloak.Verdict{ShouldCloak: true}
	clean := cloak.Verdict{}

	cases := []struct {
		name    string
		domain  *store.Domain
		verdict cloak.Verdict
		want    cloak.Decision
	}{
		{"enabled with page", &store.Domain{CloakEnabled: true, CloakPageID: "p1"}, cloaking, cloak.Decision{Cloak: true, PageID: "p1"}},
		{"enabled without page", &store.Domain{CloakEnabled: true}, cloaking, cloak.Decision{Cloak: true}},
		{"disabled", &store.Domain{CloakEnabled: false, CloakPageID: "p1"}, cloaking, cloak.Decision{}},
		{"clean verdict", &store.Domain{CloakEnabled: true, CloakPageID: "p1"}, clean, cloak.Decision{}},
		{"no domain", nil, cloaking, cloak.Decision{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cloak.Decide(tc.domain, tc.verdict); got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}
