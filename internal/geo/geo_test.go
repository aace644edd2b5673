package geo_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/landerd/landerd/internal/geo"
)

func TestParseIPv4(t *testing.T) {
	addr, err := geo.ParseIPv4("31.13.24.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := uint32(31)<<24 | uint32(13)<<16 | uint32(24)<<8 | 1
	if addr != want {
		t.Errorf("expected %d, got %d", want, addr)
	}
}

func TestParseIPv4_Malformed(t *testing.T) {
	for _, ip := range []string{"", "1.2.3", "1.2.3.4.5", "256.1.1.1", "a.b.c.d", "::1"} {
		if _, err := geo.ParseIPv4(ip); err == nil {
			t.Errorf("expected error for %q", ip)
		}
	}
}

func TestParseCIDR_Boundaries(t *testing.T) {
	// First and last address of the range match; the address just outside
	// does not.
	network, mask, err := geo.ParseCIDR("31.13.24.0/21")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		ip   string
		want bool
	}{
		{"31.13.24.0", true},   // first
		{"31.13.31.255", true}, // last
		{"31.13.32.0", false},  // one past the end
		{"31.13.23.255", false},
	}
	for _, c := range cases {
		addr, err := geo.ParseIPv4(c.ip)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := addr&mask == network&mask
		if got != c.want {
			t.Errorf("%s in 31.13.24.0/21: got %v, want %v", c.ip, got, c.want)
		}
	}
}

func TestDefaultLookup(t *testing.T) {
	db := geo.Default()

	rec, ok := db.Lookup("31.13.24.5")
	if !ok {
		t.Fatal("expected a match for a Facebook range address")
	}
	if rec.Country != "US" {
		t.Errorf("expected country US, got %s", rec.Country)
	}

	if _, ok := db.Lookup("10.0.0.1"); ok {
		t.Error("expected no match for a private address")
	}

	if _, ok := db.Lookup("not-an-ip"); ok {
		t.Error("expected no match for a malformed address")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranges.csv")
	data := "# comment\n81.2.69.0/24,GB,Sky Broadband\n\n203.0.113.0/24,AU\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write dataset: %v", err)
	}

	db, err := geo.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, ok := db.Lookup("81.2.69.160")
	if !ok || rec.Country != "GB" || rec.Org != "Sky Broadband" {
		t.Errorf("unexpected record: %+v ok=%v", rec, ok)
	}

	rec, ok = db.Lookup("203.0.113.10")
	if !ok || rec.Country != "AU" || rec.Org != "" {
		t.Errorf("unexpected record: %+v ok=%v", rec, ok)
	}
}

func TestLoadRejectsBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranges.csv")
	if err := os.WriteFile(path, []byte("31.13.24.0,US\n"), 0644); err != nil {
		t.Fatalf("failed to write dataset: %v", err)
	}
	if _, err := geo.Load(path); err == nil {
		t.Error("expected error for a line without a CIDR prefix")
	}
}
