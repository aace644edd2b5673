// Package geo resolves client IPs against a local CIDR dataset.
// Lookups never leave the process; the classification hot path must not
// perform network round-trips.
package geo

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "embed"
)

// Record is the result of a dataset lookup.
type Record struct {
	Country string
	Org     string
}

type entry struct {
	network uint32
	mask    uint32
	rec     Record
}

// DB is an in-memory IP range dataset. The zero value is usable and
// resolves nothing.
type DB struct {
	entries []entry
}

//go:embed ranges.csv
var defaultRanges string

// Default returns a DB built from the embedded dataset.
func Default() *DB {
	db, err := parse(strings.NewReader(defaultRanges))
	if err != nil {
		// The embedded dataset is fixed at build time; a parse failure
		// here is a programming error.
		panic(fmt.Sprintf("geo: embedded dataset: %v", err))
	}
	return db
}

// Load reads a dataset from a CSV file with lines of the form
// "cidr,country,org". Blank lines and lines starting with # are skipped.
func Load(path string) (*DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geo dataset: %w", err)
	}
	defer f.Close()
	return parse(f)
}

func parse(r interface{ Read([]byte) (int, error) }) (*DB, error) {
	db := &DB{}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.SplitN(text, ",", 3)
		if len(fields) < 2 {
			return nil, fmt.Errorf("geo dataset line %d: expected cidr,country[,org]", line)
		}
		network, mask, err := ParseCIDR(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("geo dataset line %d: %w", line, err)
		}
		rec := Record{Country: strings.TrimSpace(fields[1])}
		if len(fields) == 3 {
			rec.Org = strings.TrimSpace(fields[2])
		}
		db.entries = append(db.entries, entry{network: network, mask: mask, rec: rec})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read geo dataset: %w", err)
	}
	return db, nil
}

// Lookup resolves an IPv4 address to a Record. The second return value is
// false when the address is malformed or not covered by the dataset.
func (db *DB) Lookup(ip string) (Record, bool) {
	addr, err := ParseIPv4(ip)
	if err != nil {
		return Record{}, false
	}
	for _, e := range db.entries {
		if addr&e.mask == e.network&e.mask {
			return e.rec, true
		}
	}
	return Record{}, false
}

// ParseIPv4 converts a dotted-quad address to its 32-bit integer form.
func ParseIPv4(ip string) (uint32, error) {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("not an IPv4 address: %q", ip)
	}
	var addr uint32
	for _, part := range parts {
		octet, err := strconv.Atoi(part)
		if err != nil || octet < 0 || octet > 255 {
			return 0, fmt.Errorf("not an IPv4 address: %q", ip)
		}
		addr = addr<<8 | uint32(octet)
	}
	return addr, nil
}

// ParseCIDR converts "a.b.c.d/n" to a (network, mask) pair for integer
// containment tests: contained iff (ip&mask) == (network&mask).
func ParseCIDR(cidr string) (network, mask uint32, err error) {
	base, prefixStr, ok := strings.Cut(cidr, "/")
	if !ok {
		return 0, 0, fmt.Errorf("not a CIDR range: %q", cidr)
	}
	network, err = ParseIPv4(base)
	if err != nil {
		return 0, 0, err
	}
	prefix, err := strconv.Atoi(prefixStr)
	if err != nil || prefix < 0 || prefix > 32 {
		return 0, 0, fmt.Errorf("not a CIDR range: %q", cidr)
	}
	if prefix == 0 {
		return network, 0, nil
	}
	mask = ^uint32(0) << (32 - prefix)
	return network, mask, nil
}
