// Package pricing holds the destination/tour-operator price table the ride
// forms derive PRICE from.
package pricing

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/phillip-england/transitops/internal/logger"
	"go.uber.org/zap"
)

type Entry struct {
	Destination string `json:"destination"`
	Tour        string `json:"tour"`
	Price       string `json:"price"`
}

// UnmarshalJSON accepts a numeric price as well as a string one.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Destination string `json:"destination"`
		Tour        string `json:"tour"`
		Price       any    `json:"price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Destination = raw.Destination
	e.Tour = raw.Tour
	switch v := raw.Price.(type) {
	case string:
		e.Price = v
	case float64:
		e.Price = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		e.Price = ""
	}
	return nil
}

// Table is an immutable snapshot of the price list. The zero value is an
// empty table.
type Table struct {
	entries      []Entry
	destinations []string
	tours        []string
}

func NewTable(entries []Entry) Table {
	copied := make([]Entry, len(entries))
	copy(copied, entries)
	return Table{
		entries:      copied,
		destinations: distinct(copied, func(e Entry) string { return e.Destination }),
		tours:        distinct(copied, func(e Entry) string { return e.Tour }),
	}
}

func (t Table) Len() int { return len(t.entries) }

// Destinations returns the sorted distinct non-blank destinations.
func (t Table) Destinations() []string { return t.destinations }

// TourOperators returns the sorted distinct non-blank tour operators.
func (t Table) TourOperators() []string { return t.tours }

// Lookup finds the price for a destination/tour pair. Keys are trimmed and
// compared case-insensitively; the first matching entry wins.
func (t Table) Lookup(destination, tour string) (string, bool) {
	destination = strings.TrimSpace(destination)
	tour = strings.TrimSpace(tour)
	if destination == "" || tour == "" {
		return "", false
	}
	for _, e := range t.entries {
		if strings.EqualFold(strings.TrimSpace(e.Destination), destination) &&
			strings.EqualFold(strings.TrimSpace(e.Tour), tour) {
			return strings.TrimSpace(e.Price), true
		}
	}
	return "", false
}

// DerivePrice is the derivation rule for the PRICE field: the table price
// for (destination, tour), or "" when either key is blank or has no entry.
func DerivePrice(destination, tour string, table Table) string {
	price, _ := table.Lookup(destination, tour)
	return price
}

// Source is anything that can list prices; backend sessions implement it.
type Source interface {
	Prices(ctx context.Context) ([]Entry, error)
}

// Load fetches the price table. A failure is not fatal: it yields an empty
// table and a warning for the page.
func Load(ctx context.Context, source Source) (Table, string) {
	entries, err := source.Prices(ctx)
	if err != nil {
		logger.Warn("price table unavailable", zap.Error(err))
		return Table{}, "Could not load pricing options: " + err.Error()
	}
	return NewTable(entries), ""
}

type snapshot struct {
	Entries []Entry `json:"entries"`
	Warning string  `json:"warning,omitempty"`
}

// EncodeSnapshot serialises a loaded table and its load warning so a page
// can carry the table it was rendered with. The page script derives prices
// from it and form posts send it back, so one page visit reads the backend's
// price list once.
func EncodeSnapshot(table Table, warning string) string {
	entries := table.entries
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(snapshot{Entries: entries, Warning: warning})
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeSnapshot reverses EncodeSnapshot. ok is false when raw is blank or
// not a snapshot, in which case the caller loads the table.
func DecodeSnapshot(raw string) (table Table, warning string, ok bool) {
	if strings.TrimSpace(raw) == "" {
		return Table{}, "", false
	}
	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil || snap.Entries == nil {
		return Table{}, "", false
	}
	return NewTable(snap.Entries), snap.Warning, true
}

func distinct(entries []Entry, key func(Entry) string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		value := strings.TrimSpace(key(e))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}
