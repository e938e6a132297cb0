// Package universe resolves the list of tickers a scan covers, either from an
// explicit comma-separated list or from a holdings store.
package universe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrNoSource is returned when no explicit list is given and no store is
// configured.
var ErrNoSource = errors.New("no tickers given and no universe store configured")

// Store returns up to n distinct tickers
type Store interface {
	Tickers(ctx context.Context, n int) ([]string, error)
}

// Parse splits a comma-separated ticker list. Entries are trimmed and
// uppercased; empties and repeats are dropped, first occurrence wins.
func Parse(list string) []string {
	return Normalize(strings.Split(list, ","))
}

// Normalize applies the Parse rules to already split symbols.
func Normalize(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		t := strings.ToUpper(strings.TrimSpace(s))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Manager picks the universe for a run
type Manager struct {
	store Store
	count int
}

// NewManager creates a manager reading count tickers from store. store may be
// nil when only explicit lists are used.
func NewManager(store Store, count int) *Manager {
	return &Manager{store: store, count: count}
}

// Resolve returns the tickers to scan and whether the caller named them
// explicitly. A list that is empty after normalization counts as no list.
// A store failure is the only error a scan aborts on.
func (m *Manager) Resolve(ctx context.Context, explicit string) ([]string, bool, error) {
	if tickers := Parse(explicit); len(tickers) > 0 {
		log.Debug().Int("tickers", len(tickers)).Msg("using explicit universe")
		return tickers, true, nil
	}
	if m.store == nil {
		return nil, false, ErrNoSource
	}

	tickers, err := m.store.Tickers(ctx, m.count)
	if err != nil {
		return nil, false, fmt.Errorf("loading universe: %w", err)
	}
	log.Info().Int("tickers", len(tickers)).Int("requested", m.count).Msg("universe loaded")
	return tickers, false, nil
}
