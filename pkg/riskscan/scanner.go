// Package riskscan supplements the core with a periodic risk-tier scan
// over every registered loan (spec §9: risk tier is presentation-only,
// not part of the alert pipeline, but a dashboard needs it computed
// somewhere). This is the one place a "scan all positions and classify"
// sweep survives from the teacher's liquidation-risk scanner, cut down
// from a sharded bulk-liquidation engine to a lightweight, read-mostly
// snapshot.
package riskscan

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"loanwatch.io/pkg/loan"
)

// DefaultScanInterval mirrors the teacher's full-scan cadence
// (pkg/liquidation/scanner.go's DefaultScanInterval), slowed down since
// loan risk changes only as fast as the oracle ticks (5s by default).
const DefaultScanInterval = 10 * time.Second

// Snapshot is one loan's classification as of the last scan.
type Snapshot struct {
	Token       string        `json:"token"`
	LTV         float64       `json:"ltv"`
	Tier        loan.RiskTier `json:"tier"`
	ComputedAt  int64         `json:"computed_at"`
}

// tierMap is a copy-on-write snapshot table: readers never block a
// writer and vice versa, adapted from the teacher's CowMap
// (pkg/liquidation/index.go) down to the single operation the
// dashboard actually needs -- a full-table read.
type tierMap struct {
	data atomic.Pointer[map[string]Snapshot]
}

func newTierMap() *tierMap {
	m := &tierMap{}
	empty := make(map[string]Snapshot)
	m.data.Store(&empty)
	return m
}

func (m *tierMap) load() map[string]Snapshot {
	return *m.data.Load()
}

func (m *tierMap) replace(next map[string]Snapshot) {
	m.data.Store(&next)
}

// Scanner periodically classifies every loan in store against the last
// published price and publishes the result as a lock-free-readable
// snapshot table.
type Scanner struct {
	store    loan.Store
	interval time.Duration
	table    *tierMap

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds a scanner over store, ticking every interval (use
// DefaultScanInterval if 0).
func New(store loan.Store, interval time.Duration) *Scanner {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	return &Scanner{
		store:    store,
		interval: interval,
		table:    newTierMap(),
	}
}

// Start begins the periodic scan loop. Safe to call once.
func (s *Scanner) Start(ctx context.Context) {
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.scanOnce()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.scanOnce()
			}
		}
	}()
}

// Stop halts the scan loop.
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			<-s.doneCh
		}
	})
}

func (s *Scanner) scanOnce() {
	update, ok := s.store.GetLastPrice()
	if !ok {
		return
	}

	loans := s.store.GetAllLoans()
	next := make(map[string]Snapshot, len(loans))
	for _, l := range loans {
		if l.BTCCollateral*update.Price <= 0 {
			continue
		}
		ltv := loan.LTV(l, update.Price)
		next[l.Token] = Snapshot{
			Token:      l.Token,
			LTV:        ltv,
			Tier:       loan.ClassifyRisk(l, ltv),
			ComputedAt: update.TimestampMs,
		}
	}
	s.table.replace(next)
}

// Snapshot returns the current risk classification for token, if known.
func (s *Scanner) Snapshot(token string) (Snapshot, bool) {
	snap, ok := s.table.load()[token]
	return snap, ok
}

// All returns every loan's current classification.
func (s *Scanner) All() []Snapshot {
	table := s.table.load()
	out := make([]Snapshot, 0, len(table))
	for _, snap := range table {
		out = append(out, snap)
	}
	return out
}
