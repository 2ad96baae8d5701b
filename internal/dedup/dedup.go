package dedup

import (
	"time"

	"marketwatch/internal/parse"
)

// Config holds the stability tunables. Both are product decisions exposed
// through configuration, never hard-coded.
type Config struct {
	// Stability is the consecutive-agreement count required before a run
	// commits.
	Stability int
	// IdleTimeout resets a region's machine to Empty when no candidates
	// arrive, so the same good can be re-observed later in the session.
	IdleTimeout time.Duration
}

// Observation is a committed, validated price reading: both prices present,
// non-empty good, CommittedAt monotonically non-decreasing per region.
type Observation struct {
	Good        string    `json:"good_name"`
	Region      string    `json:"region_id"`
	LocalPrice  int64     `json:"local_price"`
	FriendPrice int64     `json:"friend_price"`
	Quantity    int       `json:"quantity"`
	AvgCost     int64     `json:"avg_cost,omitempty"`
	CommittedAt time.Time `json:"committed_at"`
}

// Profit is the ranking metric: friend price minus local price. Negative is
// valid and retained.
func (o Observation) Profit() int64 { return o.FriendPrice - o.LocalPrice }

type state int

const (
	stateEmpty state = iota
	stateAccumulating
	stateStable
)

// run is the candidate accumulator for one region. The good name is the
// run's anchor: only a differing good name discards it. Prices fill in
// across frames because the game shows local and friend prices on
// different screens.
type run struct {
	good    string
	region  string
	local   *int64
	friend  *int64
	qty     int
	avgCost *int64
	agree   int
}

func (r *run) complete() bool {
	return r.good != "" && r.local != nil && r.friend != nil
}

// Machine is the per-region deduplication state machine. It consumes the
// parsed field stream for one market region and emits the much smaller
// stream of distinct stable observations. Machines are independent across
// regions and are only ever driven by the single recognition worker, so
// they need no locking.
type Machine struct {
	cfg    Config
	region string

	st            state
	cur           run
	lastCommitted *Observation
	lastSeen      time.Time
	lastCommitAt  time.Time
}

func NewMachine(region string, cfg Config) *Machine {
	if cfg.Stability < 1 {
		cfg.Stability = 1
	}
	return &Machine{cfg: cfg, region: region}
}

// Offer feeds one parsed candidate into the machine. It returns an
// Observation exactly when the candidate completes a stable run that
// differs from the last committed reading.
func (m *Machine) Offer(f parse.Fields, now time.Time) (Observation, bool) {
	if m.st != stateEmpty && m.cfg.IdleTimeout > 0 && now.Sub(m.lastSeen) > m.cfg.IdleTimeout {
		// Idle reset forgets last_committed too: after the operator walks
		// away and comes back, the same price is a fresh observation.
		m.reset()
	}
	m.lastSeen = now

	switch m.st {
	case stateEmpty:
		if f.Good == "" {
			return Observation{}, false
		}
		m.startRun(f)
	case stateAccumulating, stateStable:
		if f.Good != "" && f.Good != m.cur.good {
			// User scrolled to a different good. The old run is abandoned
			// uncommitted; if it had reached stability it committed already.
			m.startRun(f)
			break
		}
		m.absorb(f)
	}
	return m.maybeCommit(now)
}

// startRun begins a fresh run anchored on the candidate's good name.
func (m *Machine) startRun(f parse.Fields) {
	m.cur = run{good: f.Good, region: f.Region, local: f.LocalPrice, friend: f.FriendPrice, qty: f.Quantity, avgCost: f.AvgCost, agree: 1}
	m.st = stateAccumulating
}

// absorb merges a same-good candidate into the run. Agreement is judged on
// the price fields both sides carry; a disagreeing price is a single-frame
// OCR glitch that resets the agreement counter and adopts the new values,
// but never the good-name anchor.
func (m *Machine) absorb(f parse.Fields) {
	if priceConflicts(m.cur.local, f.LocalPrice) || priceConflicts(m.cur.friend, f.FriendPrice) {
		m.cur.local = takeLatest(m.cur.local, f.LocalPrice)
		m.cur.friend = takeLatest(m.cur.friend, f.FriendPrice)
		m.cur.agree = 1
		m.st = stateAccumulating
		if f.Quantity > 0 {
			m.cur.qty = f.Quantity
		}
		if f.AvgCost != nil {
			m.cur.avgCost = f.AvgCost
		}
		return
	}
	if m.cur.local == nil {
		m.cur.local = f.LocalPrice
	}
	if m.cur.friend == nil {
		m.cur.friend = f.FriendPrice
	}
	if f.Quantity > 0 {
		m.cur.qty = f.Quantity
	}
	if f.AvgCost != nil {
		m.cur.avgCost = f.AvgCost
	}
	if m.st == stateAccumulating {
		m.cur.agree++
	}
}

func (m *Machine) maybeCommit(now time.Time) (Observation, bool) {
	if m.st != stateAccumulating || m.cur.agree < m.cfg.Stability || !m.cur.complete() {
		return Observation{}, false
	}
	m.st = stateStable
	obs := Observation{
		Good:        m.cur.good,
		Region:      m.region,
		LocalPrice:  *m.cur.local,
		FriendPrice: *m.cur.friend,
		Quantity:    m.cur.qty,
		CommittedAt: now,
	}
	if m.cur.avgCost != nil {
		obs.AvgCost = *m.cur.avgCost
	}
	if last := m.lastCommitted; last != nil &&
		last.Good == obs.Good && last.LocalPrice == obs.LocalPrice && last.FriendPrice == obs.FriendPrice {
		// Re-read of an unchanged reading: absorb silently.
		return Observation{}, false
	}
	if obs.CommittedAt.Before(m.lastCommitAt) {
		obs.CommittedAt = m.lastCommitAt
	}
	m.lastCommitAt = obs.CommittedAt
	m.lastCommitted = &obs
	return obs, true
}

// reset discards any partial run and forgets the committed anchor.
func (m *Machine) reset() {
	m.st = stateEmpty
	m.cur = run{}
	m.lastCommitted = nil
}

// priceConflicts reports whether both sides carry a value and they differ.
// OCR on a static screen is exact once stable, so equality is numeric.
func priceConflicts(have, got *int64) bool {
	return have != nil && got != nil && *have != *got
}

func takeLatest(have, got *int64) *int64 {
	if got != nil {
		return got
	}
	return have
}

// Tracker owns one machine per market region (arena keyed by region id) and
// routes candidates. Nameless partial field sets (the friend-price screen
// carries no product name) go to the region of the most recent named run,
// mirroring how the capture flow stitches the two screens together.
// Tracker is driven only by the recognition worker goroutine.
type Tracker struct {
	cfg      Config
	machines map[string]*Machine
	active   string
}

func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg, machines: make(map[string]*Machine)}
}

// Offer routes one candidate to its region's machine.
func (t *Tracker) Offer(f parse.Fields, now time.Time) (Observation, bool) {
	region := f.Region
	if region == "" {
		region = t.active
	}
	if region == "" {
		return Observation{}, false
	}
	m, ok := t.machines[region]
	if !ok {
		m = NewMachine(region, t.cfg)
		t.machines[region] = m
	}
	if f.Region != "" {
		t.active = f.Region
	}
	return m.Offer(f, now)
}

// DiscardPartial drops every in-flight run. Called on stop: a non-stable
// run is never force-committed.
func (t *Tracker) DiscardPartial() {
	for _, m := range t.machines {
		m.reset()
	}
	t.active = ""
}
