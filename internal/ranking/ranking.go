// Package ranking maintains the live profit board: per day and market
// region, the latest committed observation for each good, ordered by
// profit.
package ranking

import (
	"sort"
	"sync"
	"time"

	"marketwatch/internal/dedup"
)

// Entry is one ranked row. PotentialTotal is profit times owned quantity,
// OwnedMargin is the friend price against what the owned stock cost; both
// are zero when the underlying zone was not read.
type Entry struct {
	Good           string    `json:"good_name"`
	Region         string    `json:"region_id"`
	LocalPrice     int64     `json:"local_price"`
	FriendPrice    int64     `json:"friend_price"`
	Profit         int64     `json:"profit"`
	Quantity       int       `json:"quantity,omitempty"`
	PotentialTotal int64     `json:"potential_total,omitempty"`
	AvgCost        int64     `json:"avg_cost,omitempty"`
	OwnedMargin    int64     `json:"owned_margin,omitempty"`
	CommittedAt    time.Time `json:"committed_at"`
}

// Board holds the current ranking state. The committer goroutine writes,
// HTTP handlers read.
type Board struct {
	mu sync.RWMutex
	// day -> region -> good -> latest observation
	days map[string]map[string]map[string]dedup.Observation
}

func NewBoard() *Board {
	return &Board{days: make(map[string]map[string]map[string]dedup.Observation)}
}

func dayOf(t time.Time) string { return t.UTC().Format("2006-01-02") }

// Apply folds a committed observation into the board. Per good the latest
// CommittedAt wins; an equal timestamp also wins so a re-commit of the
// same instant is not lost.
func (b *Board) Apply(obs dedup.Observation) {
	day := dayOf(obs.CommittedAt)
	b.mu.Lock()
	defer b.mu.Unlock()
	regions, ok := b.days[day]
	if !ok {
		regions = make(map[string]map[string]dedup.Observation)
		b.days[day] = regions
	}
	goods, ok := regions[obs.Region]
	if !ok {
		goods = make(map[string]dedup.Observation)
		regions[obs.Region] = goods
	}
	if prev, ok := goods[obs.Good]; ok && prev.CommittedAt.After(obs.CommittedAt) {
		return
	}
	goods[obs.Good] = obs
}

// Ranking returns the board for one region and day, best profit first,
// name as the tie-break. Negative profits are listed, not hidden.
func (b *Board) Ranking(region, day string) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	goods := b.days[day][region]
	out := make([]Entry, 0, len(goods))
	for _, obs := range goods {
		e := Entry{
			Good:        obs.Good,
			Region:      obs.Region,
			LocalPrice:  obs.LocalPrice,
			FriendPrice: obs.FriendPrice,
			Profit:      obs.Profit(),
			Quantity:    obs.Quantity,
			CommittedAt: obs.CommittedAt,
		}
		if obs.Quantity > 0 {
			e.PotentialTotal = e.Profit * int64(obs.Quantity)
		}
		if obs.AvgCost > 0 {
			e.AvgCost = obs.AvgCost
			e.OwnedMargin = obs.FriendPrice - obs.AvgCost
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Profit != out[j].Profit {
			return out[i].Profit > out[j].Profit
		}
		return out[i].Good < out[j].Good
	})
	return out
}

// Regions lists the regions with entries for a day, sorted.
func (b *Board) Regions(day string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	regions := b.days[day]
	out := make([]string, 0, len(regions))
	for r := range regions {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
