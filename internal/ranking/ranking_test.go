package ranking

import (
	"testing"
	"time"

	"marketwatch/internal/dedup"
)

var day1 = time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

func obs(good, region string, local, friend int64, qty int, at time.Time) dedup.Observation {
	return dedup.Observation{Good: good, Region: region, LocalPrice: local, FriendPrice: friend, Quantity: qty, CommittedAt: at}
}

func TestRankingOrder(t *testing.T) {
	b := NewBoard()
	b.Apply(obs("Banner", "wuling", 100, 110, 0, day1))
	b.Apply(obs("Axe", "wuling", 100, 150, 0, day1.Add(time.Minute)))
	b.Apply(obs("Cart", "wuling", 100, 110, 0, day1.Add(2*time.Minute)))
	b.Apply(obs("Drill", "wuling", 100, 90, 0, day1.Add(3*time.Minute)))

	got := b.Ranking("wuling", "2026-08-25")
	want := []string{"Axe", "Banner", "Cart", "Drill"}
	if len(got) != len(want) {
		t.Fatalf("rows = %d, want %d", len(got), len(want))
	}
	for i, g := range want {
		if got[i].Good != g {
			t.Fatalf("row %d = %q, want %q", i, got[i].Good, g)
		}
	}
	if got[3].Profit != -10 {
		t.Fatalf("negative profit must be retained, got %d", got[3].Profit)
	}
}

func TestLatestObservationWins(t *testing.T) {
	b := NewBoard()
	b.Apply(obs("Axe", "wuling", 100, 150, 0, day1))
	b.Apply(obs("Axe", "wuling", 100, 180, 0, day1.Add(time.Minute)))
	// Stale apply must not roll the board back.
	b.Apply(obs("Axe", "wuling", 100, 150, 0, day1))

	got := b.Ranking("wuling", "2026-08-25")
	if len(got) != 1 || got[0].FriendPrice != 180 {
		t.Fatalf("board = %+v", got)
	}
}

func TestPotentialTotal(t *testing.T) {
	b := NewBoard()
	b.Apply(obs("Axe", "wuling", 100, 150, 4, day1))
	got := b.Ranking("wuling", "2026-08-25")
	if got[0].PotentialTotal != 200 {
		t.Fatalf("potential total = %d, want 200", got[0].PotentialTotal)
	}
}

func TestOwnedMargin(t *testing.T) {
	b := NewBoard()
	o := obs("Axe", "wuling", 100, 150, 4, day1)
	o.AvgCost = 90
	b.Apply(o)
	b.Apply(obs("Cart", "wuling", 100, 120, 0, day1))

	got := b.Ranking("wuling", "2026-08-25")
	if got[0].AvgCost != 90 || got[0].OwnedMargin != 60 {
		t.Fatalf("owned margin row = %+v", got[0])
	}
	if got[1].OwnedMargin != 0 {
		t.Fatalf("margin without cost = %d", got[1].OwnedMargin)
	}
}

func TestRegionsAndDaysIsolated(t *testing.T) {
	b := NewBoard()
	b.Apply(obs("Axe", "wuling", 100, 150, 0, day1))
	b.Apply(obs("Cart", "valley", 100, 120, 0, day1))
	b.Apply(obs("Axe", "wuling", 100, 160, 0, day1.Add(24*time.Hour)))

	if got := b.Ranking("valley", "2026-08-25"); len(got) != 1 || got[0].Good != "Cart" {
		t.Fatalf("valley board = %+v", got)
	}
	if got := b.Ranking("wuling", "2026-08-26"); len(got) != 1 || got[0].FriendPrice != 160 {
		t.Fatalf("next-day board = %+v", got)
	}
	if regions := b.Regions("2026-08-25"); len(regions) != 2 || regions[0] != "valley" {
		t.Fatalf("regions = %v", regions)
	}
}
