// Package analysis derives trading signals from profit history: quick
// per-observation advice, longer-horizon trend patterns, and a
// hold-or-sell verdict against the historical range.
package analysis

import "math"

// Advice is the per-observation recommendation band.
type Advice string

const (
	AdviceSellNow  Advice = "sell_now"
	AdviceSell     Advice = "sell"
	AdviceConsider Advice = "consider"
	AdviceHold     Advice = "hold"
	AdviceAvoid    Advice = "avoid"
)

// Recommendation bands a single profit reading. Quantity only sharpens
// the top band: a big margin on goods actually owned is the act-now case.
func Recommendation(profit int64, quantity int) Advice {
	switch {
	case profit <= 0:
		return AdviceAvoid
	case profit > 2000 && quantity > 0:
		return AdviceSellNow
	case profit > 2000, profit > 1000:
		return AdviceSell
	case profit > 500:
		return AdviceConsider
	default:
		return AdviceHold
	}
}

// Trend is the direction of recent profits against the older half.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// minSamples is the floor below which a trend call is noise.
const minSamples = 4

// Pattern summarizes a good's profit series.
type Pattern struct {
	Samples    int     `json:"samples"`
	Avg        float64 `json:"avg_profit"`
	Max        int64   `json:"max_profit"`
	Volatility float64 `json:"volatility"`
	Trend      Trend   `json:"trend"`
	SpikeRate  float64 `json:"spike_rate"`
}

// Analyze computes the pattern over a profit series ordered oldest first.
// ok is false when the series is too short to say anything.
func Analyze(profits []int64) (Pattern, bool) {
	if len(profits) < minSamples {
		return Pattern{Samples: len(profits)}, false
	}
	p := Pattern{Samples: len(profits), Max: profits[0]}
	var sum float64
	for _, v := range profits {
		sum += float64(v)
		if v > p.Max {
			p.Max = v
		}
	}
	p.Avg = sum / float64(len(profits))

	var sq float64
	for _, v := range profits {
		d := float64(v) - p.Avg
		sq += d * d
	}
	p.Volatility = math.Sqrt(sq / float64(len(profits)))

	half := len(profits) / 2
	older := mean(profits[:half])
	recent := mean(profits[half:])
	switch {
	case recent > older*1.1:
		p.Trend = TrendRising
	case recent < older*0.9:
		p.Trend = TrendFalling
	default:
		p.Trend = TrendStable
	}

	spikes := 0
	for _, v := range profits {
		if float64(v) > p.Avg*1.5 && v > 0 {
			spikes++
		}
	}
	p.SpikeRate = float64(spikes) / float64(len(profits))
	return p, true
}

func mean(vs []int64) float64 {
	var sum float64
	for _, v := range vs {
		sum += float64(v)
	}
	return sum / float64(len(vs))
}

// Summary aggregates a set of current profits for the overview surface.
type Summary struct {
	Count int            `json:"count"`
	Total int64          `json:"total_profit"`
	Best  int64          `json:"best_profit"`
	Avg   float64        `json:"avg_profit"`
	Bands map[Advice]int `json:"bands"`
}

// Summarize folds current profit readings into totals and band counts.
func Summarize(profits []int64) Summary {
	s := Summary{Bands: make(map[Advice]int)}
	for _, p := range profits {
		s.Count++
		s.Total += p
		if s.Count == 1 || p > s.Best {
			s.Best = p
		}
		s.Bands[Recommendation(p, 0)]++
	}
	if s.Count > 0 {
		s.Avg = float64(s.Total) / float64(s.Count)
	}
	return s
}

// Verdict is the hold-or-sell call for the current profit against the
// good's history.
type Verdict struct {
	Action     string `json:"action"`
	Confidence string `json:"confidence"`
	Reason     string `json:"reason"`
}

// HoldOrSell weighs the current profit against the historical pattern.
func HoldOrSell(current int64, p Pattern) Verdict {
	cur := float64(current)
	switch {
	case p.Max > 0 && cur >= float64(p.Max)*0.9:
		return Verdict{Action: "sell", Confidence: "high", Reason: "at or near the historical peak"}
	case p.Avg > 0 && cur > p.Avg*2:
		return Verdict{Action: "sell", Confidence: "medium", Reason: "well above the usual margin"}
	case p.Avg > 0 && cur < p.Avg*0.5:
		return Verdict{Action: "hold", Confidence: "medium", Reason: "below the usual margin"}
	default:
		return Verdict{Action: "watch", Confidence: "low", Reason: "inside the normal range"}
	}
}
