package parse

import (
	"errors"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"marketwatch/internal/layout"
	"marketwatch/internal/metrics"
)

// Rejection reasons. Rejections are expected in normal operation (flickery
// OCR on a scrolling UI); they are counted and logged, never fatal.
var (
	ErrLowConfidence = errors.New("confidence below threshold")
	ErrUnknownGood   = errors.New("good name not matched")
	ErrNoFields      = errors.New("no usable fields")
)

// RawField is one zone's OCR output.
type RawField struct {
	Text       string
	Confidence float64
}

// Fields is a typed, validated field set for one captured frame. Price
// absence is nil, never zero: a frame often shows only one of the two
// screens that carry the local and friend prices.
type Fields struct {
	Good        string
	Region      string
	LocalPrice  *int64
	FriendPrice *int64
	AvgCost     *int64
	Quantity    int
	Confidence  float64
	ObservedAt  time.Time
}

// Complete reports whether both prices are present.
func (f Fields) Complete() bool {
	return f.Good != "" && f.LocalPrice != nil && f.FriendPrice != nil
}

// Parser converts raw OCR zone output into Fields, rejecting low-confidence
// or unmatchable candidates.
type Parser struct {
	goods     []string
	regions   map[string]string
	minConf   float64
	maxPrice  int64
	tolerance int
}

func New(cat *layout.Catalog, minConf float64, maxPrice int64, tolerance int) *Parser {
	return &Parser{
		goods:     cat.GoodNames(),
		regions:   cat.Goods,
		minConf:   minConf,
		maxPrice:  maxPrice,
		tolerance: tolerance,
	}
}

// Parse validates one frame's raw zone output. The returned error is a
// rejection reason; callers discard the candidate and move on.
func (p *Parser) Parse(raw map[string]RawField, at time.Time) (Fields, error) {
	f := Fields{ObservedAt: at, Confidence: 1}

	nameRaw, hasName := raw[layout.ZoneProductName]
	if hasName && strings.TrimSpace(nameRaw.Text) != "" {
		good, ok := p.MatchGood(nameRaw.Text)
		if !ok {
			metrics.IncParseRejected()
			log.Printf("parse rejected: unmatched good %q conf=%.2f", snippet(nameRaw.Text), nameRaw.Confidence)
			return Fields{}, ErrUnknownGood
		}
		f.Good = good
		f.Region = p.regions[good]
		if nameRaw.Confidence < f.Confidence {
			f.Confidence = nameRaw.Confidence
		}
	}

	f.LocalPrice = p.price(raw, layout.ZoneLocalPrice, &f.Confidence)
	f.FriendPrice = p.price(raw, layout.ZoneFriendPrice, &f.Confidence)
	f.AvgCost = p.price(raw, layout.ZoneAvgCost, &f.Confidence)
	if q, ok := raw[layout.ZoneQuantity]; ok {
		f.Quantity = ParseQuantity(q.Text)
	}

	// The friend-price panel shows other players' listings; anything above
	// the configured ceiling is OCR noise, not a real price.
	if f.FriendPrice != nil && *f.FriendPrice > p.maxPrice {
		f.FriendPrice = nil
	}

	if f.Good == "" && f.LocalPrice == nil && f.FriendPrice == nil {
		metrics.IncParseRejected()
		return Fields{}, ErrNoFields
	}
	if f.Confidence < p.minConf {
		metrics.IncParseRejected()
		log.Printf("parse rejected: low confidence %.2f good=%q region=%q", f.Confidence, f.Good, f.Region)
		return Fields{}, ErrLowConfidence
	}
	return f, nil
}

func (p *Parser) price(raw map[string]RawField, zone string, conf *float64) *int64 {
	rf, ok := raw[zone]
	if !ok || strings.TrimSpace(rf.Text) == "" {
		return nil
	}
	v, err := ParsePrice(rf.Text)
	if err != nil {
		return nil
	}
	if rf.Confidence < *conf {
		*conf = rf.Confidence
	}
	return &v
}

// ParsePrice normalizes OCR'd price text into whole currency units. It
// tolerates currency markers, grouping separators, and a trailing two-digit
// decimal part (10.000,00 -> 10000).
func ParsePrice(text string) (int64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, errors.New("empty")
	}
	s = currencyRE.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if centsRE.MatchString(s) {
		cut := strings.LastIndexAny(s, ".,")
		s = s[:cut]
	}
	digits := onlyDigits(s)
	if digits == "" {
		return 0, errors.New("no digits in " + strconv.Quote(text))
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		n = -n
	}
	return n, nil
}

var (
	currencyRE = regexp.MustCompile(`(?i)\b(hz|rp|idr)\b|[◆$€¥]`)
	centsRE    = regexp.MustCompile(`[.,]\d{2}$`)
	quantityRE = regexp.MustCompile(`(?i)owned[:\s]*([0-9]+)`)
	numberRE   = regexp.MustCompile(`[0-9]+`)
	noiseRE    = regexp.MustCompile(`\[[^\]]*\]`)
)

// ParseQuantity extracts an owned-quantity count ("Owned: 12" or a bare
// number). Zero when nothing usable is found.
func ParseQuantity(text string) int {
	if m := quantityRE.FindStringSubmatch(text); len(m) == 2 {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if m := numberRE.FindString(text); m != "" {
		n, _ := strconv.Atoi(m)
		return n
	}
	return 0
}

// MatchGood maps OCR'd name text to a canonical known good. Exact and
// substring matches are accepted first; otherwise the closest good within
// the edit-distance tolerance wins.
func (p *Parser) MatchGood(text string) (string, bool) {
	cand := NormalizeName(text)
	if cand == "" {
		return "", false
	}
	for _, g := range p.goods {
		lg := strings.ToLower(g)
		if cand == lg || strings.Contains(cand, lg) {
			return g, true
		}
	}
	best := ""
	bestDist := p.tolerance + 1
	for _, g := range p.goods {
		d := editDistance(cand, strings.ToLower(g))
		if d < bestDist {
			bestDist = d
			best = g
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// NormalizeName trims, casefolds, and strips packaging noise the game
// overlays on item names.
func NormalizeName(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = noiseRE.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// editDistance is plain Levenshtein over bytes; OCR confusions the matcher
// needs to absorb (l/1, O/0, missing letter) are all single edits.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func snippet(s string) string {
	if len(s) > 60 {
		return s[:60] + "…"
	}
	return s
}
