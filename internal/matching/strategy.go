package matching

import (
	"cmp"
	"strings"
	"time"
	"unicode"

	"servitec_backend/platform/sanitize"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Target is the request side of a scoring pass.
type Target struct {
	Location *Point
	RadiusKm float64
	Urgency  string
	Category string
	City     string
	Address  string
}

// Candidate is one technician as seen by the scorer. WithinHours and HasPhone
// are resolved by the caller.
type Candidate struct {
	ID           uuid.UUID
	Name         string
	Phone        string
	Specialty    string
	City         string
	CoverageArea string
	Location     *Point
	RadiusKm     float64
	Rating       float64
	LastSeenAt   *time.Time
	WithinHours  bool
	HasPhone     bool
}

// Ranked is a scored candidate. DistanceKm is nil when either side has no coordinates.
type Ranked struct {
	Candidate  Candidate
	Score      float64
	DistanceKm *float64
}

// ScoringStrategy is one way of ranking candidates.
type ScoringStrategy interface {
	Name() string
	// Score returns false when the candidate is not eligible at all.
	Score(target Target, c Candidate) (Ranked, bool)
	// Comparator returns a fresh ordering function for one ranking pass.
	Comparator() func(a, b Ranked) int
	// FallbackOnZero reports whether an all-zero pass returns every eligible
	// candidate instead of none.
	FallbackOnZero() bool
}

// CreationStrategy ranks by proximity, rating, urgency and current availability.
// Candidates without coordinates are skipped.
type CreationStrategy struct {
	Weights CreationWeights
}

func (CreationStrategy) Name() string { return "creation" }

func (s CreationStrategy) Score(t Target, c Candidate) (Ranked, bool) {
	if t.Location == nil || c.Location == nil {
		return Ranked{}, false
	}
	dist, ok := withinRadius(t, c)
	if !ok {
		return Ranked{}, false
	}

	score := s.Weights.Base - *dist*s.Weights.DistancePerKm + c.Rating*s.Weights.RatingMultiplier
	score += s.Weights.Urgency[strings.ToLower(t.Urgency)]
	if c.WithinHours {
		score += s.Weights.WorkingHoursBonus
	}
	return Ranked{Candidate: c, Score: score, DistanceKm: dist}, true
}

func (CreationStrategy) Comparator() func(a, b Ranked) int {
	return func(a, b Ranked) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(*a.DistanceKm, *b.DistanceKm)
	}
}

func (CreationStrategy) FallbackOnZero() bool { return false }

// BackfillStrategy ranks by textual affinity. It is used for requests that
// reached the marketplace without matches, possibly without coordinates.
type BackfillStrategy struct {
	Weights BackfillWeights
}

func (BackfillStrategy) Name() string { return "backfill" }

func (s BackfillStrategy) Score(t Target, c Candidate) (Ranked, bool) {
	dist, ok := withinRadius(t, c)
	if !ok {
		return Ranked{}, false
	}

	city := sanitize.Fold(t.City)
	techCity := sanitize.Fold(c.City)

	var score float64
	if tokensIntersect(t.Category, c.Specialty) {
		score += s.Weights.Specialty
	}
	if city != "" && city == techCity {
		score += s.Weights.City
	}
	if city != "" && strings.Contains(sanitize.Fold(c.CoverageArea), city) {
		score += s.Weights.CoverageArea
	}
	if techCity != "" && strings.Contains(sanitize.Fold(t.Address), techCity) {
		score += s.Weights.AddressCity
	}
	if c.HasPhone {
		score += s.Weights.Phone
	}
	return Ranked{Candidate: c, Score: score, DistanceKm: dist}, true
}

func (BackfillStrategy) Comparator() func(a, b Ranked) int {
	names := collate.New(language.Spanish, collate.IgnoreCase)
	return func(a, b Ranked) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := compareRecency(a.Candidate.LastSeenAt, b.Candidate.LastSeenAt); c != 0 {
			return c
		}
		return names.CompareString(a.Candidate.Name, b.Candidate.Name)
	}
}

func (BackfillStrategy) FallbackOnZero() bool { return true }

// compareRecency orders more recent first and unknown last.
func compareRecency(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return b.Compare(*a)
	}
}

var stopwords = map[string]struct{}{
	"de": {}, "del": {}, "la": {}, "las": {}, "el": {}, "los": {}, "y": {}, "en": {}, "para": {}, "con": {}, "por": {},
}

func tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(sanitize.Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(tok) < 3 {
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

func tokensIntersect(a, b string) bool {
	left := tokens(a)
	if len(left) == 0 {
		return false
	}
	for tok := range tokens(b) {
		if _, ok := left[tok]; ok {
			return true
		}
	}
	return false
}
