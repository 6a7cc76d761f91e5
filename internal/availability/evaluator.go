package availability

import (
	"strings"
	"sync"
	"time"
	_ "time/tzdata"
)

// Evaluator resolves a technician's schedule and timezone and checks instants against it.
type Evaluator struct {
	fallback *time.Location

	mu        sync.RWMutex
	locations map[string]*time.Location
}

// NewEvaluator uses defaultTZ for technicians with no or an unknown timezone.
func NewEvaluator(defaultTZ string) (*Evaluator, error) {
	loc, err := time.LoadLocation(defaultTZ)
	if err != nil {
		return nil, err
	}
	return &Evaluator{fallback: loc, locations: make(map[string]*time.Location)}, nil
}

// Resolve prefers the structured configuration, then the legacy text, then the defaults.
func Resolve(structured []byte, legacy string) Schedule {
	if s, err := ParseStructured(structured); err == nil {
		return s
	}
	if strings.TrimSpace(legacy) != "" {
		s, _ := ParseLegacy(legacy)
		return s
	}
	return Default()
}

func (e *Evaluator) Within(s Schedule, tz string, at time.Time) bool {
	return s.IsWithin(at, e.location(tz))
}

func (e *Evaluator) location(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return e.fallback
	}

	e.mu.RLock()
	loc, ok := e.locations[tz]
	e.mu.RUnlock()
	if ok {
		return loc
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = e.fallback
	}
	e.mu.Lock()
	e.locations[tz] = loc
	e.mu.Unlock()
	return loc
}
