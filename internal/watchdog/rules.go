// Package watchdog holds the time-based rules that force a request forward
// and the cooperative observer that applies them while someone is watching.
package watchdog

import (
	"time"

	"servitec_backend/internal/requests/domain"
)

// Rules evaluates the two timeout rules against timestamps stored on a request:
// an expired direct invitation reopens the marketplace, and a published request
// left untouched for MatchGenerationDelay gets a scoring pass.
type Rules struct {
	MatchGenerationDelay time.Duration
}

// TimeoutActions lists every action a rule may issue, in evaluation order.
var TimeoutActions = []domain.Action{domain.ActionOpenMarketplace, domain.ActionEnsureMatches}

// Deadline returns when action becomes due for req, or false when the rule
// does not apply in the current status.
func (r Rules) Deadline(req domain.Request, action domain.Action) (time.Time, bool) {
	switch action {
	case domain.ActionOpenMarketplace:
		if req.Status == domain.StatusDirectSent && req.DirectExpiresAt != nil {
			return *req.DirectExpiresAt, true
		}
	case domain.ActionEnsureMatches:
		if req.Status == domain.StatusPublished && req.Mode == domain.ModeMarketplace {
			return req.UpdatedAt.Add(r.MatchGenerationDelay), true
		}
	}
	return time.Time{}, false
}

// IsDue reports whether action should fire at now. Boundary instants are due.
func (r Rules) IsDue(req domain.Request, action domain.Action, now time.Time) bool {
	deadline, ok := r.Deadline(req, action)
	return ok && !now.Before(deadline)
}

// Due returns the actions that should fire at now.
func (r Rules) Due(req domain.Request, now time.Time) []domain.Action {
	var out []domain.Action
	for _, a := range TimeoutActions {
		if r.IsDue(req, a, now) {
			out = append(out, a)
		}
	}
	return out
}
