package domain

import (
	"fmt"
	"time"

	"servitec_backend/platform/apperr"
)

const (
	msgTerminal        = "la solicitud ya está cerrada"
	msgNotDirectSent   = "la solicitud no tiene una invitación directa pendiente"
	msgCannotAdvance   = "la solicitud no puede avanzar desde su estado actual"
	msgCannotSelect    = "ya no es posible elegir técnico para esta solicitud"
	msgUnknownStatus   = "estado desconocido"
	msgEdgeNotAllowed  = "ese cambio de estado no está permitido"
	msgDirectModeMatch = "la solicitud está en modo directo"
)

// ladder is the execution sequence driven by advance.
var ladder = map[Status]Status{
	StatusSelected:   StatusScheduled,
	StatusScheduled:  StatusInProgress,
	StatusInProgress: StatusCompleted,
}

// NextOnLadder returns the status advance would move to.
func NextOnLadder(s Status) (Status, bool) {
	next, ok := ladder[s]
	return next, ok
}

func (r *Request) touch(now time.Time) {
	r.UpdatedAt = now
}

func (r *Request) clearDirect() {
	r.Mode = ModeMarketplace
	r.Target = nil
	r.DirectExpiresAt = nil
}

func (r *Request) clearAssignment() {
	r.Assigned = nil
	r.SelectedMatchID = nil
}

// OpenMarketplace reopens a non-terminal request to the marketplace.
func (r *Request) OpenMarketplace(now time.Time) error {
	if r.Status.IsTerminal() {
		return apperr.Validation(msgTerminal)
	}
	r.clearDirect()
	r.clearAssignment()
	r.Status = StatusPublished
	r.touch(now)
	return nil
}

// AcceptDirect confirms the invited technician.
func (r *Request) AcceptDirect(now time.Time) error {
	if r.Status != StatusDirectSent || r.Target == nil {
		return apperr.Validation(msgNotDirectSent)
	}
	target := *r.Target
	r.Assigned = &target
	r.DirectExpiresAt = nil
	r.Status = StatusSelected
	r.touch(now)
	return nil
}

// RejectDirect reopens the request to the marketplace. Terminal requests stay closed.
func (r *Request) RejectDirect(now time.Time) error {
	return r.OpenMarketplace(now)
}

// MarkMatched records that candidates exist. Only a published marketplace
// request changes status; it reports whether it did.
func (r *Request) MarkMatched(now time.Time) bool {
	if r.Status != StatusPublished {
		return false
	}
	r.Status = StatusMatched
	r.touch(now)
	return true
}

// CanEnsureMatches rejects closed and direct requests.
func (r *Request) CanEnsureMatches() error {
	if r.Status.IsTerminal() {
		return apperr.Validation(msgTerminal)
	}
	if r.Mode == ModeDirect {
		return apperr.Validation(msgDirectModeMatch)
	}
	return nil
}

// Select assigns the technician of m.
func (r *Request) Select(m Match, now time.Time) error {
	if !r.Status.Negotiable() {
		return apperr.Validation(msgCannotSelect)
	}
	if m.RequestID != r.ID {
		return apperr.NotFound(msgMatchNotFound)
	}
	ref := m.Ref()
	id := m.ID
	r.Assigned = &ref
	r.SelectedMatchID = &id
	r.clearDirect()
	r.Status = StatusSelected
	r.touch(now)
	return nil
}

// Advance moves one rung up selected -> scheduled -> in_progress -> completed.
// The request is not modified when it fails.
func (r *Request) Advance(now time.Time) error {
	next, ok := ladder[r.Status]
	if !ok {
		return apperr.Validation(msgCannotAdvance)
	}
	r.Status = next
	r.touch(now)
	return nil
}

// Cancel closes a request that is not already closed. The assignment is dropped.
func (r *Request) Cancel(now time.Time) error {
	if r.Status.IsTerminal() {
		return apperr.Validation(msgTerminal)
	}
	r.clearAssignment()
	r.Target = nil
	r.DirectExpiresAt = nil
	r.Status = StatusCancelled
	r.touch(now)
	return nil
}

// SetStatus is the manual override. It only follows edges the state machine
// already has without extra input: reopen, cancel and one ladder step.
// Any other target is refused so the invariants cannot be bypassed.
func (r *Request) SetStatus(target Status, now time.Time) error {
	if !target.Known() {
		return apperr.Validation(msgUnknownStatus)
	}
	if r.Status.IsTerminal() {
		return apperr.Validation(msgTerminal)
	}
	switch target {
	case StatusPublished:
		return r.OpenMarketplace(now)
	case StatusCancelled:
		return r.Cancel(now)
	}
	if next, ok := ladder[r.Status]; ok && next == target {
		return r.Advance(now)
	}
	return apperr.Validation(msgEdgeNotAllowed).WithDetails(map[string]string{
		"from": string(r.Status),
		"to":   string(target),
	})
}

// AllowedManualTargets lists what SetStatus accepts from s.
func AllowedManualTargets(s Status) []Status {
	if s.IsTerminal() {
		return nil
	}
	out := []Status{StatusPublished, StatusCancelled}
	if next, ok := ladder[s]; ok {
		out = append(out, next)
	}
	return out
}

// CheckInvariants reports the first violated invariant. Stores call it before
// every write so a bug in a transition cannot persist an inconsistent row.
func (r Request) CheckInvariants() error {
	if !r.Status.Known() {
		return fmt.Errorf("request %s: unknown status %q", r.ID, r.Status)
	}
	if (r.Assigned != nil) != r.Status.HasAssignment() {
		return fmt.Errorf("request %s: assignment does not match status %s", r.ID, r.Status)
	}
	if (r.DirectExpiresAt != nil) != (r.Status == StatusDirectSent) {
		return fmt.Errorf("request %s: direct expiry does not match status %s", r.ID, r.Status)
	}
	if r.Mode == ModeMarketplace && r.Target != nil {
		return fmt.Errorf("request %s: marketplace request has a direct target", r.ID)
	}
	if r.Status == StatusDirectSent && (r.Mode != ModeDirect || r.Target == nil) {
		return fmt.Errorf("request %s: direct_sent without target", r.ID)
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return fmt.Errorf("request %s: partial coordinates", r.ID)
	}
	if r.RadiusKm <= 0 {
		return fmt.Errorf("request %s: radius must be positive", r.ID)
	}
	return nil
}
