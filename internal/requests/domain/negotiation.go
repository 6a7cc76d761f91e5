package domain

import (
	"math"
	"time"

	"servitec_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MinETAHours = 1
	MaxETAHours = 720

	msgMatchNotFound    = "el técnico no forma parte de esta solicitud"
	msgPriceNotPositive = "el precio debe ser mayor que cero"
	msgETAOutOfRange    = "el plazo estimado debe estar entre 1 y 720 horas"
	msgAlreadyAccepted  = "esa cotización ya fue aceptada"
	msgAlreadyRejected  = "esa cotización ya fue rechazada"
	msgNotNegotiable    = "la solicitud ya no admite cotizaciones"
	msgDirectPending    = "la invitación directa debe responderse primero"
)

// Offer is a validated price and ETA.
type Offer struct {
	Price    decimal.Decimal
	ETAHours int
	Note     *string
}

// NewOffer validates an offer. Prices are rounded to cents and must stay
// positive after rounding. ETAs outside [1, 720] are refused; values inside
// are rounded to whole hours.
func NewOffer(price decimal.Decimal, etaHours float64, note *string) (Offer, error) {
	rounded := price.Round(2)
	if !rounded.IsPositive() {
		return Offer{}, apperr.Validation(msgPriceNotPositive)
	}
	if math.IsNaN(etaHours) || etaHours < MinETAHours || etaHours > MaxETAHours {
		return Offer{}, apperr.Validation(msgETAOutOfRange)
	}
	eta := int(math.Round(etaHours))
	eta = min(max(eta, MinETAHours), MaxETAHours)
	return Offer{Price: rounded, ETAHours: eta, Note: note}, nil
}

// CheckNegotiable refuses quote changes on requests past selection or still
// waiting on a direct invitation.
func (r Request) CheckNegotiable() error {
	if r.Status == StatusDirectSent {
		return apperr.Validation(msgDirectPending)
	}
	if !r.Status.Negotiable() {
		return apperr.Validation(msgNotNegotiable)
	}
	return nil
}

// FindMatch returns the match with id among matches.
func FindMatch(matches []Match, id uuid.UUID) (int, bool) {
	for i := range matches {
		if matches[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (m *Match) Submit(o Offer, now time.Time) {
	price := o.Price
	eta := o.ETAHours
	m.Price = &price
	m.ETAHours = &eta
	m.Note = o.Note
	m.RejectionReason = nil
	m.QuoteStatus = QuoteSubmitted
	m.UpdatedAt = now
}

func (m *Match) Accept(now time.Time) error {
	switch m.QuoteStatus {
	case QuoteAccepted:
		return apperr.Validation(msgAlreadyAccepted)
	case QuoteRejected:
		return apperr.Validation(msgAlreadyRejected)
	}
	m.QuoteStatus = QuoteAccepted
	m.UpdatedAt = now
	return nil
}

func (m *Match) Reject(reason *string, now time.Time) error {
	if m.QuoteStatus == QuoteRejected {
		return apperr.Validation(msgAlreadyRejected)
	}
	m.QuoteStatus = QuoteRejected
	m.RejectionReason = reason
	m.UpdatedAt = now
	return nil
}

// AcceptQuote accepts matches[i] and rejects every sibling that is submitted
// or accepted, so exactly one accepted match remains. It returns the indexes
// of the siblings it changed. The parent request becomes selected.
func (r *Request) AcceptQuote(matches []Match, i int, now time.Time) ([]int, error) {
	if err := r.CheckNegotiable(); err != nil {
		return nil, err
	}
	if err := matches[i].Accept(now); err != nil {
		return nil, err
	}

	var changed []int
	for j := range matches {
		if j == i {
			continue
		}
		if s := matches[j].QuoteStatus; s == QuoteSubmitted || s == QuoteAccepted {
			matches[j].QuoteStatus = QuoteRejected
			matches[j].UpdatedAt = now
			changed = append(changed, j)
		}
	}

	if err := r.Select(matches[i], now); err != nil {
		return nil, err
	}
	return changed, nil
}

// RejectQuote rejects matches[i] and recomputes the parent status from the
// remaining quotes.
func (r *Request) RejectQuote(matches []Match, i int, reason *string, now time.Time) error {
	if err := r.CheckNegotiable(); err != nil {
		return err
	}
	if err := matches[i].Reject(reason, now); err != nil {
		return err
	}
	r.RefreshFromQuotes(matches, now)
	return nil
}

// SubmitOffer records a new offer on matches[i]. Any accepted sibling goes
// back to submitted since a new offer reopens the comparison; the parent
// becomes quoted and loses its assignment. It returns changed sibling indexes.
func (r *Request) SubmitOffer(matches []Match, i int, o Offer, now time.Time) ([]int, error) {
	if err := r.CheckNegotiable(); err != nil {
		return nil, err
	}
	matches[i].Submit(o, now)

	var changed []int
	for j := range matches {
		if j != i && matches[j].QuoteStatus == QuoteAccepted {
			matches[j].QuoteStatus = QuoteSubmitted
			matches[j].UpdatedAt = now
			changed = append(changed, j)
		}
	}

	r.clearAssignment()
	r.Status = StatusQuoted
	r.touch(now)
	return changed, nil
}

// RefreshFromQuotes sets quoted when any match is still submitted and matched
// otherwise. The assignment is cleared in both cases.
func (r *Request) RefreshFromQuotes(matches []Match, now time.Time) {
	r.clearAssignment()
	r.Status = StatusMatched
	for _, m := range matches {
		if m.QuoteStatus == QuoteSubmitted {
			r.Status = StatusQuoted
			break
		}
	}
	r.touch(now)
}
