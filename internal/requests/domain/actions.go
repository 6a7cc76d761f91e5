package domain

type Action string

const (
	ActionCreate          Action = "create"
	ActionOpenMarketplace Action = "open_marketplace"
	ActionDirectAccepted  Action = "direct_accepted"
	ActionDirectRejected  Action = "direct_rejected"
	ActionEnsureMatches   Action = "ensure_matches"
	ActionSelectMatch     Action = "select_match"
	ActionQuoteAccept     Action = "quote_accept"
	ActionQuoteReject     Action = "quote_reject"
	ActionCounterOffer    Action = "counter_offer"
	ActionAdvance         Action = "advance"
	ActionCancel          Action = "cancel"
	ActionSetStatus       Action = "set_status"
	// ActionSubmitQuote is the technician side of counter_offer.
	ActionSubmitQuote Action = "submit_quote"
)

// ClientActions are the actions a client may send on PATCH.
var ClientActions = []Action{
	ActionOpenMarketplace, ActionDirectAccepted, ActionDirectRejected, ActionEnsureMatches,
	ActionSelectMatch, ActionQuoteAccept, ActionQuoteReject, ActionCounterOffer,
	ActionAdvance, ActionCancel, ActionSetStatus,
}

func (a Action) IsClientAction() bool {
	for _, known := range ClientActions {
		if a == known {
			return true
		}
	}
	return false
}

// NeedsMatch reports whether the action operates on one match of the request.
func (a Action) NeedsMatch() bool {
	switch a {
	case ActionSelectMatch, ActionQuoteAccept, ActionQuoteReject, ActionCounterOffer:
		return true
	}
	return false
}
