package domain

// SessionIntent is what the caller wants to do with an order's payment session.
type SessionIntent int

const (
	IntentView SessionIntent = iota
	IntentCancel
	IntentSuccess
)

// SessionAction is the outcome of evaluating a session against an intent.
type SessionAction int

const (
	// ActionReturnSession hands the current session back unchanged.
	ActionReturnSession SessionAction = iota
	// ActionRenewSession mints a new session and rebinds it to the order.
	ActionRenewSession
	// ActionRejectPaid refuses to cancel a session that was already paid.
	ActionRejectPaid
	// ActionReturnOrder confirms the order as paid and returns it.
	ActionReturnOrder
	// ActionRedirectCancel sends a success caller to the cancel/renewal flow.
	ActionRedirectCancel
)

// NextSessionAction decides the transition using only the provider's view of the session.
func NextSessionAction(s *PaymentSession, intent SessionIntent) SessionAction {
	switch {
	case s.IsPaid() && intent == IntentSuccess:
		return ActionReturnOrder
	case s.IsPaid():
		return ActionRejectPaid
	case intent == IntentSuccess:
		return ActionRedirectCancel
	case s.IsExpired():
		return ActionRenewSession
	default:
		return ActionReturnSession
	}
}
