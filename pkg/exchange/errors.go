package exchange

import "errors"

// Every failure aborts the whole call and reverts all of its mutations; the
// caller sees one of these reasons, testable with errors.Is.
var (
	// ErrInvalidArgument covers zero prices, zero lot counts, non-positive
	// amounts, and zero-valued identities.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInsufficientBalance is returned by a debit that would drive a
	// balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientReservedBalance is returned at placement time when the
	// new order's reservation plus funds already reserved by resting orders
	// would exceed the account balance.
	ErrInsufficientReservedBalance = errors.New("insufficient balance for reservation")

	// ErrTakerUnderfunded aborts a match when the taker cannot pay for the
	// next trade. No partial execution survives.
	ErrTakerUnderfunded = errors.New("taker underfunded")

	// ErrMakerUnderfunded should be unreachable while the reservation
	// invariant holds; it is enforced defensively in the match loop.
	ErrMakerUnderfunded = errors.New("maker underfunded")

	// ErrOrderNotFound is returned for an unknown, filled, or canceled id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrNotOwner is returned when a caller cancels an order it does not own.
	ErrNotOwner = errors.New("not order owner")

	// ErrReentrant is returned when an entry point is invoked while another
	// entry point is mid-flight in an external bridge delivery.
	ErrReentrant = errors.New("reentrant call")

	// ErrExternalDelivery wraps a custody bridge refusal or failure.
	ErrExternalDelivery = errors.New("external delivery failed")

	// ErrTradingHalted is returned for new-order placement while the
	// emergency flag is set. Cancellation and withdrawal stay available.
	ErrTradingHalted = errors.New("trading halted")

	// ErrUnauthorized is returned for admin actions by a non-admin and for
	// bridge-only entry points invoked by anyone else.
	ErrUnauthorized = errors.New("unauthorized")
)
