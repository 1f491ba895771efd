// Package exchange implements a two-asset limit-order exchange: an account
// ledger, price-time-ordered side books over an order arena, and a matching
// engine that settles trades in exact integer arithmetic with a floor-rounded
// basis-point fee.
//
// All amounts are int64 smallest units. Quantities are whole lots; one lot is
// LotSize asset units. Prices are value units per lot. Every public entry
// point executes atomically: it either fully commits or leaves no trace.
package exchange

import "github.com/ethereum/go-ethereum/common"

// Side of an order.
type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side { return -s }

// Unit distinguishes the two balances an account holds.
type Unit int8

const (
	UnitAsset Unit = iota // the traded token, smallest indivisible units
	UnitValue             // the settlement currency, smallest units
)

func (u Unit) String() string {
	switch u {
	case UnitAsset:
		return "asset"
	case UnitValue:
		return "value"
	default:
		return "unknown"
	}
}

// Account holds the two internally-tracked balances of one user.
// Created implicitly on first credit, never destroyed.
type Account struct {
	Asset int64 `json:"asset"`
	Value int64 `json:"value"`
}

// Order is a resting limit order. The four link fields place it in its side
// book and in its owner's order index; both are doubly-linked lists of order
// ids over the arena, with 0 meaning "no neighbor". Ids are assigned from a
// monotonically increasing counter and never reused.
type Order struct {
	ID    uint64         `json:"id"`
	Owner common.Address `json:"owner"`
	Side  Side           `json:"side"`
	Price int64          `json:"price"` // value units per lot, > 0
	Lots  int64          `json:"lots"`  // remaining unfilled lots, > 0

	SidePrev uint64 `json:"sidePrev"`
	SideNext uint64 `json:"sideNext"`
	UserPrev uint64 `json:"userPrev"`
	UserNext uint64 `json:"userNext"`
}

// ListEnds is a head/tail pointer pair for one doubly-linked order list.
type ListEnds struct {
	Head uint64 `json:"head"`
	Tail uint64 `json:"tail"`
}

// BookEntry is one resting order as seen in a book snapshot.
type BookEntry struct {
	ID    uint64 `json:"id"`
	Price int64  `json:"price"`
	Lots  int64  `json:"lots"`
}

// BookSnapshot is the full order book, each side front-to-back in priority
// order: bids non-increasing in price, asks non-decreasing, ties by age.
type BookSnapshot struct {
	Bids []BookEntry `json:"bids"`
	Asks []BookEntry `json:"asks"`
}

// Status reports the administrative state of the engine.
type Status struct {
	Admin    common.Address `json:"admin"`
	Halted   bool           `json:"halted"`
	FeeAsset int64          `json:"feeAsset"`
	FeeValue int64          `json:"feeValue"`
	Orders   int            `json:"orders"`
	Accounts int            `json:"accounts"`
}
