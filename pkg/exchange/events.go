package exchange

import "github.com/ethereum/go-ethereum/common"

// Events are the observable side effects of committed entry points, intended
// for off-chain consumers (indexers, the websocket feed). They are buffered
// during a call and published only after it commits; a rolled-back call
// publishes nothing.

// Event is implemented by all event payloads.
type Event interface {
	Kind() string
}

// EventSink receives committed events in emission order.
type EventSink interface {
	Publish(Event)
}

// EventSinkFunc adapts a function to an EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Publish(ev Event) { f(ev) }

type DepositEvent struct {
	User   common.Address `json:"user"`
	Unit   string         `json:"unit"`
	Amount int64          `json:"amount"`
}

func (DepositEvent) Kind() string { return "deposit" }

type OrderPlacedEvent struct {
	ID    uint64         `json:"id"`
	Owner common.Address `json:"owner"`
	Side  string         `json:"side"`
	Price int64          `json:"price"`
	Lots  int64          `json:"lots"`
}

func (OrderPlacedEvent) Kind() string { return "order_placed" }

type OrderCanceledEvent struct {
	ID    uint64         `json:"id"`
	Owner common.Address `json:"owner"`
	Side  string         `json:"side"`
	Price int64          `json:"price"`
	Lots  int64          `json:"lots"`
}

func (OrderCanceledEvent) Kind() string { return "order_canceled" }

// TradeEvent records one match between a resting maker order and a taker.
type TradeEvent struct {
	MakerOrderID uint64         `json:"makerOrderId"`
	Maker        common.Address `json:"maker"`
	Taker        common.Address `json:"taker"`
	MakerSide    string         `json:"makerSide"`
	Price        int64          `json:"price"`
	Lots         int64          `json:"lots"`
	GrossAsset   int64          `json:"grossAsset"`
	GrossValue   int64          `json:"grossValue"`
	FeeAsset     int64          `json:"feeAsset"`
	FeeValue     int64          `json:"feeValue"`
}

func (TradeEvent) Kind() string { return "trade" }

type WithdrawalEvent struct {
	User  common.Address `json:"user"`
	Asset int64          `json:"asset"`
	Value int64          `json:"value"`
}

func (WithdrawalEvent) Kind() string { return "withdrawal" }

type FeesWithdrawnEvent struct {
	Recipient common.Address `json:"recipient"`
	Asset     int64          `json:"asset"`
	Value     int64          `json:"value"`
}

func (FeesWithdrawnEvent) Kind() string { return "fees_withdrawn" }

type HaltChangedEvent struct {
	Halted bool `json:"halted"`
}

func (HaltChangedEvent) Kind() string { return "halt_changed" }

type AdminChangedEvent struct {
	Previous common.Address `json:"previous"`
	Next     common.Address `json:"next"`
}

func (AdminChangedEvent) Kind() string { return "admin_changed" }
