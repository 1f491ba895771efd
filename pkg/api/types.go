package api

import "github.com/lotdex/lotdex/pkg/exchange"

// Request and response payloads for the REST surface. Caller identity comes
// from the request body (devnet style); the engine is the authority on every
// check that matters.

type placeOrderRequest struct {
	Address string `json:"address"`
	Side    string `json:"side"` // "buy" or "sell"
	Price   int64  `json:"price"`
	Lots    int64  `json:"lots"`
}

type placeOrderResponse struct {
	Filled   int64  `json:"filled"`
	RestedID uint64 `json:"restedId,omitempty"`
}

type immediateBuyRequest struct {
	Address string `json:"address"`
	Price   int64  `json:"price"`
	MaxLots int64  `json:"maxLots"`
	Value   int64  `json:"value"` // attached value units
}

type immediateBuyResponse struct {
	Filled int64 `json:"filled"`
	Spent  int64 `json:"spent"`
}

type cancelRequest struct {
	Address string `json:"address"`
	ID      uint64 `json:"id"`
}

type addressRequest struct {
	Address string `json:"address"`
}

type depositRequest struct {
	Address string `json:"address"`
	Unit    string `json:"unit"` // "asset" or "value"
	Amount  int64  `json:"amount"`
}

type accountResponse struct {
	Address     string `json:"address"`
	Asset       int64  `json:"asset"`
	Value       int64  `json:"value"`
	LockedAsset int64  `json:"lockedAsset"`
	LockedValue int64  `json:"lockedValue"`
}

type ordersResponse struct {
	Address string           `json:"address"`
	Orders  []exchange.Order `json:"orders"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// wsEvent frames an engine event for the websocket feed.
type wsEvent struct {
	Type string         `json:"type"`
	Data exchange.Event `json:"data"`
}
