package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/lotdex/lotdex/pkg/api"
	"github.com/lotdex/lotdex/pkg/exchange"
)

var (
	adminAddr  = common.HexToAddress("0x000000000000000000000000000000000000a001")
	bridgeAddr = common.HexToAddress("0x000000000000000000000000000000000000b001")
	alice      = "0x00000000000000000000000000000000000000a1"
	bob        = "0x00000000000000000000000000000000000000b2"
)

func newServer(t *testing.T) (*api.Server, *exchange.Engine) {
	t.Helper()
	e, err := exchange.New(exchange.NewRecorderBridge(nil), exchange.Config{
		LotSize: 1000,
		FeeBps:  25,
		Admin:   adminAddr,
		Bridge:  bridgeAddr,
		Logger:  zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return api.NewServer(e, bridgeAddr, zap.NewNop()), e
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t)
	rr := doJSON(t, srv.Handler(), "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestDepositPlaceAndBook(t *testing.T) {
	srv, _ := newServer(t)
	h := srv.Handler()

	rr := doJSON(t, h, "POST", "/api/v1/deposit", map[string]any{
		"address": alice, "unit": "asset", "amount": 2000,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("deposit: %d %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, "POST", "/api/v1/orders", map[string]any{
		"address": alice, "side": "sell", "price": 500, "lots": 2,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("place: %d %s", rr.Code, rr.Body.String())
	}
	var placed struct {
		Filled   int64  `json:"filled"`
		RestedID uint64 `json:"restedId"`
	}
	decodeInto(t, rr, &placed)
	if placed.Filled != 0 || placed.RestedID == 0 {
		t.Fatalf("placed = %+v, want resting unfilled order", placed)
	}

	rr = doJSON(t, h, "GET", "/api/v1/book", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("book: %d", rr.Code)
	}
	var book exchange.BookSnapshot
	decodeInto(t, rr, &book)
	if len(book.Asks) != 1 || book.Asks[0].ID != placed.RestedID || book.Asks[0].Price != 500 {
		t.Fatalf("asks = %+v, want the placed order", book.Asks)
	}

	rr = doJSON(t, h, "GET", "/api/v1/orders/"+strconv.FormatUint(placed.RestedID, 10), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("order: %d %s", rr.Code, rr.Body.String())
	}
	var o exchange.Order
	decodeInto(t, rr, &o)
	if o.ID != placed.RestedID || o.Lots != 2 {
		t.Fatalf("order = %+v", o)
	}

	// Balance reporting includes the reservation on the resting sell.
	rr = doJSON(t, h, "GET", "/api/v1/accounts/"+alice, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("account: %d", rr.Code)
	}
	var acc struct {
		Asset       int64 `json:"asset"`
		LockedAsset int64 `json:"lockedAsset"`
	}
	decodeInto(t, rr, &acc)
	if acc.Asset != 2000 || acc.LockedAsset != 2000 {
		t.Fatalf("account = %+v, want 2000 held, 2000 locked", acc)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newServer(t)
	h := srv.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad address", "POST", "/api/v1/orders",
			map[string]any{"address": "nope", "side": "buy", "price": 1, "lots": 1},
			http.StatusBadRequest},
		{"bad side", "POST", "/api/v1/orders",
			map[string]any{"address": alice, "side": "hold", "price": 1, "lots": 1},
			http.StatusBadRequest},
		{"zero price", "POST", "/api/v1/orders",
			map[string]any{"address": alice, "side": "buy", "price": 0, "lots": 1},
			http.StatusBadRequest},
		{"unfunded order", "POST", "/api/v1/orders",
			map[string]any{"address": bob, "side": "buy", "price": 100, "lots": 1},
			http.StatusUnprocessableEntity},
		{"unknown order", "GET", "/api/v1/orders/99", nil,
			http.StatusNotFound},
		{"foreign cancel", "POST", "/api/v1/orders/cancel",
			map[string]any{"address": bob, "id": 99},
			http.StatusNotFound},
		{"bad deposit unit", "POST", "/api/v1/deposit",
			map[string]any{"address": alice, "unit": "gold", "amount": 1},
			http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, h, tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status = %d body = %s, want %d", rr.Code, rr.Body.String(), tt.want)
			}
		})
	}
}

func TestCancelOwnership(t *testing.T) {
	srv, _ := newServer(t)
	h := srv.Handler()

	doJSON(t, h, "POST", "/api/v1/deposit", map[string]any{
		"address": alice, "unit": "asset", "amount": 1000,
	})
	rr := doJSON(t, h, "POST", "/api/v1/orders", map[string]any{
		"address": alice, "side": "sell", "price": 500, "lots": 1,
	})
	var placed struct {
		RestedID uint64 `json:"restedId"`
	}
	decodeInto(t, rr, &placed)

	rr = doJSON(t, h, "POST", "/api/v1/orders/cancel", map[string]any{
		"address": bob, "id": placed.RestedID,
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("foreign cancel = %d, want 403", rr.Code)
	}

	rr = doJSON(t, h, "POST", "/api/v1/orders/cancel", map[string]any{
		"address": alice, "id": placed.RestedID,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("own cancel = %d %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, "GET", "/api/v1/accounts/"+alice+"/orders", nil)
	var resp struct {
		Orders []exchange.Order `json:"orders"`
	}
	decodeInto(t, rr, &resp)
	if len(resp.Orders) != 0 {
		t.Fatalf("orders = %+v, want none", resp.Orders)
	}
}

func TestHaltedReturns503(t *testing.T) {
	srv, e := newServer(t)
	h := srv.Handler()

	if err := e.SetHalted(adminAddr, true); err != nil {
		t.Fatalf("SetHalted: %v", err)
	}
	rr := doJSON(t, h, "POST", "/api/v1/orders", map[string]any{
		"address": alice, "side": "buy", "price": 100, "lots": 1,
	})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}
