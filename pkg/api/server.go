// Package api exposes the exchange over REST plus a websocket event feed.
// It is thin glue: parsing, identity decoding, and error-to-status mapping;
// every rule of the exchange lives in the engine.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/lotdex/lotdex/pkg/exchange"
)

// Server routes REST and websocket traffic to an exchange engine.
type Server struct {
	engine *exchange.Engine
	router *mux.Router
	hub    *Hub
	log    *zap.Logger

	// bridgeAddr lets the devnet deposit endpoint impersonate the custody
	// bridge for asset credits. Real deployments feed the engine directly.
	bridgeAddr common.Address
}

func NewServer(engine *exchange.Engine, bridgeAddr common.Address, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		engine:     engine,
		router:     mux.NewRouter(),
		hub:        NewHub(log),
		log:        log,
		bridgeAddr: bridgeAddr,
	}
	s.setupRoutes()
	return s
}

// EventSink returns a sink that frames committed engine events for the
// websocket feed. Wire it into the engine before serving.
func (s *Server) EventSink() exchange.EventSink {
	return exchange.EventSinkFunc(func(ev exchange.Event) {
		frame, err := json.Marshal(wsEvent{Type: ev.Kind(), Data: ev})
		if err != nil {
			s.log.Warn("event_encode_failed", zap.Error(err))
			return
		}
		s.hub.Broadcast(frame)
	})
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/book", s.handleBook).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/accounts/{address}", s.handleAccount).Methods("GET")
	api.HandleFunc("/accounts/{address}/orders", s.handleAccountOrders).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleOrder).Methods("GET")

	api.HandleFunc("/orders", s.handlePlaceOrder).Methods("POST")
	api.HandleFunc("/orders/immediate", s.handleImmediateBuy).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancel).Methods("POST")
	api.HandleFunc("/orders/cancel-all", s.handleCancelAll).Methods("POST")
	api.HandleFunc("/withdraw", s.handleWithdraw).Methods("POST")
	api.HandleFunc("/deposit", s.handleDeposit).Methods("POST")

	s.router.HandleFunc("/ws", s.hub.serveWS)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and serves until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.log.Info("api_listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// Handler exposes the routed handler, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ------------------------------
// Read handlers
// ------------------------------

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.engine.Book()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, book)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.EngineStatus()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, st)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}
	acc, err := s.engine.Balances(addr)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	lockedAsset, lockedValue, err := s.engine.Locked(addr)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, accountResponse{
		Address:     addr.Hex(),
		Asset:       acc.Asset,
		Value:       acc.Value,
		LockedAsset: lockedAsset,
		LockedValue: lockedValue,
	})
}

func (s *Server) handleAccountOrders(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}
	ids, err := s.engine.UserOrders(addr)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	resp := ordersResponse{Address: addr.Hex(), Orders: []exchange.Order{}}
	for _, id := range ids {
		o, err := s.engine.Order(id)
		if err != nil {
			continue
		}
		resp.Orders = append(resp.Orders, o)
	}
	respondJSON(w, resp)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}
	o, err := s.engine.Order(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, o)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ------------------------------
// Mutation handlers
// ------------------------------

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}

	var (
		filled   int64
		restedID uint64
		err      error
	)
	switch req.Side {
	case "buy":
		filled, restedID, err = s.engine.PlaceBuyFromBalance(addr, req.Price, req.Lots)
	case "sell":
		filled, restedID, err = s.engine.PlaceSellFromBalance(addr, req.Price, req.Lots)
	default:
		respondError(w, http.StatusBadRequest, "invalid side", req.Side)
		return
	}
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, placeOrderResponse{Filled: filled, RestedID: restedID})
}

func (s *Server) handleImmediateBuy(w http.ResponseWriter, r *http.Request) {
	var req immediateBuyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	filled, spent, err := s.engine.PlaceBuyImmediate(addr, req.Price, req.MaxLots, req.Value)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, immediateBuyResponse{Filled: filled, Spent: spent})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	if err := s.engine.Cancel(addr, req.ID); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"canceled": true})
}

func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	if err := s.engine.CancelAll(addr); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"canceled": true})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	if err := s.engine.WithdrawAll(addr); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"withdrawn": true})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	var err error
	switch req.Unit {
	case "asset":
		err = s.engine.NotifyAssetReceived(s.bridgeAddr, addr, req.Amount)
	case "value":
		err = s.engine.DepositValue(addr, req.Amount)
	default:
		respondError(w, http.StatusBadRequest, "invalid unit", req.Unit)
		return
	}
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"deposited": true})
}

// ------------------------------
// Helpers
// ------------------------------

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

func parseAddress(w http.ResponseWriter, raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		respondError(w, http.StatusBadRequest, "invalid address", raw)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg, Detail: detail})
}

func respondEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, exchange.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, exchange.ErrInsufficientBalance),
		errors.Is(err, exchange.ErrInsufficientReservedBalance),
		errors.Is(err, exchange.ErrTakerUnderfunded):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, exchange.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, exchange.ErrNotOwner), errors.Is(err, exchange.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, exchange.ErrTradingHalted):
		status = http.StatusServiceUnavailable
	case errors.Is(err, exchange.ErrReentrant):
		status = http.StatusConflict
	}
	respondError(w, status, err.Error(), "")
}
