package exchange

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Default exchange parameters. LotSize is the asset units in one lot; FeeBps
// is the proportional fee in basis points, floor-rounded per trade.
const (
	DefaultLotSize int64 = 100_000_000
	DefaultFeeBps  int64 = 25
)

// Config carries the construction-time parameters of an Engine.
type Config struct {
	LotSize int64          // asset units per lot; DefaultLotSize if zero
	FeeBps  int64          // proportional fee in bps; DefaultFeeBps if zero
	Admin   common.Address // holder of the administrative surface
	Bridge  common.Address // the only identity allowed to report inbound asset transfers
	Logger  *zap.Logger    // optional
	Events  EventSink      // optional
}

// Engine is the exchange: the account ledger, the order arena, two side
// books, the per-user indexes, and the entry points that mutate them.
//
// The execution substrate's guarantee that entry points run one at a time to
// full completion is rendered here by the engine mutex: every entry point is
// the sole mutator during its window. Each entry point clones the state on
// entry and restores the clone on any failure, so a call either fully
// commits or has no effect. Events are buffered per call and published only
// on commit.
type Engine struct {
	mu      sync.Mutex
	entered atomic.Bool // set while an external bridge delivery may run

	st *state

	lotSize    int64
	feeBps     int64
	bridgeAddr common.Address
	bridge     Bridge

	log     *zap.Logger
	sink    EventSink
	pending []Event
}

// New constructs an Engine. bridge receives outbound deliveries and must not
// be nil.
func New(bridge Bridge, cfg Config) (*Engine, error) {
	if bridge == nil {
		return nil, fmt.Errorf("%w: nil bridge", ErrInvalidArgument)
	}
	if cfg.Admin == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero admin address", ErrInvalidArgument)
	}
	if cfg.Bridge == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero bridge address", ErrInvalidArgument)
	}
	if cfg.LotSize == 0 {
		cfg.LotSize = DefaultLotSize
	}
	if cfg.FeeBps == 0 {
		cfg.FeeBps = DefaultFeeBps
	}
	if cfg.LotSize < 0 || cfg.FeeBps < 0 || cfg.FeeBps >= 10_000 {
		return nil, fmt.Errorf("%w: lot size %d, fee %d bps", ErrInvalidArgument, cfg.LotSize, cfg.FeeBps)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		st:         newState(cfg.Admin),
		lotSize:    cfg.LotSize,
		feeBps:     cfg.FeeBps,
		bridgeAddr: cfg.Bridge,
		bridge:     bridge,
		log:        log,
		sink:       cfg.Events,
	}, nil
}

// LotSize returns the asset units in one lot.
func (e *Engine) LotSize() int64 { return e.lotSize }

// FeeBps returns the proportional fee in basis points.
func (e *Engine) FeeBps() int64 { return e.feeBps }

// SetEventSink replaces the event sink. Wire-up only; not safe to call
// concurrently with entry points.
func (e *Engine) SetEventSink(sink EventSink) { e.sink = sink }

func (e *Engine) emit(ev Event) { e.pending = append(e.pending, ev) }

func (e *Engine) flush() {
	if e.sink != nil {
		for _, ev := range e.pending {
			e.sink.Publish(ev)
		}
	}
	e.pending = e.pending[:0]
}

// run executes one mutating entry point under the substrate discipline:
// serialized, snapshot on entry, rollback on failure, events on commit.
// The entered check runs before the mutex so a bridge callback on the
// calling goroutine fails fast instead of deadlocking.
func (e *Engine) run(fn func() error) error {
	if e.entered.Load() {
		return ErrReentrant
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.st.clone()
	e.pending = e.pending[:0]
	if err := fn(); err != nil {
		e.st = snap
		e.pending = e.pending[:0]
		return err
	}
	e.flush()
	return nil
}

// runGuarded is run with the re-entrancy flag held for the duration of the
// call. Entry points that invoke the bridge use it: a delivery can transfer
// control to arbitrary code, and any call back into the engine during that
// window must abort.
func (e *Engine) runGuarded(fn func() error) error {
	if e.entered.Load() {
		return ErrReentrant
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.entered.Store(true)
	defer e.entered.Store(false)

	snap := e.st.clone()
	e.pending = e.pending[:0]
	if err := fn(); err != nil {
		e.st = snap
		e.pending = e.pending[:0]
		return err
	}
	e.flush()
	return nil
}

// view executes a read-only entry point. Reads also honor the re-entrancy
// guard: mid-delivery state is transiently inconsistent and must not leak.
func (e *Engine) view(fn func()) error {
	if e.entered.Load() {
		return ErrReentrant
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
	return nil
}

func checkIdentity(addr common.Address) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrInvalidArgument)
	}
	return nil
}

// ----------------------------------------------------------------------
// Custody bridge → engine
// ----------------------------------------------------------------------

// NotifyAssetReceived credits from's asset balance after the custody bridge
// has taken delivery of an external transfer. Only the recognized bridge
// identity may call it.
func (e *Engine) NotifyAssetReceived(caller, from common.Address, amount int64) error {
	return e.run(func() error {
		if caller != e.bridgeAddr {
			return fmt.Errorf("%w: %s is not the custody bridge", ErrUnauthorized, caller.Hex())
		}
		if err := checkIdentity(from); err != nil {
			return err
		}
		if amount <= 0 {
			return fmt.Errorf("%w: amount %d", ErrInvalidArgument, amount)
		}
		e.st.credit(from, UnitAsset, amount)
		e.emit(DepositEvent{User: from, Unit: UnitAsset.String(), Amount: amount})
		e.log.Info("asset_deposit", zap.String("user", from.Hex()), zap.Int64("amount", amount))
		return nil
	})
}

// DepositValue credits the caller's value balance with the value attached to
// the call.
func (e *Engine) DepositValue(caller common.Address, amount int64) error {
	return e.run(func() error {
		if err := checkIdentity(caller); err != nil {
			return err
		}
		if amount <= 0 {
			return fmt.Errorf("%w: amount %d", ErrInvalidArgument, amount)
		}
		e.st.credit(caller, UnitValue, amount)
		e.emit(DepositEvent{User: caller, Unit: UnitValue.String(), Amount: amount})
		e.log.Info("value_deposit", zap.String("user", caller.Hex()), zap.Int64("amount", amount))
		return nil
	})
}

// ----------------------------------------------------------------------
// Placement
// ----------------------------------------------------------------------

// PlaceBuyFromBalance places a buy funded entirely by the caller's custodied
// value balance. The order matches against the ask book; any remainder rests.
// Returns lots filled and the resting order id (0 when fully filled).
func (e *Engine) PlaceBuyFromBalance(caller common.Address, price, lots int64) (filled int64, restedID uint64, err error) {
	err = e.run(func() error {
		var ferr error
		filled, restedID, ferr = e.placeFromBalance(caller, Buy, price, lots)
		return ferr
	})
	return filled, restedID, err
}

// PlaceSellFromBalance is the sell mirror of PlaceBuyFromBalance.
func (e *Engine) PlaceSellFromBalance(caller common.Address, price, lots int64) (filled int64, restedID uint64, err error) {
	err = e.run(func() error {
		var ferr error
		filled, restedID, ferr = e.placeFromBalance(caller, Sell, price, lots)
		return ferr
	})
	return filled, restedID, err
}

func (e *Engine) placeFromBalance(caller common.Address, side Side, price, lots int64) (int64, uint64, error) {
	if e.st.halted {
		return 0, 0, ErrTradingHalted
	}
	if err := checkIdentity(caller); err != nil {
		return 0, 0, err
	}
	if price <= 0 || lots <= 0 {
		return 0, 0, fmt.Errorf("%w: price %d, lots %d", ErrInvalidArgument, price, lots)
	}

	// Both gross dimensions are bounded up front; every amount the matching
	// loop later computes for this order stays under one of them.
	orderValue, err := notional(price, lots)
	if err != nil {
		return 0, 0, err
	}
	orderAsset, err := notional(lots, e.lotSize)
	if err != nil {
		return 0, 0, err
	}

	// Reservation check: everything the caller's resting orders already
	// reserve, plus this order's own reservation, must fit in the balance.
	// Recomputed by a fresh scan on every placement.
	lockedAsset, lockedValue := e.st.lockedBalances(caller, e.lotSize)
	acc := e.st.account(caller)
	if side == Buy {
		if lockedValue+orderValue > acc.Value {
			return 0, 0, fmt.Errorf("%w: reserved %d + order %d exceeds value balance %d",
				ErrInsufficientReservedBalance, lockedValue, orderValue, acc.Value)
		}
	} else {
		if lockedAsset+orderAsset > acc.Asset {
			return 0, 0, fmt.Errorf("%w: reserved %d + order %d exceeds asset balance %d",
				ErrInsufficientReservedBalance, lockedAsset, orderAsset, acc.Asset)
		}
	}

	res, err := e.matchOrder(caller, side, price, lots, true)
	if err != nil {
		return 0, 0, err
	}
	e.log.Info("order_accepted",
		zap.String("owner", caller.Hex()),
		zap.String("side", side.String()),
		zap.Int64("price", price),
		zap.Int64("lots", lots),
		zap.Int64("filled", res.filledLots),
		zap.Uint64("rested", res.restedID))
	return res.filledLots, res.restedID, nil
}

// PlaceBuyImmediate buys with value attached atomically to the call instead
// of custodied balance. No resting order is ever created: the caller gets a
// fill and a refund of unspent value, both delivered externally through the
// bridge exactly once, for the net result only.
//
// Internally the attached value is credited to a temporary balance, the
// match runs without resting, the taker's own legs are then moved back out
// of the ledger, and only then does the bridge deliver. Maker-side
// settlement stays put, including when a maker was the caller's own resting
// order. The whole call runs under the re-entrancy guard.
func (e *Engine) PlaceBuyImmediate(caller common.Address, price, maxLots, attachedValue int64) (filled, spentValue int64, err error) {
	err = e.runGuarded(func() error {
		if e.st.halted {
			return ErrTradingHalted
		}
		if err := checkIdentity(caller); err != nil {
			return err
		}
		if price <= 0 || maxLots <= 0 || attachedValue <= 0 {
			return fmt.Errorf("%w: price %d, lots %d, attached %d",
				ErrInvalidArgument, price, maxLots, attachedValue)
		}
		if _, err := notional(price, maxLots); err != nil {
			return err
		}
		if _, err := notional(maxLots, e.lotSize); err != nil {
			return err
		}

		acc := e.st.account(caller)
		e.st.credit(caller, UnitValue, attachedValue)

		res, ferr := e.matchOrder(caller, Buy, price, maxLots, false)
		if ferr != nil {
			return ferr
		}
		filled = res.filledLots
		spentValue = res.takerPaid

		refund := attachedValue - spentValue
		if refund < 0 {
			// The match dipped into custodied balance beyond the attached
			// value; an immediate order may only spend what it attached.
			return fmt.Errorf("%w: attached %d, spent %d", ErrTakerUnderfunded, attachedValue, spentValue)
		}

		// Move the taker legs back out of the ledger; they leave through
		// the bridge instead. Any maker-side settlement on this account,
		// from the caller's own resting orders, stays.
		acc.Asset -= res.takerGot
		acc.Value -= refund

		if res.takerGot > 0 {
			if derr := e.bridge.DeliverAsset(caller, res.takerGot); derr != nil {
				return fmt.Errorf("%w: asset to %s: %v", ErrExternalDelivery, caller.Hex(), derr)
			}
		}
		if refund > 0 {
			if derr := e.bridge.DeliverValue(caller, refund); derr != nil {
				return fmt.Errorf("%w: value refund to %s: %v", ErrExternalDelivery, caller.Hex(), derr)
			}
		}
		e.log.Info("immediate_buy",
			zap.String("taker", caller.Hex()),
			zap.Int64("price", price),
			zap.Int64("filled", filled),
			zap.Int64("spent", spentValue),
			zap.Int64("refund", refund))
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return filled, spentValue, nil
}

// ----------------------------------------------------------------------
// Cancellation and withdrawal
// ----------------------------------------------------------------------

// Cancel removes one of the caller's resting orders.
func (e *Engine) Cancel(caller common.Address, id uint64) error {
	return e.run(func() error {
		return e.cancelOrder(caller, id)
	})
}

// CancelAll removes every resting order of the caller, front to back in
// placement order. Atomic like everything else: all or none.
func (e *Engine) CancelAll(caller common.Address) error {
	return e.run(func() error {
		if err := checkIdentity(caller); err != nil {
			return err
		}
		e.cancelAllOrders(caller)
		return nil
	})
}

func (e *Engine) cancelOrder(caller common.Address, id uint64) error {
	if err := checkIdentity(caller); err != nil {
		return err
	}
	o, ok := e.st.order(id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	if o.Owner != caller {
		return fmt.Errorf("%w: order %d belongs to %s", ErrNotOwner, id, o.Owner.Hex())
	}
	ev := OrderCanceledEvent{ID: o.ID, Owner: o.Owner, Side: o.Side.String(), Price: o.Price, Lots: o.Lots}
	e.st.detach(o)
	e.emit(ev)
	e.log.Info("order_canceled", zap.Uint64("id", id), zap.String("owner", caller.Hex()))
	return nil
}

func (e *Engine) cancelAllOrders(owner common.Address) {
	for _, id := range e.st.userOrderIDs(owner) {
		o, ok := e.st.order(id)
		if !ok {
			continue
		}
		ev := OrderCanceledEvent{ID: o.ID, Owner: o.Owner, Side: o.Side.String(), Price: o.Price, Lots: o.Lots}
		e.st.detach(o)
		e.emit(ev)
	}
}

// WithdrawAll cancels all of the caller's orders, zeroes both balances, and
// delivers them externally through the bridge. Runs under the re-entrancy
// guard; a failed delivery rolls everything back, orders included.
func (e *Engine) WithdrawAll(caller common.Address) error {
	return e.runGuarded(func() error {
		if err := checkIdentity(caller); err != nil {
			return err
		}
		e.cancelAllOrders(caller)

		acc := e.st.account(caller)
		asset, value := acc.Asset, acc.Value
		acc.Asset, acc.Value = 0, 0

		if asset > 0 {
			if err := e.bridge.DeliverAsset(caller, asset); err != nil {
				return fmt.Errorf("%w: asset to %s: %v", ErrExternalDelivery, caller.Hex(), err)
			}
		}
		if value > 0 {
			if err := e.bridge.DeliverValue(caller, value); err != nil {
				return fmt.Errorf("%w: value to %s: %v", ErrExternalDelivery, caller.Hex(), err)
			}
		}
		e.emit(WithdrawalEvent{User: caller, Asset: asset, Value: value})
		e.log.Info("withdraw_all",
			zap.String("user", caller.Hex()),
			zap.Int64("asset", asset),
			zap.Int64("value", value))
		return nil
	})
}

// ----------------------------------------------------------------------
// Admin
// ----------------------------------------------------------------------

// TransferAdmin hands administrative control to a new identity.
func (e *Engine) TransferAdmin(caller, next common.Address) error {
	return e.run(func() error {
		if caller != e.st.admin {
			return fmt.Errorf("%w: %s is not admin", ErrUnauthorized, caller.Hex())
		}
		if err := checkIdentity(next); err != nil {
			return err
		}
		prev := e.st.admin
		e.st.admin = next
		e.emit(AdminChangedEvent{Previous: prev, Next: next})
		e.log.Info("admin_changed", zap.String("previous", prev.Hex()), zap.String("next", next.Hex()))
		return nil
	})
}

// SetHalted toggles the emergency flag. While set, new-order placement is
// rejected; cancellation and withdrawal remain available.
func (e *Engine) SetHalted(caller common.Address, halted bool) error {
	return e.run(func() error {
		if caller != e.st.admin {
			return fmt.Errorf("%w: %s is not admin", ErrUnauthorized, caller.Hex())
		}
		e.st.halted = halted
		e.emit(HaltChangedEvent{Halted: halted})
		e.log.Info("halt_changed", zap.Bool("halted", halted))
		return nil
	})
}

// WithdrawFees delivers the accumulated fee counters to recipient through
// the bridge and zeroes them. Admin only; re-entrancy guarded.
func (e *Engine) WithdrawFees(caller, recipient common.Address) error {
	return e.runGuarded(func() error {
		if caller != e.st.admin {
			return fmt.Errorf("%w: %s is not admin", ErrUnauthorized, caller.Hex())
		}
		if err := checkIdentity(recipient); err != nil {
			return err
		}
		asset, value := e.st.feeAsset, e.st.feeValue
		e.st.feeAsset, e.st.feeValue = 0, 0

		if asset > 0 {
			if err := e.bridge.DeliverAsset(recipient, asset); err != nil {
				return fmt.Errorf("%w: fee asset to %s: %v", ErrExternalDelivery, recipient.Hex(), err)
			}
		}
		if value > 0 {
			if err := e.bridge.DeliverValue(recipient, value); err != nil {
				return fmt.Errorf("%w: fee value to %s: %v", ErrExternalDelivery, recipient.Hex(), err)
			}
		}
		e.emit(FeesWithdrawnEvent{Recipient: recipient, Asset: asset, Value: value})
		e.log.Info("fees_withdrawn",
			zap.String("recipient", recipient.Hex()),
			zap.Int64("asset", asset),
			zap.Int64("value", value))
		return nil
	})
}

// ----------------------------------------------------------------------
// Reads
// ----------------------------------------------------------------------

// Balances returns a user's custodied balances.
func (e *Engine) Balances(user common.Address) (Account, error) {
	var out Account
	err := e.view(func() {
		if acc, ok := e.st.accounts[user]; ok {
			out = *acc
		}
	})
	return out, err
}

// Locked returns the funds reserved by the user's resting orders.
func (e *Engine) Locked(user common.Address) (lockedAsset, lockedValue int64, err error) {
	err = e.view(func() {
		lockedAsset, lockedValue = e.st.lockedBalances(user, e.lotSize)
	})
	return lockedAsset, lockedValue, err
}

// Order returns a copy of a live order.
func (e *Engine) Order(id uint64) (Order, error) {
	var out Order
	var ok bool
	if err := e.view(func() {
		var o *Order
		o, ok = e.st.order(id)
		if ok {
			out = *o
		}
	}); err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	return out, nil
}

// UserOrders returns the user's live order ids in placement order.
func (e *Engine) UserOrders(user common.Address) ([]uint64, error) {
	var out []uint64
	err := e.view(func() {
		out = e.st.userOrderIDs(user)
	})
	return out, err
}

// Book returns both sides of the order book in priority order.
func (e *Engine) Book() (BookSnapshot, error) {
	var out BookSnapshot
	err := e.view(func() {
		out.Bids = e.st.sideEntries(Buy)
		out.Asks = e.st.sideEntries(Sell)
	})
	return out, err
}

// EngineStatus returns the administrative state.
func (e *Engine) EngineStatus() (Status, error) {
	var out Status
	err := e.view(func() {
		out = Status{
			Admin:    e.st.admin,
			Halted:   e.st.halted,
			FeeAsset: e.st.feeAsset,
			FeeValue: e.st.feeValue,
			Orders:   len(e.st.orders),
			Accounts: len(e.st.accounts),
		}
	})
	return out, err
}
