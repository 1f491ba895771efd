package exchange

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Matching and settlement. An incoming order walks the opposing side book
// from its head, trading at each maker's price until the book no longer
// crosses or the order is exhausted. Settlement is exact integer arithmetic;
// the fee is floor(gross × feeBps / 10000), always denominated in the asset
// the taker receives, and accumulates in the matching fee counter.

// crosses reports whether a maker at makerPrice trades with a taker order
// limited at limit.
func crosses(takerSide Side, makerPrice, limit int64) bool {
	if takerSide == Buy {
		return makerPrice <= limit
	}
	return makerPrice >= limit
}

func (e *Engine) fee(gross int64) int64 {
	return gross * e.feeBps / 10000
}

// maxNotional caps any single order's gross asset and gross value so that
// settlement and fee arithmetic stay inside int64.
const maxNotional = math.MaxInt64 / 10000

// notional multiplies two positive order dimensions, rejecting products past
// maxNotional. Every gross amount computed during matching is bounded by a
// product validated here at placement.
func notional(a, b int64) (int64, error) {
	if a > maxNotional/b {
		return 0, fmt.Errorf("%w: notional %d x %d too large", ErrInvalidArgument, a, b)
	}
	return a * b, nil
}

// matchResult summarizes one matching run. takerPaid and takerGot are the
// taker's own gross outflow and net (fee-deducted) inflow; they stay correct
// when some makers are the taker itself, unlike balance deltas.
type matchResult struct {
	filledLots int64
	restedID   uint64
	takerPaid  int64
	takerGot   int64
}

// matchOrder runs the matching loop for an incoming order. When rest is true
// the unmatched remainder is linked into the book and the owner's index as a
// new resting order; when false the remainder is simply dropped.
//
// An underfunded taker aborts the whole call; the entry point's snapshot
// rolls back any fills already applied.
func (e *Engine) matchOrder(taker common.Address, side Side, limitPrice, lots int64, rest bool) (matchResult, error) {
	var res matchResult
	remaining := lots

	for remaining > 0 {
		maker := e.st.best(side.Opposite())
		if maker == nil || !crosses(side, maker.Price, limitPrice) {
			break
		}

		tradeLots := remaining
		if maker.Lots < tradeLots {
			tradeLots = maker.Lots
		}
		grossAsset := tradeLots * e.lotSize
		grossValue := tradeLots * maker.Price

		takerAcc := e.st.account(taker)
		makerAcc := e.st.account(maker.Owner)

		var feeAsset, feeValue int64
		if side == Buy {
			// Taker pays value, receives asset net of the asset-side fee.
			if takerAcc.Value < grossValue {
				return res, fmt.Errorf("%w: need %d value, have %d",
					ErrTakerUnderfunded, grossValue, takerAcc.Value)
			}
			if makerAcc.Asset < grossAsset {
				// Unreachable while the reservation invariant holds.
				return res, fmt.Errorf("%w: order %d needs %d asset, owner has %d",
					ErrMakerUnderfunded, maker.ID, grossAsset, makerAcc.Asset)
			}
			feeAsset = e.fee(grossAsset)
			makerAcc.Asset -= grossAsset
			makerAcc.Value += grossValue
			takerAcc.Value -= grossValue
			takerAcc.Asset += grossAsset - feeAsset
			e.st.feeAsset += feeAsset
			res.takerPaid += grossValue
			res.takerGot += grossAsset - feeAsset
		} else {
			// Taker pays asset, receives value net of the value-side fee.
			if takerAcc.Asset < grossAsset {
				return res, fmt.Errorf("%w: need %d asset, have %d",
					ErrTakerUnderfunded, grossAsset, takerAcc.Asset)
			}
			if makerAcc.Value < grossValue {
				return res, fmt.Errorf("%w: order %d needs %d value, owner has %d",
					ErrMakerUnderfunded, maker.ID, grossValue, makerAcc.Value)
			}
			feeValue = e.fee(grossValue)
			makerAcc.Value -= grossValue
			makerAcc.Asset += grossAsset
			takerAcc.Asset -= grossAsset
			takerAcc.Value += grossValue - feeValue
			e.st.feeValue += feeValue
			res.takerPaid += grossAsset
			res.takerGot += grossValue - feeValue
		}

		maker.Lots -= tradeLots
		remaining -= tradeLots

		e.emit(TradeEvent{
			MakerOrderID: maker.ID,
			Maker:        maker.Owner,
			Taker:        taker,
			MakerSide:    maker.Side.String(),
			Price:        maker.Price,
			Lots:         tradeLots,
			GrossAsset:   grossAsset,
			GrossValue:   grossValue,
			FeeAsset:     feeAsset,
			FeeValue:     feeValue,
		})
		e.log.Debug("trade",
			zap.Uint64("maker_order", maker.ID),
			zap.String("maker", maker.Owner.Hex()),
			zap.String("taker", taker.Hex()),
			zap.Int64("price", maker.Price),
			zap.Int64("lots", tradeLots))

		if maker.Lots == 0 {
			e.st.detach(maker)
		}
	}

	if rest && remaining > 0 {
		o := &Order{Owner: taker, Side: side, Price: limitPrice, Lots: remaining}
		res.restedID = e.st.allocOrder(o)
		e.st.bookInsert(o)
		e.st.userLink(o)
		e.emit(OrderPlacedEvent{
			ID:    o.ID,
			Owner: o.Owner,
			Side:  o.Side.String(),
			Price: o.Price,
			Lots:  o.Lots,
		})
	}

	res.filledLots = lots - remaining
	return res, nil
}
