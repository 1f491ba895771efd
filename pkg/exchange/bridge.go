package exchange

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Bridge is the external asset-custody collaborator. The engine calls it for
// outbound deliveries only; inbound credits arrive through
// NotifyAssetReceived and DepositValue. A delivery must either succeed or
// return an error, in which case the whole engine call aborts and rolls back.
//
// Bridge implementations can run arbitrary code; any callback into the
// engine during a delivery is treated as hostile and fails with
// ErrReentrant.
type Bridge interface {
	DeliverAsset(to common.Address, amount int64) error
	DeliverValue(to common.Address, amount int64) error
}

// Delivery is one outbound transfer recorded by RecorderBridge.
type Delivery struct {
	To     common.Address
	Unit   Unit
	Amount int64
}

// RecorderBridge is a Bridge for devnets and tests: it records every
// delivery and never fails. Production deployments supply a real bridge.
type RecorderBridge struct {
	log        *zap.Logger
	Deliveries []Delivery
}

// NewRecorderBridge returns a recording bridge. log may be nil.
func NewRecorderBridge(log *zap.Logger) *RecorderBridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecorderBridge{log: log}
}

func (b *RecorderBridge) DeliverAsset(to common.Address, amount int64) error {
	b.Deliveries = append(b.Deliveries, Delivery{To: to, Unit: UnitAsset, Amount: amount})
	b.log.Info("bridge_deliver_asset", zap.String("to", to.Hex()), zap.Int64("amount", amount))
	return nil
}

func (b *RecorderBridge) DeliverValue(to common.Address, amount int64) error {
	b.Deliveries = append(b.Deliveries, Delivery{To: to, Unit: UnitValue, Amount: amount})
	b.log.Info("bridge_deliver_value", zap.String("to", to.Hex()), zap.Int64("amount", amount))
	return nil
}
