package exchange

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// The account ledger: pure balance mutations with no other side effects.
// Debits fail rather than drive a balance negative; the entry point's
// snapshot discipline takes care of unwinding anything already applied.

func (s *state) credit(addr common.Address, unit Unit, amount int64) {
	acc := s.account(addr)
	switch unit {
	case UnitAsset:
		acc.Asset += amount
	case UnitValue:
		acc.Value += amount
	}
}

func (s *state) debit(addr common.Address, unit Unit, amount int64) error {
	acc := s.account(addr)
	switch unit {
	case UnitAsset:
		if acc.Asset < amount {
			return fmt.Errorf("%w: %s asset balance %d, need %d",
				ErrInsufficientBalance, addr.Hex(), acc.Asset, amount)
		}
		acc.Asset -= amount
	case UnitValue:
		if acc.Value < amount {
			return fmt.Errorf("%w: %s value balance %d, need %d",
				ErrInsufficientBalance, addr.Hex(), acc.Value, amount)
		}
		acc.Value -= amount
	}
	return nil
}
