package exchange

import "github.com/ethereum/go-ethereum/common"

// state is the whole mutable world of the engine: ledger, order arena, the
// two side books, the per-user indexes, and the administrative scalars.
// Entry points clone it on entry and restore the clone on any failure, so a
// call either fully commits or has no effect.
type state struct {
	accounts map[common.Address]*Account
	orders   map[uint64]*Order

	bids ListEnds
	asks ListEnds

	users map[common.Address]*ListEnds

	nextID   uint64 // next order id, strictly increasing, never reused
	feeAsset int64
	feeValue int64

	admin  common.Address
	halted bool
}

func newState(admin common.Address) *state {
	return &state{
		accounts: make(map[common.Address]*Account),
		orders:   make(map[uint64]*Order),
		users:    make(map[common.Address]*ListEnds),
		nextID:   1,
		admin:    admin,
	}
}

// clone deep-copies the state. Order and account structs hold no references,
// so copying the struct values is a full snapshot.
func (s *state) clone() *state {
	c := &state{
		accounts: make(map[common.Address]*Account, len(s.accounts)),
		orders:   make(map[uint64]*Order, len(s.orders)),
		users:    make(map[common.Address]*ListEnds, len(s.users)),
		bids:     s.bids,
		asks:     s.asks,
		nextID:   s.nextID,
		feeAsset: s.feeAsset,
		feeValue: s.feeValue,
		admin:    s.admin,
		halted:   s.halted,
	}
	for addr, acc := range s.accounts {
		cp := *acc
		c.accounts[addr] = &cp
	}
	for id, o := range s.orders {
		cp := *o
		c.orders[id] = &cp
	}
	for addr, ends := range s.users {
		cp := *ends
		c.users[addr] = &cp
	}
	return c
}

// account returns the user's account, creating it on first touch.
func (s *state) account(addr common.Address) *Account {
	acc, ok := s.accounts[addr]
	if !ok {
		acc = &Account{}
		s.accounts[addr] = acc
	}
	return acc
}
