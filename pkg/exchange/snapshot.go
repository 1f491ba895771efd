package exchange

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// State export/restore for persistence. The snapshot is the persisted state
// layout: the account table, the order table with its four link fields, the
// book head/tail scalars, the per-user head/tail scalars, the id counter,
// the fee counters, the admin identity, and the halt flag. Rows are sorted
// deterministically so snapshots of equal state are byte-equal once encoded.

type AccountRow struct {
	Owner common.Address `json:"owner"`
	Asset int64          `json:"asset"`
	Value int64          `json:"value"`
}

type UserListRow struct {
	Owner common.Address `json:"owner"`
	Head  uint64         `json:"head"`
	Tail  uint64         `json:"tail"`
}

type StateSnapshot struct {
	Accounts []AccountRow  `json:"accounts"`
	Orders   []Order       `json:"orders"`
	Bids     ListEnds      `json:"bids"`
	Asks     ListEnds      `json:"asks"`
	Users    []UserListRow `json:"users"`
	NextID   uint64        `json:"nextId"`
	FeeAsset int64         `json:"feeAsset"`
	FeeValue int64         `json:"feeValue"`
	Admin    common.Address `json:"admin"`
	Halted   bool           `json:"halted"`
}

// ExportState returns a deep, deterministic copy of the engine state.
func (e *Engine) ExportState() (*StateSnapshot, error) {
	var snap *StateSnapshot
	err := e.view(func() {
		snap = &StateSnapshot{
			Bids:     e.st.bids,
			Asks:     e.st.asks,
			NextID:   e.st.nextID,
			FeeAsset: e.st.feeAsset,
			FeeValue: e.st.feeValue,
			Admin:    e.st.admin,
			Halted:   e.st.halted,
		}
		for addr, acc := range e.st.accounts {
			snap.Accounts = append(snap.Accounts, AccountRow{Owner: addr, Asset: acc.Asset, Value: acc.Value})
		}
		for _, o := range e.st.orders {
			snap.Orders = append(snap.Orders, *o)
		}
		for addr, ends := range e.st.users {
			snap.Users = append(snap.Users, UserListRow{Owner: addr, Head: ends.Head, Tail: ends.Tail})
		}
		sort.Slice(snap.Accounts, func(i, j int) bool {
			return bytes.Compare(snap.Accounts[i].Owner[:], snap.Accounts[j].Owner[:]) < 0
		})
		sort.Slice(snap.Orders, func(i, j int) bool { return snap.Orders[i].ID < snap.Orders[j].ID })
		sort.Slice(snap.Users, func(i, j int) bool {
			return bytes.Compare(snap.Users[i].Owner[:], snap.Users[j].Owner[:]) < 0
		})
	})
	return snap, err
}

// RestoreState replaces the engine state wholesale. Wire-up only, before the
// engine starts taking calls.
func (e *Engine) RestoreState(snap *StateSnapshot) error {
	if e.entered.Load() {
		return ErrReentrant
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	st := newState(snap.Admin)
	st.bids = snap.Bids
	st.asks = snap.Asks
	st.nextID = snap.NextID
	st.feeAsset = snap.FeeAsset
	st.feeValue = snap.FeeValue
	st.halted = snap.Halted
	for _, row := range snap.Accounts {
		st.accounts[row.Owner] = &Account{Asset: row.Asset, Value: row.Value}
	}
	var maxID uint64
	for _, o := range snap.Orders {
		cp := o
		st.orders[o.ID] = &cp
		if o.ID > maxID {
			maxID = o.ID
		}
	}
	for _, row := range snap.Users {
		st.users[row.Owner] = &ListEnds{Head: row.Head, Tail: row.Tail}
	}
	if st.nextID == 0 {
		st.nextID = 1
	}
	if st.nextID <= maxID {
		return fmt.Errorf("%w: next id %d not past max order id %d", ErrInvalidArgument, st.nextID, maxID)
	}
	e.st = st
	return nil
}
