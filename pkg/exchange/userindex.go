package exchange

import "github.com/ethereum/go-ethereum/common"

// Per-user order index: an append-at-tail doubly-linked list over the same
// arena, used for enumeration and the locked-balance scan.

func (s *state) userEnds(owner common.Address) *ListEnds {
	ends, ok := s.users[owner]
	if !ok {
		ends = &ListEnds{}
		s.users[owner] = ends
	}
	return ends
}

// userLink appends o at the tail of its owner's index.
func (s *state) userLink(o *Order) {
	ends := s.userEnds(o.Owner)
	if ends.Tail == 0 {
		ends.Head, ends.Tail = o.ID, o.ID
		return
	}
	tail := s.orders[ends.Tail]
	tail.UserNext = o.ID
	o.UserPrev = tail.ID
	ends.Tail = o.ID
}

// userUnlink detaches o from its owner's index and clears its user links.
func (s *state) userUnlink(o *Order) {
	ends := s.userEnds(o.Owner)

	if o.UserPrev != 0 {
		s.orders[o.UserPrev].UserNext = o.UserNext
	} else {
		ends.Head = o.UserNext
	}
	if o.UserNext != 0 {
		s.orders[o.UserNext].UserPrev = o.UserPrev
	} else {
		ends.Tail = o.UserPrev
	}
	o.UserPrev, o.UserNext = 0, 0
}

// userOrderIDs returns the user's live order ids in placement order.
func (s *state) userOrderIDs(owner common.Address) []uint64 {
	var out []uint64
	ends, ok := s.users[owner]
	if !ok {
		return out
	}
	for id := ends.Head; id != 0; id = s.orders[id].UserNext {
		out = append(out, id)
	}
	return out
}

// lockedBalances scans the user's resting orders and totals the funds they
// reserve: asset units for sells, value units for buys. Recomputed fresh at
// every placement; never stored.
func (s *state) lockedBalances(owner common.Address, lotSize int64) (lockedAsset, lockedValue int64) {
	ends, ok := s.users[owner]
	if !ok {
		return 0, 0
	}
	for id := ends.Head; id != 0; {
		o := s.orders[id]
		if o.Side == Sell {
			lockedAsset += o.Lots * lotSize
		} else {
			lockedValue += o.Lots * o.Price
		}
		id = o.UserNext
	}
	return lockedAsset, lockedValue
}
