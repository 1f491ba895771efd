package exchange

// Side books: one sorted doubly-linked list of order ids per side. Bids are
// non-increasing in price from head to tail, asks non-decreasing; orders at
// an equal price keep placement order, earliest nearest the head. Insertion
// scans linearly from the head, which is fine for the book depths this
// engine targets; no balancing structure is kept.

func (s *state) sideEnds(side Side) *ListEnds {
	if side == Buy {
		return &s.bids
	}
	return &s.asks
}

// better reports whether price a is strictly better than b on this side.
func better(side Side, a, b int64) bool {
	if side == Buy {
		return a > b
	}
	return a < b
}

// atLeastAsGood reports whether price a is equal to or better than b.
func atLeastAsGood(side Side, a, b int64) bool {
	if side == Buy {
		return a >= b
	}
	return a <= b
}

// bookInsert links o into its side book at the position price-time priority
// dictates: after every resting order with an equal or better price.
func (s *state) bookInsert(o *Order) {
	ends := s.sideEnds(o.Side)

	if ends.Head == 0 {
		ends.Head, ends.Tail = o.ID, o.ID
		return
	}

	head := s.orders[ends.Head]
	if better(o.Side, o.Price, head.Price) {
		o.SideNext = head.ID
		head.SidePrev = o.ID
		ends.Head = o.ID
		return
	}

	// Skip every order at least as good as ours; insert after the last one.
	cur := head
	for cur.SideNext != 0 {
		next := s.orders[cur.SideNext]
		if !atLeastAsGood(o.Side, next.Price, o.Price) {
			break
		}
		cur = next
	}

	o.SidePrev = cur.ID
	o.SideNext = cur.SideNext
	if cur.SideNext != 0 {
		s.orders[cur.SideNext].SidePrev = o.ID
	} else {
		ends.Tail = o.ID
	}
	cur.SideNext = o.ID
}

// bookRemove detaches o from its side book, repairing head/tail when o was
// an endpoint, and clears its side links.
func (s *state) bookRemove(o *Order) {
	ends := s.sideEnds(o.Side)

	if o.SidePrev != 0 {
		s.orders[o.SidePrev].SideNext = o.SideNext
	} else {
		ends.Head = o.SideNext
	}
	if o.SideNext != 0 {
		s.orders[o.SideNext].SidePrev = o.SidePrev
	} else {
		ends.Tail = o.SidePrev
	}
	o.SidePrev, o.SideNext = 0, 0
}

// best returns the head of a side book: best price, earliest at that price.
func (s *state) best(side Side) *Order {
	ends := s.sideEnds(side)
	if ends.Head == 0 {
		return nil
	}
	return s.orders[ends.Head]
}

// sideEntries walks a side book front-to-back.
func (s *state) sideEntries(side Side) []BookEntry {
	var out []BookEntry
	for id := s.sideEnds(side).Head; id != 0; {
		o := s.orders[id]
		out = append(out, BookEntry{ID: o.ID, Price: o.Price, Lots: o.Lots})
		id = o.SideNext
	}
	return out
}
