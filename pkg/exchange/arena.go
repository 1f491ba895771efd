package exchange

import "fmt"

// The order record store: an arena keyed by order id. Ids come from a
// monotonically increasing counter and are never reused, even after removal,
// so a stale id can never alias a later order.

// allocOrder assigns the next id and inserts the record into the arena.
func (s *state) allocOrder(o *Order) uint64 {
	o.ID = s.nextID
	s.nextID++
	s.orders[o.ID] = o
	return o.ID
}

// order looks up a live order by id.
func (s *state) order(id uint64) (*Order, bool) {
	o, ok := s.orders[id]
	return o, ok
}

// freeOrder reclaims an order's arena slot. All four link fields are cleared
// first so a dangling reference can never be mistaken for a linked order.
func (s *state) freeOrder(id uint64) error {
	o, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	o.SidePrev, o.SideNext = 0, 0
	o.UserPrev, o.UserNext = 0, 0
	delete(s.orders, id)
	return nil
}

// detach unlinks an order from its side book and its owner's index and frees
// its arena slot. The order must be live.
func (s *state) detach(o *Order) {
	s.bookRemove(o)
	s.userUnlink(o)
	// freeOrder cannot miss here: o came out of the arena.
	_ = s.freeOrder(o.ID)
}
