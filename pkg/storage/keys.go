package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema, one row per entity plus two meta rows:
//
//   acc:<address> → AccountRow
//   ord:<id>      → Order
//   usr:<address> → UserListRow
//   meta:state    → scalar state (book ends, id counter, fees, admin, halt)
//   meta:checksum → hex sha3-256 of the canonical snapshot encoding

// Key prefixes
const (
	prefixAccount = "acc:"
	prefixOrder   = "ord:"
	prefixUser    = "usr:"

	keyMeta     = "meta:state"
	keyChecksum = "meta:checksum"
)

// accountKey returns the key for an account row
// Format: "acc:{address}"
func accountKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixAccount, addr.Hex()))
}

// orderKey returns the key for an order row
// Format: "ord:{id}", id zero-padded (20 digits) for lexicographic sorting
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

// userKey returns the key for a user order-list row
// Format: "usr:{address}"
func userKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixUser, addr.Hex()))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
