// Package storage persists the exchange state to Pebble: the account table,
// the order table (link fields included), the per-user list scalars, and one
// meta row with the book head/tail pointers, counters, admin identity, and
// halt flag. Every save is one atomic batch that replaces the previous
// snapshot and records its sha3 checksum, verified on load.
package storage

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/lotdex/lotdex/pkg/exchange"
)

// metaRow carries the scalar part of the snapshot.
type metaRow struct {
	Bids     exchange.ListEnds `json:"bids"`
	Asks     exchange.ListEnds `json:"asks"`
	NextID   uint64            `json:"nextId"`
	FeeAsset int64             `json:"feeAsset"`
	FeeValue int64             `json:"feeValue"`
	Admin    common.Address    `json:"admin"`
	Halted   bool              `json:"halted"`
}

// Store is a Pebble-backed snapshot store for the exchange state.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20),
		MemTableSize:          32 << 20,
		L0CompactionThreshold: 2,
		MaxOpenFiles:          1000,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveState atomically replaces the persisted snapshot.
func (s *Store) SaveState(snap *exchange.StateSnapshot) error {
	sum, err := checksum(snap)
	if err != nil {
		return fmt.Errorf("checksum snapshot: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	// Drop stale rows first; the snapshot is authoritative.
	for _, prefix := range []string{prefixAccount, prefixOrder, prefixUser} {
		if err := batch.DeleteRange([]byte(prefix), keyUpperBound([]byte(prefix)), nil); err != nil {
			return fmt.Errorf("clear %q rows: %w", prefix, err)
		}
	}

	for _, row := range snap.Accounts {
		data, err := encodeJSON(row)
		if err != nil {
			return fmt.Errorf("encode account row: %w", err)
		}
		if err := batch.Set(accountKey(row.Owner), data, nil); err != nil {
			return err
		}
	}
	for _, o := range snap.Orders {
		data, err := encodeJSON(o)
		if err != nil {
			return fmt.Errorf("encode order row: %w", err)
		}
		if err := batch.Set(orderKey(o.ID), data, nil); err != nil {
			return err
		}
	}
	for _, row := range snap.Users {
		data, err := encodeJSON(row)
		if err != nil {
			return fmt.Errorf("encode user row: %w", err)
		}
		if err := batch.Set(userKey(row.Owner), data, nil); err != nil {
			return err
		}
	}

	meta := metaRow{
		Bids:     snap.Bids,
		Asks:     snap.Asks,
		NextID:   snap.NextID,
		FeeAsset: snap.FeeAsset,
		FeeValue: snap.FeeValue,
		Admin:    snap.Admin,
		Halted:   snap.Halted,
	}
	metaData, err := encodeJSON(meta)
	if err != nil {
		return fmt.Errorf("encode meta row: %w", err)
	}
	if err := batch.Set([]byte(keyMeta), metaData, nil); err != nil {
		return err
	}
	if err := batch.Set([]byte(keyChecksum), []byte(sum), nil); err != nil {
		return err
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadState reads the persisted snapshot. ok is false when the store holds
// no snapshot yet. A checksum mismatch is an error, never a silent restore.
func (s *Store) LoadState() (snap *exchange.StateSnapshot, ok bool, err error) {
	metaData, closer, err := s.db.Get([]byte(keyMeta))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get meta row: %w", err)
	}
	var meta metaRow
	uerr := decodeJSON(metaData, &meta)
	closer.Close()
	if uerr != nil {
		return nil, false, fmt.Errorf("decode meta row: %w", uerr)
	}

	snap = &exchange.StateSnapshot{
		Bids:     meta.Bids,
		Asks:     meta.Asks,
		NextID:   meta.NextID,
		FeeAsset: meta.FeeAsset,
		FeeValue: meta.FeeValue,
		Admin:    meta.Admin,
		Halted:   meta.Halted,
	}

	if err := s.scan(prefixAccount, func(data []byte) error {
		var row exchange.AccountRow
		if err := decodeJSON(data, &row); err != nil {
			return err
		}
		snap.Accounts = append(snap.Accounts, row)
		return nil
	}); err != nil {
		return nil, false, fmt.Errorf("scan accounts: %w", err)
	}
	if err := s.scan(prefixOrder, func(data []byte) error {
		var o exchange.Order
		if err := decodeJSON(data, &o); err != nil {
			return err
		}
		snap.Orders = append(snap.Orders, o)
		return nil
	}); err != nil {
		return nil, false, fmt.Errorf("scan orders: %w", err)
	}
	if err := s.scan(prefixUser, func(data []byte) error {
		var row exchange.UserListRow
		if err := decodeJSON(data, &row); err != nil {
			return err
		}
		snap.Users = append(snap.Users, row)
		return nil
	}); err != nil {
		return nil, false, fmt.Errorf("scan users: %w", err)
	}

	// Hex keys don't sort identically to raw address bytes; restore the
	// snapshot's canonical row order before verifying.
	sort.Slice(snap.Accounts, func(i, j int) bool {
		return bytes.Compare(snap.Accounts[i].Owner[:], snap.Accounts[j].Owner[:]) < 0
	})
	sort.Slice(snap.Orders, func(i, j int) bool { return snap.Orders[i].ID < snap.Orders[j].ID })
	sort.Slice(snap.Users, func(i, j int) bool {
		return bytes.Compare(snap.Users[i].Owner[:], snap.Users[j].Owner[:]) < 0
	})

	stored, closer, err := s.db.Get([]byte(keyChecksum))
	if err != nil {
		return nil, false, fmt.Errorf("get checksum: %w", err)
	}
	want := string(stored)
	closer.Close()

	got, err := checksum(snap)
	if err != nil {
		return nil, false, err
	}
	if got != want {
		return nil, false, fmt.Errorf("snapshot checksum mismatch: stored %s, computed %s", want, got)
	}
	return snap, true, nil
}

func (s *Store) scan(prefix string, fn func(data []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: keyUpperBound([]byte(prefix)),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}
