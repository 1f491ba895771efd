package storage_test

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/lotdex/lotdex/pkg/exchange"
	"github.com/lotdex/lotdex/pkg/storage"
)

var (
	adminAddr  = common.HexToAddress("0x000000000000000000000000000000000000a001")
	bridgeAddr = common.HexToAddress("0x000000000000000000000000000000000000b001")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob        = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func newEngine(t *testing.T) *exchange.Engine {
	t.Helper()
	e, err := exchange.New(exchange.NewRecorderBridge(nil), exchange.Config{
		LotSize: 1000,
		FeeBps:  25,
		Admin:   adminAddr,
		Bridge:  bridgeAddr,
		Logger:  zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	st, err := storage.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestLoadEmptyStore(t *testing.T) {
	st := openStore(t)
	snap, ok, err := st.LoadState()
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if ok || snap != nil {
		t.Fatalf("got ok=%v snap=%v, want nothing", ok, snap)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	e := newEngine(t)

	// Build some non-trivial state: balances, resting orders on both sides,
	// a trade so fee counters are non-zero.
	if err := e.NotifyAssetReceived(bridgeAddr, alice, 5000); err != nil {
		t.Fatalf("deposit asset: %v", err)
	}
	if err := e.DepositValue(bob, 10_000); err != nil {
		t.Fatalf("deposit value: %v", err)
	}
	if _, _, err := e.PlaceSellFromBalance(alice, 400, 2); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, _, err := e.PlaceSellFromBalance(alice, 600, 1); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, _, err := e.PlaceBuyFromBalance(bob, 450, 3); err != nil {
		t.Fatalf("buy: %v", err)
	}

	snap, err := e.ExportState()
	if err != nil {
		t.Fatalf("ExportState: %v", err)
	}

	st := openStore(t)
	if err := st.SaveState(snap); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	loaded, ok, err := st.LoadState()
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if !ok {
		t.Fatal("LoadState found nothing after save")
	}
	if !reflect.DeepEqual(snap, loaded) {
		t.Fatalf("round trip mismatch:\nsaved  %+v\nloaded %+v", snap, loaded)
	}

	// A fresh engine restored from the loaded snapshot answers queries
	// identically to the original.
	e2 := newEngine(t)
	if err := e2.RestoreState(loaded); err != nil {
		t.Fatalf("RestoreState: %v", err)
	}

	wantBook, err := e.Book()
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	gotBook, err := e2.Book()
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if !reflect.DeepEqual(wantBook, gotBook) {
		t.Fatalf("book mismatch: want %+v got %+v", wantBook, gotBook)
	}
	for _, u := range []common.Address{alice, bob} {
		want, err := e.Balances(u)
		if err != nil {
			t.Fatalf("Balances: %v", err)
		}
		got, err := e2.Balances(u)
		if err != nil {
			t.Fatalf("Balances: %v", err)
		}
		if want != got {
			t.Fatalf("balances(%s): want %+v got %+v", u.Hex(), want, got)
		}
	}
	wantStatus, _ := e.EngineStatus()
	gotStatus, _ := e2.EngineStatus()
	if wantStatus != gotStatus {
		t.Fatalf("status mismatch: want %+v got %+v", wantStatus, gotStatus)
	}

	// New orders on the restored engine continue the id sequence instead of
	// reusing ids from the snapshot.
	if err := e2.NotifyAssetReceived(bridgeAddr, alice, 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	_, id, err := e2.PlaceSellFromBalance(alice, 700, 1)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if id != snap.NextID {
		t.Fatalf("next order id = %d, want %d", id, snap.NextID)
	}
}

func TestSaveOverwritesPreviousState(t *testing.T) {
	e := newEngine(t)
	st := openStore(t)

	if err := e.NotifyAssetReceived(bridgeAddr, alice, 3000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	_, id, err := e.PlaceSellFromBalance(alice, 500, 1)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	snap1, err := e.ExportState()
	if err != nil {
		t.Fatalf("ExportState: %v", err)
	}
	if err := st.SaveState(snap1); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	// Cancel the order and save again; the stale order row must not survive
	// the second save.
	if err := e.Cancel(alice, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	snap2, err := e.ExportState()
	if err != nil {
		t.Fatalf("ExportState: %v", err)
	}
	if err := st.SaveState(snap2); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	loaded, ok, err := st.LoadState()
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if !ok {
		t.Fatal("LoadState found nothing")
	}
	if len(loaded.Orders) != 0 {
		t.Fatalf("orders = %+v, want none after cancel", loaded.Orders)
	}
	if !reflect.DeepEqual(snap2, loaded) {
		t.Fatalf("round trip mismatch:\nsaved  %+v\nloaded %+v", snap2, loaded)
	}
}
