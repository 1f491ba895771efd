package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/lotdex/lotdex/params"
	"github.com/lotdex/lotdex/pkg/api"
	"github.com/lotdex/lotdex/pkg/exchange"
	"github.com/lotdex/lotdex/pkg/storage"
	"github.com/lotdex/lotdex/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLogger(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	store, err := storage.Open(cfg.Node.DBPath)
	if err != nil {
		logger.Fatal("open_store", zap.Error(err))
	}
	defer store.Close()

	bridge := exchange.NewRecorderBridge(logger)
	engine, err := exchange.New(bridge, exchange.Config{
		LotSize: cfg.Exchange.LotSize,
		FeeBps:  cfg.Exchange.FeeBps,
		Admin:   common.HexToAddress(cfg.Exchange.Admin),
		Bridge:  common.HexToAddress(cfg.Exchange.Bridge),
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("engine_init", zap.Error(err))
	}

	if snap, ok, err := store.LoadState(); err != nil {
		logger.Fatal("load_state", zap.Error(err))
	} else if ok {
		if err := engine.RestoreState(snap); err != nil {
			logger.Fatal("restore_state", zap.Error(err))
		}
		logger.Info("state_restored",
			zap.Int("accounts", len(snap.Accounts)),
			zap.Int("orders", len(snap.Orders)))
	}

	srv := api.NewServer(engine, common.HexToAddress(cfg.Exchange.Bridge), logger)
	engine.SetEventSink(srv.EventSink())

	// Periodic state snapshots; a final one runs on shutdown.
	stopSnapshots := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Node.SnapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				persist(engine, store, logger)
			case <-stopSnapshots:
				return
			}
		}
	}()

	go func() {
		if err := srv.Start(cfg.Node.ListenAddr); err != nil {
			logger.Fatal("api_server", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	close(stopSnapshots)
	persist(engine, store, logger)
	logger.Info("shutdown_complete")
}

func persist(engine *exchange.Engine, store *storage.Store, logger *zap.Logger) {
	snap, err := engine.ExportState()
	if err != nil {
		logger.Warn("snapshot_export_failed", zap.Error(err))
		return
	}
	if err := store.SaveState(snap); err != nil {
		logger.Warn("snapshot_save_failed", zap.Error(err))
	}
}
