package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/uhyunpark/fermitrade/params"
	"github.com/uhyunpark/fermitrade/pkg/api"
	"github.com/uhyunpark/fermitrade/pkg/client"
	"github.com/uhyunpark/fermitrade/pkg/crypto"
	"github.com/uhyunpark/fermitrade/pkg/storage"
	"github.com/uhyunpark/fermitrade/pkg/util"
)

const statusInterval = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway: %v", err)
	}
}

// run owns every resource so deferred closes happen on any exit path
func run() error {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("") // "" means load from .env in current directory
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var logger *zap.Logger
	if cfg.Log.File != "" {
		logger, err = util.NewLoggerWithFile(cfg.Log.File, cfg.Log.Verbose)
	} else {
		logger, err = util.NewLogger(cfg.Log.Verbose)
	}
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	var kp *crypto.TradingKeypair
	if cfg.KeypairPath != "" {
		kp, err = crypto.KeypairFromFile(cfg.KeypairPath)
	} else {
		// Throwaway identity, useful against a testnet with airdrops
		kp, err = crypto.GenerateKeypair()
		sugar.Warn("no FERMI_KEYPAIR_PATH set, using an ephemeral keypair")
	}
	if err != nil {
		sugar.Errorw("keypair_load_failed", "err", err)
		return err
	}

	var journal storage.Journal = storage.NewNopJournal()
	if cfg.Gateway.JournalFile != "" {
		fj, err := storage.OpenFileJournal(cfg.Gateway.JournalFile)
		if err != nil {
			sugar.Errorw("journal_open_failed", "path", cfg.Gateway.JournalFile, "err", err)
			return err
		}
		journal = fj
		sugar.Infow("submission_journal", "path", cfg.Gateway.JournalFile)
	}
	defer journal.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fc, err := client.New(ctx, kp, cfg, client.WithLogger(logger), client.WithSelfVerify())
	if err != nil {
		sugar.Errorw("client_init_failed",
			"sequencer", cfg.Sequencer.Endpoint,
			"node", cfg.Node.Endpoint,
			"err", err)
		return err
	}
	defer func() {
		if err := fc.Close(); err != nil {
			sugar.Warnw("client_close_failed", "err", err)
		}
	}()

	sugar.Infow("gateway_starting",
		"account", fc.PubkeyString(),
		"sequencer", cfg.Sequencer.Endpoint,
		"node", cfg.Node.Endpoint,
		"addr", cfg.Gateway.Addr)

	server := api.NewServer(fc, cfg.Gateway.AllowedOrigins, logger, api.WithJournal(journal))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, cfg.Gateway.Addr)
	})

	// Progress logging loop
	g.Go(func() error {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				st, err := fc.SequencerStatus(gctx)
				if err != nil {
					sugar.Warnw("sequencer_status_failed", "err", err)
					continue
				}
				sugar.Infow("sequencer_progress",
					"tick", st.CurrentTick,
					"pending", st.PendingTransactions,
					"tps", st.TransactionsPerSecond,
					"ws_clients", server.Hub().Count())
			}
		}
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("gateway_failed", "err", err)
		return err
	}
	return nil
}
