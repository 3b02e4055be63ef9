// This program pulls work from a node over JSON-RPC, searches for a nonce
// on every core and pushes the solution back.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/blastnetwork/blast/foundation/logger"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("MINER")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Node struct {
			RPC         string        `conf:"default:http://localhost:8545"`
			CallTimeout time.Duration `conf:"default:10s"`
		}
		Miner struct {
			Account      string        `conf:"help:beneficiary of the rewards, the node's when empty"`
			Threads      int           `conf:"default:0,help:search goroutines, one per cpu when zero"`
			PollInterval time.Duration `conf:"default:1s"`
			RetryDelay   time.Duration `conf:"default:3s"`
			Blocks       int           `conf:"default:0,help:stop after this many accepted blocks, never when zero"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "BLAST pull miner",
		},
	}

	const prefix = "MINER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Miner.Threads <= 0 {
		cfg.Miner.Threads = runtime.NumCPU()
	}

	log.Infow("starting miner", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Node Support

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := rpc.DialContext(ctx, cfg.Node.RPC)
	if err != nil {
		return fmt.Errorf("dialing node: %w", err)
	}
	defer client.Close()

	m, err := newMiner(ctx, log, client, minerConfig{
		Account:      cfg.Miner.Account,
		Threads:      cfg.Miner.Threads,
		PollInterval: cfg.Miner.PollInterval,
		CallTimeout:  cfg.Node.CallTimeout,
	})
	if err != nil {
		return err
	}

	// =========================================================================
	// Mining Loop

	var accepted int
	for {
		err := m.mineOne(ctx)
		switch {
		case err == nil:
			accepted++
			if cfg.Miner.Blocks > 0 && accepted >= cfg.Miner.Blocks {
				log.Infow("shutdown", "status", "block limit reached", "accepted", accepted)
				return nil
			}

		case ctx.Err() != nil:
			log.Infow("shutdown", "status", "signal received", "accepted", accepted)
			return nil

		case errors.Is(err, errStale):
			log.Infow("mining", "status", "tip moved, pulling new work")

		default:
			log.Errorw("mining", "ERROR", err)

			select {
			case <-time.After(cfg.Miner.RetryDelay):
			case <-ctx.Done():
				return nil
			}
		}
	}
}
