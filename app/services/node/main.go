package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/blastnetwork/blast/app/services/node/handlers"
	"github.com/blastnetwork/blast/app/services/node/handlers/rpcgrp"
	"github.com/blastnetwork/blast/business/sys/metrics"
	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/blastnetwork/blast/foundation/blockchain/genesis"
	"github.com/blastnetwork/blast/foundation/blockchain/state"
	"github.com/blastnetwork/blast/foundation/blockchain/worker"
	"github.com/blastnetwork/blast/foundation/events"
	"github.com/blastnetwork/blast/foundation/logger"
	"github.com/blastnetwork/blast/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
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

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:60s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
			RPCHost         string        `conf:"default:0.0.0.0:8545"`
			Origins         []string      `conf:"default:*"`
		}
		State struct {
			MinerName        string `conf:"default:miner1"`
			Beneficiary      string `conf:"help:overrides the account of the miner key"`
			GenesisPath      string `conf:"default:zblock/genesis.json"`
			VerifySignatures bool   `conf:"default:false"`
			Mining           bool   `conf:"default:true"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "BLAST ledger node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	fmt.Println(`  ____  _        _    ____ _____  `)
	fmt.Println(` | __ )| |      / \  / ___|_   _| `)
	fmt.Println(` |  _ \| |     / _ \ \___ \ | |   `)
	fmt.Println(` | |_) | |___ / ___ \ ___) || |   `)
	fmt.Println(` |____/|_____/_/   \_\____/ |_|   `)
	fmt.Print("\n")

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides name resolution for account addresses.
	// The names come from the file names in the zblock/accounts folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	// Logging the accounts for documentation in the logs.
	for account, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "account", account)
	}

	// =========================================================================
	// Blockchain Support

	gen, err := genesis.Load(cfg.State.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis: %w", err)
	}

	// The beneficiary is credited with the block rewards this node mines.
	// It comes from the miner's key unless configured directly.
	beneficiaryID, err := beneficiary(cfg.State.Beneficiary, cfg.NameService.Folder, cfg.State.MinerName)
	if err != nil {
		return err
	}
	log.Infow("startup", "status", "beneficiary", "account", beneficiaryID, "name", ns.Lookup(beneficiaryID))

	// The blockchain packages accept a function of this signature to allow the
	// application to log. For now, these raw messages are sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The state value represents the blockchain node and manages the blockchain
	// database and provides an API for application support.
	st, err := state.New(state.Config{
		BeneficiaryID:    beneficiaryID,
		Genesis:          gen,
		VerifySignatures: cfg.State.VerifySignatures,
		EvHandler:        ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	// The worker package implements background mining. The worker will
	// register itself with the state.
	if cfg.State.Mining {
		worker.Run(st, ev)
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, st)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// Keep the chain gauges under /debug/vars current.
	metricsDone := make(chan struct{})
	defer close(metricsDone)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				latest := st.RetrieveLatestBlock()
				metrics.SetChain(latest.Header.Number+1, st.RetrieveDifficulty(), st.RetrieveMempoolLength())
				metrics.SetEvents(evts.Count(), evts.Dropped())
			case <-metricsDone:
				return
			}
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 3)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		NS:       ns,
		Evts:     evts,
		Origins:  cfg.Web.Origins,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	// Construct the mux for the private API calls.
	privateMux := handlers.PrivateMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		NS:       ns,
	})

	// Construct a server to service the requests against the mux.
	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      privateMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Start JSON-RPC Service

	log.Infow("startup", "status", "initializing JSON-RPC support")

	rpcServer, err := rpcgrp.NewServer(rpcgrp.Config{
		Log:   log,
		State: st,
	})
	if err != nil {
		return err
	}
	defer rpcServer.Stop()

	// The websocket endpoint holds connections open so there is no write
	// timeout on this server.
	rpcSrv := http.Server{
		Addr:        cfg.Web.RPCHost,
		Handler:     handlers.RPCMux(rpcServer, cfg.Web.Origins),
		ReadTimeout: cfg.Web.ReadTimeout,
		IdleTimeout: cfg.Web.IdleTimeout,
		ErrorLog:    zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "json-rpc router started", "host", rpcSrv.Addr)
		serverErrors <- rpcSrv.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		for _, srv := range []struct {
			name   string
			server *http.Server
		}{
			{"json-rpc", &rpcSrv},
			{"private", &private},
			{"public", &public},
		} {

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)

			// Asking listener to shut down and shed load.
			log.Infow("shutdown", "status", "shutdown "+srv.name+" API started")
			err := srv.server.Shutdown(ctx)
			cancel()

			if err != nil {
				srv.server.Close()
				return fmt.Errorf("could not stop %s service gracefully: %w", srv.name, err)
			}
		}
	}

	return nil
}

// beneficiary resolves the account credited with this node's rewards.
func beneficiary(account string, folder string, minerName string) (database.AccountID, error) {
	if account != "" {
		return database.ToAccountID(account)
	}

	path := fmt.Sprintf("%s%s.ecdsa", folder, minerName)
	privateKey, err := crypto.LoadECDSA(path)
	if err != nil {
		return "", fmt.Errorf("unable to load private key for node: %w", err)
	}

	return database.PublicKeyToAccountID(privateKey.PublicKey), nil
}
