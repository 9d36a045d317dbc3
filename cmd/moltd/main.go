// Command moltd runs one MOLT peer-to-peer compute marketplace node:
// it loads or creates a wallet identity, opens the escrow and
// spending logs, and serves the transport listener agents dial into.
//
// Grounded on lnd.go's lndMain/main split (a nested "real main" so
// deferred cleanup still runs on a graceful shutdown, with the outer
// main only handling flags.ErrHelp and the process exit code).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/btcsuite/btclog"
	flags "github.com/jessevdk/go-flags"
	"github.com/molt-labs/molt-core/agent"
	"github.com/molt-labs/molt-core/crypto"
	"github.com/molt-labs/molt-core/escrow"
	"github.com/molt-labs/molt-core/gossip"
	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/internal/clockutil"
	"github.com/molt-labs/molt-core/internal/logctx"
	"github.com/molt-labs/molt-core/internal/tickerutil"
	"github.com/molt-labs/molt-core/orderbook"
	"github.com/molt-labs/molt-core/policy"
	"github.com/molt-labs/molt-core/token"
	"github.com/molt-labs/molt-core/transport"
)

const identityKeyFilePermission = 0600

// loadOrCreateWallet reads a sealed Ed25519 signing key from
// <datadir>/identity.key, generating and persisting a fresh one on
// first run. The key never passes through an identity.Wallet until
// after it is safely on disk, since Wallet deliberately exposes no
// accessor for its own signing key once wrapped.
func loadOrCreateWallet(dataDir string) (*identity.Wallet, error) {
	path := filepath.Join(dataDir, "identity.key")

	raw, err := os.ReadFile(path)
	if err == nil {
		sk, err := crypto.SigningKeyFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("loading identity key: %w", err)
		}
		return identity.WalletFromSigningKey(sk), nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading identity key: %w", err)
	}

	sk, _, err := crypto.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("generating identity key: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	if err := os.WriteFile(path, sk.Bytes(), identityKeyFilePermission); err != nil {
		return nil, fmt.Errorf("persisting identity key: %w", err)
	}
	return identity.WalletFromSigningKey(sk), nil
}

// unimplementedLedger is the placeholder token.Ledger wired in when no
// concrete value-movement backend has been configured. spec.md section
// 4.5 puts the actual mechanics of moving value out of scope; a real
// deployment replaces this with a custodial balance table, payment
// channel, or on-chain contract adapter.
type unimplementedLedger struct{}

func (unimplementedLedger) Lock(ctx context.Context, ref token.TransactionRef, payer identity.PeerIdentity, amount uint64) error {
	return fmt.Errorf("moltd: no token.Ledger backend configured")
}

func (unimplementedLedger) Settle(ctx context.Context, ref token.TransactionRef, recipient identity.PeerIdentity, amount uint64) error {
	return fmt.Errorf("moltd: no token.Ledger backend configured")
}

// subsystem adapters wire each package's package-scoped logger through
// logctx.SetupLoggers, mirroring the teacher's per-package UseLogger
// convention (see e.g. ltndLog/rpcsLog in the original lnd.go).
type agentSubsystem struct{}

func (agentSubsystem) UseLogger(l btclog.Logger) { agent.UseLogger(l) }

type gossipSubsystem struct{}

func (gossipSubsystem) UseLogger(l btclog.Logger) { gossip.UseLogger(l) }

type escrowSubsystem struct{}

func (escrowSubsystem) UseLogger(l btclog.Logger) { escrow.UseLogger(l) }

type policySubsystem struct{}

func (policySubsystem) UseLogger(l btclog.Logger) { policy.UseLogger(l) }

func moltdMain() error {
	var cfg agent.Config
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return err
	}

	backend, cleanup, err := logctx.Backend(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer cleanup()

	logctx.SetupLoggers(backend, cfg.LogLevel, map[string]logctx.Subsystem{
		"AGNT": agentSubsystem{},
		"GOSP": gossipSubsystem{},
		"ESCW": escrowSubsystem{},
		"PLCY": policySubsystem{},
	})

	log := logctx.NewSubLogger(backend, "MOLD", cfg.LogLevel)
	log.Infof("starting moltd, data dir %s", cfg.DataDir)

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	wallet, err := loadOrCreateWallet(cfg.DataDir)
	if err != nil {
		return err
	}
	defer wallet.Destroy()
	log.Infof("node identity: %s", wallet.Address())

	escrowStore, err := escrow.OpenStore(filepath.Join(cfg.DataDir, "escrow.log"))
	if err != nil {
		return fmt.Errorf("opening escrow log: %w", err)
	}
	defer escrowStore.Close()

	spendingStore, err := policy.OpenSpendingStore(filepath.Join(cfg.DataDir, "spending.log"))
	if err != nil {
		return fmt.Errorf("opening spending log: %w", err)
	}
	defer spendingStore.Close()

	clock := clockutil.Default{}
	now := clock.Now()

	var ledger token.Ledger = unimplementedLedger{}

	machine, err := escrow.NewMachineFromStore(ledger, escrowStore)
	if err != nil {
		return fmt.Errorf("replaying escrow log: %w", err)
	}

	spending, err := policy.NewSpendingTrackerFromStore(spendingStore, now)
	if err != nil {
		return fmt.Errorf("replaying spending log: %w", err)
	}

	book := orderbook.New(cfg.OrderbookMaxTotal())

	var arbiter identity.PeerIdentity
	a := agent.New(wallet, book, nil, machine, ledger, cfg.ParseAutonomyTier(),
		cfg.PolicyConfig(), spending, time.Duration(cfg.EscrowDefaultLockSecs)*time.Second,
		cfg.SettlementFeeBp, arbiter, clock)

	gossiper := gossip.New(book, a.PeerDirectory(), clock, cfg.GossipConfig())
	a.SetGossiper(gossiper)
	gossiper.Start()
	defer gossiper.Stop()

	resolver := escrow.NewTimeoutResolver(machine, clock, tickerutil.New(time.Minute))
	resolver.Start()
	defer resolver.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/molt", func(w http.ResponseWriter, r *http.Request) {
		conn, err := transport.Upgrade(w, r, wallet, transport.DefaultMaxPayload)
		if err != nil {
			log.Warnf("inbound handshake failed: %v", err)
			return
		}
		a.ServeConn(conn)
	})

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Infof("listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("listener stopped: %v", err)
		}
	}()

	for _, addr := range cfg.PeerAddrs {
		if err := a.Dial(addr, transport.DefaultMaxPayload); err != nil {
			log.Warnf("dialing peer %s failed: %v", addr, err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := moltdMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
