// Package node assembles the wallet daemon's background core: storage, the
// unlocked wallet, the chain client, the fee estimator, the action queue,
// the message router and the local RPC server.
package node

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/klingnet-walletd/config"
	"github.com/Klingon-tech/klingnet-walletd/internal/chainrpc"
	"github.com/Klingon-tech/klingnet-walletd/internal/fee"
	"github.com/Klingon-tech/klingnet-walletd/internal/hub"
	klog "github.com/Klingon-tech/klingnet-walletd/internal/log"
	"github.com/Klingon-tech/klingnet-walletd/internal/messaging"
	"github.com/Klingon-tech/klingnet-walletd/internal/queue"
	"github.com/Klingon-tech/klingnet-walletd/internal/rpc"
	"github.com/Klingon-tech/klingnet-walletd/internal/storage"
	"github.com/Klingon-tech/klingnet-walletd/internal/wallet"
	"github.com/Klingon-tech/klingnet-walletd/pkg/tx"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
)

// Storage prefixes inside the state database.
var (
	prefixQueue   = []byte("aq/")
	prefixAccount = []byte("acct/")
)

// syncTimeout bounds the deployment status refresh at startup.
const syncTimeout = 15 * time.Second

// Options carries startup inputs that do not belong in the config file.
type Options struct {
	// Password unlocks cfg.Wallet.Name. When nil, cfg.Wallet.PasswordFile is read.
	Password []byte
}

// Node is a fully-initialized wallet daemon core.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Core
	db        storage.BatchDB
	chain     *chainrpc.Client
	wallet    *wallet.Wallet // nil when no wallet is configured
	queue     *queue.Queue
	estimator *fee.Estimator
	hub       *hub.Hub
	router    *messaging.Router
	registry  *prometheus.Registry

	// RPC
	rpcServer *rpc.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates and initializes a new Node. It performs all setup steps
// (logger, storage, chain client, wallet, queue, router, RPC) but does NOT
// start the queue worker or the RPC listener. Call Start() for that.
func New(cfg *config.Config, opts Options) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0700); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "klingwallet.log")
	}
	if err := klog.Init(klog.Options{
		Level:      cfg.Log.Level,
		JSON:       cfg.Log.JSON,
		File:       logFile,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	logger.Info().
		Str("network", string(cfg.Network)).
		Str("chain", cfg.Chain.Endpoint).
		Str("version", config.Version).
		Msg("Starting Klingnet wallet daemon")

	// ── 2. Open storage ─────────────────────────────────────────────
	db, err := openState(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Queue.Persist {
		logger.Info().Str("path", cfg.StateDir()).Msg("State database opened")
	}

	n := &Node{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		chain:    chainrpc.New(cfg.Chain.Endpoint, cfg.Chain.Timeout),
		hub:      hub.New(hub.DefaultBuffer),
		registry: prometheus.NewRegistry(),
	}
	n.ctx, n.cancel = context.WithCancel(context.Background())
	n.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// ── 3. Wallet ───────────────────────────────────────────────────
	if cfg.Wallet.Name != "" {
		if err := n.openWallet(opts.Password); err != nil {
			n.close()
			return nil, err
		}
	} else {
		logger.Warn().Msg("No wallet configured; fee estimation and execution will report no account")
	}

	// ── 4. Action queue ─────────────────────────────────────────────
	mux := queue.NewMux()
	if n.wallet != nil {
		n.wallet.Register(mux)
	}
	var store *queue.Store
	if cfg.Queue.Persist {
		ns := storage.NewPrefixDB(db, prefixQueue)
		if cfg.Queue.Reset {
			dropped, err := ns.Clear()
			if err != nil {
				n.close()
				return nil, fmt.Errorf("reset action queue: %w", err)
			}
			logger.Warn().Int("actions", dropped).Msg("Persisted action queue reset")
		}
		store = queue.NewStore(ns, queue.Codec{
			types.ActionTransaction:   func() queue.Payload { return &tx.Transaction{} },
			types.ActionDeployAccount: func() queue.Payload { return &tx.DeployAccount{} },
		})
	}
	q, err := queue.New(mux, store)
	if err != nil {
		n.close()
		return nil, fmt.Errorf("create action queue: %w", err)
	}
	q.SetMetrics(queue.NewMetrics(n.registry))
	n.queue = q
	logger.Info().Int("restored", q.Len()).Bool("persist", cfg.Queue.Persist).Msg("Action queue ready")

	// ── 5. Fee estimator and router ─────────────────────────────────
	n.estimator = fee.NewEstimator(walletAccounts{w: n.wallet}, fee.Policy{
		SafetyMarginPct: cfg.Fee.SafetyMarginPct,
		WalletMarginPct: cfg.Fee.WalletMarginPct,
	})
	n.estimator.SetMetrics(fee.NewMetrics(n.registry))

	n.router = messaging.NewRouter(q, n.estimator)
	n.router.SetMetrics(messaging.NewMetrics(n.registry))
	q.Subscribe(messaging.NewNotifier(n.hub).HandleOutcome)

	logger.Info().
		Uint64("safety_margin", cfg.Fee.SafetyMarginPct).
		Uint64("wallet_margin", cfg.Fee.WalletMarginPct).
		Msg("Fee policy")

	// ── 6. RPC server ───────────────────────────────────────────────
	if cfg.RPC.Enabled {
		addr := net.JoinHostPort(cfg.RPC.Addr, strconv.Itoa(cfg.RPC.Port))
		n.rpcServer = rpc.New(addr, n.router, n.hub, q, cfg.RPC)
		if n.wallet != nil {
			n.rpcServer.SetWallet(n.wallet)
		}
		if cfg.RPC.Metrics {
			n.rpcServer.SetMetrics(n.registry)
		}
	}

	return n, nil
}

// openState opens the badger state database, or an in-memory one when the
// queue is not persisted.
func openState(cfg *config.Config) (storage.BatchDB, error) {
	if !cfg.Queue.Persist {
		return storage.NewMemory(), nil
	}
	db, err := storage.NewBadger(cfg.StateDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.StateDir(), err)
	}
	return db, nil
}

// openWallet unlocks the configured wallet and applies the configured
// account selection.
func (n *Node) openWallet(password []byte) error {
	if password == nil {
		if n.cfg.Wallet.PasswordFile == "" {
			return fmt.Errorf("wallet %q requires a password", n.cfg.Wallet.Name)
		}
		p, err := loadPassword(n.cfg.Wallet.PasswordFile)
		if err != nil {
			return fmt.Errorf("load password file %s: %w", n.cfg.Wallet.PasswordFile, err)
		}
		defer wipe(p)
		password = p
	}

	ks, err := wallet.NewKeystore(n.cfg.KeystoreDir())
	if err != nil {
		return err
	}
	w, err := wallet.Open(ks, n.cfg.Wallet.Name, password, wallet.Options{
		Chain:           n.chain,
		SafetyMarginPct: n.cfg.Fee.SafetyMarginPct,
		State:           storage.NewPrefixDB(n.db, prefixAccount),
	})
	if err != nil {
		return fmt.Errorf("open wallet %q: %w", n.cfg.Wallet.Name, err)
	}

	if n.cfg.Wallet.Account != "" {
		addr, err := types.ParseAddress(n.cfg.Wallet.Account)
		if err != nil {
			w.Close()
			return fmt.Errorf("invalid wallet.account: %w", err)
		}
		if err := w.Select(addr); err != nil {
			w.Close()
			return err
		}
	}
	n.wallet = w

	sel, _ := w.SelectedAccount()
	n.logger.Info().
		Str("wallet", n.cfg.Wallet.Name).
		Int("accounts", len(w.Accounts())).
		Str("selected", sel.Address.String()).
		Msg("Wallet unlocked")
	return nil
}

// walletAccounts adapts the wallet to the estimator's account source. It
// returns a nil interface, never a typed nil, when there is no account.
type walletAccounts struct {
	w *wallet.Wallet
}

func (a walletAccounts) Account(addr *types.Address) fee.Account {
	if a.w == nil {
		return nil
	}
	acct := a.w.Account(addr)
	if acct == nil {
		return nil
	}
	return acct
}

// Start refreshes account deployment status, starts the queue worker and
// begins serving RPC.
func (n *Node) Start() error {
	if n.wallet != nil {
		ctx, cancel := context.WithTimeout(n.ctx, syncTimeout)
		if err := n.wallet.SyncDeployStatus(ctx); err != nil {
			n.logger.Warn().Err(err).Msg("Deployment status refresh failed; using cached status")
		}
		cancel()
	}

	if err := n.queue.Start(n.ctx); err != nil {
		return fmt.Errorf("start action queue: %w", err)
	}

	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			n.queue.Stop()
			return err
		}
	}

	n.logger.Info().
		Int("queued", n.queue.Len()).
		Bool("wallet", n.wallet != nil).
		Str("rpc", n.RPCAddr()).
		Msg("Wallet daemon started successfully")
	return nil
}

// Stop shuts the RPC server and the queue worker down, then releases the
// wallet and the database.
func (n *Node) Stop() {
	n.cancel()

	var g errgroup.Group
	if n.rpcServer != nil {
		g.Go(n.rpcServer.Stop)
	}
	g.Go(func() error {
		n.queue.Stop()
		return nil
	})
	if err := g.Wait(); err != nil {
		n.logger.Warn().Err(err).Msg("Shutdown error")
	}

	n.hub.Close()
	n.close()
	n.logger.Info().Msg("Goodbye!")
}

// close releases the wallet keys and the database.
func (n *Node) close() {
	if n.wallet != nil {
		n.wallet.Close()
	}
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Warn().Err(err).Msg("Close database")
		}
	}
}

// RPCAddr returns the RPC listener address, or "" if RPC is disabled.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Queue returns the action queue.
func (n *Node) Queue() *queue.Queue { return n.queue }

// Wallet returns the unlocked wallet, or nil.
func (n *Node) Wallet() *wallet.Wallet { return n.wallet }

// Hub returns the outbound message hub.
func (n *Node) Hub() *hub.Hub { return n.hub }

// Router returns the message router.
func (n *Node) Router() *messaging.Router { return n.router }
