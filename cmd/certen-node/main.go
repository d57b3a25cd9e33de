// Copyright 2025 Certen Protocol
//
// certen-node wires the Record Store, Program Store, Validator Set and
// Height File into an internal/abci.Driver and embeds it in an in-process
// CometBFT node, the same proxy.NewLocalClientCreator pattern
// pkg/consensus/bft_integration.go's NewRealCometBFTEngine uses rather than
// running a separate ABCI socket server.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	dbm "github.com/cometbft/cometbft-db"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	cmtconfig "github.com/cometbft/cometbft/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certen/zkvm-validator/internal/abci"
	"github.com/certen/zkvm-validator/internal/heightfile"
	"github.com/certen/zkvm-validator/internal/kvdb"
	"github.com/certen/zkvm-validator/internal/programstore"
	"github.com/certen/zkvm-validator/internal/recordstore"
	"github.com/certen/zkvm-validator/internal/validatorset"
	"github.com/certen/zkvm-validator/pkg/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "certen-node: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger := log.New(os.Stderr, "[certen-node] ", log.LstdFlags)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	recordsDB, err := dbm.NewGoLevelDB("records", cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open records db: %w", err)
	}
	spentDB, err := dbm.NewGoLevelDB("spent", cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open spent db: %w", err)
	}
	programsDB, err := dbm.NewGoLevelDB("deployed", cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open programs db: %w", err)
	}

	records := recordstore.Open(kvdb.NewAdapter(recordsDB), kvdb.NewAdapter(spentDB))
	programs, err := programstore.Open(kvdb.NewAdapter(programsDB))
	if err != nil {
		return fmt.Errorf("open program store: %w", err)
	}
	validators := validatorset.New(filepath.Join(cfg.DataDir, "validators.json"))
	height := heightfile.New(filepath.Join(cfg.DataDir, "height"))

	driver := abci.NewDriver(records, programs, validators, height)

	go serveMetrics(cfg.MetricsAddr, logger)

	return runCometNode(cfg, driver, logger)
}

func serveMetrics(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Printf("metrics: listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Printf("metrics: %v", err)
	}
}

// runCometNode embeds the ABCI driver into an in-process CometBFT node via
// proxy.NewLocalClientCreator, matching pkg/consensus/bft_integration.go's
// NewRealCometBFTEngine rather than spawning a socket/grpc ABCI server.
func runCometNode(appCfg *config.Config, driver *abci.Driver, logger *log.Logger) error {
	cometCfg := cmtconfig.DefaultConfig()
	cometCfg.RootDir = appCfg.DataDir
	cometCfg.DBBackend = "goleveldb"
	cometCfg.TxIndex.Indexer = "kv"
	cometCfg.ProxyApp = appCfg.ListenAddr

	pv := privval.LoadFilePV(cometCfg.PrivValidatorKeyFile(), cometCfg.PrivValidatorStateFile())

	nodeKeyPath := appCfg.Ed25519KeyPath
	if nodeKeyPath == "" {
		nodeKeyPath = cometCfg.NodeKeyFile()
	}
	nodeKey, err := p2p.LoadOrGenNodeKey(nodeKeyPath)
	if err != nil {
		return fmt.Errorf("load node key: %w", err)
	}

	tmLogger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout)).With("module", "cometbft")

	dbProvider := cmtconfig.DBProvider(func(ctx *cmtconfig.DBContext) (dbm.DB, error) {
		return dbm.NewDB(ctx.ID, dbm.BackendType(cometCfg.DBBackend), filepath.Join(cometCfg.RootDir, "data"))
	})

	n, err := node.NewNode(
		cometCfg,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(driver),
		node.DefaultGenesisDocProviderFunc(cometCfg),
		dbProvider,
		node.DefaultMetricsProvider(cometCfg.Instrumentation),
		tmLogger,
	)
	if err != nil {
		return fmt.Errorf("create cometbft node: %w", err)
	}

	if err := n.Start(); err != nil {
		return fmt.Errorf("start cometbft node: %w", err)
	}
	defer n.Stop()

	logger.Printf("certen-node: running, chain_id=%s", appCfg.ChainID)
	select {}
}
