package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/config"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/router"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/rpc"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/token"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/venues"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()

	// Share the logger with the RPC package
	rpc.SetLogger(log)
}

func main() {
	configPath := flag.String("config", "", "node config file (.toml), environment is used when empty")
	flag.Parse()

	var path *string
	if *configPath != "" {
		path = configPath
	}
	cfg, err := config.LoadNodeConfig(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load node config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	} else if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, keeping info")
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Bool("in_memory", cfg.InMemory).
		Msg("Starting swapchaind")

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger store")
	}
	defer store.Close()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Genesis != "" {
		genesis, err := config.LoadGenesis(ctx, cfg.Genesis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load genesis")
		}
		dir, err := config.ApplyGenesis(store, genesis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to apply genesis")
		}
		log.Info().
			Int("mints", len(dir.Mints)).
			Int("pools", len(dir.Pools)).
			Int("wrappers", len(dir.Wrappers)).
			Msg("Genesis ready")
	}

	runtime, err := newRuntime(store, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create runtime")
	}
	for _, p := range runtime.Programs() {
		log.Info().Str("program", p.Name).Str("id", p.ID.String()).Msg("Registered program")
	}

	server, err := rpc.NewServer(ctx, rpc.ServerConfigFromNode(cfg), runtime, router.ProgramID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create RPC server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server error")
			sigCh <- syscall.SIGTERM
		}
	}()

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}

func openStore(cfg *config.NodeConfig) (*ledger.Store, error) {
	if cfg.InMemory {
		return ledger.OpenMemStore()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	return ledger.OpenStore(cfg.DataDir)
}

// newRuntime registers every program the node serves.
func newRuntime(store *ledger.Store, cfg *config.NodeConfig) (*ledger.Runtime, error) {
	opts := []ledger.Option{ledger.WithMetrics(prometheus.DefaultRegisterer)}
	if cfg.ReplayCacheSize > 0 {
		opts = append(opts, ledger.WithReplayCacheSize(cfg.ReplayCacheSize))
	}
	rt, err := ledger.NewRuntime(store, opts...)
	if err != nil {
		return nil, err
	}
	rt.Register(token.ProgramID, "token", token.Program{})
	rt.Register(token.AssociatedProgramID, "associated_token", token.AssociatedProgram{})
	venues.Default().RegisterAll(rt)
	rt.Register(router.ProgramID, "swapchain_router", router.New(router.ProgramID,
		router.WithCrossUnitChains(cfg.AllowCrossUnitChains),
	))
	return rt, nil
}
