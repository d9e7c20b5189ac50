package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rscgo/server/internal/config"
	"github.com/rscgo/server/internal/core/event"
	coresys "github.com/rscgo/server/internal/core/system"
	"github.com/rscgo/server/internal/data"
	"github.com/rscgo/server/internal/metrics"
	gonet "github.com/rscgo/server/internal/net"
	"github.com/rscgo/server/internal/scripting"
	"github.com/rscgo/server/internal/system"
	"github.com/rscgo/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m               rscgo  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m         world-state sync server           \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(id: %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// 3. World and NPC data
	printSection("world")
	ws := world.NewState(world.Options{
		CellSize: cfg.Sync.CellSize,
		Bounds: world.Bounds{
			Width:  cfg.World.Width,
			Height: cfg.World.Height,
			Planes: cfg.World.Planes,
		},
		ViewRange:  cfg.Sync.ViewRange,
		VisibleCap: cfg.Sync.VisibleCap,
	})
	printOK(fmt.Sprintf("%dx%d tiles, %d planes, %d-tile cells", cfg.World.Width, cfg.World.Height, cfg.World.Planes, cfg.Sync.CellSize))

	if cfg.World.SpawnFile != "" {
		spawns, err := data.LoadSpawnTable(cfg.World.SpawnFile)
		if err != nil {
			return fmt.Errorf("spawn table: %w", err)
		}
		placed := system.Populate(ws, spawns, rng.Intn, log)
		printStat("spawn entries", len(spawns.Entries()))
		printStat("npcs placed", placed.Npcs)
		printStat("objects placed", placed.Objects)
		printStat("ground items placed", placed.GroundItems)
	}

	engine, err := scripting.NewEngine(cfg.World.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	if engine.HasWander() {
		printOK("lua npc_wander loaded")
	} else {
		printOK("built-in npc wander")
	}
	fmt.Println()

	// 4. Metrics
	var syncMetrics *metrics.Sync
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		syncMetrics = metrics.NewSync(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		metricsServer = &http.Server{Addr: cfg.Metrics.BindAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", zap.Error(err))
			}
		}()
	}

	// 5. Network server and message handlers
	netServer := gonet.NewServer(gonet.Options{
		InQueueSize:       cfg.Network.InQueueSize,
		OutQueueSize:      cfg.Network.OutQueueSize,
		MaxMessageSize:    cfg.Network.MaxMessageSize,
		MessagesPerSecond: cfg.Network.MessagesPerSecond,
		WriteTimeout:      cfg.Network.WriteTimeout,
	}, log)
	if err := netServer.Listen(cfg.Network.BindAddress); err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	store := gonet.NewSessionStore()
	msgReg := gonet.NewRegistry(log)
	system.RegisterCommands(msgReg, ws)

	// 6. Create systems and register with runner
	bus := event.NewBus()
	spawn := world.Position{X: cfg.World.SpawnX, Y: cfg.World.SpawnY, Plane: cfg.World.SpawnPlane}
	system.NewLifecycle(bus, ws, store, spawn, syncMetrics, log)

	gate := &system.TickGate{}
	runner := coresys.NewRunner()
	runner.Register(system.NewInputSystem(netServer, msgReg, store, bus, cfg.Network.MaxMessagesPerTick, log))
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewNpcRespawnSystem(ws, log))
	runner.Register(system.NewNpcLifetimeSystem(ws, log))
	runner.Register(system.NewNpcMovementSystem(ws, engine, rng, system.DefaultWanderInterval, log))
	runner.Register(system.NewGroundItemSystem(ws, log))
	runner.Register(system.NewVisibilitySystem(ws, gate, cfg.Sync.Workers, syncMetrics, log))
	runner.Register(system.NewOutputSystem(store))
	runner.Register(system.NewMovementCommitSystem(ws, gate, log))
	runner.Register(system.NewCleanupSystem(ws, log))

	// 7. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Sync.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("listening on ws://%s/ws", netServer.Addr().String()))
	if metricsServer != nil {
		printReady(fmt.Sprintf("metrics on http://%s/metrics", cfg.Metrics.BindAddress))
	}
	printReady(fmt.Sprintf("game loop started (tick: %s, budget: %s, workers: %d)", cfg.Sync.TickRate, cfg.Sync.TickBudget, cfg.Sync.Workers))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			tickCtx, cancel := context.WithTimeout(context.Background(), cfg.Sync.TickBudget)
			runner.Tick(tickCtx, cfg.Sync.TickRate)
			cancel()
			elapsed := time.Since(start)
			syncMetrics.ObserveTick(elapsed)
			if elapsed > cfg.Sync.TickRate {
				log.Warn("tick overran", zap.Uint64("tick", runner.Ticks()), zap.Duration("elapsed", elapsed))
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			shutdown(netServer, store, metricsServer, log)
			log.Info("server stopped", zap.Uint64("ticks", runner.Ticks()), zap.String("regions", ws.Regions().Stats()))
			return nil
		}
	}
}

func shutdown(netServer *gonet.Server, store *gonet.SessionStore, metricsServer *http.Server, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := netServer.Shutdown(ctx); err != nil {
		log.Warn("net server shutdown", zap.Error(err))
	}
	if n := netServer.ClosePending(); n > 0 {
		log.Info("closed sessions waiting to enter the world", zap.Int("count", n))
	}
	store.CloseAll()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Warn("metrics server shutdown", zap.Error(err))
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
