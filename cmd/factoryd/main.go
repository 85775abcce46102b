package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/gamefactory/internal/config"
	"github.com/l1jgo/gamefactory/internal/core/event"
	"github.com/l1jgo/gamefactory/internal/core/ident"
	coresys "github.com/l1jgo/gamefactory/internal/core/system"
	"github.com/l1jgo/gamefactory/internal/data"
	"github.com/l1jgo/gamefactory/internal/factory"
	"github.com/l1jgo/gamefactory/internal/handler"
	gonet "github.com/l1jgo/gamefactory/internal/net"
	"github.com/l1jgo/gamefactory/internal/net/packet"
	"github.com/l1jgo/gamefactory/internal/persist"
	"github.com/l1jgo/gamefactory/internal/scripting"
	"github.com/l1jgo/gamefactory/internal/system"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// inputPoll is how often PhaseInput runs between full ticks.
const inputPoll = 2 * time.Millisecond

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
	fmt.Println("\033[36;1m  │\033[0m            gamefactory  v0.1.0            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        shared reference registry          \033[36;1m│\033[0m")
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
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if stop := startProfile(cfg.Profile); stop != nil {
		defer stop()
	}

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Templates and registry
	printSection("registry")
	bus := event.NewBus()
	opts := []factory.Option{
		factory.WithBus(bus),
		factory.WithFirstIdentity(ident.Identity(cfg.Registry.FirstIdentity)),
		factory.WithAsyncWorkers(cfg.Registry.AsyncWorkers),
	}
	var templates *data.TemplateTable
	if cfg.Data.Templates != "" {
		templates, err = data.LoadTemplateTable(cfg.Data.Templates)
		if err != nil {
			return fmt.Errorf("templates: %w", err)
		}
		opts = append(opts, factory.WithTemplates(templates))
		printStat("templates", templates.Count())
	}
	reg := factory.New(log, opts...)
	printOK("registry initialized")

	// 4. Optional PostgreSQL mirror
	var (
		snapshots *persist.SnapshotRepo
		journal   *persist.JournalRepo
	)
	if cfg.Database.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		version, err := persist.RunMigrations(ctx, db.Pool(), log)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printStat("schema version", int(version))

		snapshots = persist.NewSnapshotRepo(db)
		journal = persist.NewJournalRepo(db)
		if keep := cfg.Persist.JournalRetention; keep > 0 {
			pruned, err := journal.Prune(ctx, time.Now().Add(-keep))
			if err != nil {
				return fmt.Errorf("prune journal: %w", err)
			}
			printStat("journal rows pruned", int(pruned))
		}
		stored, err := snapshots.Load(ctx)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		printStat("restored references", system.Restore(reg, stored, log))
	}
	fmt.Println()

	// 5. Mirror protocol
	enc, err := packet.Charset(cfg.Network.Charset)
	if err != nil {
		return fmt.Errorf("network: %w", err)
	}
	store := gonet.NewSessionStore()
	pktReg := packet.NewRegistry(enc, log)
	deps := &handler.Deps{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Sessions: store,
		Charset:  enc,
	}
	handler.RegisterAll(pktReg, deps)
	handler.SubscribeBroadcasts(bus, deps)

	// 6. Scripts
	var engine *scripting.Engine
	if cfg.Scripting.Dir != "" {
		var names scripting.Templates
		if templates != nil {
			names = templates
		}
		engine, err = scripting.NewEngine(cfg.Scripting.Dir, reg, names, log)
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer engine.Close()
		printOK("scripts loaded from " + cfg.Scripting.Dir)
	}

	// 7. Create network server
	netServer, err := gonet.NewServer(cfg.Network.BindAddress, gonet.SessionOptions{
		InQueueSize:   cfg.Network.InQueueSize,
		OutQueueSize:  cfg.Network.OutQueueSize,
		ReadTimeout:   cfg.Network.ReadTimeout,
		WriteTimeout:  cfg.Network.WriteTimeout,
		PacketsPerSec: cfg.Network.MaxPktPerSec,
	}, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go netServer.AcceptLoop()

	// 8. Create systems and register with runner
	tick := cfg.Server.TickRate
	runner := coresys.NewRunner(cfg.Server.TickRate, log)
	runner.Register(system.NewInputSystem(netServer, pktReg, store, cfg.Network.InQueueSize, log))
	runner.Register(system.NewEventSystem(bus))
	if engine != nil {
		runner.Register(system.NewScriptSystem(engine, bus))
	}
	runner.Register(system.NewOutputSystem(store))
	var persistSys *system.PersistenceSystem
	if snapshots != nil {
		persistSys = system.NewPersistenceSystem(reg, bus, snapshots, journal, int(cfg.Persist.Interval/tick), log)
		runner.Register(persistSys)
	}
	runner.Register(system.NewAuditSystem(reg, int(time.Minute/tick), log))

	// 9. Start tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	poll := time.NewTicker(inputPoll)
	defer poll.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s", netServer.Addr().String()))
	printReady(fmt.Sprintf("tick loop started (tick: %s)", tick))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(tick)
		case <-poll.C:
			runner.TickPhase(coresys.PhaseInput, 0)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			netServer.Shutdown()
			// Deliver what is queued so the journal and peers see it.
			runner.Tick(tick)
			if persistSys != nil {
				persistSys.SnapshotNow()
			}
			reg.DestroyAllInstances()
			log.Info("server stopped",
				zap.Any("stats", reg.Stats()),
				zap.Any("opcodes", pktReg.Stats()),
				zap.Int("tick_overruns", runner.Overruns()),
			)
			return nil
		}
	}
}

// startProfile starts pkg/profile for the configured mode. Returns the stop
// function, or nil when profiling is off.
func startProfile(cfg config.ProfileConfig) func() {
	var mode func(*profile.Profile)
	switch strings.ToLower(cfg.Mode) {
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfileAllocs
	case "mutex":
		mode = profile.MutexProfile
	case "block":
		mode = profile.BlockProfile
	case "goroutine":
		mode = profile.GoroutineProfile
	default:
		return nil
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	p := profile.Start(mode, profile.ProfilePath(dir), profile.NoShutdownHook, profile.Quiet)
	return p.Stop
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
