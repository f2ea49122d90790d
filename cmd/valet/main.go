// Command valet is a personal assistant: it keeps tasks and notes in a
// local sqlite store, answers weather/travel/web questions through MCP
// services and leaf APIs, renders charts, and fronts it all with either
// a terminal chat or a local web UI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"

	"github.com/juniperhq/valet/internal/assistant"
	"github.com/juniperhq/valet/internal/audit"
	"github.com/juniperhq/valet/internal/chart"
	"github.com/juniperhq/valet/internal/config"
	"github.com/juniperhq/valet/internal/dispatch"
	"github.com/juniperhq/valet/internal/doctor"
	"github.com/juniperhq/valet/internal/gateway"
	"github.com/juniperhq/valet/internal/mcp"
	"github.com/juniperhq/valet/internal/orchestrator"
	votel "github.com/juniperhq/valet/internal/otel"
	"github.com/juniperhq/valet/internal/retention"
	"github.com/juniperhq/valet/internal/store"
	"github.com/juniperhq/valet/internal/telemetry"
	"github.com/juniperhq/valet/internal/tools"
	"github.com/juniperhq/valet/internal/tui"
)

func main() {
	_ = godotenv.Load()

	mode := flag.String("mode", "", "surface to run: tui or gui (default: tui on a terminal, gui otherwise)")
	home := flag.String("home", "", "data directory (default: $VALET_HOME or ~/.valet)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flag.Arg(0) == "doctor" {
		if err := runDoctor(ctx, *home); err != nil {
			fmt.Fprintln(os.Stderr, "valet:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, *mode, *home); err != nil {
		fmt.Fprintln(os.Stderr, "valet:", err)
		os.Exit(1)
	}
}

func runDoctor(ctx context.Context, home string) error {
	if home == "" {
		home = config.HomeDir()
	}
	cfg, err := config.Load(home)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	d := doctor.Run(ctx, cfg)
	d.Print(os.Stdout)
	if !d.Healthy() {
		return errors.New("some checks failed")
	}
	return nil
}

func run(ctx context.Context, mode, home string) error {
	if home == "" {
		home = config.HomeDir()
	}
	cfg, err := config.Load(home)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if mode == "" {
		if isatty.IsTerminal(os.Stdout.Fd()) {
			mode = "tui"
		} else {
			mode = "gui"
		}
	}
	if mode != "tui" && mode != "gui" {
		return fmt.Errorf("unknown mode %q (want tui or gui)", mode)
	}

	// Keep the chat REPL clean: file-only logs in tui mode.
	logger, closer, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, mode == "tui")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	provider, err := votel.Init(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()
	metrics, err := votel.NewMetrics(provider.Meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logger.Info("store ready", "path", cfg.DBPath())

	renderer := chart.NewRenderer(cfg.ResourceDir())

	registry := tools.NewRegistry()
	for _, register := range []func() error{
		func() error { return tools.RegisterTaskTools(registry, st) },
		func() error { return tools.RegisterNoteTools(registry, st) },
		func() error { return tools.RegisterWeatherTool(registry, tools.NewWeatherClient(cfg.APIKey("amap"))) },
		func() error { return tools.RegisterSearchTool(registry, tools.NewSearchClient(cfg.APIKey("serp"))) },
		func() error { return tools.RegisterChartTool(registry, renderer) },
		func() error { return tools.RegisterStatsTool(registry, renderer) },
		func() error { return tools.RegisterMCPTools(registry, cfg) },
	} {
		if err := register(); err != nil {
			return fmt.Errorf("register tools: %w", err)
		}
	}
	logger.Info("tools registered", "count", len(registry.Names()))

	mcpGateway := mcp.NewGateway(logger)
	mcpGateway.Start(ctx, cfg.MCP.Services)
	defer mcpGateway.Close()

	journal, err := audit.Open(cfg.HomeDir)
	if err != nil {
		return fmt.Errorf("open call journal: %w", err)
	}
	defer journal.Close()

	dispatcher := dispatch.New(dispatch.Options{
		Registry:     registry,
		Remote:       mcpGateway,
		Journal:      journal,
		Logger:       logger,
		Tracer:       provider.Tracer,
		Metrics:      metrics,
		Workers:      cfg.Dispatch.Workers,
		MaxRetries:   cfg.Dispatch.MaxRetries,
		RetryBackoff: time.Duration(cfg.Dispatch.RetryBackoffMS) * time.Millisecond,
		CallTimeout:  cfg.CallTimeout(),
	})

	llm := orchestrator.NewClient(cfg.LLM, logger, provider.Tracer, metrics)
	asst := assistant.New(llm, dispatcher, registry, logger, metrics, cfg.LLM.MaxRounds)

	sweeper := retention.New(cfg.Retention, st, cfg.ResourceDir(), logger)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("start retention sweep: %w", err)
	}
	defer sweeper.Stop()

	switch mode {
	case "tui":
		logger.Info("starting terminal chat")
		return tui.Run(ctx, asst)
	default:
		return runWeb(ctx, cfg, asst, st, logger)
	}
}

func runWeb(ctx context.Context, cfg config.Config, asst *assistant.Assistant, st *store.Store, logger *slog.Logger) error {
	server := &http.Server{
		Addr: cfg.BindAddr,
		Handler: gateway.New(gateway.Config{
			Assistant:   asst,
			Store:       st,
			ResourceDir: cfg.ResourceDir(),
			Logger:      logger,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web ui listening", "addr", cfg.BindAddr)
		fmt.Printf("valet is running at http://%s\n", cfg.BindAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("web ui stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
