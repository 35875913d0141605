package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/agenthands/ifcsync/internal/backend"
	"github.com/agenthands/ifcsync/internal/config"
	"github.com/agenthands/ifcsync/internal/core"
	"github.com/agenthands/ifcsync/internal/core/conflict"
	"github.com/agenthands/ifcsync/internal/core/highlight"
	"github.com/agenthands/ifcsync/internal/core/ingest"
	"github.com/agenthands/ifcsync/internal/driver"
	"github.com/agenthands/ifcsync/internal/journal"
	"github.com/agenthands/ifcsync/internal/llm"
	"github.com/agenthands/ifcsync/internal/logger"
	"github.com/agenthands/ifcsync/internal/metrics"
	"github.com/agenthands/ifcsync/internal/scene"
	"github.com/agenthands/ifcsync/internal/server"
	"github.com/agenthands/ifcsync/internal/view/graphview"
	"github.com/agenthands/ifcsync/internal/view/viewer3d"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Warning: %v. Using defaults", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client := backend.New(cfg.Backend.BaseURL, time.Duration(cfg.Backend.TimeoutSeconds)*time.Second, lg)

	var graph core.GraphSource = client
	if cfg.Graph.Source == "bolt" {
		d, err := driver.NewBoltDriver(ctx, cfg.Bolt.URI, cfg.Bolt.User, cfg.Bolt.Password, cfg.Bolt.Database, lg)
		if err != nil {
			lg.Fatal("Failed to connect to bolt database", "uri", cfg.Bolt.URI, "error", err)
		}
		defer d.Close(context.Background())
		if err := d.BuildIndices(ctx); err != nil {
			lg.Warn("Failed to build indices", "error", err)
		}
		graph = driver.NewOntologyStore(d, cfg.Graph.MaxRelations, lg)
	}

	llmClient, err := llm.NewClient(ctx, cfg.LLM, lg)
	if err != nil {
		lg.Fatal("Failed to initialize LLM client", "provider", cfg.LLM.Provider, "error", err)
	}
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	colors := cfg.Viewer.Colors
	palette := scene.NewPalette(colors.Default, colors.Wall, colors.WallOpacity, colors.Conflict, colors.Picked, cfg.Viewer.WallTypes)
	loader := ingest.NewGLTFLoader(cfg.Viewer.AssetDir, client.FetchAsset, lg)

	engine := core.NewEngine(core.Deps{
		Validator: client,
		Graph:     graph,
		Ingestor:  ingest.NewIngestor(palette, cfg.Viewer.UpAxis, loader, lg, m),
		Enricher:  conflict.NewEnricher(llmClient, cfg.LLM.SuggestionPrompt, lg),
		Machine:   highlight.NewMachine(palette),
		Viewer:    viewer3d.NewController(viewer3d.NewHeadless(cfg.Viewer.FieldOfView), cfg.Viewer.FramingMargin, lg),
		GraphView: graphview.NewController(graphview.NewHeadless(), graphview.FocusOptions{
			Scale:  cfg.Graph.FocusScale,
			Millis: cfg.Graph.FocusMillis,
			Easing: cfg.Graph.FocusEasing,
		}, lg),
		Journal: journal.New(0, lg),
		Metrics: m,
		Log:     lg,
	}, core.Options{
		MaxGraphNodes: cfg.Graph.MaxRelations,
		Reconcile3D:   cfg.Graph.Reconcile3D,
	})

	srv := server.NewServer(engine, cfg.Server, reg, lg)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("Starting server", "port", cfg.Server.Port, "backend", cfg.Backend.BaseURL, "graph_source", cfg.Graph.Source)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("Server failed", "error", err)
		}
	}()

	<-ctx.Done()
	lg.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		lg.Error("Graceful shutdown failed", "error", err)
	}
}
