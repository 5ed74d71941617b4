// Package main is the entry point for the map server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Bubblbu/sica-mapping/internal/api"
	"github.com/Bubblbu/sica-mapping/internal/config"
	"github.com/Bubblbu/sica-mapping/internal/engine"
	"github.com/Bubblbu/sica-mapping/internal/filter"
	"github.com/Bubblbu/sica-mapping/internal/layer"
	"github.com/Bubblbu/sica-mapping/internal/loader"
	"github.com/Bubblbu/sica-mapping/internal/middleware"
	"github.com/Bubblbu/sica-mapping/internal/registry"
	"github.com/Bubblbu/sica-mapping/internal/stream"
	"github.com/Bubblbu/sica-mapping/internal/summary"
	"github.com/Bubblbu/sica-mapping/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("SICA Map Server")
		fmt.Println()
		fmt.Println("Usage: mapd [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	logger.Info("configuration loaded")
	for k, v := range cfg.LogSummary() {
		logger.Debug("config", k, v)
	}

	// Distributed tracing, enabled via TRACING_ENABLED.
	tracingProvider, err := tracing.NewProvider(tracingConfigFromEnv(cfg.Env))
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingProvider.Shutdown(ctx); err != nil {
			logger.Error("failed to shut down tracing", "error", err)
		}
	}()

	ctx := context.Background()

	// Fetch the startup resources and the block polygons.
	ld := loader.New()
	res, err := ld.Load(ctx, loader.Sources{
		FilterConfig:   cfg.FilterConfigURL,
		MarkerMetadata: cfg.MarkerMetadataURL,
		Records:        cfg.BuildingRecordsURL,
		Bundle:         cfg.BundleURL,
	})
	if err != nil {
		logger.Error("failed to load startup resources", "error", err)
		os.Exit(1)
	}
	polys, err := ld.LoadBlocks(ctx, cfg.BlocksGeoJSONURL)
	if err != nil {
		logger.Error("failed to load block polygons", "error", err)
		os.Exit(1)
	}
	logger.Info("startup resources loaded",
		"buildings", len(res.MarkerMetadata),
		"blocks", len(polys),
	)

	// Materialize one marker per metadata record, deriving any omitted
	// style attributes, and link everything into the registry.
	markers, bounds := materializeMarkers(res.MarkerMetadata)
	resolve := registry.MarkerResolverFunc(func(markerVar string) (layer.Marker, bool) {
		mk, ok := markers[markerVar]
		if !ok {
			return nil, false
		}
		return mk, true
	})

	reg, err := registry.Build(polys, res.MarkerMetadata, resolve, logger)
	if err != nil {
		logger.Error("failed to build entity registry", "error", err)
		os.Exit(1)
	}

	view := layer.NewMemMap(defaultZoom, bounds)
	view.SetReady(true)

	// Metrics registry shared by all components.
	promReg := prometheus.NewRegistry()

	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(promReg); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	engineMetrics := engine.NewMetrics()
	if err := engineMetrics.Register(promReg); err != nil {
		logger.Error("failed to register engine metrics", "error", err)
		os.Exit(1)
	}
	streamMetrics := stream.NewMetrics()
	if err := streamMetrics.Register(promReg); err != nil {
		logger.Error("failed to register stream metrics", "error", err)
		os.Exit(1)
	}
	filterMetrics := filter.NewMetrics()
	if err := filterMetrics.Register(promReg); err != nil {
		logger.Error("failed to register filter metrics", "error", err)
		os.Exit(1)
	}

	var metricCfgs map[string]filter.MetricConfig
	var totals *summary.DatasetTotals
	if res.FilterConfig != nil {
		metricCfgs = res.FilterConfig.Metrics
		totals = res.FilterConfig.DatasetTotals
	}
	eng := engine.New(reg, metricCfgs, view, logger, engine.Options{
		Totals:        totals,
		Metrics:       engineMetrics,
		FilterMetrics: filterMetrics,
		ReadyAttempts: cfg.ReadyAttempts,
		ReadyInterval: time.Duration(cfg.ReadyIntervalMS) * time.Millisecond,
	})

	broadcaster := stream.NewBroadcaster(logger, streamMetrics)
	handlers := api.NewHandlers(eng, reg, broadcaster, res.FilterConfig)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	handler := middleware.RequestID(
		middleware.Tracing("sica-mapping")(
			middleware.Logging(logger)(
				middleware.HTTPMetrics(httpMetrics)(
					middleware.CORS(middleware.CORSConfig{
						AllowedOrigins: cfg.Origins(),
					})(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Wait for the map view before accepting interaction events.
	go func() {
		if err := eng.WaitReady(ctx); err != nil {
			logger.Error("map view never became ready", "error", err)
			os.Exit(1)
		}
		handlers.SetReady(true)
		logger.Info("engine ready, accepting events")
	}()

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

const defaultZoom = 13

// tracingConfigFromEnv builds the tracing configuration from environment
// variables, disabled unless TRACING_ENABLED is truthy.
func tracingConfigFromEnv(env string) tracing.Config {
	enabled := false
	switch os.Getenv("TRACING_ENABLED") {
	case "true", "1", "yes", "on":
		enabled = true
	}

	samplingRate := 1.0
	if v := os.Getenv("TRACING_SAMPLING_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			samplingRate = f
		}
	}

	exporter := os.Getenv("TRACING_EXPORTER")
	if exporter == "" {
		exporter = "otlp-grpc"
	}

	return tracing.Config{
		ServiceName:  "sica-mapping",
		Enabled:      enabled,
		Environment:  env,
		ExporterType: exporter,
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
		SamplingRate: samplingRate,
		InsecureMode: env != "production",
	}
}
