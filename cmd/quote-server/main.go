package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/joelkehle/legalquote/internal/app"
	"github.com/joelkehle/legalquote/internal/config"
	"github.com/joelkehle/legalquote/internal/httpapi"
	"github.com/joelkehle/legalquote/internal/logging"
	"github.com/joelkehle/legalquote/internal/quotedoc"
	"github.com/joelkehle/legalquote/internal/telemetry"
)

var version = "dev"

func main() {
	var (
		configPath = flag.String("config", "", "path to config.yaml (default: CONFIG_PATH or ./config.yaml)")
		addr       = flag.String("addr", "", "listen address (overrides listen_addr)")
		noPDF      = flag.Bool("no-pdf", false, "disable PDF report rendering")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	if cfg.Source != "" {
		logger.Info("loaded config", zap.String("path", cfg.Source))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, "legalquote", version)
	if err != nil {
		logger.Fatal("telemetry setup failed", zap.Error(err))
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	rt, err := app.Build(ctx, cfg, app.NewCaller(cfg, logger), logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}

	opts := httpapi.Options{
		Assembler: rt.Assembler,
		Catalog:   rt.Catalog,
		Rates:     rt.Rates,
		Logger:    logger.Named("http"),
	}
	if !*noPDF {
		renderer := quotedoc.NewChromiumPDFRenderer(cfg.ChromePath)
		if renderer.ChromePath() == "" {
			logger.Warn("no chromium found, pdf reports may fail; set CHROME_PATH or pass --no-pdf")
		}
		opts.PDF = renderer
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.NewServer(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		_ = srv.Shutdown(sctx)
	}()

	logger.Info("quote-server listening",
		zap.String("addr", cfg.ListenAddr),
		zap.Int("catalog_services", rt.Catalog.Len()),
		zap.String("currency", rt.Rates.Currency()),
		zap.String("version", version))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}
