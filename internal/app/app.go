// Package app wires configuration into the estimator components shared by the
// server and the CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/joelkehle/legalquote/internal/classify"
	"github.com/joelkehle/legalquote/internal/config"
	"github.com/joelkehle/legalquote/internal/estimate"
	"github.com/joelkehle/legalquote/internal/pricing"
	"github.com/joelkehle/legalquote/internal/ratecard"
)

type Runtime struct {
	Catalog   *ratecard.Catalog
	Rates     *ratecard.RateTable
	Assembler *estimate.Assembler
}

// LoadTables reads the catalog and rate table from the SQL store when one is
// configured, otherwise from the YAML files.
func LoadTables(ctx context.Context, cfg config.Config) (*ratecard.Catalog, *ratecard.RateTable, error) {
	if !cfg.UsesDatabase() {
		return ratecard.LoadFiles(cfg.CatalogPath, cfg.RatesPath)
	}
	store, err := ratecard.OpenStore(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()
	return store.Load(ctx)
}

// NewCaller returns the Anthropic oracle, or nil when no API key is set; the
// adapter then always falls back to the default classification.
func NewCaller(cfg config.Config, logger *zap.Logger) classify.LLMCaller {
	if cfg.AnthropicAPIKey == "" {
		logger.Warn("ANTHROPIC_API_KEY not set, every request will use the default classification")
		return nil
	}
	caller, err := classify.NewAnthropicCaller(cfg.AnthropicAPIKey, cfg.LLMModel)
	if err != nil {
		logger.Warn("classifier disabled", zap.Error(err))
		return nil
	}
	return caller
}

func Build(ctx context.Context, cfg config.Config, caller classify.LLMCaller, logger *zap.Logger) (*Runtime, error) {
	catalog, rates, err := LoadTables(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load rate card: %w", err)
	}
	cc, err := cfg.ClassifierConfig()
	if err != nil {
		return nil, err
	}
	engine, err := pricing.NewEngine(pricing.Config{FallbackEffort: cfg.FallbackEffort()}, logger.Named("pricing"))
	if err != nil {
		return nil, err
	}
	if _, ok := rates.HourlyRate(); !ok {
		logger.Error("rate table has no standard hourly rate, estimates will fail")
	}
	adapter := classify.NewAdapter(caller, cc, logger.Named("classify"))
	return &Runtime{
		Catalog:   catalog,
		Rates:     rates,
		Assembler: estimate.NewAssembler(adapter, engine, logger.Named("estimate")),
	}, nil
}
