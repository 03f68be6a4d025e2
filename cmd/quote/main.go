// Command quote runs the estimator from a terminal.
//
// Usage:
//
//	quote estimate --text "..." --client individual_employee [--urgency urgent] [--format json|markdown|html]
//	quote estimate --server http://localhost:8080 --text "..." --format pdf > quote.pdf
//	quote catalog
//	quote import --db-driver sqlite --db-dsn ./legalquote.db
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/joelkehle/legalquote/internal/app"
	"github.com/joelkehle/legalquote/internal/config"
	"github.com/joelkehle/legalquote/internal/estimate"
	"github.com/joelkehle/legalquote/internal/intake"
	"github.com/joelkehle/legalquote/internal/logging"
	"github.com/joelkehle/legalquote/internal/quoteclient"
	"github.com/joelkehle/legalquote/internal/quotedoc"
	"github.com/joelkehle/legalquote/internal/ratecard"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "quote",
		Usage:   "Classify a legal question and estimate its price",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to config.yaml",
				EnvVars: []string{"CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:  "catalog",
				Usage: "Catalog YAML file (overrides catalog_path)",
			},
			&cli.StringFlag{
				Name:  "rates",
				Usage: "Rate table YAML file (overrides rates_path)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			estimateCommand(),
			catalogCommand(),
			importCommand(),
		},
	}
}

func loadConfig(c *cli.Context) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, nil, err
	}
	if v := c.String("catalog"); v != "" {
		cfg.CatalogPath = v
	}
	if v := c.String("rates"); v != "" {
		cfg.RatesPath = v
	}
	level := cfg.LogLevel
	if c.IsSet("log-level") || cfg.Source == "" {
		level = c.String("log-level")
	}
	logger, err := logging.New(level)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func estimateCommand() *cli.Command {
	return &cli.Command{
		Name:  "estimate",
		Usage: "Estimate the price of a legal question",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "text",
				Aliases:  []string{"t"},
				Usage:    "Problem description, or - to read it from stdin",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "client",
				Aliases: []string{"c"},
				Value:   string(intake.ClientEmployee),
				Usage:   "Client type: " + clientTypeList(),
			},
			&cli.StringFlag{
				Name:    "urgency",
				Aliases: []string{"u"},
				Value:   string(intake.UrgencyNormal),
				Usage:   "Urgency (normal, urgent)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "json",
				Usage:   "Output format (json, markdown, html; pdf with --server)",
			},
			&cli.StringFlag{
				Name:    "server",
				Usage:   "Ask a running quote-server instead of estimating locally",
				EnvVars: []string{"QUOTE_SERVER_URL"},
			},
		},
		Action: runEstimate,
	}
}

func clientTypeList() string {
	var codes []string
	for _, ct := range intake.ClientTypes() {
		codes = append(codes, string(ct))
	}
	return strings.Join(codes, ", ")
}

func runEstimate(c *cli.Context) error {
	format := strings.ToLower(c.String("format"))
	remote := c.String("server") != ""
	switch {
	case format == "json", format == "markdown", format == "html":
	case format == "pdf" && remote:
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	text := c.String("text")
	if text == "-" {
		b, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(b)
	}
	req := intake.Request{
		Text:       text,
		ClientType: intake.ClientType(c.String("client")),
		Urgency:    intake.Urgency(c.String("urgency")),
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if remote {
		return runRemoteEstimate(ctx, c.App.Writer, quoteclient.NewClient(c.String("server")), req, format)
	}

	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	rt, err := app.Build(ctx, cfg, app.NewCaller(cfg, logger), logger)
	if err != nil {
		return err
	}
	res, err := rt.Assembler.Assemble(ctx, req, rt.Catalog, rt.Rates)
	if err != nil {
		return err
	}

	out := c.App.Writer
	switch format {
	case "markdown":
		_, err = io.WriteString(out, estimate.BuildMarkdown(res))
	case "html":
		var doc string
		doc, err = quotedoc.HTML(estimate.BuildMarkdown(res), quotedoc.Meta{Reference: res.RequestID, Date: res.CreatedAt})
		if err == nil {
			_, err = io.WriteString(out, doc)
		}
	default:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(estimate.BuildResponse(res))
	}
	return err
}

func runRemoteEstimate(ctx context.Context, out io.Writer, client *quoteclient.Client, req intake.Request, format string) error {
	if format == "json" {
		env, err := client.Estimate(ctx, req)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}
	body, _, err := client.Report(ctx, req, format)
	if err != nil {
		return err
	}
	_, err = out.Write(body)
	return err
}

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "List domains, services and expected effort",
		Action: func(c *cli.Context) error {
			cfg, _, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx := c.Context
			if ctx == nil {
				ctx = context.Background()
			}
			catalog, rates, err := app.LoadTables(ctx, cfg)
			if err != nil {
				return err
			}
			return printCatalog(c.App.Writer, catalog, rates)
		},
	}
}

func printCatalog(w io.Writer, catalog *ratecard.Catalog, rates *ratecard.RateTable) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tSERVICE\tHOURS\tFLAT FEE")
	for _, d := range catalog.Domains() {
		for _, s := range d.Services {
			flat := "-"
			if fee, ok := rates.FlatFee(s.Name); ok {
				flat = fee.String() + " " + rates.Currency()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, s.Name, s.Hours, flat)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if rate, ok := rates.HourlyRate(); ok {
		fmt.Fprintf(w, "\nStandard hourly rate: %s %s\n", rate, rates.Currency())
	} else {
		fmt.Fprintf(w, "\nStandard hourly rate: not configured\n")
	}
	fmt.Fprintf(w, "Urgency surcharge: x%s\n", rates.UrgencySurcharge())
	for _, f := range rates.FixedFees() {
		fmt.Fprintf(w, "Fixed fee %s: %s %s\n", f.Name, f.Amount, rates.Currency())
	}
	return nil
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Copy the YAML catalog and rate table into a SQL store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db-driver",
				Value:   "sqlite",
				Usage:   "SQL driver (sqlite, postgres)",
				EnvVars: []string{"DB_DRIVER"},
			},
			&cli.StringFlag{
				Name:     "db-dsn",
				Usage:    "Database file (sqlite) or connection string (postgres)",
				EnvVars:  []string{"DB_DSN"},
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			catalog, rates, err := ratecard.LoadFiles(cfg.CatalogPath, cfg.RatesPath)
			if err != nil {
				return err
			}
			store, err := ratecard.OpenStore(c.String("db-driver"), c.String("db-dsn"))
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := c.Context
			if ctx == nil {
				ctx = context.Background()
			}
			if err := store.Replace(ctx, catalog, rates); err != nil {
				return err
			}
			logger.Info("rate card imported", zap.String("driver", c.String("db-driver")), zap.Int("services", catalog.Len()))
			fmt.Fprintf(c.App.Writer, "imported %d services into %s store\n", catalog.Len(), c.String("db-driver"))
			return nil
		},
	}
}
