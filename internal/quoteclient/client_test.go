package quoteclient

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joelkehle/legalquote/internal/classify"
	"github.com/joelkehle/legalquote/internal/estimate"
	"github.com/joelkehle/legalquote/internal/httpapi"
	"github.com/joelkehle/legalquote/internal/intake"
	"github.com/joelkehle/legalquote/internal/pricing"
	"github.com/joelkehle/legalquote/internal/ratecard"
)

type fixedCaller string

func (f fixedCaller) Generate(context.Context, string, string) (string, error) {
	return string(f), nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	catalog, rates, err := ratecard.LoadFiles("../../configs/catalog.yaml", "../../configs/rates.yaml")
	if err != nil {
		t.Fatal(err)
	}
	engine, err := pricing.NewEngine(pricing.Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	adapter := classify.NewAdapter(fixedCaller("Droit du travail, Licenciement, 85"), classify.Config{}, nil)
	srv := httptest.NewServer(httpapi.NewServer(httpapi.Options{
		Assembler: estimate.NewAssembler(adapter, engine, nil),
		Catalog:   catalog,
		Rates:     rates,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	h, err := NewClient(srv.URL + "/").Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !h.OK || h.Services != 12 {
		t.Fatalf("health=%+v", h)
	}
}

func TestEstimate(t *testing.T) {
	srv := newTestServer(t)
	env, err := NewClient(srv.URL).Estimate(context.Background(), intake.Request{
		Text:       "Mon employeur veut me licencier",
		ClientType: intake.ClientEmployee,
		Urgency:    intake.UrgencyNormal,
	})
	if err != nil {
		t.Fatal(err)
	}
	if env.Domain != "Droit du travail" || env.Service != "Licenciement" {
		t.Fatalf("classification=%s/%s", env.Domain, env.Service)
	}
	if env.Low.String() == "" || env.High.String() == "" || env.Currency != "EUR" {
		t.Fatalf("envelope=%+v", env)
	}
	if env.RequestID == "" || env.Disclaimer == "" {
		t.Fatalf("missing request id or disclaimer: %+v", env)
	}
}

func TestEstimateValidationError(t *testing.T) {
	srv := newTestServer(t)
	_, err := NewClient(srv.URL).Estimate(context.Background(), intake.Request{Text: "  ", ClientType: intake.ClientEmployee})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != 400 || apiErr.Code != httpapi.CodeValidation {
		t.Fatalf("apiErr=%+v", apiErr)
	}
}

func TestReportMarkdownAndMissingPDF(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL)
	req := intake.Request{Text: "licenciement", ClientType: intake.ClientEmployee}

	body, ctype, err := c.Report(context.Background(), req, "markdown")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ctype, "text/markdown") || !strings.Contains(string(body), "# Indicative Legal Quote") {
		t.Fatalf("content-type=%q body=%s", ctype, body)
	}

	_, _, err = c.Report(context.Background(), req, "pdf")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 503 {
		t.Fatalf("expected 503 without a pdf renderer, got %v", err)
	}
}
