package pricing

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/joelkehle/legalquote/internal/intake"
	"github.com/joelkehle/legalquote/internal/ratecard"
)

const testRatesYAML = `
currency: EUR
standard_hourly_rate: 150
urgency_surcharge: 1.5
flat_fees:
  Création d'entreprise: 800
fixed_fees:
  - name: frais_de_dossier
    amount: 50
`

func mustLoad(t *testing.T, ratesYAML string) (*ratecard.Catalog, *ratecard.RateTable) {
	t.Helper()
	catalog, err := ratecard.LoadCatalogFile("../../configs/catalog.yaml")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	rates, err := ratecard.ParseRates([]byte(ratesYAML))
	if err != nil {
		t.Fatalf("parse rates: %v", err)
	}
	return catalog, rates
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(Config{}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestPriceScalarNormal(t *testing.T) {
	catalog, rates := mustLoad(t, testRatesYAML)
	got, err := newTestEngine(t).Price("Droit du travail", "Licenciement", intake.UrgencyNormal, catalog, rates)
	if err != nil {
		t.Fatal(err)
	}
	assertRange(t, got, "1240", "1860")

	wantTrace := []string{
		"effort: Droit du travail / Licenciement = 10 h (catalog)",
		"hourly rate: 150 EUR",
		"base estimate: 10 h × 150 = 1500",
		"flat fee: none for Licenciement",
		"urgency surcharge: not applied",
		"fixed fee frais_de_dossier: 1500 + 50 = 1550",
		"range: low = round(1550 × 0.8) = 1240, high = round(1550 × 1.2) = 1860",
	}
	if diff := cmp.Diff(wantTrace, got.Trace); diff != "" {
		t.Fatalf("trace mismatch (-want +got):\n%s", diff)
	}

	wantRates := map[string]string{
		"currency":                   "EUR",
		"standard_hourly_rate":       "150",
		"flat_fee":                   "none",
		"urgency_surcharge":          "not applied",
		"fixed_fee.frais_de_dossier": "50",
	}
	if diff := cmp.Diff(wantRates, got.RatesUsed); diff != "" {
		t.Fatalf("rates used mismatch (-want +got):\n%s", diff)
	}
	if got.EffortSource != EffortFromCatalog {
		t.Fatalf("effort source = %s", got.EffortSource)
	}
}

func TestPriceUrgentAppliesSurchargeOnce(t *testing.T) {
	catalog, rates := mustLoad(t, testRatesYAML)
	e := newTestEngine(t)

	got, err := e.Price("Droit du travail", "Licenciement", intake.UrgencyUrgent, catalog, rates)
	if err != nil {
		t.Fatal(err)
	}
	// 1500 × 1.5 = 2250, then + 50.
	assertRange(t, got, "1840", "2760")
	if n := countPrefix(got.Trace, "urgency surcharge:"); n != 1 {
		t.Fatalf("surcharge appears %d times in trace", n)
	}
	if got.RatesUsed["urgency_surcharge"] != "1.5" {
		t.Fatalf("rates used surcharge = %q", got.RatesUsed["urgency_surcharge"])
	}

	// Flat fee present: 6 h × 150 = 900, capped at 800, × 1.5 = 1200, + 50.
	got, err = e.Price("Droit des sociétés", "Création d'entreprise", intake.UrgencyUrgent, catalog, rates)
	if err != nil {
		t.Fatal(err)
	}
	assertRange(t, got, "1000", "1500")
	if n := countPrefix(got.Trace, "urgency surcharge:"); n != 1 {
		t.Fatalf("surcharge appears %d times in trace", n)
	}
}

func TestPriceFlatFeeCapsBase(t *testing.T) {
	catalog, rates := mustLoad(t, testRatesYAML)
	got, err := newTestEngine(t).Price("Droit des sociétés", "Création d'entreprise", intake.UrgencyNormal, catalog, rates)
	if err != nil {
		t.Fatal(err)
	}
	// min(900, 800) + 50 = 850.
	assertRange(t, got, "680", "1020")
	if !containsLine(got.Trace, "flat fee: min(900, 800) = 800") {
		t.Fatalf("flat fee step missing from trace: %v", got.Trace)
	}
	if got.RatesUsed["flat_fee"] != "800" {
		t.Fatalf("rates used flat fee = %q", got.RatesUsed["flat_fee"])
	}
}

func TestPriceFlatFeeAboveBaseKeepsBase(t *testing.T) {
	catalog, rates := mustLoad(t, `
standard_hourly_rate: 150
urgency_surcharge: 1.5
flat_fees:
  Licenciement: 5000
`)
	got, err := newTestEngine(t).Price("Droit du travail", "Licenciement", intake.UrgencyNormal, catalog, rates)
	if err != nil {
		t.Fatal(err)
	}
	assertRange(t, got, "1200", "1800")
}

func TestPriceEffortRange(t *testing.T) {
	catalog, rates := mustLoad(t, testRatesYAML)
	got, err := newTestEngine(t).Price("Droit du travail", "Rupture conventionnelle", intake.UrgencyNormal, catalog, rates)
	if err != nil {
		t.Fatal(err)
	}
	// min side: 4 × 150 + 50 = 650; max side: 8 × 150 + 50 = 1250.
	assertRange(t, got, "520", "1500")
	if countPrefix(got.Trace, "[min] ") == 0 || countPrefix(got.Trace, "[max] ") == 0 {
		t.Fatalf("expected both sides in trace: %v", got.Trace)
	}
}

func TestPriceRateRange(t *testing.T) {
	catalog, rates := mustLoad(t, `
standard_hourly_rate: {min: 150, max: 200}
urgency_surcharge: 1.5
fixed_fees:
  - {name: frais_de_dossier, amount: 50}
`)
	got, err := newTestEngine(t).Price("Droit du travail", "Licenciement", intake.UrgencyNormal, catalog, rates)
	if err != nil {
		t.Fatal(err)
	}
	// 1550 × 0.8 and 2050 × 1.2.
	assertRange(t, got, "1240", "2460")
	if got.RatesUsed["standard_hourly_rate"] != "150-200" {
		t.Fatalf("rates used hourly = %q", got.RatesUsed["standard_hourly_rate"])
	}
}

func TestPriceUnknownServiceFallsBack(t *testing.T) {
	catalog, rates := mustLoad(t, testRatesYAML)
	got, err := newTestEngine(t).Price("Je ne sais pas", "general service", intake.UrgencyNormal, catalog, rates)
	if err != nil {
		t.Fatalf("unknown pair must not fail: %v", err)
	}
	if got.EffortSource != EffortFromFallback {
		t.Fatalf("effort source = %s", got.EffortSource)
	}
	if !strings.Contains(got.Trace[0], "fallback 10 h") {
		t.Fatalf("fallback not recorded in trace: %q", got.Trace[0])
	}
	assertRange(t, got, "1240", "1860")
}

func TestPriceLookupIsCaseSensitive(t *testing.T) {
	catalog, rates := mustLoad(t, testRatesYAML)
	got, err := newTestEngine(t).Price("droit du travail", "licenciement", intake.UrgencyNormal, catalog, rates)
	if err != nil {
		t.Fatal(err)
	}
	if got.EffortSource != EffortFromFallback {
		t.Fatal("expected case-mismatched pair to use the fallback")
	}
}

func TestPriceCustomFallbackEffort(t *testing.T) {
	catalog, rates := mustLoad(t, testRatesYAML)
	e, err := NewEngine(Config{FallbackEffort: decimal.NewFromInt(2)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.Price("x", "y", intake.UrgencyNormal, catalog, rates)
	if err != nil {
		t.Fatal(err)
	}
	// 2 × 150 + 50 = 350.
	assertRange(t, got, "280", "420")
}

func TestNewEngineRejectsNegativeFallback(t *testing.T) {
	if _, err := NewEngine(Config{FallbackEffort: decimal.NewFromInt(-1)}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestPriceMissingBaseRate(t *testing.T) {
	catalog, rates := mustLoad(t, "urgency_surcharge: 1.5\n")
	_, err := newTestEngine(t).Price("Droit du travail", "Licenciement", intake.UrgencyNormal, catalog, rates)
	if !errors.Is(err, ErrMissingBaseRate) {
		t.Fatalf("err = %v, want ErrMissingBaseRate", err)
	}
}

func TestPriceRoundsHalfUp(t *testing.T) {
	catalog, err := ratecard.ParseCatalog([]byte("domains:\n  - name: D\n    services:\n      - {name: S, hours: 1}\n"))
	if err != nil {
		t.Fatal(err)
	}
	rates, err := ratecard.ParseRates([]byte("standard_hourly_rate: 100.625\nurgency_surcharge: 1.5\n"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := newTestEngine(t).Price("D", "S", intake.UrgencyNormal, catalog, rates)
	if err != nil {
		t.Fatal(err)
	}
	// 80.5 and 120.75.
	assertRange(t, got, "81", "121")
}

func TestPriceLowNeverExceedsHigh(t *testing.T) {
	catalog, err := ratecard.LoadCatalogFile("../../configs/catalog.yaml")
	if err != nil {
		t.Fatal(err)
	}
	rates, err := ratecard.LoadRatesFile("../../configs/rates.yaml")
	if err != nil {
		t.Fatal(err)
	}
	e := newTestEngine(t)
	for _, d := range catalog.Domains() {
		for _, s := range d.Services {
			for _, u := range []intake.Urgency{intake.UrgencyNormal, intake.UrgencyUrgent} {
				got, err := e.Price(d.Name, s.Name, u, catalog, rates)
				if err != nil {
					t.Fatalf("%s / %s: %v", d.Name, s.Name, err)
				}
				if got.Low.GreaterThan(got.High) {
					t.Errorf("%s / %s (%s): low %s > high %s", d.Name, s.Name, u, got.Low, got.High)
				}
				if got.EffortSource != EffortFromCatalog {
					t.Errorf("%s / %s: catalog pair priced from fallback", d.Name, s.Name)
				}
			}
		}
	}
}

func assertRange(t *testing.T, got Estimate, low, high string) {
	t.Helper()
	if got.Low.String() != low || got.High.String() != high {
		t.Fatalf("range = %s-%s, want %s-%s\ntrace: %s", got.Low, got.High, low, high, strings.Join(got.Trace, "\n"))
	}
}

func countPrefix(lines []string, prefix string) int {
	n := 0
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func containsLine(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}
