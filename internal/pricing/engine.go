package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/joelkehle/legalquote/internal/intake"
	"github.com/joelkehle/legalquote/internal/ratecard"
)

// ErrMissingBaseRate is the only pricing failure surfaced to callers.
var ErrMissingBaseRate = errors.New("rate table has no standard hourly rate")

var (
	DefaultFallbackEffort = decimal.NewFromInt(10)

	lowBand  = decimal.RequireFromString("0.8")
	highBand = decimal.RequireFromString("1.2")
)

type EffortSource string

const (
	EffortFromCatalog  EffortSource = "catalog"
	EffortFromFallback EffortSource = "fallback"
)

const notApplied = "not applied"

type Config struct {
	// FallbackEffort replaces a missing catalog entry. Zero means DefaultFallbackEffort.
	FallbackEffort decimal.Decimal
}

// Estimate is the priced result. Trace lists the steps in the order they ran.
type Estimate struct {
	Domain       string            `json:"domain"`
	Service      string            `json:"service"`
	Urgency      intake.Urgency    `json:"urgency"`
	Low          decimal.Decimal   `json:"low"`
	High         decimal.Decimal   `json:"high"`
	Currency     string            `json:"currency"`
	EffortHours  ratecard.Amount   `json:"-"`
	EffortSource EffortSource      `json:"effort_source"`
	Trace        []string          `json:"trace"`
	RatesUsed    map[string]string `json:"rates_used"`
}

type Engine struct {
	fallback decimal.Decimal
	logger   *zap.Logger
}

func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	if cfg.FallbackEffort.IsZero() {
		cfg.FallbackEffort = DefaultFallbackEffort
	}
	if !cfg.FallbackEffort.IsPositive() {
		return nil, fmt.Errorf("fallback effort must be positive, got %s", cfg.FallbackEffort)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{fallback: cfg.FallbackEffort, logger: logger}, nil
}

func (e *Engine) FallbackEffort() decimal.Decimal { return e.fallback }

// Price runs the pricing steps once per side of any range in the inputs. The
// low bound comes from the min side and the high bound from the max side.
func (e *Engine) Price(domain, service string, urgency intake.Urgency, catalog *ratecard.Catalog, rates *ratecard.RateTable) (Estimate, error) {
	est := Estimate{
		Domain:    domain,
		Service:   service,
		Urgency:   urgency,
		RatesUsed: map[string]string{},
	}

	hours, ok := catalog.Effort(domain, service)
	if ok {
		est.EffortSource = EffortFromCatalog
		est.Trace = append(est.Trace, fmt.Sprintf("effort: %s / %s = %s h (catalog)", domain, service, hours))
	} else {
		hours = ratecard.Fixed(e.fallback)
		est.EffortSource = EffortFromFallback
		est.Trace = append(est.Trace, fmt.Sprintf("effort: no catalog entry for %s / %s, fallback %s h", domain, service, hours))
		e.logger.Info("effort entry missing, using fallback",
			zap.String("domain", domain),
			zap.String("service", service),
			zap.String("fallback_hours", hours.String()))
	}
	est.EffortHours = hours

	rate, ok := rates.HourlyRate()
	if !ok {
		e.logger.Error("pricing aborted", zap.Error(ErrMissingBaseRate))
		return Estimate{}, ErrMissingBaseRate
	}
	est.Currency = rates.Currency()
	est.Trace = append(est.Trace, fmt.Sprintf("hourly rate: %s %s", rate, est.Currency))

	est.RatesUsed["currency"] = est.Currency
	est.RatesUsed["standard_hourly_rate"] = rate.String()
	if fee, ok := rates.FlatFee(service); ok {
		est.RatesUsed["flat_fee"] = fee.String()
	} else {
		est.RatesUsed["flat_fee"] = "none"
	}
	if urgency.Elevated() {
		est.RatesUsed["urgency_surcharge"] = rates.UrgencySurcharge().String()
	} else {
		est.RatesUsed["urgency_surcharge"] = notApplied
	}
	for _, f := range rates.FixedFees() {
		est.RatesUsed["fixed_fee."+f.Name] = f.Amount.String()
	}

	minRun := run(hours.Min, rate.Min, service, urgency, rates)
	if !hours.IsRange() && !rate.IsRange() {
		est.Trace = append(est.Trace, minRun.steps...)
		est.Low = minRun.base.Mul(lowBand).Round(0)
		est.High = minRun.base.Mul(highBand).Round(0)
		est.Trace = append(est.Trace, fmt.Sprintf("range: low = round(%s × %s) = %s, high = round(%s × %s) = %s",
			minRun.base, lowBand, est.Low, minRun.base, highBand, est.High))
		return est, nil
	}

	maxRun := run(hours.Max, rate.Max, service, urgency, rates)
	for _, s := range minRun.steps {
		est.Trace = append(est.Trace, "[min] "+s)
	}
	for _, s := range maxRun.steps {
		est.Trace = append(est.Trace, "[max] "+s)
	}
	est.Low = minRun.base.Mul(lowBand).Round(0)
	est.High = maxRun.base.Mul(highBand).Round(0)
	est.Trace = append(est.Trace, fmt.Sprintf("range: low = round(%s × %s) = %s, high = round(%s × %s) = %s",
		minRun.base, lowBand, est.Low, maxRun.base, highBand, est.High))
	return est, nil
}

type sideRun struct {
	base  decimal.Decimal
	steps []string
}

// run prices one side. The surcharge is applied once, after the flat-fee
// comparison and before fixed fees.
func run(hours, rate decimal.Decimal, service string, urgency intake.Urgency, rates *ratecard.RateTable) sideRun {
	var steps []string

	base := hours.Mul(rate)
	steps = append(steps, fmt.Sprintf("base estimate: %s h × %s = %s", hours, rate, base))

	if fee, ok := rates.FlatFee(service); ok {
		chosen := decimal.Min(base, fee)
		steps = append(steps, fmt.Sprintf("flat fee: min(%s, %s) = %s", base, fee, chosen))
		base = chosen
	} else {
		steps = append(steps, fmt.Sprintf("flat fee: none for %s", service))
	}

	if urgency.Elevated() {
		factor := rates.UrgencySurcharge()
		next := base.Mul(factor)
		steps = append(steps, fmt.Sprintf("urgency surcharge: %s × %s = %s", base, factor, next))
		base = next
	} else {
		steps = append(steps, "urgency surcharge: "+notApplied)
	}

	for _, f := range rates.FixedFees() {
		next := base.Add(f.Amount)
		steps = append(steps, fmt.Sprintf("fixed fee %s: %s + %s = %s", f.Name, base, f.Amount, next))
		base = next
	}

	return sideRun{base: base, steps: steps}
}
