package ratecard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "EUR"

type FixedFee struct {
	Name   string
	Amount decimal.Decimal
}

type FeeSpec struct {
	Name   string `yaml:"name"`
	Amount Amount `yaml:"amount"`
}

// RateSpec is the on-disk shape of the rate table.
type RateSpec struct {
	Currency               string            `yaml:"currency"`
	StandardHourlyRate     *Amount           `yaml:"standard_hourly_rate"`
	FlatFees               map[string]Amount `yaml:"flat_fees"`
	UrgencySurcharge       Amount            `yaml:"urgency_surcharge"`
	FixedFees              []FeeSpec         `yaml:"fixed_fees"`
	InitialConsultationFee *Amount           `yaml:"initial_consultation_fee"`
}

// RateTable is the validated, read-only view of a RateSpec.
type RateTable struct {
	currency         string
	hourlyRate       *Amount
	flatFees         map[string]decimal.Decimal
	urgencySurcharge decimal.Decimal
	fixedFees        []FixedFee
	consultationFee  *decimal.Decimal
}

// NewRateTable validates spec. A missing standard hourly rate is accepted here:
// it is a pricing-time configuration error, not a load-time one.
func NewRateTable(spec RateSpec) (*RateTable, error) {
	var errs []error
	rt := &RateTable{
		currency: strings.ToUpper(strings.TrimSpace(spec.Currency)),
		flatFees: map[string]decimal.Decimal{},
	}
	if rt.currency == "" {
		rt.currency = DefaultCurrency
	}
	if spec.StandardHourlyRate != nil {
		if err := spec.StandardHourlyRate.validate(); err != nil {
			errs = append(errs, fmt.Errorf("standard_hourly_rate: %w", err))
		} else if !spec.StandardHourlyRate.Min.IsPositive() {
			errs = append(errs, errors.New("standard_hourly_rate must be positive"))
		} else {
			r := *spec.StandardHourlyRate
			rt.hourlyRate = &r
		}
	}
	for service, fee := range spec.FlatFees {
		if fee.IsRange() {
			errs = append(errs, fmt.Errorf("flat_fees[%s]: must be a single amount", service))
			continue
		}
		if err := fee.validate(); err != nil {
			errs = append(errs, fmt.Errorf("flat_fees[%s]: %w", service, err))
			continue
		}
		rt.flatFees[strings.TrimSpace(service)] = fee.Min
	}
	if spec.UrgencySurcharge.IsRange() || !spec.UrgencySurcharge.Min.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("urgency_surcharge must be a single factor greater than 1.0, got %s", spec.UrgencySurcharge))
	} else {
		rt.urgencySurcharge = spec.UrgencySurcharge.Min
	}
	for i, f := range spec.FixedFees {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("fixed_fees[%d]: name is required", i))
			continue
		}
		if f.Amount.IsRange() {
			errs = append(errs, fmt.Errorf("fixed_fees[%s]: must be a single amount", name))
			continue
		}
		if err := f.Amount.validate(); err != nil {
			errs = append(errs, fmt.Errorf("fixed_fees[%s]: %w", name, err))
			continue
		}
		rt.fixedFees = append(rt.fixedFees, FixedFee{Name: name, Amount: f.Amount.Min})
	}
	if spec.InitialConsultationFee != nil {
		if spec.InitialConsultationFee.IsRange() || spec.InitialConsultationFee.validate() != nil {
			errs = append(errs, errors.New("initial_consultation_fee must be a single non-negative amount"))
		} else {
			v := spec.InitialConsultationFee.Min
			rt.consultationFee = &v
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid rate table: %w", errors.Join(errs...))
	}
	return rt, nil
}

func (r *RateTable) Currency() string { return r.currency }

// HourlyRate reports the standard hourly rate, or false when the table has none.
func (r *RateTable) HourlyRate() (Amount, bool) {
	if r == nil || r.hourlyRate == nil {
		return Amount{}, false
	}
	return *r.hourlyRate, true
}

func (r *RateTable) FlatFee(service string) (decimal.Decimal, bool) {
	fee, ok := r.flatFees[service]
	return fee, ok
}

func (r *RateTable) UrgencySurcharge() decimal.Decimal { return r.urgencySurcharge }

// FixedFees returns the additional fees in declaration order.
func (r *RateTable) FixedFees() []FixedFee {
	return append([]FixedFee(nil), r.fixedFees...)
}

func (r *RateTable) InitialConsultationFee() (decimal.Decimal, bool) {
	if r.consultationFee == nil {
		return decimal.Zero, false
	}
	return *r.consultationFee, true
}

// Spec converts the table back to its on-disk shape, for export to a Store.
func (r *RateTable) Spec() RateSpec {
	spec := RateSpec{
		Currency:         r.currency,
		FlatFees:         map[string]Amount{},
		UrgencySurcharge: Fixed(r.urgencySurcharge),
	}
	if r.hourlyRate != nil {
		h := *r.hourlyRate
		spec.StandardHourlyRate = &h
	}
	for k, v := range r.flatFees {
		spec.FlatFees[k] = Fixed(v)
	}
	for _, f := range r.fixedFees {
		spec.FixedFees = append(spec.FixedFees, FeeSpec{Name: f.Name, Amount: Fixed(f.Amount)})
	}
	if r.consultationFee != nil {
		c := Fixed(*r.consultationFee)
		spec.InitialConsultationFee = &c
	}
	return spec
}
