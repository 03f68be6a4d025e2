package estimate

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joelkehle/legalquote/internal/classify"
	"github.com/joelkehle/legalquote/internal/intake"
	"github.com/joelkehle/legalquote/internal/pricing"
)

const Disclaimer = "These estimates are indicative and exclude taxes. For a precise, personalised quote or to book a consultation, please contact the firm directly."

const consultationLabel = "Consultation initiale d'une heure"

// Result is one assembled quote: the request, how it was classified and how
// it was priced.
type Result struct {
	RequestID      string
	CreatedAt      time.Time
	Request        intake.Request
	Classification classify.Result
	Estimate       pricing.Estimate
	Alternative    *Offer
}

// Offer is the fixed-price alternative shown next to the estimate.
type Offer struct {
	Label    string
	Hours    int
	Price    decimal.Decimal
	Currency string
}

type ResponseEnvelope struct {
	RequestID       string            `json:"request_id"`
	CreatedAt       string            `json:"created_at"`
	ClientType      intake.ClientType `json:"client_type"`
	Urgency         intake.Urgency    `json:"urgency"`
	Domain          string            `json:"domain"`
	Service         string            `json:"service"`
	Confidence      *int              `json:"confidence"`
	ConfidenceLevel string            `json:"confidence_level"`
	Resolution      string            `json:"resolution"`
	Low             json.Number       `json:"low"`
	High            json.Number       `json:"high"`
	Currency        string            `json:"currency"`
	EffortHours     EffortHours       `json:"effort_hours"`
	EffortSource    string            `json:"effort_source"`
	Trace           []string          `json:"trace"`
	RatesUsed       map[string]string `json:"rates_used"`
	Alternative     *OfferEnvelope    `json:"alternative,omitempty"`
	Disclaimer      string            `json:"disclaimer"`
}

type EffortHours struct {
	Min json.Number `json:"min"`
	Max json.Number `json:"max"`
}

type OfferEnvelope struct {
	Label    string      `json:"label"`
	Hours    int         `json:"hours"`
	Price    json.Number `json:"price"`
	Currency string      `json:"currency"`
}
