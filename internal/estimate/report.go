package estimate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joelkehle/legalquote/internal/classify"
	"github.com/joelkehle/legalquote/internal/pricing"
)

func BuildResponse(result Result) ResponseEnvelope {
	est := result.Estimate
	env := ResponseEnvelope{
		RequestID:       result.RequestID,
		CreatedAt:       result.CreatedAt.Format(time.RFC3339),
		ClientType:      result.Request.ClientType,
		Urgency:         result.Request.Urgency,
		Domain:          result.Classification.Domain,
		Service:         result.Classification.Service,
		Confidence:      result.Classification.Confidence,
		ConfidenceLevel: classify.ConfidenceLevel(result.Classification.Confidence),
		Resolution:      string(result.Classification.Resolution),
		Low:             number(est.Low),
		High:            number(est.High),
		Currency:        est.Currency,
		EffortHours:     EffortHours{Min: number(est.EffortHours.Min), Max: number(est.EffortHours.Max)},
		EffortSource:    string(est.EffortSource),
		Trace:           est.Trace,
		RatesUsed:       est.RatesUsed,
		Disclaimer:      Disclaimer,
	}
	if env.Trace == nil {
		env.Trace = []string{}
	}
	if a := result.Alternative; a != nil {
		env.Alternative = &OfferEnvelope{Label: a.Label, Hours: a.Hours, Price: number(a.Price), Currency: a.Currency}
	}
	return env
}

func number(d decimal.Decimal) json.Number { return json.Number(d.String()) }

// BuildMarkdown renders the client-facing quote report.
func BuildMarkdown(result Result) string {
	est := result.Estimate
	cls := result.Classification

	var b strings.Builder
	fmt.Fprintf(&b, "# Indicative Legal Quote\n\n")
	fmt.Fprintf(&b, "- Request ID: %s\n", result.RequestID)
	fmt.Fprintf(&b, "- Date: %s\n\n", result.CreatedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "## Your Request\n\n")
	fmt.Fprintf(&b, "- Client type: %s\n", result.Request.ClientType.Label())
	fmt.Fprintf(&b, "- Urgency: %s\n\n", result.Request.Urgency.Label())
	for _, line := range strings.Split(result.Request.Text, "\n") {
		fmt.Fprintf(&b, "> %s\n", line)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Analysis\n\n")
	fmt.Fprintf(&b, "- Legal domain: **%s**\n", cls.Domain)
	fmt.Fprintf(&b, "- Recommended service: **%s**\n", cls.Service)
	if cls.Confidence != nil {
		fmt.Fprintf(&b, "- Confidence: %d%% (%s)\n", *cls.Confidence, classify.ConfidenceLevel(cls.Confidence))
	} else {
		fmt.Fprintf(&b, "- Confidence: not reported\n")
	}
	if cls.Resolution == classify.ResolutionUnavailable {
		fmt.Fprintf(&b, "- Automatic analysis was unavailable; a general estimate is shown.\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Estimate\n\n")
	fmt.Fprintf(&b, "Between **%s %s** and **%s %s**, excluding taxes.\n\n", est.Low, est.Currency, est.High, est.Currency)
	fmt.Fprintf(&b, "This estimate covers about %s hours of work, including legal research, drafting and consultations.", est.EffortHours)
	if est.EffortSource == pricing.EffortFromFallback {
		b.WriteString(" The requested service is not in our catalog, so a standard effort was assumed.")
	}
	b.WriteString("\n\n")

	if a := result.Alternative; a != nil {
		fmt.Fprintf(&b, "## Recommended Alternative\n\n")
		fmt.Fprintf(&b, "**%s**: fixed fee of %s %s excluding taxes, for a first legal opinion and a review of your situation.\n\n", a.Label, a.Price, a.Currency)
	}

	fmt.Fprintf(&b, "## Calculation Details\n\n")
	for i, step := range est.Trace {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "---\n\n%s\n", Disclaimer)
	return b.String()
}
