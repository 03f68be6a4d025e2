package classify

import (
	"strconv"
	"strings"
)

const (
	GeneralService    = "general service"
	DefaultConfidence = 50
)

type Resolution string

const (
	ResolutionParsed            Resolution = "parsed"
	ResolutionNoConfidence      Resolution = "no_confidence"
	ResolutionInvalidConfidence Resolution = "invalid_confidence"
	ResolutionUnparsed          Resolution = "unparsed"
	ResolutionUnavailable       Resolution = "classifier_unavailable"
)

// Result is the normalized classification. A nil Confidence means the oracle
// gave none, which is not the same as a low score.
type Result struct {
	Domain     string     `json:"domain"`
	Service    string     `json:"service"`
	Confidence *int       `json:"confidence"`
	Resolution Resolution `json:"resolution"`
}

// ParseReply applies the reply grammar: "domain, service[, confidence]".
// It never fails; malformed replies resolve to the sentinel service.
func ParseReply(raw string) Result {
	text := strings.TrimSpace(stripCodeFences(raw))
	parts := strings.Split(text, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if len(parts) >= 2 && parts[0] != "" && parts[1] != "" {
		res := Result{Domain: parts[0], Service: parts[1], Resolution: ResolutionNoConfidence}
		if len(parts) >= 3 {
			if c, ok := parseConfidence(parts[2]); ok {
				res.Confidence = &c
				res.Resolution = ResolutionParsed
			} else {
				res.Resolution = ResolutionInvalidConfidence
			}
		}
		return res
	}

	return Result{
		Domain:     text,
		Service:    GeneralService,
		Confidence: intPtr(DefaultConfidence),
		Resolution: ResolutionUnparsed,
	}
}

func parseConfidence(s string) (int, bool) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

// ConfidenceLevel buckets a score for display; absent scores are "unknown".
func ConfidenceLevel(c *int) string {
	switch {
	case c == nil:
		return "unknown"
	case *c >= 80:
		return "high"
	case *c >= 50:
		return "medium"
	default:
		return "low"
	}
}

func intPtr(v int) *int { return &v }
