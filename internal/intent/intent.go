// Package intent implements the redacted-input classifier bridge of
// spec §4.10. The classifier is an external, non-authoritative
// collaborator: every value it proposes is validated (and, on
// failure, replaced) by the deterministic fallback parser in this
// package before any state-changing code ever sees it.
package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Intent is the closed set of routing outcomes the classifier (or the
// fallback parser) may propose.
type Intent string

const (
	IntentQuoteRequest    Intent = "quote_request"
	IntentCheckoutRequest Intent = "checkout_request"
	IntentCancelRequest   Intent = "cancel_request"
	IntentHumanHandoff    Intent = "human_handoff"
	IntentUnknown         Intent = "unknown"
)

var validIntents = map[Intent]bool{
	IntentQuoteRequest:    true,
	IntentCheckoutRequest: true,
	IntentCancelRequest:   true,
	IntentHumanHandoff:    true,
	IntentUnknown:         true,
}

// Entities are the normalized slots either path may produce.
type Entities struct {
	Checkin      *time.Time
	Checkout     *time.Time
	AdultCount   *int
	ChildrenAges []int
}

// Classification is the strict schema the classifier must return
// (spec §4.10): intent, confidence, optional entities, and a short
// reason for audit logs.
type Classification struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   Entities `json:"entities,omitempty"`
	Reason     string   `json:"reason"`
	Source     string   `json:"-"` // "classifier" | "fallback", not part of the wire schema
}

// Valid reports whether a parsed classifier response is coherent
// enough to use: intent in the closed enum, confidence in [0,1]. Slot
// coherence (dates that parse, checkout after checkin) is left to the
// caller, since the fallback parser reuses the same Entities type and
// the caller validates both paths identically.
func (c Classification) Valid() bool {
	if !validIntents[c.Intent] {
		return false
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return false
	}
	return true
}

var (
	dateRe      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	adultsRe    = regexp.MustCompile(`\b(\d{1,2})\s*(?:adult|adulto|pessoa|people|guest)s?\b`)
	childAgesRe = regexp.MustCompile(`\bchild(?:ren)?\s*(?:age|ages)?\s*[:=]?\s*([\d,\s]+)\b`)
)

// FallbackParse implements spec §4.10's "fixed set of patterns"
// deterministic parser: invoked whenever the classifier's response is
// invalid JSON, an unknown enum value, or has incoherent slots. It
// never raises an error — an utterance with no recognizable pattern
// simply yields IntentUnknown with no entities.
func FallbackParse(redactedText string) Classification {
	entities := Entities{}

	dates := dateRe.FindAllString(redactedText, 2)
	if len(dates) >= 1 {
		if t, err := time.Parse("2006-01-02", dates[0]); err == nil {
			entities.Checkin = &t
		}
	}
	if len(dates) >= 2 {
		if t, err := time.Parse("2006-01-02", dates[1]); err == nil {
			entities.Checkout = &t
		}
	}

	if m := adultsRe.FindStringSubmatch(strings.ToLower(redactedText)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			entities.AdultCount = &n
		}
	}

	if m := childAgesRe.FindStringSubmatch(strings.ToLower(redactedText)); m != nil {
		for _, raw := range strings.Split(m[1], ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			if age, err := strconv.Atoi(raw); err == nil {
				entities.ChildrenAges = append(entities.ChildrenAges, age)
			}
		}
	}

	in := inferIntent(redactedText, entities)
	return Classification{Intent: in, Confidence: 1, Entities: entities, Reason: "deterministic fallback parser", Source: "fallback"}
}

func inferIntent(redactedText string, e Entities) Intent {
	lower := strings.ToLower(redactedText)
	switch {
	case strings.Contains(lower, "cancel"):
		return IntentCancelRequest
	case strings.Contains(lower, "pay") || strings.Contains(lower, "checkout") || strings.Contains(lower, "confirm"):
		return IntentCheckoutRequest
	case e.Checkin != nil || e.Checkout != nil:
		return IntentQuoteRequest
	default:
		return IntentUnknown
	}
}
