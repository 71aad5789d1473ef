package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Bridge calls the external classifier over HTTP and falls back to
// the deterministic parser whenever the response is invalid JSON, an
// unknown intent, an out-of-range confidence, or the request itself
// fails — the classifier is never allowed to block the conversation.
type Bridge struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewBridge(baseURL, apiKey string) *Bridge {
	return &Bridge{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 8 * time.Second},
	}
}

type classifyRequest struct {
	Text         string `json:"text"`
	SchemaVersion int   `json:"schema_version"`
}

const schemaVersion = 1

// Classify redacts text, calls the classifier, and validates the
// result. It never returns an error: a failure at any step degrades
// to FallbackParse so the caller always has a usable Classification.
func (b *Bridge) Classify(ctx context.Context, rawText string) Classification {
	redacted := Redact(rawText)

	if b.baseURL == "" {
		return FallbackParse(redacted)
	}

	body, err := json.Marshal(classifyRequest{Text: redacted, SchemaVersion: schemaVersion})
	if err != nil {
		return FallbackParse(redacted)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return FallbackParse(redacted)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return FallbackParse(redacted)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FallbackParse(redacted)
	}

	var c Classification
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return FallbackParse(redacted)
	}
	if !c.Valid() {
		return FallbackParse(redacted)
	}
	if !slotsCoherent(c.Entities) {
		return FallbackParse(redacted)
	}

	c.Source = "classifier"
	return c
}

// slotsCoherent rejects date ranges the classifier could plausibly
// hallucinate: checkout not after checkin, or a span implausibly long.
func slotsCoherent(e Entities) bool {
	if e.Checkin != nil && e.Checkout != nil {
		if !e.Checkout.After(*e.Checkin) {
			return false
		}
		if e.Checkout.Sub(*e.Checkin) > 90*24*time.Hour {
			return false
		}
	}
	if e.AdultCount != nil && (*e.AdultCount < 1 || *e.AdultCount > 20) {
		return false
	}
	return true
}
