package whatsapp

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hotelly/hotelly/internal/apperr"
)

// EvolutionProvider sends messages through a self-hosted Evolution
// API instance, the common open-source WhatsApp gateway alternative
// to Meta's own Cloud API.
type EvolutionProvider struct {
	baseURL  string
	instance string
	apiKey   string
	client   *http.Client
}

func NewEvolutionProvider(baseURL, instance, apiKey string) *EvolutionProvider {
	return &EvolutionProvider{
		baseURL:  baseURL,
		instance: instance,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *EvolutionProvider) Name() string { return "evolution" }

func (p *EvolutionProvider) VerifyWebhookSignature(payload []byte, sigHeader, appSecret string) error {
	want, err := hex.DecodeString(strings.TrimPrefix(sigHeader, "sha256="))
	if err != nil {
		return apperr.Unauthorized("evolution webhook signature is not valid hex")
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(payload)
	got := mac.Sum(nil)
	if !hmac.Equal(want, got) {
		return apperr.Unauthorized("evolution webhook signature mismatch")
	}
	return nil
}

type evolutionWebhookPayload struct {
	Data struct {
		Key struct {
			RemoteJID string `json:"remoteJid"`
		} `json:"key"`
		Message struct {
			Conversation string `json:"conversation"`
		} `json:"message"`
		MessageTimestamp int64 `json:"messageTimestamp"`
	} `json:"data"`
}

func (p *EvolutionProvider) ParseInbound(payload []byte) ([]InboundMessage, error) {
	var v evolutionWebhookPayload
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, apperr.Permanent(apperr.CodeSchemaMismatch, "evolution webhook payload is not valid JSON")
	}
	if v.Data.Message.Conversation == "" {
		return nil, nil
	}
	return []InboundMessage{{
		SenderID:  v.Data.Key.RemoteJID,
		Body:      v.Data.Message.Conversation,
		Timestamp: v.Data.MessageTimestamp,
	}}, nil
}

type evolutionSendRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

func (p *EvolutionProvider) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	body, err := json.Marshal(evolutionSendRequest{Number: in.RoutableID, Text: in.Body})
	if err != nil {
		return nil, apperr.Permanent(apperr.CodeSchemaMismatch, "evolution send payload marshal failed")
	}

	url := fmt.Sprintf("%s/message/sendText/%s", p.baseURL, p.instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Transient(apperr.CodeTransientFailure, "evolution send request build failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperr.Transient(apperr.CodeTransientFailure, "evolution send request failed", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&parsed)

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperr.Transient(apperr.CodeTransientFailure, "evolution send transient error", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, apperr.Permanent(apperr.CodeProviderRejected, fmt.Sprintf("evolution send rejected: status %d", resp.StatusCode))
	}
	return &SendResult{ProviderMessageID: parsed.Key.ID}, nil
}

func (p *EvolutionProvider) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/instance/connectionState/%s", p.baseURL, p.instance), nil)
	if err != nil {
		return HealthStatus{Healthy: false, Error: err.Error()}
	}
	req.Header.Set("apikey", p.apiKey)

	resp, err := p.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return HealthStatus{Healthy: false, LatencyMS: latency, Error: err.Error()}
	}
	defer resp.Body.Close()
	return HealthStatus{Healthy: resp.StatusCode < 500, LatencyMS: latency}
}
