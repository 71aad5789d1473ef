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

// MetaProvider sends messages through the Meta (WhatsApp Cloud API)
// Graph API and verifies the X-Hub-Signature-256 header on inbound
// webhooks.
type MetaProvider struct {
	baseURL     string
	phoneID     string
	accessToken string
	client      *http.Client
}

func NewMetaProvider(baseURL, phoneID, accessToken string) *MetaProvider {
	return &MetaProvider{
		baseURL:     baseURL,
		phoneID:     phoneID,
		accessToken: accessToken,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (p *MetaProvider) Name() string { return "meta" }

// VerifyWebhookSignature checks the HMAC-SHA256 signature Meta
// computes over the raw payload with the app secret.
func (p *MetaProvider) VerifyWebhookSignature(payload []byte, sigHeader, appSecret string) error {
	const prefix = "sha256="
	if !strings.HasPrefix(sigHeader, prefix) {
		return apperr.Unauthorized("meta webhook signature header malformed")
	}
	want, err := hex.DecodeString(strings.TrimPrefix(sigHeader, prefix))
	if err != nil {
		return apperr.Unauthorized("meta webhook signature is not valid hex")
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(payload)
	got := mac.Sum(nil)
	if !hmac.Equal(want, got) {
		return apperr.Unauthorized("meta webhook signature mismatch")
	}
	return nil
}

type metaWebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

func (p *MetaProvider) ParseInbound(payload []byte) ([]InboundMessage, error) {
	var v metaWebhookPayload
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, apperr.Permanent(apperr.CodeSchemaMismatch, "meta webhook payload is not valid JSON")
	}
	var out []InboundMessage
	for _, entry := range v.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				out = append(out, InboundMessage{SenderID: m.From, Body: m.Text.Body})
			}
		}
	}
	return out, nil
}

type metaSendRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type metaSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (p *MetaProvider) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	reqBody := metaSendRequest{MessagingProduct: "whatsapp", To: in.RoutableID, Type: "text"}
	reqBody.Text.Body = in.Body
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, apperr.Permanent(apperr.CodeSchemaMismatch, "meta send payload marshal failed")
	}

	url := fmt.Sprintf("%s/%s/messages", p.baseURL, p.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Transient(apperr.CodeTransientFailure, "meta send request build failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperr.Transient(apperr.CodeTransientFailure, "meta send request failed", err)
	}
	defer resp.Body.Close()

	var parsed metaSendResponse
	_ = json.NewDecoder(resp.Body).Decode(&parsed)

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperr.Transient(apperr.CodeTransientFailure, "meta send transient error", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		msg := "meta send rejected"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, apperr.Permanent(apperr.CodeProviderRejected, msg)
	}
	if len(parsed.Messages) == 0 {
		return nil, apperr.Transient(apperr.CodeTransientFailure, "meta send response missing message id", nil)
	}
	return &SendResult{ProviderMessageID: parsed.Messages[0].ID}, nil
}

func (p *MetaProvider) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", p.baseURL, p.phoneID), nil)
	if err != nil {
		return HealthStatus{Healthy: false, Error: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+p.accessToken)

	resp, err := p.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return HealthStatus{Healthy: false, LatencyMS: latency, Error: err.Error()}
	}
	defer resp.Body.Close()
	return HealthStatus{Healthy: resp.StatusCode < 500, LatencyMS: latency}
}
