package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/httpapi/middleware"
	"github.com/hotelly/hotelly/internal/identity"
	"github.com/hotelly/hotelly/internal/idempotency"
	"github.com/hotelly/hotelly/internal/payment"
	"github.com/hotelly/hotelly/internal/tasks"
)

// inboundMessageTask is the payload posted to /tasks/inbound-message:
// ids and the contact hash, plus the raw message text in Body. Body is
// not redacted here; the worker's classifier bridge redacts it before
// it reaches the classifier. The raw body rides along only for this
// one in-flight hop and is never written to any table.
type inboundMessageTask struct {
	Provider      string `json:"provider"`
	MessageID     string `json:"message_id"`
	PropertyID    string `json:"property_id"`
	CorrelationID string `json:"correlation_id"`
	ContactHash   string `json:"contact_hash"`
	Kind          string `json:"kind"`
	ReceivedAt    string `json:"received_at"`
	Body          string `json:"body"`
}

// stripeEventTask is the payload posted to /tasks/stripe.
type stripeEventTask struct {
	PropertyID string `json:"property_id"`
	EventID    string `json:"event_id"`
}

// webhookHandlers holds the subset of Deps the ingress webhook
// endpoints touch. Kept separate from the dashboard handlers so each
// handler file only imports what it actually calls.
type webhookHandlers struct {
	deps *Deps
}

func newWebhookHandlers(deps *Deps) *webhookHandlers {
	return &webhookHandlers{deps: deps}
}

// appSecretFor returns the shared secret for the named WhatsApp
// provider's webhook HMAC, or "" if the deployment never configured
// one for that provider.
func (h *webhookHandlers) appSecretFor(providerName string) string {
	switch providerName {
	case "meta":
		return h.deps.Cfg.MetaAppSecret
	case "evolution":
		return h.deps.Cfg.EvolutionAppSecret
	default:
		return ""
	}
}

// handleWhatsAppWebhook implements spec §4.9/§6: verify the provider
// signature, dedupe each inbound message on processed_events, park a
// per-contact entry in the PII vault, and hand the message off to the
// worker as a deterministic task. A missing app secret is a
// deployment misconfiguration, not a client error — it fails closed
// with a 200 so the provider does not retry-storm a webhook nobody
// can ever verify.
func (h *webhookHandlers) handleWhatsAppWebhook(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")
	propertyID := r.Header.Get("X-Property-Id")
	if propertyID == "" {
		writeError(w, apperr.Validation(apperr.CodeInvalidInput, "missing X-Property-Id header"))
		return
	}

	provider, ok := h.deps.WhatsApp.Get(providerName)
	if !ok {
		writeError(w, apperr.Validation(apperr.CodeInvalidInput, "unknown whatsapp provider "+providerName))
		return
	}

	appSecret := h.appSecretFor(providerName)
	if appSecret == "" {
		h.deps.Logger.Warn().Str("provider", providerName).Msg("whatsapp webhook received with no app secret configured, dropping")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "warning": "missing_secret"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, h.deps.Cfg.MaxBodyBytes))
	if err != nil {
		writeError(w, apperr.Validation(apperr.CodeInvalidInput, "failed to read webhook body"))
		return
	}

	sigHeader := r.Header.Get("X-Hub-Signature-256")
	if sigHeader == "" {
		sigHeader = r.Header.Get("X-Signature")
	}
	if err := provider.VerifyWebhookSignature(payload, sigHeader, appSecret); err != nil {
		writeError(w, err)
		return
	}

	messages, err := provider.ParseInbound(payload)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	idem := idempotency.New(h.deps.Store.Pool)
	for _, msg := range messages {
		externalID := fmt.Sprintf("%s:%d", msg.SenderID, msg.Timestamp)
		claimed, err := idem.MarkProcessed(ctx, propertyID, "whatsapp:"+providerName, externalID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !claimed {
			continue
		}

		hashKey, err := h.deps.Cfg.ContactHashKey()
		if err != nil {
			writeError(w, apperr.Permanent(apperr.CodeMissingConfig, "contact hash key not configured"))
			return
		}
		contactHash := identity.ContactHash(hashKey, propertyID, providerName, msg.SenderID)
		if err := h.deps.Vault.Write(ctx, propertyID, providerName, contactHash, msg.SenderID); err != nil {
			writeError(w, err)
			return
		}

		taskID := tasks.InboundMessageTaskID(propertyID, providerName, externalID)
		targetURL := h.deps.Cfg.TaskAudience
		body, err := json.Marshal(inboundMessageTask{
			Provider:      providerName,
			MessageID:     externalID,
			PropertyID:    propertyID,
			CorrelationID: middleware.CorrelationIDFromRequest(r),
			ContactHash:   contactHash,
			Kind:          "text",
			ReceivedAt:    time.Now().UTC().Format(time.RFC3339),
			Body:          msg.Body,
		})
		if err != nil {
			writeError(w, apperr.Permanent(apperr.CodeSchemaMismatch, "inbound message task payload marshal failed"))
			return
		}
		if _, err := h.deps.TaskClient.Enqueue(ctx, taskID, targetURL+"/tasks/inbound-message", body); err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleMetaWebhookVerification answers Meta's GET subscription
// handshake (hub.challenge echo), which never carries a signature.
func (h *webhookHandlers) handleMetaWebhookVerification(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("hub.verify_token") != h.deps.Cfg.MetaVerifyToken {
		writeError(w, apperr.Unauthorized("meta webhook verify token mismatch"))
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(r.URL.Query().Get("hub.challenge")))
}

// handleStripeWebhook implements spec §4.5/§6: verify the signature,
// dedupe on processed_events, and enqueue a worker task carrying only
// the event id — the worker is the only role allowed to call back
// into Stripe or mutate reservation/inventory state.
func (h *webhookHandlers) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	propertyID := r.Header.Get("X-Property-Id")
	if propertyID == "" {
		writeError(w, apperr.Validation(apperr.CodeInvalidInput, "missing X-Property-Id header"))
		return
	}

	provider, ok := h.deps.Payments.Get("stripe")
	if !ok {
		writeError(w, apperr.Permanent(apperr.CodeMissingConfig, "stripe provider not configured"))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, h.deps.Cfg.MaxBodyBytes))
	if err != nil {
		writeError(w, apperr.Validation(apperr.CodeInvalidInput, "failed to read webhook body"))
		return
	}

	outcome, err := payment.ReceiveWebhook(r.Context(), h.deps.Store.Pool, provider, propertyID, payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeError(w, err)
		return
	}
	if outcome.Duplicate {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "duplicate": true})
		return
	}

	taskID := tasks.StripeTaskID(outcome.EventID)
	targetURL := h.deps.Cfg.TaskAudience
	body, err := json.Marshal(stripeEventTask{PropertyID: propertyID, EventID: outcome.EventID})
	if err != nil {
		writeError(w, apperr.Permanent(apperr.CodeSchemaMismatch, "stripe task payload marshal failed"))
		return
	}
	if _, err := h.deps.TaskClient.Enqueue(r.Context(), taskID, targetURL+"/tasks/stripe", body); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
