package whatsapp

import (
	"encoding/json"
	"fmt"
)

// RenderTemplate turns a structured outbox event (kind + PII-free
// JSON payload) into the actual message text sent over a channel. The
// mapping is a fixed set of patterns, never a classifier or free-text
// field read back out of storage — outbox_events.payload carries only
// ids, amounts, currency, and dates (spec §6), so the message body is
// always reconstructed here, not persisted anywhere.
func RenderTemplate(kind string, payload json.RawMessage) string {
	switch kind {
	case "quote_ready":
		var f struct {
			TotalCents int64  `json:"total_cents"`
			Currency   string `json:"currency"`
			Checkin    string `json:"checkin"`
			Checkout   string `json:"checkout"`
		}
		_ = json.Unmarshal(payload, &f)
		return fmt.Sprintf("Your stay from %s to %s comes to %s %.2f. Reply to confirm and we'll send a payment link.",
			f.Checkin, f.Checkout, f.Currency, float64(f.TotalCents)/100)

	case "quote_unavailable":
		var f struct {
			Reason string `json:"reason"`
		}
		_ = json.Unmarshal(payload, &f)
		return "That stay isn't available right now (" + f.Reason + "). Would you like to try different dates?"

	case "checkout_link_ready":
		var f struct {
			CheckoutURL string `json:"checkout_url"`
		}
		_ = json.Unmarshal(payload, &f)
		return "Here's your payment link: " + f.CheckoutURL + ". It expires in 30 minutes."

	case "reservation_confirmed":
		var f struct {
			ReservationID string `json:"reservation_id"`
		}
		_ = json.Unmarshal(payload, &f)
		return "Payment received, your reservation " + f.ReservationID + " is confirmed. See you soon!"

	case "reservation_needs_manual_review":
		return "Your payment went through but we need a moment to confirm your room. Our team will follow up shortly."

	case "reservation_cancelled":
		return "Your reservation has been cancelled as requested."

	case "human_handoff_requested":
		return "A member of our team will join the conversation shortly to help with that."

	default:
		return "We've received your message and will follow up shortly."
	}
}
