package httpapi

import (
	"github.com/rs/zerolog"

	"github.com/hotelly/hotelly/internal/authz"
	"github.com/hotelly/hotelly/internal/availability"
	"github.com/hotelly/hotelly/internal/config"
	"github.com/hotelly/hotelly/internal/identity"
	"github.com/hotelly/hotelly/internal/idempotency"
	"github.com/hotelly/hotelly/internal/intent"
	"github.com/hotelly/hotelly/internal/inventory"
	"github.com/hotelly/hotelly/internal/observability"
	"github.com/hotelly/hotelly/internal/payment"
	"github.com/hotelly/hotelly/internal/quote"
	"github.com/hotelly/hotelly/internal/reservation"
	"github.com/hotelly/hotelly/internal/store"
	"github.com/hotelly/hotelly/internal/tasks"
	"github.com/hotelly/hotelly/internal/whatsapp"
)

// Deps bundles every engine a router needs. Both cmd/ingress and
// cmd/worker construct one of these from the same config and pass it
// to the router constructor that matches their role — neither
// constructs engines the other role doesn't need, but both share this
// one wiring struct so the two roles can never drift in how an engine
// is built.
type Deps struct {
	Cfg    *config.Config
	Logger zerolog.Logger
	Store  *store.Store

	Reservations *reservation.Engine
	Inventory    *inventory.Engine
	Availability *availability.Engine
	Quote        *quote.Engine
	Payments     *payment.Registry
	Idempotency  *idempotency.Store
	Vault        *identity.Vault
	WhatsApp     *whatsapp.Registry
	SendResponse *whatsapp.Handler
	Classifier   *intent.Bridge
	AuthzStore   *authz.Store
	AuthzMW      *authz.Middleware
	TaskClient   *tasks.Client
	TaskVerifier *tasks.Verifier
	Metrics      *observability.Metrics
}
