package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hotelly/hotelly/internal/authz"
	"github.com/hotelly/hotelly/internal/httpapi/middleware"
)

// NewIngressRouter builds the public-role chi router (spec §6): webhook
// intake with no dashboard auth, and the authenticated, property-scoped
// dashboard CRUD surface.
func NewIngressRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORSMiddleware([]string{"*"}))
	r.Use(middleware.SecurityHeadersMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(deps.Cfg.MaxBodyBytes))
	r.Use(middleware.NewCorrelationID(deps.Logger).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "role": "ingress"})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "role": "ingress"})
	})
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Handler().ServeHTTP)
	}

	webhooks := newWebhookHandlers(deps)
	r.Post("/webhooks/whatsapp/{provider}", webhooks.handleWhatsAppWebhook)
	r.Get("/webhooks/whatsapp/{provider}", webhooks.handleMetaWebhookVerification)
	r.Post("/webhooks/stripe", webhooks.handleStripeWebhook)

	rateLimiter := middleware.NewRateLimiter(deps.Logger, deps.Cfg.RateLimitEnabled, deps.Cfg.RateLimitRPM, deps.Cfg.RateLimitBurst)

	r.Route("/", func(r chi.Router) {
		r.Use(rateLimiter.Handler)

		reservations := newReservationHandlers(deps)
		r.Route("/reservations", func(r chi.Router) {
			r.With(deps.AuthzMW.Require(authz.RoleViewer)).Get("/", reservations.handleListReservations)
			r.With(deps.AuthzMW.Require(authz.RoleStaff)).Post("/", reservations.handleCreateReservation)
			r.With(deps.AuthzMW.Require(authz.RoleViewer)).Post("/actions/quote", newQuoteHandlers(deps).handleQuote)
			r.With(deps.AuthzMW.Require(authz.RoleViewer)).Get("/{id}", reservations.handleGetReservation)
			r.With(deps.AuthzMW.Require(authz.RoleManager)).Patch("/{id}/status", reservations.handlePatchStatus)
			r.With(deps.AuthzMW.Require(authz.RoleStaff)).Post("/{id}/actions/check-in", reservations.handleCheckIn)
			r.With(deps.AuthzMW.Require(authz.RoleStaff)).Post("/{id}/actions/check-out", reservations.handleCheckOut)
			r.With(deps.AuthzMW.Require(authz.RoleStaff)).Post("/{id}/actions/cancel", reservations.handleCancel)
			r.With(deps.AuthzMW.Require(authz.RoleStaff)).Post("/{id}/actions/assign-room", reservations.handleAssignRoom)
		})

		holds := newHoldHandlers(deps)
		r.Route("/holds", func(r chi.Router) {
			r.With(deps.AuthzMW.Require(authz.RoleStaff)).Post("/", holds.handleCreateHold)
			r.With(deps.AuthzMW.Require(authz.RoleStaff)).Post("/{id}/actions/cancel", holds.handleCancelHold)
			r.With(deps.AuthzMW.Require(authz.RoleStaff)).Post("/{id}/actions/create-checkout", holds.handleCreateCheckout)
		})

		occupancy := newOccupancyHandlers(deps)
		r.With(deps.AuthzMW.Require(authz.RoleViewer)).Get("/occupancy", occupancy.handleOccupancy)
		r.With(deps.AuthzMW.Require(authz.RoleViewer)).Get("/occupancy/grid", occupancy.handleOccupancyGrid)

		inv := newInventoryAdminHandlers(deps)
		r.Route("/room_types", func(r chi.Router) {
			r.With(deps.AuthzMW.Require(authz.RoleViewer)).Get("/", inv.handleListRoomTypes)
			r.With(deps.AuthzMW.Require(authz.RoleManager)).Post("/", inv.handleCreateRoomType)
			r.With(deps.AuthzMW.Require(authz.RoleManager)).Delete("/{id}", inv.handleDeleteRoomType)
		})
		r.Route("/rooms", func(r chi.Router) {
			r.With(deps.AuthzMW.Require(authz.RoleViewer)).Get("/", inv.handleListRooms)
			r.With(deps.AuthzMW.Require(authz.RoleManager)).Post("/", inv.handleCreateRoom)
			r.With(deps.AuthzMW.Require(authz.RoleGovernance)).Patch("/{id}/governance", inv.handlePatchGovernance)
		})
		r.Route("/rates", func(r chi.Router) {
			r.With(deps.AuthzMW.Require(authz.RoleViewer)).Get("/", inv.handleListRates)
			r.With(deps.AuthzMW.Require(authz.RoleManager)).Put("/", inv.handleUpsertRate)
		})
		r.Route("/child-policies", func(r chi.Router) {
			r.With(deps.AuthzMW.Require(authz.RoleViewer)).Get("/", inv.handleListChildPolicies)
			r.With(deps.AuthzMW.Require(authz.RoleManager)).Put("/", inv.handleUpsertChildPolicy)
		})
		r.Route("/cancellation-policy", func(r chi.Router) {
			r.With(deps.AuthzMW.Require(authz.RoleViewer)).Get("/", inv.handleGetCancellationPolicy)
			r.With(deps.AuthzMW.Require(authz.RoleManager)).Put("/", inv.handlePutCancellationPolicy)
		})

		guests := newGuestHandlers(deps)
		r.Route("/guests", func(r chi.Router) {
			r.With(deps.AuthzMW.Require(authz.RoleStaff)).Get("/", guests.handleListGuests)
			r.With(deps.AuthzMW.Require(authz.RoleStaff)).Get("/{id}", guests.handleGetGuest)
			r.With(deps.AuthzMW.Require(authz.RoleStaff)).Patch("/{id}", guests.handlePatchGuest)
		})

		outbox := newOutboxHandlers(deps)
		r.With(deps.AuthzMW.Require(authz.RoleGovernance)).Get("/outbox", outbox.handleListOutbox)

		payments := newPaymentHandlers(deps)
		r.Route("/payments", func(r chi.Router) {
			r.With(deps.AuthzMW.Require(authz.RoleManager)).Get("/", payments.handleListPayments)
			r.With(deps.AuthzMW.Require(authz.RoleManager)).Get("/refunds", payments.handleListRefunds)
			r.With(deps.AuthzMW.Require(authz.RoleManager)).Post("/refunds/{id}/approve", payments.handleApproveRefund)
		})

		rbac := newRBACHandlers(deps)
		r.Route("/rbac/users", func(r chi.Router) {
			r.With(deps.AuthzMW.Require(authz.RoleOwner)).Get("/", rbac.handleListUsers)
			r.With(deps.AuthzMW.Require(authz.RoleOwner)).Post("/", rbac.handleGrantRole)
			r.With(deps.AuthzMW.Require(authz.RoleOwner)).Delete("/{id}", rbac.handleRevokeRole)
		})

		r.With(deps.AuthzMW.Require(authz.RoleViewer)).Get("/me", newMeHandlers(deps).handleMe)
	})

	return r
}
