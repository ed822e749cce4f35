package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"zapgate/internal/directory/models"
	"zapgate/internal/directory/service/admission"
	"zapgate/internal/notify"
	"zapgate/internal/platform/middleware"
	"zapgate/internal/transport/http/shared"
	"zapgate/internal/trust"
	dErrors "zapgate/pkg/domain-errors"
	id "zapgate/pkg/domain"
)

// Service is the admission controller surface the handler needs.
type Service interface {
	Submit(ctx context.Context, listing models.Listing) (admission.SubmitResult, error)
	RequestInvoice(ctx context.Context, key id.EntryKey, amountMsat int64) (models.Invoice, error)
	DeliverReceipt(ctx context.Context, rcpt models.ZapReceipt)
}

// Handler is the thin HTTP layer over the admission controller plus the
// trust-management admin API. Business logic stays in the services.
type Handler struct {
	logger       *slog.Logger
	admission    Service
	oracle       trust.Oracle
	trustSet     *trust.StaticOracle
	notifier     *notify.Bus
	jwtValidator middleware.JWTValidator
}

// New creates the directory handler. trustSet may be nil when trust is
// delegated to an external relay; the admin endpoints then reject writes.
func New(
	admissionSvc Service,
	oracle trust.Oracle,
	trustSet *trust.StaticOracle,
	notifier *notify.Bus,
	logger *slog.Logger,
	jwtValidator middleware.JWTValidator,
) *Handler {
	return &Handler{
		logger:       logger,
		admission:    admissionSvc,
		oracle:       oracle,
		trustSet:     trustSet,
		notifier:     notifier,
		jwtValidator: jwtValidator,
	}
}

// Register mounts all routes on the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Recovery(h.logger))
		api.Use(middleware.RequestID)
		api.Use(middleware.Logger(h.logger))
		api.Use(middleware.Timeout(30 * time.Second))

		api.Group(func(pub chi.Router) {
			pub.Use(middleware.ContentTypeJSON)
			pub.Post("/listings", h.handleSubmit)
			pub.Post("/listings/{entryKey}/invoice", h.handleRequestInvoice)
			pub.Post("/receipts", h.handleDeliverReceipt)
		})
		api.Get("/trust-check", h.handleTrustCheck)

		api.Group(func(admin chi.Router) {
			admin.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
			admin.Put("/admin/trust/{pubkey}", h.handleGrantTrust)
			admin.Delete("/admin/trust/{pubkey}", h.handleRevokeTrust)
		})
	})
}

// SubmitResponse is the caller-visible submission outcome.
type SubmitResponse struct {
	Admitted        bool   `json:"admitted"`
	EntryKey        string `json:"entry_key"`
	PaymentRequired bool   `json:"payment_required,omitempty"`
	AmountMsat      int64  `json:"amount_msat,omitempty"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.SubmitListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	listing, err := req.ToListing()
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.admission.Submit(ctx, listing)
	if err != nil {
		h.logger.WarnContext(ctx, "submission rejected",
			"pubkey", req.Pubkey,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	if result.Admitted {
		shared.WriteJSON(w, http.StatusOK, SubmitResponse{
			Admitted: true,
			EntryKey: result.EntryKey.String(),
		})
		return
	}

	shared.WriteJSON(w, http.StatusPaymentRequired, SubmitResponse{
		EntryKey:        result.EntryKey.String(),
		PaymentRequired: true,
		AmountMsat:      result.RequiredAmountMsat,
	})
}

// InvoiceResponse mirrors the LNURL pay response shape so wallets can
// consume it directly.
type InvoiceResponse struct {
	PR            string   `json:"pr"`
	SettlementRef string   `json:"settlement_ref"`
	AmountMsat    int64    `json:"amount_msat"`
	ExpiresAt     int64    `json:"expires_at"`
	Routes        []string `json:"routes"`
}

func (h *Handler) handleRequestInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entryKey := id.EntryKey(chi.URLParam(r, "entryKey"))

	var req models.RequestInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	invoice, err := h.admission.RequestInvoice(ctx, entryKey, req.AmountMsat)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, InvoiceResponse{
		PR:            invoice.PaymentRequest,
		SettlementRef: invoice.SettlementRef.String(),
		AmountMsat:    invoice.AmountMsat,
		ExpiresAt:     invoice.ExpiresAt.Unix(),
		Routes:        []string{},
	})
}

func (h *Handler) handleDeliverReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.DeliverReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Fire-and-forget by design: even unreadable receipts get a 202,
		// so receipt senders learn nothing about pending entries.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	h.admission.DeliverReceipt(ctx, req.ToReceipt())
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleTrustCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pubkey, err := id.ParsePubkey(r.URL.Query().Get("pubkey"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid pubkey"))
		return
	}

	trusted, err := h.oracle.IsTrusted(ctx, pubkey)
	if err != nil {
		h.logger.WarnContext(ctx, "trust check failed",
			"pubkey", pubkey.String(),
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		trusted = false
	}

	shared.WriteJSON(w, http.StatusOK, map[string]bool{"trusted": trusted})
}

func (h *Handler) handleGrantTrust(w http.ResponseWriter, r *http.Request) {
	h.mutateTrust(w, r, true)
}

func (h *Handler) handleRevokeTrust(w http.ResponseWriter, r *http.Request) {
	h.mutateTrust(w, r, false)
}

func (h *Handler) mutateTrust(w http.ResponseWriter, r *http.Request, grant bool) {
	ctx := r.Context()

	if h.trustSet == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeConflict, "trust membership is managed by the upstream relay"))
		return
	}

	pubkey, err := id.ParsePubkey(chi.URLParam(r, "pubkey"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid pubkey"))
		return
	}

	var changed bool
	kind := notify.KindTrustGranted
	if grant {
		changed = h.trustSet.Grant(pubkey)
	} else {
		changed = h.trustSet.Revoke(pubkey)
		kind = notify.KindTrustRevoked
	}

	if changed && h.notifier != nil {
		h.notifier.Publish(notify.Notification{
			Kind:   kind,
			Pubkey: pubkey,
			At:     time.Now(),
		})
	}

	h.logger.InfoContext(ctx, "trust membership updated",
		"pubkey", pubkey.String(),
		"granted", grant,
		"changed", changed,
		"admin", middleware.GetAdminID(ctx),
	)
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"trusted": grant})
}
