package affiliate

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faizu526/zerotohero/internal/domain"
	"github.com/faizu526/zerotohero/internal/httpx"
)

const ReferralCookie = "zth_ref"

type HandlerConfig struct {
	BaseURL    string
	CookieDays int
}

type Handler struct {
	ledger *Ledger
	store  Store
	cfg    HandlerConfig
	logger *slog.Logger
}

func NewHandler(ledger *Ledger, store Store, cfg HandlerConfig, logger *slog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

type registerRequest struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}

type affiliateResponse struct {
	domain.Affiliate
	ReferralLink string `json:"referral_link"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CustomerID == "" || req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "customer_id and email are required")
		return
	}

	a, err := h.ledger.Register(r.Context(), req.CustomerID, req.Name, req.Email)
	if err != nil {
		h.logger.Error("failed to register affiliate", "error", err, "customer_id", req.CustomerID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, affiliateResponse{Affiliate: a, ReferralLink: a.ReferralLink(h.cfg.BaseURL)})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	a, err := h.store.GetAffiliate(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get affiliate", "error", err, "affiliate_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if a == nil {
		h.writeError(w, http.StatusNotFound, "affiliate not found")
		return
	}

	h.writeJSON(w, http.StatusOK, affiliateResponse{Affiliate: *a, ReferralLink: a.ReferralLink(h.cfg.BaseURL)})
}

func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	d, err := h.ledger.Dashboard(r.Context(), id, h.cfg.BaseURL)
	if err != nil {
		h.writeLedgerError(w, err, "failed to build dashboard", "affiliate_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) HandleListCommissions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status := domain.CommissionStatus(r.URL.Query().Get("status"))

	switch status {
	case "", domain.CommissionPending, domain.CommissionApproved, domain.CommissionPaid, domain.CommissionCancelled:
	default:
		h.writeError(w, http.StatusBadRequest, "unknown commission status")
		return
	}

	commissions, err := h.store.ListCommissions(r.Context(), id, status)
	if err != nil {
		h.logger.Error("failed to list commissions", "error", err, "affiliate_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, commissions)
}

type referralResponse struct {
	AffiliateID  string `json:"affiliate_id"`
	ReferralCode string `json:"referral_code"`
}

// HandleResolveReferral is used by checkout to attribute an order.
func (h *Handler) HandleResolveReferral(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	a, err := h.ledger.AttributeReferral(r.Context(), code)
	if err != nil {
		h.logger.Error("failed to resolve referral", "error", err, "referral_code", code)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if a == nil {
		h.writeError(w, http.StatusNotFound, "unknown referral code")
		return
	}

	h.writeJSON(w, http.StatusOK, referralResponse{AffiliateID: a.ID, ReferralCode: a.ReferralCode})
}

// HandleReferralVisit counts the click, remembers the code in a cookie and
// redirects to the storefront. Unknown codes redirect without a cookie.
func (h *Handler) HandleReferralVisit(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	a, err := h.ledger.RecordClick(r.Context(), code)
	if err != nil {
		h.logger.Error("failed to record referral click", "error", err, "referral_code", code)
	}

	if a != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     ReferralCookie,
			Value:    a.ReferralCode,
			Path:     "/",
			MaxAge:   int((time.Duration(h.cfg.CookieDays) * 24 * time.Hour).Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	http.Redirect(w, r, h.redirectTarget(r), http.StatusFound)
}

func (h *Handler) redirectTarget(r *http.Request) string {
	base := strings.TrimRight(h.cfg.BaseURL, "/") + "/"
	next := r.URL.Query().Get("next")
	if next == "" {
		return base
	}
	// Only relative paths on our own site.
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return base
	}
	return strings.TrimRight(h.cfg.BaseURL, "/") + next
}

type withdrawalRequest struct {
	Amount         decimal.Decimal      `json:"amount"`
	PaymentMethod  domain.PaymentMethod `json:"payment_method"`
	PaymentDetails map[string]string    `json:"payment_details"`
}

func (h *Handler) HandleRequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req withdrawalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.PaymentMethod.Valid() {
		h.writeError(w, http.StatusBadRequest, "unknown payment method")
		return
	}
	h.logger.Info("withdrawal request received",
		"affiliate_id", id,
		"amount", req.Amount,
		"payment_method", req.PaymentMethod,
		"client_ip", r.Header.Get(httpx.ClientIPHeader),
	)

	wd, err := h.ledger.RequestWithdrawal(r.Context(), id, req.Amount, req.PaymentMethod, req.PaymentDetails)
	if err != nil {
		h.writeLedgerError(w, err, "failed to request withdrawal", "affiliate_id", id)
		return
	}

	h.writeJSON(w, http.StatusCreated, wd)
}

type withdrawalStatusRequest struct {
	Status        domain.WithdrawalStatus `json:"status"`
	TransactionID string                  `json:"transaction_id"`
	Notes         string                  `json:"notes"`
}

func (h *Handler) HandleWithdrawalStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req withdrawalStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wd, err := h.ledger.TransitionWithdrawal(r.Context(), id, req.Status, req.TransactionID, req.Notes)
	if err != nil {
		h.writeLedgerError(w, err, "failed to update withdrawal", "withdrawal_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, wd)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) HandleCancelCommission(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req cancelRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	c, err := h.ledger.CancelCommission(r.Context(), id, req.Reason)
	if err != nil {
		h.writeLedgerError(w, err, "failed to cancel commission", "commission_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

func (h *Handler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.Analytics(r.Context(), TopAffiliatesLimit)
	if err != nil {
		h.logger.Error("failed to build affiliate analytics", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// Routes registers the affiliate API on mux. Status changes on withdrawals
// and commissions, and program analytics, need an admin token; referral visits go through limit
// when it is set.
func (h *Handler) Routes(mux *http.ServeMux, adminSecret []byte, limit func(http.Handler) http.Handler) {
	visit := http.Handler(http.HandlerFunc(h.HandleReferralVisit))
	if limit != nil {
		visit = limit(visit)
	}

	mux.HandleFunc("POST /affiliates", h.HandleRegister)
	mux.HandleFunc("GET /affiliates/{id}", h.HandleGet)
	mux.HandleFunc("GET /affiliates/{id}/dashboard", h.HandleDashboard)
	mux.HandleFunc("GET /affiliates/{id}/commissions", h.HandleListCommissions)
	mux.HandleFunc("POST /affiliates/{id}/withdrawals", h.HandleRequestWithdrawal)
	mux.HandleFunc("GET /referrals/{code}", h.HandleResolveReferral)
	mux.Handle("GET /ref/{code}/", visit)
	mux.Handle("GET /ref/{code}", visit)
	mux.HandleFunc("PATCH /withdrawals/{id}/status", httpx.RequireAdmin(adminSecret, h.logger, h.HandleWithdrawalStatus))
	mux.HandleFunc("POST /commissions/{id}/cancel", httpx.RequireAdmin(adminSecret, h.logger, h.HandleCancelCommission))
	mux.HandleFunc("GET /admin/analytics/affiliates", httpx.RequireAdmin(adminSecret, h.logger, h.HandleAnalytics))
}

func (h *Handler) writeLedgerError(w http.ResponseWriter, err error, msg string, args ...any) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidAmount):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		h.writeError(w, http.StatusConflict, "insufficient balance")
	case errors.Is(err, domain.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, "invalid status transition")
	case errors.Is(err, ErrInactiveAffiliate):
		h.writeError(w, http.StatusForbidden, "affiliate is inactive")
	default:
		h.logger.Error(msg, append([]any{"error", err}, args...)...)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	httpx.WriteJSON(w, h.logger, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	httpx.WriteError(w, h.logger, status, message)
}
