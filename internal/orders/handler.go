package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/faizu526/zerotohero/internal/domain"
	"github.com/faizu526/zerotohero/internal/httpx"
	"github.com/faizu526/zerotohero/internal/pricing"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Routes registers the orders API. Sales analytics need an admin token.
func (h *Handler) Routes(mux *http.ServeMux, adminSecret []byte) {
	mux.HandleFunc("POST /cart/quote", h.HandleQuote)
	mux.HandleFunc("POST /orders", h.HandleCreate)
	mux.HandleFunc("GET /orders", h.HandleList)
	mux.HandleFunc("GET /orders/{id}", h.HandleGet)
	mux.HandleFunc("GET /customers/{id}/orders", h.HandleCustomerOrders)
	mux.HandleFunc("GET /customers/{id}/dashboard", h.HandleDashboard)
	mux.HandleFunc("POST /payments/webhook", h.HandlePaymentWebhook)
	mux.HandleFunc("GET /admin/analytics/sales", httpx.RequireAdmin(adminSecret, h.logger, h.HandleSalesAnalytics))
}

type quoteRequest struct {
	Items []pricing.CartLine `json:"items"`
}

func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quote, err := h.service.Quote(r.Context(), req.Items)
	if err != nil {
		h.writeCheckoutError(w, err, "failed to quote cart")
		return
	}

	h.writeJSON(w, http.StatusOK, quote)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Checkout(r.Context(), req)
	if err != nil {
		h.writeCheckoutError(w, err, "failed to create order")
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "")
}

// HandleCustomerOrders supports the dashboard's order number search and
// status filter.
func (h *Handler) HandleCustomerOrders(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, r.PathValue("id"))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, customerID string) {
	q := r.URL.Query()
	f := ListFilter{
		CustomerID: customerID,
		Status:     domain.OrderStatus(q.Get("status")),
		Search:     q.Get("search"),
		Limit:      defaultListLimit,
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = min(n, maxListLimit)
	}

	orders, err := h.service.List(r.Context(), f)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "customer_id", customerID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	d, err := h.service.CustomerDashboard(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to build customer dashboard", "error", err, "customer_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req PaymentUpdate
	if err := httpx.DecodeJSON(r, &req); err != nil || req.OrderID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.ApplyPayment(r.Context(), req)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, result)
	case errors.Is(err, ErrUnknownStatus):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		h.logger.Warn("rejected payment transition", "error", err, "order_id", req.OrderID)
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("failed to apply payment", "error", err, "order_id", req.OrderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) HandleSalesAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.SalesAnalytics(r.Context())
	if err != nil {
		h.logger.Error("failed to build sales analytics", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, ErrInvalidCheckout), errors.Is(err, pricing.ErrInvalidQuantity):
		h.logger.Warn("rejected cart", "error", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidRate), errors.Is(err, domain.ErrInvalidAmount):
		h.logger.Error("catalog returned unusable pricing", "error", err)
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error(msg, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	httpx.WriteJSON(w, h.logger, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	httpx.WriteError(w, h.logger, status, message)
}
