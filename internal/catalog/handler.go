package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/faizu526/zerotohero/internal/domain"
	"github.com/faizu526/zerotohero/internal/httpx"
)

// MaxLookupIDs bounds a single lookup request.
const MaxLookupIDs = 200

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes registers the catalog API on mux. Price and bundle changes need
// an admin token.
func (h *Handler) Routes(mux *http.ServeMux, adminSecret []byte) {
	mux.HandleFunc("GET /products", h.HandleListProducts)
	mux.HandleFunc("GET /products/{id}", h.HandleGetProduct)
	mux.HandleFunc("POST /products/lookup", h.HandleLookup)
	mux.HandleFunc("PUT /products/{id}/pricing", httpx.RequireAdmin(adminSecret, h.logger, h.HandleReprice))
	mux.HandleFunc("GET /platforms", h.HandleListPlatforms)
	mux.HandleFunc("GET /bundles", h.HandleListBundles)
	mux.HandleFunc("GET /bundles/{id}", h.HandleGetBundle)
	mux.HandleFunc("PUT /bundles/{id}", httpx.RequireAdmin(adminSecret, h.logger, h.HandleUpdateBundle))
}

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	f, err := ParseProductFilter(r.URL.Query())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, err := h.service.ListProducts(r.Context(), f)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if p == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, p)
}

type lookupRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) > MaxLookupIDs {
		h.writeError(w, http.StatusBadRequest, "too many ids")
		return
	}

	prices, err := h.service.Lookup(r.Context(), req.IDs)
	if err != nil {
		h.logger.Error("failed to look up products", "error", err, "count", len(req.IDs))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, prices)
}

func (h *Handler) HandleReprice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req RepriceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Reprice(r.Context(), id, req)
	if err != nil {
		h.writePricingError(w, err, "failed to reprice product", "product_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleListPlatforms(w http.ResponseWriter, r *http.Request) {
	f, err := ParsePlatformFilter(r.URL.Query())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	platforms, err := h.service.ListPlatforms(r.Context(), f)
	if err != nil {
		h.logger.Error("failed to list platforms", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, platforms)
}

func (h *Handler) HandleListBundles(w http.ResponseWriter, r *http.Request) {
	bundles, err := h.service.ListBundles(r.Context())
	if err != nil {
		h.logger.Error("failed to list bundles", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, bundles)
}

func (h *Handler) HandleGetBundle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	b, err := h.service.GetBundle(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get bundle", "error", err, "bundle_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if b == nil {
		h.writeError(w, http.StatusNotFound, "bundle not found")
		return
	}

	h.writeJSON(w, http.StatusOK, b)
}

func (h *Handler) HandleUpdateBundle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req BundleUpdate
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := h.service.UpdateBundle(r.Context(), id, req)
	if err != nil {
		h.writePricingError(w, err, "failed to update bundle", "bundle_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, b)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writePricingError(w http.ResponseWriter, err error, msg string, args ...any) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidRate), errors.Is(err, domain.ErrInvalidAmount):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPriceAboveOriginal):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
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
