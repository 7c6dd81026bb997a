package gateway

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/faizu526/zerotohero/internal/httpx"
)

var forwardedResponseHeaders = []string{"Content-Type", "Location", "Set-Cookie", "Retry-After"}

type Handler struct {
	catalogProxy   *ServiceProxy
	ordersProxy    *ServiceProxy
	affiliateProxy *ServiceProxy
	logger         *slog.Logger
}

func NewHandler(catalogProxy, ordersProxy, affiliateProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		catalogProxy:   catalogProxy,
		ordersProxy:    ordersProxy,
		affiliateProxy: affiliateProxy,
		logger:         logger,
	}
}

// Routes maps the public paths onto the three backend services. Catalog
// paths lose their /catalog prefix.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/catalog/", h.HandleCatalog)

	for _, p := range []string{"/orders", "/orders/", "/cart/", "/payments/", "/customers/", "/admin/analytics/sales"} {
		mux.HandleFunc(p, h.HandleOrders)
	}
	for _, p := range []string{"/affiliates", "/affiliates/", "/ref/", "/referrals/", "/withdrawals/", "/commissions/", "/admin/analytics/affiliates"} {
		mux.HandleFunc(p, h.HandleAffiliate)
	}
}

func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/catalog")
	h.proxyRequest(w, r, h.catalogProxy, path)
}

func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.ordersProxy, r.URL.Path)
}

func (h *Handler) HandleAffiliate(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.affiliateProxy, r.URL.Path)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	target := path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	resp, err := proxy.ForwardRequest(r.Context(), r, target)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		httpx.WriteError(w, h.logger, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range forwardedResponseHeaders {
		for _, v := range resp.Header.Values(name) {
			w.Header().Add(name, v)
		}
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}
