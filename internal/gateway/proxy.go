package gateway

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/faizu526/zerotohero/internal/httpx"
)

var forwardedRequestHeaders = []string{"Content-Type", "Authorization", "Cookie", "Referer"}

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// NewProxyClient returns a traced client that hands redirects back to the
// caller instead of following them.
func NewProxyClient(timeout time.Duration) *http.Client {
	c := httpx.NewClient(timeout)
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// ForwardRequest sends r to path on the service. path may carry a query.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, p.baseURL+path, r.Body)
	if err != nil {
		return nil, err
	}

	for _, h := range forwardedRequestHeaders {
		for _, v := range r.Header.Values(h) {
			req.Header.Add(h, v)
		}
	}
	// Services key rate limits on ClientIPHeader, so it only ever holds the
	// peer this gateway accepted the connection from.
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		req.Header.Set(httpx.ClientIPHeader, host)
		chain := host
		if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
			chain = prior + ", " + host
		}
		req.Header.Set("X-Forwarded-For", chain)
	}

	return p.client.Do(req)
}
