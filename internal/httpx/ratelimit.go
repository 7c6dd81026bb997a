package httpx

import (
	"net/http"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// ClientIPHeader carries the peer address the gateway saw. The gateway
// always overwrites it, unlike X-Forwarded-For which the client can seed.
const ClientIPHeader = "X-Real-IP"

// RateLimit limits each client IP to the formatted rate, e.g. "60-M".
// Requests without ClientIPHeader are keyed on the remote address.
func RateLimit(formatted string) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}

	instance := limiter.New(memory.NewStore(), rate, limiter.WithClientIPHeader(ClientIPHeader))
	return stdlib.NewMiddleware(instance).Handler, nil
}
