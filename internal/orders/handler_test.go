package orders

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faizu526/zerotohero/internal/domain"
	"github.com/faizu526/zerotohero/internal/httpx"
	"github.com/faizu526/zerotohero/internal/pricing"
)

var testSecret = []byte("test-secret")

func newTestMux(f *fixture) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(f.service, discardLogger()).Routes(mux, testSecret)
	return mux
}

func serve(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

const checkoutBody = `{
	"customer_id": "cust-1",
	"email": "student@example.com",
	"items": [{"product_id": 1, "quantity": 1}, {"product_id": 2, "quantity": 1}],
	"affiliate_code": "GOOD1234",
	"payment_method": "stripe"
}`

func placeOrder(t *testing.T, mux http.Handler) domain.Order {
	t.Helper()

	rec := serve(mux, http.MethodPost, "/orders", checkoutBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var o domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	return o
}

func TestHandler_Quote(t *testing.T) {
	mux := newTestMux(newFixture())

	rec := serve(mux, http.MethodPost, "/cart/quote", `{"items":[{"product_id":1,"quantity":3},{"product_id":99,"quantity":1}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var q pricing.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	require.Len(t, q.Lines, 1)
	assert.True(t, q.Subtotal.Equal(dec("2820")))
	assert.True(t, q.CommissionTotal.Equal(dec("150")))
	assert.Equal(t, []int64{99}, q.Skipped)

	rec = serve(mux, http.MethodPost, "/cart/quote", `{"items":[{"product_id":1,"quantity":-1}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(mux, http.MethodPost, "/cart/quote", `[`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_CreateAndGet(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)

	o := placeOrder(t, mux)
	assert.Equal(t, "aff-1", o.AffiliateID)
	assert.True(t, o.Total.Equal(dec("940")))

	rec := serve(mux, http.MethodGet, "/orders/"+o.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, o.OrderNumber, got.OrderNumber)

	assert.Equal(t, http.StatusNotFound, serve(mux, http.MethodGet, "/orders/missing", "").Code)

	rec = serve(mux, http.MethodPost, "/orders", `{"items":[],"payment_method":"stripe","email":"a@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ListAndSearch(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)
	first := placeOrder(t, mux)
	placeOrder(t, mux)

	rec := serve(mux, http.MethodGet, "/customers/cust-1/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	search := strings.ToLower(first.OrderNumber[4:])
	rec = serve(mux, http.MethodGet, "/customers/cust-1/orders?search="+search, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	rec = serve(mux, http.MethodGet, "/orders?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusBadRequest, serve(mux, http.MethodGet, "/orders?limit=zero", "").Code)
}

func TestHandler_PaymentWebhook(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)
	o := placeOrder(t, mux)

	tests := []struct {
		name    string
		body    string
		status  int
		changed bool
	}{
		{"unknown status", `{"order_id":"` + o.ID + `","status":"disputed"}`, http.StatusBadRequest, false},
		{"missing order id", `{"status":"succeeded"}`, http.StatusBadRequest, false},
		{"unknown order", `{"order_id":"nope","status":"succeeded"}`, http.StatusNotFound, false},
		{"refund before payment", `{"order_id":"` + o.ID + `","status":"refunded"}`, http.StatusConflict, false},
		{"succeeded", `{"order_id":"` + o.ID + `","payment_id":"pay_9","status":"succeeded"}`, http.StatusOK, true},
		{"duplicate", `{"order_id":"` + o.ID + `","payment_id":"pay_9","status":"succeeded"}`, http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(mux, http.MethodPost, "/payments/webhook", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			var res PaymentResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, tt.changed, res.Changed)
			assert.Equal(t, domain.PaymentPaid, res.Order.PaymentStatus)
		})
	}

	assert.Equal(t, []string{"order.placed", "payment.confirmed", "payment.confirmed"}, f.producer.types())
}

func TestHandler_Dashboard(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)
	o := placeOrder(t, mux)
	serve(mux, http.MethodPost, "/payments/webhook", `{"order_id":"`+o.ID+`","status":"succeeded"}`)

	rec := serve(mux, http.MethodGet, "/customers/cust-1/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var d Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.True(t, d.TotalSpent.Equal(dec("940")))
	assert.True(t, d.TotalSaved.Equal(dec("360")))
	assert.Equal(t, 2, d.CoursesPurchased)
	assert.Equal(t, 1, d.PaidOrders)
}

func TestHandler_SalesAnalyticsRequiresAdmin(t *testing.T) {
	f := newFixture()
	mux := newTestMux(f)
	o := placeOrder(t, mux)
	require.Equal(t, http.StatusOK, serve(mux, http.MethodPost, "/payments/webhook", `{"order_id":"`+o.ID+`","status":"succeeded"}`).Code)

	rec := serve(mux, http.MethodGet, "/admin/analytics/sales", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, _, err := httpx.GenerateToken(testSecret, "admin-1", httpx.RoleAdmin, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/admin/analytics/sales", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got SalesAnalytics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Platforms, 1)
	assert.True(t, got.Platforms[0].Revenue.Equal(dec("940")))
	assert.Equal(t, 1, got.Periods["today"].Orders)
}
