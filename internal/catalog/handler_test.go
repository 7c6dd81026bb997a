package catalog

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

func newTestMux(store *fakeStore) *http.ServeMux {
	h := NewHandler(newTestService(store, newFakeCache()), discardLogger())
	mux := http.NewServeMux()
	h.Routes(mux, testSecret)
	return mux
}

func token(t *testing.T, role string) string {
	t.Helper()

	tok, _, err := httpx.GenerateToken(testSecret, "user-1", role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func serve(mux http.Handler, method, target, body, auth string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_ListProducts(t *testing.T) {
	mux := newTestMux(seededStore())

	tests := []struct {
		name   string
		target string
		status int
		count  int
	}{
		{"all active", "/products", http.StatusOK, 2},
		{"by category", "/products?category=web", http.StatusOK, 1},
		{"search", "/products?q=penetration", http.StatusOK, 1},
		{"unknown price band", "/products?price=cheap", http.StatusBadRequest, 0},
		{"bad offset", "/products?offset=x", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(mux, http.MethodGet, tt.target, "", "")
			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				return
			}
			var got []domain.ProductView
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Len(t, got, tt.count)
		})
	}
}

func TestHandler_GetProduct(t *testing.T) {
	mux := newTestMux(seededStore())

	rec := serve(mux, http.MethodGet, "/products/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.ProductView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Jr Penetration Tester", got.Name)
	assert.True(t, got.Savings.Amount.Equal(dec("60")))

	assert.Equal(t, http.StatusNotFound, serve(mux, http.MethodGet, "/products/99", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(mux, http.MethodGet, "/products/abc", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(mux, http.MethodGet, "/products/-1", "", "").Code)
}

func TestHandler_Lookup(t *testing.T) {
	mux := newTestMux(seededStore())

	rec := serve(mux, http.MethodPost, "/products/lookup", `{"ids":[2,404]}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []pricing.ProductPrice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ProductID)
	assert.True(t, got[0].OurPrice.Equal(dec("600")))

	ids := make([]string, MaxLookupIDs+1)
	for i := range ids {
		ids[i] = "1"
	}
	rec = serve(mux, http.MethodPost, "/products/lookup", `{"ids":[`+strings.Join(ids, ",")+`]}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(mux, http.MethodPost, "/products/lookup", `not json`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Reprice(t *testing.T) {
	admin := token(t, httpx.RoleAdmin)

	tests := []struct {
		name   string
		target string
		body   string
		auth   string
		status int
	}{
		{"no token", "/products/1/pricing", `{"original_price":"1000","our_price":"900","commission_rate":"5"}`, "", http.StatusUnauthorized},
		{"not admin", "/products/1/pricing", `{"original_price":"1000","our_price":"900","commission_rate":"5"}`, token(t, "student"), http.StatusForbidden},
		{"garbage token", "/products/1/pricing", `{}`, "Bearer nope", http.StatusUnauthorized},
		{"valid", "/products/1/pricing", `{"original_price":"1000","our_price":"900","commission_rate":"5"}`, admin, http.StatusOK},
		{"above original", "/products/1/pricing", `{"original_price":"100","our_price":"150","commission_rate":"5"}`, admin, http.StatusUnprocessableEntity},
		{"rate out of range", "/products/1/pricing", `{"original_price":"100","our_price":"90","commission_rate":"120"}`, admin, http.StatusBadRequest},
		{"unknown product", "/products/99/pricing", `{"original_price":"100","our_price":"90","commission_rate":"5"}`, admin, http.StatusNotFound},
		{"malformed body", "/products/1/pricing", `{`, admin, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(seededStore())
			rec := serve(mux, http.MethodPut, tt.target, tt.body, tt.auth)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	t.Run("response carries recomputed bundles", func(t *testing.T) {
		mux := newTestMux(seededStore())
		rec := serve(mux, http.MethodPut, "/products/2/pricing", `{"original_price":"800","our_price":"700","commission_rate":"3"}`, admin)
		require.Equal(t, http.StatusOK, rec.Code)

		var got RepriceResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.True(t, got.Product.CommissionAmount.Equal(dec("24")))
		require.Len(t, got.Bundles, 2)
		assert.True(t, got.Bundles[0].OriginalTotal.Equal(dec("1640")))
		assert.True(t, got.Bundles[1].OriginalTotal.Equal(dec("700")))
	})
}

func TestHandler_Bundles(t *testing.T) {
	store := seededStore()
	mux := newTestMux(store)
	admin := token(t, httpx.RoleAdmin)

	rec := serve(mux, http.MethodGet, "/bundles", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Bundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	assert.Equal(t, http.StatusNotFound, serve(mux, http.MethodGet, "/bundles/99", "", "").Code)

	rec = serve(mux, http.MethodPut, "/bundles/10", `{"bundle_price":"1200"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(mux, http.MethodPut, "/bundles/10", `{"bundle_price":"1200"}`, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var b domain.Bundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.True(t, b.SavingsAmount.Equal(dec("340")))
	assert.Equal(t, int64(22), b.SavingsPercentage)

	rec = serve(mux, http.MethodPut, "/bundles/10", `{"bundle_price":"-5"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(mux, http.MethodPut, "/bundles/10", `{"product_ids":[1,404]}`, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []int64{1, 2}, store.bundles[10].ProductIDs)
}

func TestHandler_ListPlatforms(t *testing.T) {
	mux := newTestMux(seededStore())

	rec := serve(mux, http.MethodGet, "/platforms?commission=5-7&hidden=true", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(mux, http.MethodGet, "/platforms?commission=99", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
