package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/faizu526/zerotohero/internal/pricing"
)

// Catalog prices the products of a cart.
type Catalog interface {
	Lookup(ctx context.Context, ids []int64) ([]pricing.ProductPrice, error)
}

// Referral is the affiliate an order is credited to.
type Referral struct {
	AffiliateID  string `json:"affiliate_id"`
	ReferralCode string `json:"referral_code"`
}

// Referrals resolves referral codes. Resolve returns nil for unknown or
// inactive codes.
type Referrals interface {
	Resolve(ctx context.Context, code string) (*Referral, error)
}

type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewCatalogClient(baseURL string, client *http.Client) *CatalogClient {
	return &CatalogClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: client}
}

func (c *CatalogClient) Lookup(ctx context.Context, ids []int64) ([]pricing.ProductPrice, error) {
	data, err := json.Marshal(map[string][]int64{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("marshal lookup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/products/lookup", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("look up products: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog service returned status %d", resp.StatusCode)
	}

	var prices []pricing.ProductPrice
	if err := json.NewDecoder(resp.Body).Decode(&prices); err != nil {
		return nil, fmt.Errorf("decode lookup response: %w", err)
	}
	return prices, nil
}

type AffiliateClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAffiliateClient(baseURL string, client *http.Client) *AffiliateClient {
	return &AffiliateClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: client}
}

func (c *AffiliateClient) Resolve(ctx context.Context, code string) (*Referral, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/referrals/"+url.PathEscape(code), nil)
	if err != nil {
		return nil, fmt.Errorf("create referral request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve referral: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("affiliate service returned status %d", resp.StatusCode)
	}

	var ref Referral
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return nil, fmt.Errorf("decode referral response: %w", err)
	}
	return &ref, nil
}
