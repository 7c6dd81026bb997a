package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

var ErrInvalidFilter = errors.New("invalid filter")

type PriceBand string

const (
	PriceAny        PriceBand = ""
	PriceFree       PriceBand = "free"
	PriceUnder1000  PriceBand = "under1000"
	Price1000To5000 PriceBand = "1000-5000"
)

type CommissionBand string

const (
	CommissionAny   CommissionBand = ""
	CommissionFree  CommissionBand = "free"
	CommissionThree CommissionBand = "3"
	CommissionFive  CommissionBand = "5-7"
)

// ProductFilter selects active products for the listing.
type ProductFilter struct {
	Category string
	Price    PriceBand
	Query    string
	Offset   int
	Limit    int
}

// ParseProductFilter reads category, price, q, offset and limit.
func ParseProductFilter(v url.Values) (ProductFilter, error) {
	f := ProductFilter{
		Category: strings.TrimSpace(v.Get("category")),
		Price:    PriceBand(v.Get("price")),
		Query:    strings.TrimSpace(v.Get("q")),
		Limit:    DefaultPageSize,
	}

	switch f.Price {
	case PriceAny, PriceFree, PriceUnder1000, Price1000To5000:
	default:
		return ProductFilter{}, fmt.Errorf("price %q: %w", f.Price, ErrInvalidFilter)
	}

	var err error
	if f.Offset, err = intParam(v, "offset", 0); err != nil {
		return ProductFilter{}, err
	}
	if f.Limit, err = intParam(v, "limit", DefaultPageSize); err != nil {
		return ProductFilter{}, err
	}
	if f.Offset < 0 || f.Limit <= 0 {
		return ProductFilter{}, fmt.Errorf("offset and limit must be positive: %w", ErrInvalidFilter)
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	return f, nil
}

// CacheKey identifies the listing page the filter produces.
func (f ProductFilter) CacheKey() string {
	return fmt.Sprintf("products:c=%s:p=%s:q=%s:o=%d:l=%d",
		url.QueryEscape(f.Category), f.Price, url.QueryEscape(strings.ToLower(f.Query)), f.Offset, f.Limit)
}

// PlatformFilter selects active platforms.
type PlatformFilter struct {
	Commission CommissionBand
	Query      string
	HiddenGems bool
}

func ParsePlatformFilter(v url.Values) (PlatformFilter, error) {
	f := PlatformFilter{
		Commission: CommissionBand(v.Get("commission")),
		Query:      strings.TrimSpace(v.Get("q")),
		HiddenGems: v.Get("hidden") == "true",
	}

	switch f.Commission {
	case CommissionAny, CommissionFree, CommissionThree, CommissionFive:
	default:
		return PlatformFilter{}, fmt.Errorf("commission %q: %w", f.Commission, ErrInvalidFilter)
	}
	return f, nil
}

func (f PlatformFilter) CacheKey() string {
	return fmt.Sprintf("platforms:c=%s:q=%s:h=%t", f.Commission, url.QueryEscape(strings.ToLower(f.Query)), f.HiddenGems)
}

func intParam(v url.Values, key string, def int) (int, error) {
	raw := v.Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", key, raw, ErrInvalidFilter)
	}
	return n, nil
}
