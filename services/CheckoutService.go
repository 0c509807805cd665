package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ballunia/entities"
	"ballunia/models"

	"go.uber.org/zap"
)

// BuildCheckoutURL flattens the cart into the hosted checkout's add-to-cart
// link. Each unit of a line contributes one "variantId:1" entry per variant
// it carries. Lines without any variant id are left out and reported in
// Skipped. Url is empty when nothing is left to add.
func BuildCheckoutURL(baseURL string, items []entities.CartLineItem) entities.Checkout {
	var entries []string
	skipped := []string{}

	for _, it := range items {
		variants := lineVariants(it)
		if len(variants) == 0 {
			skipped = append(skipped, it.Id)
			continue
		}
		for range clampQuantity(it.Quantity) {
			for _, v := range variants {
				entries = append(entries, v+":1")
			}
		}
	}

	co := entities.Checkout{Skipped: skipped}
	if len(entries) > 0 {
		co.Url = strings.TrimRight(baseURL, "/") + "/cart?add=" + url.QueryEscape(strings.Join(entries, ","))
	}
	return co
}

func lineVariants(it entities.CartLineItem) []string {
	switch it.Type {
	case entities.LineProduct:
		if it.Product != nil && it.Product.VariantId != "" {
			return []string{it.Product.VariantId}
		}
	case entities.LineBundle:
		if it.Bundle == nil {
			return nil
		}
		var out []string
		for _, b := range it.Bundle.Items {
			if b.VariantId != "" {
				out = append(out, b.VariantId)
			}
		}
		return out
	}
	return nil
}

// SquarespaceService opens carts on the Squarespace commerce API.
type SquarespaceService struct {
	baseURL string
	apiKey  string
	siteId  string
	http    *http.Client
	log     *zap.Logger
}

func NewSquarespaceService(baseURL, apiKey, siteId string, timeout time.Duration, log *zap.Logger) SquarespaceService {
	return SquarespaceService{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		siteId:  siteId,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type squarespaceCart struct {
	Cart *struct {
		Id string `json:"id"`
	} `json:"cart"`
}

// CreateCart asks Squarespace for a new empty cart and returns its id.
func (ss *SquarespaceService) CreateCart(ctx context.Context) (string, error) {
	if ss.apiKey == "" || ss.siteId == "" {
		return "", fmt.Errorf("%w: Missing Squarespace API credentials", models.ErrServerError)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ss.baseURL+"/commerce/carts", strings.NewReader("{}"))
	if err != nil {
		return "", fmt.Errorf("create cart request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ss.apiKey)
	req.Header.Set("X-Site-Id", ss.siteId)
	req.Header.Set("User-Agent", "Ballunia Bundle Builder")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := ss.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %v", models.ErrUpstreamUnavailable, err)
	}

	var data squarespaceCart
	if err := json.Unmarshal(body, &data); err != nil {
		ss.log.Warn("squarespace returned non-JSON response", zap.Int("status", resp.StatusCode), zap.ByteString("raw", body))
		return "", fmt.Errorf("%w: Squarespace returned non-JSON response", models.ErrMalformedUpstream)
	}
	if data.Cart == nil || data.Cart.Id == "" {
		ss.log.Warn("squarespace did not return a cart id", zap.Int("status", resp.StatusCode), zap.ByteString("raw", body))
		return "", fmt.Errorf("%w: Squarespace did not return a cart ID", models.ErrMalformedUpstream)
	}
	return data.Cart.Id, nil
}
