package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"ballunia/entities"
	"ballunia/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxLineQuantity bounds the quantity of a single cart line.
const MaxLineQuantity = 10000

// CartStore is an ordered list of cart lines persisted under one key. Every
// mutation writes the full list back before returning. It is not safe for
// concurrent use.
type CartStore struct {
	kv    repository.KeyValueStore
	key   string
	log   *zap.Logger
	items []entities.CartLineItem
}

// LoadCartStore hydrates a store from kv. A corrupt or non-array payload is
// treated as an empty cart.
func LoadCartStore(ctx context.Context, kv repository.KeyValueStore, key string, log *zap.Logger) (*CartStore, error) {
	s := &CartStore{kv: kv, key: key, log: log}

	raw, exists, err := kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if !exists {
		return s, nil
	}

	var items []entities.CartLineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		log.Warn("discarding unreadable cart", zap.String("key", key), zap.Error(err))
		return s, nil
	}
	for i := range items {
		items[i].Quantity = clampQuantity(items[i].Quantity)
	}
	s.items = items
	return s, nil
}

func (s *CartStore) persist(ctx context.Context) error {
	items := s.items
	if items == nil {
		items = []entities.CartLineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(b)); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

// Items returns a copy of the lines in cart order.
func (s *CartStore) Items() []entities.CartLineItem {
	out := make([]entities.CartLineItem, len(s.items))
	for i, it := range s.items {
		out[i] = cloneLine(it)
	}
	return out
}

func (s *CartStore) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range s.items {
		sum = sum.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

func (s *CartStore) TotalCount() int {
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// FindBundle returns the line holding the given bundle id.
func (s *CartStore) FindBundle(bundleId string) (entities.CartLineItem, bool) {
	for _, it := range s.items {
		if it.Type == entities.LineBundle && it.Bundle != nil && it.Bundle.BundleId == bundleId {
			return cloneLine(it), true
		}
	}
	return entities.CartLineItem{}, false
}

// AddItem normalises the draft and either merges it into a matching product
// line or appends it. Bundle drafts are always appended with a bundle id not
// used by any other line.
func (s *CartStore) AddItem(ctx context.Context, draft entities.CartDraft) (entities.CartLineItem, error) {
	incoming := s.normalize(draft)

	if incoming.Type == entities.LineProduct {
		if i := s.matchProduct(incoming); i >= 0 {
			s.items[i].Quantity = min(s.items[i].Quantity+incoming.Quantity, MaxLineQuantity)
			return cloneLine(s.items[i]), s.persist(ctx)
		}
	}

	s.items = append(s.items, incoming)
	return cloneLine(incoming), s.persist(ctx)
}

func (s *CartStore) matchProduct(incoming entities.CartLineItem) int {
	return slices.IndexFunc(s.items, func(x entities.CartLineItem) bool {
		if x.Type != entities.LineProduct {
			return false
		}
		aSku, bSku := skuOf(incoming), skuOf(x)
		if aSku != "" && bSku != "" {
			return aSku == bSku
		}
		return incoming.Name == x.Name && incoming.Price == x.Price
	})
}

func skuOf(it entities.CartLineItem) string {
	if it.Product == nil {
		return ""
	}
	return it.Product.Sku
}

func (s *CartStore) normalize(d entities.CartDraft) entities.CartLineItem {
	it := entities.CartLineItem{
		Id:       d.Id,
		Type:     d.Type,
		Name:     d.Name,
		Price:    coercePrice(d.Price),
		Quantity: coerceQuantity(d.Quantity),
		ImageUrl: d.ImageUrl,
	}
	if it.Id == "" || s.indexOf(it.Id) >= 0 {
		it.Id = uuid.NewString()
	}
	if it.Name == "" {
		it.Name = "Item"
	}
	if d.Product != nil {
		p := *d.Product
		it.Product = &p
	}
	if d.Bundle != nil {
		b := cloneBundle(*d.Bundle)
		it.Bundle = &b
	}
	if it.Type == entities.LineBundle {
		if it.Bundle == nil {
			it.Bundle = &entities.BundlePayload{}
		}
		if it.Bundle.BundleId == "" || s.hasBundle(it.Bundle.BundleId) {
			it.Bundle.BundleId = uuid.NewString()
		}
	}
	return it
}

func (s *CartStore) hasBundle(bundleId string) bool {
	_, ok := s.FindBundle(bundleId)
	return ok
}

func (s *CartStore) indexOf(lineId string) int {
	return slices.IndexFunc(s.items, func(x entities.CartLineItem) bool { return x.Id == lineId })
}

// UpdateItem replaces the bundle payload fields of a line in place. Unknown
// line ids and non-bundle lines are ignored.
func (s *CartStore) UpdateItem(ctx context.Context, lineId string, patch entities.BundlePatch) error {
	i := s.indexOf(lineId)
	if i < 0 || s.items[i].Bundle == nil {
		return nil
	}
	b := s.items[i].Bundle
	if patch.Items != nil {
		b.Items = slices.Clone(patch.Items)
	}
	if patch.Summary != nil {
		b.Summary = slices.Clone(patch.Summary)
	}
	if patch.Notes != nil {
		b.Notes = *patch.Notes
	}
	return s.persist(ctx)
}

func (s *CartStore) RemoveItem(ctx context.Context, lineId string) error {
	s.items = slices.DeleteFunc(s.items, func(x entities.CartLineItem) bool { return x.Id == lineId })
	return s.persist(ctx)
}

// SetQuantity sets a line's quantity. Zero removes the line; negative and
// non-finite input leave the cart unchanged. Fractions are truncated, with a
// floor of one and a ceiling of MaxLineQuantity.
func (s *CartStore) SetQuantity(ctx context.Context, lineId string, qty float64) error {
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty < 0 {
		return nil
	}
	if qty == 0 {
		return s.RemoveItem(ctx, lineId)
	}
	i := s.indexOf(lineId)
	if i < 0 {
		return nil
	}
	s.items[i].Quantity = int(min(max(1, qty), MaxLineQuantity))
	return s.persist(ctx)
}

func (s *CartStore) Clear(ctx context.Context) error {
	s.items = nil
	return s.persist(ctx)
}

func coercePrice(v any) float64 {
	switch p := v.(type) {
	case nil:
		return 0
	case float64:
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return 0
		}
		return p
	case int:
		return float64(p)
	case json.Number:
		f, err := p.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	case bool:
		if p {
			return 1
		}
	}
	return 0
}

func coerceQuantity(v any) int {
	if v == nil {
		return 1
	}
	return int(min(max(1, coercePrice(v)), MaxLineQuantity))
}

func clampQuantity(q int) int {
	return min(max(1, q), MaxLineQuantity)
}

func cloneBundle(b entities.BundlePayload) entities.BundlePayload {
	b.Items = slices.Clone(b.Items)
	b.Summary = slices.Clone(b.Summary)
	return b
}

func cloneLine(it entities.CartLineItem) entities.CartLineItem {
	if it.ImageUrl != nil {
		u := *it.ImageUrl
		it.ImageUrl = &u
	}
	if it.Product != nil {
		p := *it.Product
		it.Product = &p
	}
	if it.Bundle != nil {
		b := cloneBundle(*it.Bundle)
		it.Bundle = &b
	}
	return it
}
