package services

import (
	"context"
	"fmt"
	"math"
	"sync"

	"ballunia/entities"
	"ballunia/models"
	"ballunia/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TemplateResolver is the part of BundleService the cart needs.
type TemplateResolver interface {
	Resolve(ctx context.Context, templateNK string) (entities.BundleConfig, error)
}

// CartService runs cart operations for client sessions. Each call loads the
// session's cart, mutates it and persists it while holding one lock, so calls
// within a process never interleave.
type CartService struct {
	mu          *sync.Mutex
	kv          repository.KeyValueStore
	resolver    TemplateResolver
	checkoutURL string
	log         *zap.Logger
}

func NewCartService(kv repository.KeyValueStore, resolver TemplateResolver, checkoutBaseURL string, log *zap.Logger) CartService {
	return CartService{
		mu:          &sync.Mutex{},
		kv:          kv,
		resolver:    resolver,
		checkoutURL: checkoutBaseURL,
		log:         log,
	}
}

func (cs *CartService) CreateCartSession() string {
	return uuid.NewString()
}

func (cs *CartService) withCart(ctx context.Context, sessionId string, fn func(*CartStore) error) (resp entities.CartResponse, err error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	store, err := LoadCartStore(ctx, cs.kv, repository.SessionCartKey(sessionId), cs.log)
	if err != nil {
		return
	}
	if fn != nil {
		if err = fn(store); err != nil {
			return
		}
	}
	resp = cartResponse(store)
	return
}

func cartResponse(store *CartStore) entities.CartResponse {
	return entities.CartResponse{
		Items:    store.Items(),
		Subtotal: store.Subtotal().InexactFloat64(),
		TotalQty: store.TotalCount(),
	}
}

func (cs *CartService) GetCart(ctx context.Context, sessionId string) (entities.CartResponse, error) {
	return cs.withCart(ctx, sessionId, nil)
}

func (cs *CartService) AddItem(ctx context.Context, sessionId string, draft entities.CartDraft) (entities.CartResponse, error) {
	if draft.Type != entities.LineProduct && draft.Type != entities.LineBundle {
		return entities.CartResponse{}, fmt.Errorf("%w: unknown line type %q", models.ErrBadRequest, draft.Type)
	}
	if draft.Quantity != nil {
		if err := checkQuantity(coercePrice(draft.Quantity)); err != nil {
			return entities.CartResponse{}, err
		}
	}
	return cs.withCart(ctx, sessionId, func(s *CartStore) error {
		_, err := s.AddItem(ctx, draft)
		return err
	})
}

func (cs *CartService) RemoveItem(ctx context.Context, sessionId, lineId string) (entities.CartResponse, error) {
	return cs.withCart(ctx, sessionId, func(s *CartStore) error {
		return s.RemoveItem(ctx, lineId)
	})
}

// SetQuantity rejects fractional quantities and anything above
// MaxLineQuantity. Zero removes the line and a negative value is ignored.
func (cs *CartService) SetQuantity(ctx context.Context, sessionId, lineId string, qty float64) (entities.CartResponse, error) {
	if err := checkQuantity(qty); err != nil {
		return entities.CartResponse{}, err
	}
	return cs.withCart(ctx, sessionId, func(s *CartStore) error {
		return s.SetQuantity(ctx, lineId, qty)
	})
}

func checkQuantity(qty float64) error {
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty != math.Trunc(qty) {
		return fmt.Errorf("%w: quantity must be a whole number", models.ErrBadRequest)
	}
	if qty > MaxLineQuantity {
		return fmt.Errorf("%w: quantity must not exceed %d", models.ErrBadRequest, MaxLineQuantity)
	}
	return nil
}

func (cs *CartService) Clear(ctx context.Context, sessionId string) (entities.CartResponse, error) {
	return cs.withCart(ctx, sessionId, func(s *CartStore) error {
		return s.Clear(ctx)
	})
}

// CommitBundle validates a bundle selection and stores it. A new bundle gets
// its own line; an edit rewrites the line that holds EditingBundleId.
func (cs *CartService) CommitBundle(ctx context.Context, sessionId string, req models.CommitBundleRequest) (entities.CartResponse, error) {
	if req.TemplateNK == "" {
		return entities.CartResponse{}, fmt.Errorf("%w: Missing templateNK parameter", models.ErrBadRequest)
	}
	cfg, err := cs.resolver.Resolve(ctx, req.TemplateNK)
	if err != nil {
		return entities.CartResponse{}, err
	}
	built, err := BuildSelection(cfg, req.Selection)
	if err != nil {
		return entities.CartResponse{}, err
	}
	if !built.Validation.Valid {
		return entities.CartResponse{}, &models.ValidationError{Messages: built.Validation.Messages}
	}
	items := built.Items

	summary := make([]string, 0, len(items))
	for _, it := range items {
		summary = append(summary, it.Name)
	}

	return cs.withCart(ctx, sessionId, func(s *CartStore) error {
		if req.EditingBundleId != "" {
			existing, ok := s.FindBundle(req.EditingBundleId)
			if !ok {
				cs.log.Warn("editing bundle not found", zap.String("bundleId", req.EditingBundleId))
				return fmt.Errorf("bundle %q: %w", req.EditingBundleId, models.ErrNotFoundError)
			}
			if existing.Bundle.TemplateNK != cfg.Template.NK {
				return fmt.Errorf("%w: bundle %q was built from template %q", models.ErrBadRequest, req.EditingBundleId, existing.Bundle.TemplateNK)
			}
			patch := entities.BundlePatch{Items: items, Summary: summary}
			if req.Notes != "" {
				patch.Notes = &req.Notes
			}
			return s.UpdateItem(ctx, existing.Id, patch)
		}

		_, err := s.AddItem(ctx, entities.CartDraft{
			Type:     entities.LineBundle,
			Name:     cfg.Template.Name,
			Price:    cfg.Template.Price,
			Quantity: 1,
			Bundle: &entities.BundlePayload{
				TemplateNK: cfg.Template.NK,
				Items:      items,
				Summary:    summary,
				Notes:      req.Notes,
			},
		})
		return err
	})
}

// Checkout builds the hosted checkout link for the session's cart. A cart
// with nothing to add is a bad request.
func (cs *CartService) Checkout(ctx context.Context, sessionId string) (entities.Checkout, error) {
	cart, err := cs.GetCart(ctx, sessionId)
	if err != nil {
		return entities.Checkout{}, err
	}
	co := BuildCheckoutURL(cs.checkoutURL, cart.Items)
	if len(co.Skipped) > 0 {
		cs.log.Warn("checkout skipped lines without variant ids", zap.Strings("lineIds", co.Skipped))
	}
	if co.Url == "" {
		return co, fmt.Errorf("%w: No items selected.", models.ErrBadRequest)
	}
	return co, nil
}
