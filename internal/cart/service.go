package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rp-jtw/storefront/internal/apperr"
	"github.com/rp-jtw/storefront/internal/backend"
	"github.com/rp-jtw/storefront/internal/logging"
	"github.com/rp-jtw/storefront/internal/store"
)

// Backend is the subset of the remote API the cart uses.
type Backend interface {
	Cart(ctx context.Context, token string) (backend.Cart, error)
	AddToCart(ctx context.Context, token, productID string, quantity int) (backend.Cart, error)
	RemoveFromCart(ctx context.Context, token, productID string) (backend.Cart, error)
	ClearCart(ctx context.Context, token string) error
	GenerateEnquiry(ctx context.Context, token string) (string, error)
	Product(ctx context.Context, token, id string) (backend.Product, error)
}

// Tokens resolves a session id to its backend access token.
type Tokens interface {
	AccessToken(ctx context.Context, sessionID string) (string, error)
}

// EnrichmentGap records a product lookup that failed during enrichment. The
// item keeps its stub form.
type EnrichmentGap struct {
	ProductID string
	Err       error
}

func (g *EnrichmentGap) Error() string {
	return fmt.Sprintf("enrich product %s: %v", g.ProductID, g.Err)
}

func (g *EnrichmentGap) Unwrap() error { return g.Err }

// View is the cart as the UI renders it.
type View struct {
	Items []Item  `json:"items"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// NewView prices items.
func NewView(items []Item) View {
	if items == nil {
		items = []Item{}
	}
	return View{Items: items, Total: ComputeTotal(items), Count: Count(items)}
}

// Service keeps the session's cart mirror in step with the backend.
type Service struct {
	backend Backend
	tokens  Tokens
	store   store.Store
	ttl     time.Duration
	logger  *slog.Logger
}

func NewService(b Backend, tokens Tokens, s store.Store, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		backend: b,
		tokens:  tokens,
		store:   s,
		ttl:     ttl,
		logger:  logging.Component(logger, "cart"),
	}
}

func mirrorKey(sessionID string) string { return "cart:" + sessionID }

// Mirror returns the last cart stored for the session, empty if none.
func (s *Service) Mirror(ctx context.Context, sessionID string) ([]Item, error) {
	var items []Item
	err := store.GetJSON(ctx, s.store, mirrorKey(sessionID), &items)
	if errors.Is(err, store.ErrNotFound) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart mirror: %w", err)
	}
	return items, nil
}

// DropMirror forgets the session's cart mirror.
func (s *Service) DropMirror(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, mirrorKey(sessionID)); err != nil {
		return fmt.Errorf("drop cart mirror: %w", err)
	}
	return nil
}

// replace overwrites the mirror with the backend's authoritative list. A
// failed write is logged; the backend list is still returned.
func (s *Service) replace(ctx context.Context, sessionID string, items []Item) []Item {
	if err := store.SetJSON(ctx, s.store, mirrorKey(sessionID), items, s.ttl); err != nil {
		s.logger.Warn("cart mirror write failed", slog.String("session_id", sessionID), slog.Any("error", err))
	}
	return items
}

// Fetch reads the cart from the backend and replaces the mirror.
func (s *Service) Fetch(ctx context.Context, sessionID string) ([]Item, error) {
	token, err := s.tokens.AccessToken(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c, err := s.backend.Cart(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.replace(ctx, sessionID, fromBackendCart(c)), nil
}

// Add puts quantity units of productID in the cart.
func (s *Service) Add(ctx context.Context, sessionID, productID string, quantity int) ([]Item, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, apperr.Invalid("productId", "Product ID is required.")
	}
	if quantity < 1 {
		return nil, apperr.Invalid("quantity", "Quantity must be at least 1.")
	}
	token, err := s.tokens.AccessToken(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c, err := s.backend.AddToCart(ctx, token, productID, quantity)
	if err != nil {
		return nil, err
	}
	s.logger.Info("item added", slog.String("session_id", sessionID), slog.String("product_id", productID), slog.Int("quantity", quantity))
	return s.replace(ctx, sessionID, fromBackendCart(c)), nil
}

// Remove takes productID out of the cart. Removing a product that is not in
// the cart leaves it unchanged.
func (s *Service) Remove(ctx context.Context, sessionID, productID string) ([]Item, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, apperr.Invalid("productId", "Product ID is required.")
	}
	token, err := s.tokens.AccessToken(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c, err := s.backend.RemoveFromCart(ctx, token, productID)
	var remote *apperr.RemoteError
	if errors.As(err, &remote) && remote.Status == http.StatusNotFound {
		s.logger.Debug("remove of absent item", slog.String("session_id", sessionID), slog.String("product_id", productID))
		return s.Fetch(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return s.replace(ctx, sessionID, fromBackendCart(c)), nil
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, sessionID string) ([]Item, error) {
	token, err := s.tokens.AccessToken(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.backend.ClearCart(ctx, token); err != nil {
		return nil, err
	}
	return s.replace(ctx, sessionID, []Item{}), nil
}

// Enrich fetches every item's product concurrently and merges the details
// in. Output order matches input order. A failed lookup leaves that item as
// a stub and is only logged.
func (s *Service) Enrich(ctx context.Context, sessionID string, items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	if len(items) == 0 {
		return out
	}
	token, err := s.tokens.AccessToken(ctx, sessionID)
	if err != nil {
		s.logger.Warn("cart enrichment skipped", slog.String("session_id", sessionID), slog.Any("error", err))
		return out
	}

	var g errgroup.Group
	for i := range out {
		g.Go(func() error {
			p, err := s.backend.Product(ctx, token, out[i].ProductID)
			if err != nil {
				gap := &EnrichmentGap{ProductID: out[i].ProductID, Err: err}
				s.logger.Warn("cart item left as stub", slog.String("session_id", sessionID), slog.Any("error", gap))
				return nil
			}
			out[i] = withProduct(out[i], p)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Load fetches and enriches the cart and prices it.
func (s *Service) Load(ctx context.Context, sessionID string) (View, error) {
	items, err := s.Fetch(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	items = s.Enrich(ctx, sessionID, items)
	s.replace(ctx, sessionID, items)
	return NewView(items), nil
}

// GenerateEnquiry asks the backend to compose its own enquiry text.
func (s *Service) GenerateEnquiry(ctx context.Context, sessionID string) (string, error) {
	token, err := s.tokens.AccessToken(ctx, sessionID)
	if err != nil {
		return "", err
	}
	msg, err := s.backend.GenerateEnquiry(ctx, token)
	if err != nil {
		return "", err
	}
	s.logger.Info("backend enquiry generated", slog.String("session_id", sessionID))
	return msg, nil
}
