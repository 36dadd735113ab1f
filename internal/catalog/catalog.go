// Package catalog serves read-only product and category data to approved
// sessions.
package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/rp-jtw/storefront/internal/apperr"
	"github.com/rp-jtw/storefront/internal/backend"
	"github.com/rp-jtw/storefront/internal/logging"
	"github.com/rp-jtw/storefront/internal/middleware"
)

// Backend is the subset of the remote API the catalog reads.
type Backend interface {
	Products(ctx context.Context, token string) ([]backend.Product, error)
	Product(ctx context.Context, token, id string) (backend.Product, error)
	Categories(ctx context.Context, token string) ([]backend.Category, error)
	Category(ctx context.Context, token, id string) (backend.Category, error)
}

// Tokens resolves a session id to its backend access token.
type Tokens interface {
	AccessToken(ctx context.Context, sessionID string) (string, error)
}

// Service reads the catalog. Nothing is cached between requests.
type Service struct {
	backend Backend
	tokens  Tokens
	logger  *slog.Logger
}

func NewService(b Backend, tokens Tokens, logger *slog.Logger) *Service {
	return &Service{backend: b, tokens: tokens, logger: logging.Component(logger, "catalog")}
}

// Products lists products, optionally narrowed to one category.
func (s *Service) Products(ctx context.Context, sessionID, categoryID string) ([]backend.Product, error) {
	token, err := s.tokens.AccessToken(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	products, err := s.backend.Products(ctx, token)
	if err != nil {
		return nil, err
	}
	if categoryID == "" {
		return products, nil
	}
	filtered := make([]backend.Product, 0, len(products))
	for _, p := range products {
		if p.CategoryID == categoryID {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (s *Service) Product(ctx context.Context, sessionID, id string) (backend.Product, error) {
	if strings.TrimSpace(id) == "" {
		return backend.Product{}, apperr.Invalid("id", "Product ID is required.")
	}
	token, err := s.tokens.AccessToken(ctx, sessionID)
	if err != nil {
		return backend.Product{}, err
	}
	return s.backend.Product(ctx, token, id)
}

func (s *Service) Categories(ctx context.Context, sessionID string) ([]backend.Category, error) {
	token, err := s.tokens.AccessToken(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.backend.Categories(ctx, token)
}

func (s *Service) Category(ctx context.Context, sessionID, id string) (backend.Category, error) {
	if strings.TrimSpace(id) == "" {
		return backend.Category{}, apperr.Invalid("id", "Category ID is required.")
	}
	token, err := s.tokens.AccessToken(ctx, sessionID)
	if err != nil {
		return backend.Category{}, err
	}
	return s.backend.Category(ctx, token, id)
}

// Handler exposes the catalog over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Products(c *fiber.Ctx) error {
	products, err := h.svc.Products(c.UserContext(), middleware.SessionID(c), c.Query("category"))
	if err != nil {
		return apperr.ToFiber(err)
	}
	if products == nil {
		products = []backend.Product{}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"items": products})
}

func (h *Handler) Product(c *fiber.Ctx) error {
	p, err := h.svc.Product(c.UserContext(), middleware.SessionID(c), c.Params("id"))
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.JSON(p)
}

func (h *Handler) Categories(c *fiber.Ctx) error {
	categories, err := h.svc.Categories(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return apperr.ToFiber(err)
	}
	if categories == nil {
		categories = []backend.Category{}
	}
	return c.JSON(fiber.Map{"items": categories})
}

func (h *Handler) Category(c *fiber.Ctx) error {
	cat, err := h.svc.Category(c.UserContext(), middleware.SessionID(c), c.Params("id"))
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.JSON(cat)
}
