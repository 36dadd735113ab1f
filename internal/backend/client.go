// Package backend is the thin client for the storefront REST API: auth,
// profile, product, category and cart endpoints. Every non-2xx response or
// transport failure is returned as an *apperr.RemoteError carrying the
// message the backend sent.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rp-jtw/storefront/internal/apperr"
	"github.com/rp-jtw/storefront/internal/logging"
)

const maxResponseBytes = 4 << 20

// Client calls the remote storefront backend.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient sends calls through a copy of hc. The caller's client is
// never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		cp := *hc
		c.http = &cp
	}
}

// WithTimeout bounds every backend call, whichever HTTP client is used.
// Zero keeps the client's own timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for per-call debug lines.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.Component(logger, "backend") }
}

// New builds a client for baseURL, e.g. https://jewel-tech.onrender.com.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		c.http.Timeout = c.timeout
	}
	return c
}

// RequestOTP asks the backend to text a one-time password to the phone.
func (c *Client) RequestOTP(ctx context.Context, isdCode, phone string) error {
	body := map[string]string{"isdCode": isdCode, "phoneNumber": phone}
	return c.do(ctx, "request OTP", http.MethodPost, "/auth/request-otp", "", body, nil)
}

// VerifyOTP exchanges the code for an access token and the account status.
func (c *Client) VerifyOTP(ctx context.Context, isdCode, phone, otp string) (VerifyResult, error) {
	body := map[string]string{"isdCode": isdCode, "phoneNumber": phone, "otp": otp}
	var out VerifyResult
	if err := c.do(ctx, "verify OTP", http.MethodPost, "/auth/verify-otp", "", body, &out); err != nil {
		return VerifyResult{}, err
	}
	return out, nil
}

// Profile fetches the authenticated user's profile.
func (c *Client) Profile(ctx context.Context, token string) (Profile, error) {
	var out Profile
	if err := c.do(ctx, "fetch profile", http.MethodGet, "/auth/profile", token, nil, &out); err != nil {
		return Profile{}, err
	}
	return out, nil
}

// UpdateProfile submits the profile form and returns the stored profile.
func (c *Client) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (Profile, error) {
	var out Profile
	if err := c.do(ctx, "update profile", http.MethodPatch, "/auth/profile", token, update, &out); err != nil {
		return Profile{}, err
	}
	return out, nil
}

// Products lists the catalog.
func (c *Client) Products(ctx context.Context, token string) ([]Product, error) {
	var out []Product
	if err := c.do(ctx, "fetch products", http.MethodGet, "/product", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Product fetches a single catalog entry.
func (c *Client) Product(ctx context.Context, token, id string) (Product, error) {
	var out Product
	if err := c.do(ctx, "fetch product", http.MethodGet, "/product/"+url.PathEscape(id), token, nil, &out); err != nil {
		return Product{}, err
	}
	return out, nil
}

// Categories lists product categories.
func (c *Client) Categories(ctx context.Context, token string) ([]Category, error) {
	var out []Category
	if err := c.do(ctx, "fetch categories", http.MethodGet, "/category", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Category fetches one category.
func (c *Client) Category(ctx context.Context, token, id string) (Category, error) {
	var out Category
	if err := c.do(ctx, "fetch category", http.MethodGet, "/category/"+url.PathEscape(id), token, nil, &out); err != nil {
		return Category{}, err
	}
	return out, nil
}

// Cart fetches the user's cart.
func (c *Client) Cart(ctx context.Context, token string) (Cart, error) {
	var out Cart
	if err := c.do(ctx, "fetch cart", http.MethodGet, "/cart", token, nil, &out); err != nil {
		return Cart{}, err
	}
	return out, nil
}

// AddToCart adds quantity of productID and returns the updated cart.
func (c *Client) AddToCart(ctx context.Context, token, productID string, quantity int) (Cart, error) {
	body := struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}{productID, quantity}
	var out Cart
	if err := c.do(ctx, "add item to cart", http.MethodPost, "/cart/add", token, body, &out); err != nil {
		return Cart{}, err
	}
	return out, nil
}

// RemoveFromCart removes productID and returns the updated cart. The backend
// answers with either a cart object or a bare item list; both decode here.
func (c *Client) RemoveFromCart(ctx context.Context, token, productID string) (Cart, error) {
	body := map[string]string{"productId": productID}
	var out Cart
	if err := c.do(ctx, "remove item from cart", http.MethodPost, "/cart/remove", token, body, &out); err != nil {
		return Cart{}, err
	}
	return out, nil
}

// ClearCart empties the cart.
func (c *Client) ClearCart(ctx context.Context, token string) error {
	return c.do(ctx, "clear cart", http.MethodPost, "/cart/clear", token, nil, nil)
}

// GenerateEnquiry asks the backend to compose an enquiry for the cart.
func (c *Client) GenerateEnquiry(ctx context.Context, token string) (string, error) {
	var out enquiryResult
	if err := c.do(ctx, "generate enquiry", http.MethodPost, "/cart/generate-enquiry", token, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend call failed", slog.String("op", op), slog.String("path", path), slog.Any("error", err))
		return &apperr.RemoteError{Op: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &apperr.RemoteError{Op: op, Status: resp.StatusCode, Message: err.Error(), Err: err}
	}
	c.logger.Debug("backend call",
		slog.String("op", op),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = "Failed to " + op
		}
		return &apperr.RemoteError{Op: op, Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return &apperr.RemoteError{Op: op, Status: resp.StatusCode, Message: "malformed response from backend", Err: decodeErr}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &apperr.RemoteError{Op: op, Status: resp.StatusCode, Message: "malformed response from backend", Err: err}
	}
	return nil
}
