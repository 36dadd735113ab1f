package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rp-jtw/storefront/internal/backend"
	"github.com/rp-jtw/storefront/internal/cart"
	"github.com/rp-jtw/storefront/internal/catalog"
	"github.com/rp-jtw/storefront/internal/config"
	"github.com/rp-jtw/storefront/internal/enquiry"
	"github.com/rp-jtw/storefront/internal/logging"
	"github.com/rp-jtw/storefront/internal/middleware"
	"github.com/rp-jtw/storefront/internal/notification"
	"github.com/rp-jtw/storefront/internal/session"
	"github.com/rp-jtw/storefront/internal/store"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Store  store.Store
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Store == nil {
		return fmt.Errorf("a session store is required")
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Cfg.SessionSecret == "" {
		return fmt.Errorf("a session secret is required")
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.LogFormat == "text" {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	client := backend.New(d.Cfg.BackendURL,
		backend.WithTimeout(d.Cfg.BackendTimeout),
		backend.WithLogger(d.Logger),
	)

	sessionSvc := session.NewService(client, d.Store, d.Cfg.SessionTTL, d.Logger)
	cartSvc := cart.NewService(client, sessionSvc, d.Store, d.Cfg.SessionTTL, d.Logger)
	sessionSvc.OnLogout(cartSvc.DropMirror)
	catalogSvc := catalog.NewService(client, sessionSvc, d.Logger)

	notifier := notification.NewLoggerNotifier(d.Logger)
	dispatcher := enquiry.NewDispatcher(d.Cfg.MessagingHost, d.Cfg.MerchantPhone, notifier, d.Logger)

	api := app.Group("/api/v1", middleware.Session(middleware.SessionOptions{
		Secret:       []byte(d.Cfg.SessionSecret),
		TTL:          d.Cfg.SessionTTL,
		CookieSecure: d.Cfg.CookieSecure,
	}))
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterSessionRoutes(api, session.NewHandler(sessionSvc), middleware.OTPRateLimit(d.Cache, d.Cfg.OTPPerMinute, d.Logger))

	RegisterCatalogRoutes(api, catalog.NewHandler(catalogSvc), session.RequireCatalogAccess(sessionSvc))

	idem := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	RegisterCartRoutes(api, cart.NewHandler(cartSvc, dispatcher), idem)

	return nil
}

// RegisterSessionRoutes wires the sign-in flow.
func RegisterSessionRoutes(r fiber.Router, h *session.Handler, otpLimiter fiber.Handler) {
	group := r.Group("/session")
	group.Get("", h.Current)
	group.Post("/otp", otpLimiter, h.RequestOTP)
	group.Post("/otp/verify", h.VerifyOTP)
	group.Get("/profile", h.Profile)
	group.Patch("/profile", h.SubmitProfile)
	group.Post("/refresh", h.Refresh)
	group.Get("/catalog-access", h.CatalogAccess)
	group.Post("/logout", h.Logout)
}

// RegisterCatalogRoutes wires read-only catalog endpoints behind guard.
func RegisterCatalogRoutes(r fiber.Router, h *catalog.Handler, guard fiber.Handler) {
	r.Get("/products", guard, h.Products)
	r.Get("/products/:id", guard, h.Product)
	r.Get("/categories", guard, h.Categories)
	r.Get("/categories/:id", guard, h.Category)
}

// RegisterCartRoutes wires cart and enquiry endpoints.
func RegisterCartRoutes(r fiber.Router, h *cart.Handler, idem fiber.Handler) {
	group := r.Group("/cart")
	group.Get("", h.Get)
	group.Post("/items", idem, h.Add)
	group.Delete("/items/:productId", h.Remove)
	group.Post("/clear", idem, h.Clear)
	group.Post("/enquiry", idem, h.Enquiry)
	group.Post("/enquiry/generate", idem, h.GenerateEnquiry)
	group.Get("/enquiry/sheet", h.QuoteSheet)
}

// ErrorHandler renders every error as {"error": message}.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "internal server error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		}
		if code >= fiber.StatusInternalServerError && code != fiber.StatusBadGateway {
			logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
