package session

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/rp-jtw/storefront/internal/apperr"
	"github.com/rp-jtw/storefront/internal/backend"
	"github.com/rp-jtw/storefront/internal/middleware"
)

// Handler exposes the sign-in flow over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type sessionResponse struct {
	Stage         Stage  `json:"stage"`
	Status        Status `json:"status"`
	Authenticated bool   `json:"authenticated"`
	ISDCode       string `json:"isdCode,omitempty"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
}

func toResponse(s Session) sessionResponse {
	return sessionResponse{
		Stage:         s.Stage(),
		Status:        s.Status,
		Authenticated: s.Authenticated(),
		ISDCode:       s.ISDCode,
		PhoneNumber:   s.PhoneNumber,
	}
}

type profileResponse struct {
	Session sessionResponse `json:"session"`
	Profile backend.Profile `json:"profile"`
}

// Current returns the caller's session.
func (h *Handler) Current(c *fiber.Ctx) error {
	sess, err := h.svc.Current(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.JSON(toResponse(sess))
}

type otpRequest struct {
	ISDCode     string `json:"isdCode"`
	PhoneNumber string `json:"phoneNumber"`
}

// RequestOTP sends a one-time code to the given number.
func (h *Handler) RequestOTP(c *fiber.Ctx) error {
	var req otpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.RequestOTP(c.UserContext(), middleware.SessionID(c), req.ISDCode, req.PhoneNumber)
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.Status(http.StatusAccepted).JSON(toResponse(sess))
}

type verifyRequest struct {
	OTP string `json:"otp"`
}

// VerifyOTP checks the code and signs the session in.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.VerifyOTP(c.UserContext(), middleware.SessionID(c), req.OTP)
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.JSON(toResponse(sess))
}

// Profile refreshes and returns the backend profile.
func (h *Handler) Profile(c *fiber.Ctx) error {
	sess, profile, err := h.svc.Refresh(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.JSON(profileResponse{Session: toResponse(sess), Profile: profile})
}

// SubmitProfile completes the business profile.
func (h *Handler) SubmitProfile(c *fiber.Ctx) error {
	var form ProfileForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	sess, profile, err := h.svc.SubmitProfile(c.UserContext(), middleware.SessionID(c), form)
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.JSON(profileResponse{Session: toResponse(sess), Profile: profile})
}

// Refresh re-derives the approval status.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	sess, _, err := h.svc.Refresh(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.JSON(toResponse(sess))
}

// CatalogAccess reports whether the catalog may be shown.
func (h *Handler) CatalogAccess(c *fiber.Ctx) error {
	access, err := h.svc.CatalogAccess(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.JSON(access)
}

// Logout forgets the session's token.
func (h *Handler) Logout(c *fiber.Ctx) error {
	sess, err := h.svc.Logout(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.JSON(toResponse(sess))
}

// RequireCatalogAccess refuses catalog routes until the account is approved.
// Refusals carry the view the UI should move to.
func RequireCatalogAccess(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		access, err := svc.CatalogAccess(c.UserContext(), middleware.SessionID(c))
		if err != nil {
			return apperr.ToFiber(err)
		}
		if access.Allowed {
			return c.Next()
		}
		code := http.StatusForbidden
		msg := "account is awaiting approval"
		if access.Redirect == RedirectHome {
			code = http.StatusUnauthorized
			msg = "sign in to browse the catalog"
		} else if access.Status == StatusPendingDetails {
			msg = "complete your profile to browse the catalog"
		}
		return c.Status(code).JSON(fiber.Map{
			"error":    msg,
			"redirect": access.Redirect,
			"stage":    access.Stage,
		})
	}
}
