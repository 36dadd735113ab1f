package cart

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/rp-jtw/storefront/internal/apperr"
	"github.com/rp-jtw/storefront/internal/enquiry"
	"github.com/rp-jtw/storefront/internal/middleware"
)

// Handler exposes cart and enquiry endpoints.
type Handler struct {
	svc      *Service
	dispatch *enquiry.Dispatcher
}

func NewHandler(svc *Service, dispatch *enquiry.Dispatcher) *Handler {
	return &Handler{svc: svc, dispatch: dispatch}
}

// Get returns the enriched, priced cart.
func (h *Handler) Get(c *fiber.Ctx) error {
	view, err := h.svc.Load(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.JSON(view)
}

type addRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

// Add puts a product in the cart. Quantity defaults to one.
func (h *Handler) Add(c *fiber.Ctx) error {
	var req addRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	items, err := h.svc.Add(c.UserContext(), middleware.SessionID(c), req.ProductID, qty)
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.Status(http.StatusCreated).JSON(NewView(items))
}

// Remove takes a product out of the cart.
func (h *Handler) Remove(c *fiber.Ctx) error {
	items, err := h.svc.Remove(c.UserContext(), middleware.SessionID(c), c.Params("productId"))
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.JSON(NewView(items))
}

// Clear empties the cart.
func (h *Handler) Clear(c *fiber.Ctx) error {
	items, err := h.svc.Clear(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.JSON(NewView(items))
}

// Enquiry prices the current cart and returns the chat handoff.
func (h *Handler) Enquiry(c *fiber.Ctx) error {
	sid := middleware.SessionID(c)
	view, err := h.svc.Load(c.UserContext(), sid)
	if err != nil {
		return apperr.ToFiber(err)
	}
	if len(view.Items) == 0 {
		return fiber.NewError(http.StatusBadRequest, "Your cart is empty.")
	}
	handoff, err := h.dispatch.Dispatch(c.UserContext(), sid, Lines(view.Items), view.Total, c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.JSON(handoff)
}

// GenerateEnquiry returns the backend-composed enquiry text.
func (h *Handler) GenerateEnquiry(c *fiber.Ctx) error {
	msg, err := h.svc.GenerateEnquiry(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return apperr.ToFiber(err)
	}
	return c.JSON(fiber.Map{"message": msg})
}

// QuoteSheet downloads the cart as a spreadsheet.
func (h *Handler) QuoteSheet(c *fiber.Ctx) error {
	view, err := h.svc.Load(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return apperr.ToFiber(err)
	}
	book, err := QuoteSheet(view.Items)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="enquiry.xlsx"`)
	return c.Send(book)
}

// Lines converts priced items into enquiry lines.
func Lines(items []Item) []enquiry.Line {
	lines := make([]enquiry.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, enquiry.Line{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: ComputePrice(it),
		})
	}
	return lines
}
