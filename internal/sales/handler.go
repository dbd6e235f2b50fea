package sales

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pharmapos/internal/inventory"
	"github.com/odyssey-erp/pharmapos/internal/platform/httpx"
	"github.com/odyssey-erp/pharmapos/internal/units"
)

// Handler exposes the register over HTTP.
type Handler struct {
	logger   *slog.Logger
	register *Register
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, register *Register) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, register: register, validate: validator.New()}
}

// MountRoutes registers register routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.showCart)
		r.Post("/lines", h.addLine)
		r.Delete("/lines/{lineID}", h.removeLine)
		r.Post("/abandon", h.abandon)
		r.Post("/checkout", h.checkout)
	})
	r.Post("/inventory/reload", h.reload)
}

type addLineRequest struct {
	Product  string `json:"product" validate:"required,max=200"`
	Format   string `json:"format" validate:"omitempty,max=20"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type checkoutRequest struct {
	Method   string `json:"method" validate:"required"`
	Tendered string `json:"tendered" validate:"omitempty,numeric"`
}

type checkoutResponse struct {
	CheckoutResult
	Warning string `json:"warning,omitempty"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.register.Products())
}

func (h *Handler) showCart(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.register.Cart())
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	var format units.Format
	if req.Format != "" {
		f, err := units.ParseFormat(req.Format)
		if err != nil {
			h.respondError(w, invalid("format", "%q is not a sale format", req.Format))
			return
		}
		format = f
	}
	line, err := h.register.AddLine(req.Product, format, req.Quantity)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, line)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	if err := h.register.RemoveLine(chi.URLParam(r, "lineID")); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.register.Cart())
}

func (h *Handler) abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.register.Abandon(); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.register.Cart())
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	method, err := ParsePaymentMethod(req.Method)
	if err != nil {
		h.respondError(w, err)
		return
	}
	tendered := decimal.Zero
	if req.Tendered != "" {
		if tendered, err = decimal.NewFromString(req.Tendered); err != nil {
			h.respondError(w, invalid("tendered", "%q is not an amount", req.Tendered))
			return
		}
	}
	result, err := h.register.Checkout(r.Context(), method, tendered)
	var partial *PartialCommitError
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusCreated, checkoutResponse{CheckoutResult: result})
	case errors.As(err, &partial):
		httpx.JSON(w, http.StatusAccepted, checkoutResponse{CheckoutResult: result, Warning: partial.Error()})
	default:
		h.respondError(w, err)
	}
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	if err := h.register.Reload(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.register.Products())
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if err := h.validate.Struct(target); err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	classified := classify(err)
	if errors.Is(classified, httpx.ErrUnavailable) || !isClassified(classified) {
		h.logger.Error("register request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, classified)
}

func classify(err error) error {
	switch {
	case isClassified(err):
		return err
	case errors.Is(err, ErrInvalidSaleRequest), errors.Is(err, ErrInvalidPaymentMethod):
		return fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	case errors.Is(err, inventory.ErrProductNotFound), errors.Is(err, ErrLineNotFound):
		return fmt.Errorf("%w: %w", httpx.ErrNotFound, err)
	case errors.Is(err, ErrDuplicateCartLine), errors.Is(err, ErrPendingLines):
		return fmt.Errorf("%w: %w", httpx.ErrConflict, err)
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrTenderShort), errors.Is(err, ErrEmptyCart):
		return fmt.Errorf("%w: %w", httpx.ErrUnprocessable, err)
	case errors.Is(err, ErrSourceUnavailable), errors.Is(err, ErrWriteFailed):
		return fmt.Errorf("%w: %w", httpx.ErrUnavailable, err)
	default:
		return err
	}
}

func isClassified(err error) bool {
	for _, target := range []error{httpx.ErrValidation, httpx.ErrNotFound, httpx.ErrConflict, httpx.ErrUnprocessable, httpx.ErrUnavailable} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
