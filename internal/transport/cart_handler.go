package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// QuantityRequest is the body of the single-line cart mutations
type QuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0,lte=2147483647"`
}

// ReplaceLinesRequest is the body of a bulk cart replace
type ReplaceLinesRequest struct {
	Products []domain.CartLineItem `json:"products" validate:"required,dive"`
}

// CartResponse answers cart creation. Every other cart route answers with
// the bare line array.
type CartResponse struct {
	ID       string                `json:"id"`
	Products []domain.CartLineItem `json:"products"`
}

// CartHandler handles HTTP requests for carts
type CartHandler struct {
	carts  service.CartService
	logger *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:  carts,
		logger: logger,
	}
}

// RegisterRoutes mounts the cart routes on r, which is already scoped to the
// API base path.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Route("/carts", func(r chi.Router) {
		r.Post("/", h.CreateCart)
		r.Get("/{cid}", h.GetCart)
		r.Put("/{cid}", h.ReplaceLines)
		r.Delete("/{cid}", h.ClearCart)
		r.Post("/{cid}/product/{pid}", h.AddProduct)
		r.Put("/{cid}/product/{pid}", h.SetQuantity)
		r.Delete("/{cid}/product/{pid}", h.RemoveProduct)
	})
}

// CreateCart handles POST /carts
func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.CreateCart(r.Context())
	if err != nil {
		respondServiceError(w, r, h.logger, "Failed to create cart", err)
		return
	}

	h.logger.Info("Cart created", zap.String("cart_id", cart.ID))
	middleware.RespondWithJSON(w, http.StatusCreated, CartResponse{ID: cart.ID, Products: domain.CloneLines(cart.Lines)})
}

// GetCart handles GET /carts/{cid}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cid")

	lines, err := h.carts.GetCart(r.Context(), cartID)
	if err != nil {
		respondServiceError(w, r, h.logger, "Failed to get cart", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, lines)
}

// AddProduct handles POST /carts/{cid}/product/{pid}
func (h *CartHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req QuantityRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Add product validation failed", zap.Error(err))
		respondDecodeError(w, err)
		return
	}

	cartID, productID := chi.URLParam(r, "cid"), chi.URLParam(r, "pid")
	lines, err := h.carts.AddProduct(r.Context(), cartID, productID, req.Quantity)
	if err != nil {
		respondServiceError(w, r, h.logger, "Failed to add product to cart", err)
		return
	}

	h.logger.Info("Product added to cart",
		zap.String("cart_id", cartID),
		zap.String("product_id", productID),
		zap.Int("quantity", req.Quantity),
	)
	middleware.RespondWithJSON(w, http.StatusOK, lines)
}

// ReplaceLines handles PUT /carts/{cid}
func (h *CartHandler) ReplaceLines(w http.ResponseWriter, r *http.Request) {
	var req ReplaceLinesRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Replace lines validation failed", zap.Error(err))
		respondDecodeError(w, err)
		return
	}

	cartID := chi.URLParam(r, "cid")
	lines, err := h.carts.ReplaceLines(r.Context(), cartID, req.Products)
	if err != nil {
		respondServiceError(w, r, h.logger, "Failed to replace cart lines", err)
		return
	}

	h.logger.Info("Cart lines replaced", zap.String("cart_id", cartID), zap.Int("lines", len(lines)))
	middleware.RespondWithJSON(w, http.StatusOK, lines)
}

// SetQuantity handles PUT /carts/{cid}/product/{pid}
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req QuantityRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Set quantity validation failed", zap.Error(err))
		respondDecodeError(w, err)
		return
	}

	cartID, productID := chi.URLParam(r, "cid"), chi.URLParam(r, "pid")
	lines, err := h.carts.SetQuantity(r.Context(), cartID, productID, req.Quantity)
	if err != nil {
		respondServiceError(w, r, h.logger, "Failed to set cart quantity", err)
		return
	}

	h.logger.Info("Cart quantity set",
		zap.String("cart_id", cartID),
		zap.String("product_id", productID),
		zap.Int("quantity", req.Quantity),
	)
	middleware.RespondWithJSON(w, http.StatusOK, lines)
}

// RemoveProduct handles DELETE /carts/{cid}/product/{pid}
func (h *CartHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	cartID, productID := chi.URLParam(r, "cid"), chi.URLParam(r, "pid")

	lines, err := h.carts.RemoveProduct(r.Context(), cartID, productID)
	if err != nil {
		respondServiceError(w, r, h.logger, "Failed to remove product from cart", err)
		return
	}

	h.logger.Info("Product removed from cart", zap.String("cart_id", cartID), zap.String("product_id", productID))
	middleware.RespondWithJSON(w, http.StatusOK, lines)
}

// ClearCart handles DELETE /carts/{cid}
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cid")

	if err := h.carts.ClearCart(r.Context(), cartID); err != nil {
		respondServiceError(w, r, h.logger, "Failed to clear cart", err)
		return
	}

	h.logger.Info("Cart cleared", zap.String("cart_id", cartID))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared successfully"})
}
