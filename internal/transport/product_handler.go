package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProductHandler handles HTTP requests for the catalog
type ProductHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalog service.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// RegisterRoutes mounts the product routes on r, which is already scoped to
// the API base path.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
		r.Get("/{pid}", h.GetProduct)
		r.Put("/{pid}", h.UpdateProduct)
		r.Delete("/{pid}", h.DeleteProduct)
	})
}

// ListProducts handles GET /products?limit=&page=&sort=&query=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := service.NewListProductsInput(q.Get("query"), q.Get("sort"), q.Get("page"), q.Get("limit"))

	page, err := h.catalog.ListProducts(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, h.logger, "Failed to list products", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// GetProduct handles GET /products/{pid}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "pid"))
	if err != nil {
		respondServiceError(w, r, h.logger, "Failed to get product", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// CreateProduct handles POST /products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductFields
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		respondDecodeError(w, err)
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, h.logger, "Failed to create product", err)
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID))
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /products/{pid}. The body carries the full field
// set; the id in the path is authoritative.
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductFields
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		respondDecodeError(w, err)
		return
	}

	productID := chi.URLParam(r, "pid")
	product, err := h.catalog.UpdateProduct(r.Context(), productID, req)
	if err != nil {
		respondServiceError(w, r, h.logger, "Failed to update product", err)
		return
	}

	h.logger.Info("Product updated", zap.String("product_id", productID))
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /products/{pid}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "pid")
	if err := h.catalog.DeleteProduct(r.Context(), productID); err != nil {
		respondServiceError(w, r, h.logger, "Failed to delete product", err)
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", productID))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}
