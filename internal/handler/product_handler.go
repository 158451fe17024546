package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/widgetworks/service-subscription/internal/application"
	"github.com/widgetworks/service-subscription/internal/response"
)

// ProductHandler handles HTTP requests for the product catalog.
type ProductHandler struct {
	service *application.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *application.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// RegisterRoutes registers all product routes.
func (h *ProductHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/products", h.List)
}

// List handles GET /api/v1/products.
func (h *ProductHandler) List(c *gin.Context) {
	result, err := h.service.List(
		c.Request.Context(),
		c.Query("state"),
		intQuery(c, "offset", 0),
		intQuery(c, "limit", 0),
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
