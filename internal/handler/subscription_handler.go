package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/widgetworks/service-subscription/internal/application"
	subDomain "github.com/widgetworks/service-subscription/internal/domain/subscription"
	"github.com/widgetworks/service-subscription/internal/response"
)

// SubscriptionHandler handles HTTP requests for subscription lifecycle
// operations.
type SubscriptionHandler struct {
	service *application.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(service *application.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// RegisterRoutes registers all subscription routes.
func (h *SubscriptionHandler) RegisterRoutes(r *gin.RouterGroup) {
	subs := r.Group("/subscriptions")
	{
		subs.GET("", h.List)
		subs.POST("", h.Create)
		subs.POST("/cancel", h.Cancel)
		subs.POST("/renew", h.Renew)
		subs.POST("/expire", h.ExpireAll)
		subs.POST("/expire/:id", h.Expire)
	}
}

// List handles GET /api/v1/subscriptions.
func (h *SubscriptionHandler) List(c *gin.Context) {
	params := subDomain.ListParams{
		Offset: intQuery(c, "offset", 0),
		Limit:  intQuery(c, "limit", 0),
	}
	if raw := c.Query("state"); raw != "" {
		st := subDomain.State(raw)
		params.State = &st
	}

	result, err := h.service.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Create handles POST /api/v1/subscriptions.
func (h *SubscriptionHandler) Create(c *gin.Context) {
	var req application.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Cancel handles POST /api/v1/subscriptions/cancel.
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	var req application.SubscriptionKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Cancel(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Renew handles POST /api/v1/subscriptions/renew.
func (h *SubscriptionHandler) Renew(c *gin.Context) {
	var req application.SubscriptionKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Renew(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ExpireAll handles POST /api/v1/subscriptions/expire.
func (h *SubscriptionHandler) ExpireAll(c *gin.Context) {
	reaped, err := h.service.ExpirationReaper(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"expired": reaped})
}

// Expire handles POST /api/v1/subscriptions/expire/:id.
func (h *SubscriptionHandler) Expire(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid subscription id")
		return
	}

	result, err := h.service.Expire(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
