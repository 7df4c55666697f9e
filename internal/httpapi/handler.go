package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/chathy/api/chathy-command-engine/internal/apperrors"
	"gitlab.com/chathy/api/chathy-command-engine/internal/channel"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/internal/storage"
	"gitlab.com/chathy/api/chathy-command-engine/internal/usecase"
	"gitlab.com/chathy/api/chathy-command-engine/internal/validator"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/logger"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/utils"
)

const apiSource = "api"

// Handler serves the webhook endpoints and the dashboard REST API.
type Handler struct {
	registry  *channel.Registry
	worker    usecase.IMessageWorker
	states    storage.StateRepo
	directory storage.TenantDirectoryRepo
	audit     *usecase.AuditService
}

// NewHandler wires the API handler.
func NewHandler(registry *channel.Registry, worker usecase.IMessageWorker,
	states storage.StateRepo, directory storage.TenantDirectoryRepo,
	audit *usecase.AuditService) *Handler {
	return &Handler{
		registry:  registry,
		worker:    worker,
		states:    states,
		directory: directory,
		audit:     audit,
	}
}

// RegisterRoutes mounts all endpoints on the engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	h.registerWebhookRoutes(r)

	api := r.Group("/api", h.requireTenant())
	{
		api.GET("/audit", h.listAudit)
		api.GET("/dashboard", h.getDashboard)

		business := api.Group("/business")
		{
			business.GET("/services", h.listServices)
			business.POST("/services", h.createService)
			business.PUT("/services/:id", h.updateService)
			business.DELETE("/services/:id", h.deleteService)

			business.GET("/hours", h.getHours)
			business.PUT("/hours/:day", h.updateHours)

			business.GET("/policies", h.getPolicies)
			business.PUT("/policies", h.updatePolicies)

			business.GET("/inventory", h.listInventory)
			business.PUT("/inventory/:id", h.updateInventory)
		}
	}
}

// requireTenant resolves the tenant for dashboard routes from the
// X-Tenant-ID header or tenant_id query parameter.
func (h *Handler) requireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader("X-Tenant-ID")
		if tenantID == "" {
			tenantID = c.Query("tenant_id")
		}
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing tenant_id"})
			return
		}
		if _, err := h.directory.FindByID(c.Request.Context(), tenantID); err != nil {
			if apperrors.IsNotFound(err) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown tenant"})
				return
			}
			h.internalError(c, "Tenant lookup failed", err)
			return
		}
		c.Set("tenant_id", tenantID)
		c.Next()
	}
}

func (h *Handler) listAudit(c *gin.Context) {
	opts := model.AuditListOptions{
		Limit:  queryInt(c, "limit", 20),
		Offset: queryInt(c, "offset", 0),
		Action: c.Query("action"),
		Source: c.Query("source"),
	}

	page, summary, err := h.audit.List(c.Request.Context(), c.GetString("tenant_id"), opts)
	if err != nil {
		h.internalError(c, "Listing audit entries failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":  page.Entries,
		"total":    page.Total,
		"has_more": page.HasMore,
		"summary":  summary,
	})
}

func (h *Handler) getDashboard(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	profile, err := h.directory.FindByID(c.Request.Context(), tenantID)
	if err != nil {
		h.internalError(c, "Tenant lookup failed", err)
		return
	}

	var services []model.Service
	var inventory []model.InventoryItem
	var hours map[model.Weekday]model.DayHours
	var appointments int
	err = h.states.View(c.Request.Context(), tenantID, func(state *model.BusinessState) error {
		services = state.ServiceList()
		inventory = state.InventoryList()
		hours = state.Hours
		appointments = len(state.Appointments)
		return nil
	})
	if err != nil {
		h.internalError(c, "Reading business state failed", err)
		return
	}

	summary, err := h.audit.Summary(c.Request.Context(), tenantID)
	if err != nil {
		h.internalError(c, "Summarizing audit entries failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"business": gin.H{
			"id":   profile.ID,
			"name": profile.BusinessName,
			"type": profile.BusinessType,
		},
		"services":      services,
		"hours":         hours,
		"inventory":     inventory,
		"appointments":  appointments,
		"audit_summary": summary,
	})
}

func (h *Handler) listServices(c *gin.Context) {
	var services []model.Service
	err := h.states.View(c.Request.Context(), c.GetString("tenant_id"), func(state *model.BusinessState) error {
		services = state.ServiceList()
		return nil
	})
	if err != nil {
		h.internalError(c, "Reading services failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}

type serviceRequest struct {
	Name            string  `json:"name" binding:"required"`
	Price           float64 `json:"price"`
	DurationMinutes int     `json:"duration_minutes"`
	Category        string  `json:"category"`
	Description     string  `json:"description"`
}

func (h *Handler) createService(c *gin.Context) {
	var req serviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	svc := model.Service{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Price:           req.Price,
		DurationMinutes: req.DurationMinutes,
		Category:        req.Category,
		Description:     req.Description,
		IsActive:        true,
	}
	if err := validator.Validate(&svc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantID := c.GetString("tenant_id")
	err := h.states.Mutate(c.Request.Context(), tenantID, func(state *model.BusinessState) error {
		if _, exists := state.FindServiceByName(svc.Name); exists {
			return apperrors.ErrDuplicate
		}
		state.Services[svc.ID] = svc
		return nil
	})
	if errors.Is(err, apperrors.ErrDuplicate) {
		c.JSON(http.StatusConflict, gin.H{"error": "service name already exists"})
		return
	}
	if err != nil {
		h.internalError(c, "Creating service failed", err)
		return
	}

	h.recordAudit(c, tenantID, string(model.KindServiceAdd),
		"Added "+svc.Name+" via dashboard", map[string]interface{}{"service": svc})
	c.JSON(http.StatusCreated, svc)
}

func (h *Handler) updateService(c *gin.Context) {
	var req serviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tenantID := c.GetString("tenant_id")
	serviceID := c.Param("id")
	var updated model.Service
	err := h.states.Mutate(c.Request.Context(), tenantID, func(state *model.BusinessState) error {
		svc, ok := state.Services[serviceID]
		if !ok {
			return apperrors.ErrNotFound
		}
		next := svc
		next.Name = req.Name
		next.Price = req.Price
		next.DurationMinutes = req.DurationMinutes
		next.Category = req.Category
		next.Description = req.Description
		if err := validator.Validate(&next); err != nil {
			return err
		}
		state.Services[serviceID] = next
		updated = next
		return nil
	})
	if apperrors.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.recordAudit(c, tenantID, string(model.KindPriceUpdate),
		"Updated "+updated.Name+" via dashboard", map[string]interface{}{"service": updated})
	c.JSON(http.StatusOK, updated)
}

// deleteService deactivates the service rather than removing it so existing
// appointments keep resolving.
func (h *Handler) deleteService(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	serviceID := c.Param("id")
	var name string
	err := h.states.Mutate(c.Request.Context(), tenantID, func(state *model.BusinessState) error {
		svc, ok := state.Services[serviceID]
		if !ok {
			return apperrors.ErrNotFound
		}
		svc.IsActive = false
		state.Services[serviceID] = svc
		name = svc.Name
		return nil
	})
	if apperrors.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
		return
	}
	if err != nil {
		h.internalError(c, "Deactivating service failed", err)
		return
	}

	h.recordAudit(c, tenantID, "service_remove",
		"Deactivated "+name+" via dashboard", map[string]interface{}{"service_id": serviceID})
	c.Status(http.StatusNoContent)
}

func (h *Handler) getHours(c *gin.Context) {
	var hours map[model.Weekday]model.DayHours
	err := h.states.View(c.Request.Context(), c.GetString("tenant_id"), func(state *model.BusinessState) error {
		hours = state.Hours
		return nil
	})
	if err != nil {
		h.internalError(c, "Reading hours failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hours": hours})
}

type hoursRequest struct {
	IsClosed bool   `json:"is_closed"`
	Open     string `json:"open"`
	Close    string `json:"close"`
}

func (h *Handler) updateHours(c *gin.Context) {
	day := model.Weekday(c.Param("day"))
	if !day.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown weekday"})
		return
	}

	var req hoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	next := model.DayHours{IsClosed: req.IsClosed}
	if !req.IsClosed {
		open, err := utils.ParseClock(req.Open)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid open time"})
			return
		}
		clos, err := utils.ParseClock(req.Close)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid close time"})
			return
		}
		if open >= clos {
			c.JSON(http.StatusBadRequest, gin.H{"error": "open time must be before close time"})
			return
		}
		next.Open, next.Close = open, clos
	}

	tenantID := c.GetString("tenant_id")
	err := h.states.Mutate(c.Request.Context(), tenantID, func(state *model.BusinessState) error {
		state.Hours[day] = next
		return nil
	})
	if err != nil {
		h.internalError(c, "Updating hours failed", err)
		return
	}

	h.recordAudit(c, tenantID, string(model.KindHoursUpdate),
		"Updated "+string(day)+" hours via dashboard",
		map[string]interface{}{"day": day, "hours": next})
	c.JSON(http.StatusOK, gin.H{"day": day, "hours": next})
}

func (h *Handler) getPolicies(c *gin.Context) {
	var policies model.Policies
	err := h.states.View(c.Request.Context(), c.GetString("tenant_id"), func(state *model.BusinessState) error {
		policies = state.Policies
		return nil
	})
	if err != nil {
		h.internalError(c, "Reading policies failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"policies": policies})
}

func (h *Handler) updatePolicies(c *gin.Context) {
	var req model.Policies
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tenantID := c.GetString("tenant_id")
	err := h.states.Mutate(c.Request.Context(), tenantID, func(state *model.BusinessState) error {
		state.Policies = req
		return nil
	})
	if err != nil {
		h.internalError(c, "Updating policies failed", err)
		return
	}

	h.recordAudit(c, tenantID, "policies_update",
		"Updated policies via dashboard", map[string]interface{}{"policies": req})
	c.JSON(http.StatusOK, gin.H{"policies": req})
}

func (h *Handler) listInventory(c *gin.Context) {
	var items []model.InventoryItem
	err := h.states.View(c.Request.Context(), c.GetString("tenant_id"), func(state *model.BusinessState) error {
		items = state.InventoryList()
		return nil
	})
	if err != nil {
		h.internalError(c, "Reading inventory failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inventory": items})
}

type inventoryRequest struct {
	Quantity  int  `json:"quantity"`
	Restocked bool `json:"restocked"`
}

func (h *Handler) updateInventory(c *gin.Context) {
	var req inventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Quantity < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must not be negative"})
		return
	}

	tenantID := c.GetString("tenant_id")
	itemID := c.Param("id")
	var updated model.InventoryItem
	err := h.states.Mutate(c.Request.Context(), tenantID, func(state *model.BusinessState) error {
		item, ok := state.Inventory[itemID]
		if !ok {
			return apperrors.ErrNotFound
		}
		item.Quantity = req.Quantity
		if req.Restocked {
			item.LastRestocked = utils.Now()
		}
		state.Inventory[itemID] = item
		updated = item
		return nil
	})
	if apperrors.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "inventory item not found"})
		return
	}
	if err != nil {
		h.internalError(c, "Updating inventory failed", err)
		return
	}

	h.recordAudit(c, tenantID, "inventory_update",
		"Updated "+updated.Name+" stock via dashboard",
		map[string]interface{}{"item": updated})
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) recordAudit(c *gin.Context, tenantID, action, description string, details map[string]interface{}) {
	if _, err := h.audit.Record(c.Request.Context(), tenantID, action,
		string(model.OutcomeApplied), description, apiSource, details); err != nil {
		logger.FromContext(c.Request.Context()).Error("Failed to record audit entry",
			zap.String("tenant_id", tenantID),
			zap.String("action", action),
			zap.Error(err))
	}
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	logger.FromContext(c.Request.Context()).Error(msg, zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
