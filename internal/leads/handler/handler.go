package handler

import (
	"net/http"
	"strconv"

	"lead_protection_backend/internal/leads/domain"
	"lead_protection_backend/internal/leads/service"
	"lead_protection_backend/internal/leads/transport"
	"lead_protection_backend/platform/httpkit"
	"lead_protection_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidIfMatch   = "If-Match does not name this lead"

	etagKind        = "lead"
	defaultPageSize = 20
)

// Handler handles HTTP requests for protected leads.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new leads handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the lead routes on the /leads group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.GET("/:id/protection", h.GetProtection)
	rg.POST("/:id/activities", h.AddActivity)
	rg.GET("/:id/activities", h.ListActivities)
	rg.POST("/:id/transfer", h.TransferOwnership)
	rg.POST("/:id/gdpr-erasure", h.EraseGDPR)
	rg.GET("/:id/erasure-log", h.ErasureLog)
	rg.POST("/:id/revoke-consent", h.RevokeConsent)
	rg.GET("/:id/contact-allowed", h.ContactAllowed)
}

// RegisterAdminRoutes registers the per-user lead settings routes.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/lead-settings/:userId", h.GetSettings)
	rg.PUT("/lead-settings/:userId", h.PutSettings)
}

// Create handles POST /api/v1/leads
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if !h.bindJSON(c, &req) {
		return
	}
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.svc.Register(c.Request.Context(), caller, req)
	if httpkit.HandleError(c, err) {
		return
	}

	setLeadETag(c, result)
	httpkit.JSON(c, http.StatusCreated, result)
}

// List handles GET /api/v1/leads
func (h *Handler) List(c *gin.Context) {
	req := transport.ListLeadsRequest{Page: 1, PageSize: defaultPageSize}
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if !h.validate(c, req) {
		return
	}
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.svc.List(c.Request.Context(), caller, req)
	if httpkit.HandleError(c, err) {
		return
	}

	etag := listETag(result)
	c.Header("ETag", etag)
	if httpkit.NotModified(c, etag) {
		c.Status(http.StatusNotModified)
		return
	}
	httpkit.OK(c, result)
}

// GetByID handles GET /api/v1/leads/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.svc.Get(c.Request.Context(), caller, id)
	if httpkit.HandleError(c, err) {
		return
	}

	etag := setLeadETag(c, result)
	if httpkit.NotModified(c, etag) {
		c.Status(http.StatusNotModified)
		return
	}
	httpkit.OK(c, result)
}

// Update handles PATCH /api/v1/leads/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	expected, ok := ifMatch(c, id)
	if !ok {
		return
	}
	var req transport.UpdateLeadRequest
	if !h.bindJSON(c, &req) {
		return
	}
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.svc.Patch(c.Request.Context(), caller, id, expected, req)
	if httpkit.HandleError(c, err) {
		return
	}

	setLeadETag(c, result)
	httpkit.OK(c, result)
}

// Delete handles DELETE /api/v1/leads/:id
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	expected, ok := ifMatch(c, id)
	if !ok {
		return
	}
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), caller, id, expected); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// GetProtection handles GET /api/v1/leads/:id/protection
func (h *Handler) GetProtection(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.svc.Protection(c.Request.Context(), caller, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// AddActivity handles POST /api/v1/leads/:id/activities
func (h *Handler) AddActivity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.CreateActivityRequest
	if !h.bindJSON(c, &req) {
		return
	}
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.svc.AddActivity(c.Request.Context(), caller, id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	setLeadETag(c, result.Lead)
	httpkit.JSON(c, http.StatusCreated, result)
}

// ListActivities handles GET /api/v1/leads/:id/activities
func (h *Handler) ListActivities(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	req := transport.ListActivitiesRequest{Page: 1, PageSize: defaultPageSize}
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if !h.validate(c, req) {
		return
	}
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.svc.ListActivities(c.Request.Context(), caller, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// TransferOwnership handles POST /api/v1/leads/:id/transfer
func (h *Handler) TransferOwnership(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	expected, ok := ifMatch(c, id)
	if !ok {
		return
	}
	var req transport.TransferOwnershipRequest
	if !h.bindJSON(c, &req) {
		return
	}
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.svc.TransferOwnership(c.Request.Context(), caller, id, expected, req)
	if httpkit.HandleError(c, err) {
		return
	}

	setLeadETag(c, result)
	httpkit.OK(c, result)
}

// EraseGDPR handles POST /api/v1/leads/:id/gdpr-erasure
func (h *Handler) EraseGDPR(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.ErasureRequest
	if !h.bindJSON(c, &req) {
		return
	}
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.svc.EraseGDPR(c.Request.Context(), caller, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ErasureLog handles GET /api/v1/leads/:id/erasure-log
func (h *Handler) ErasureLog(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.svc.ErasureLog(c.Request.Context(), caller, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// RevokeConsent handles POST /api/v1/leads/:id/revoke-consent
func (h *Handler) RevokeConsent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	expected, ok := ifMatch(c, id)
	if !ok {
		return
	}
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.svc.RevokeConsent(c.Request.Context(), caller, id, expected)
	if httpkit.HandleError(c, err) {
		return
	}

	setLeadETag(c, result)
	httpkit.OK(c, result)
}

// ContactAllowed handles GET /api/v1/leads/:id/contact-allowed
func (h *Handler) ContactAllowed(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.svc.ContactAllowed(c.Request.Context(), caller, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetSettings handles GET /api/v1/admin/lead-settings/:userId
func (h *Handler) GetSettings(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.svc.GetSettings(c.Request.Context(), caller, userID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// PutSettings handles PUT /api/v1/admin/lead-settings/:userId
func (h *Handler) PutSettings(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	var req transport.LeadSettingsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.svc.PutSettings(c.Request.Context(), caller, userID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	return h.validate(c, req)
}

func (h *Handler) validate(c *gin.Context, req any) bool {
	if err := h.val.Struct(req); err != nil {
		var details any = err.Error()
		if fields := validator.FieldErrors(err); fields != nil {
			details = fields
		}
		c.JSON(http.StatusBadRequest, httpkit.ErrorResponse{Error: msgValidationFailed, Code: "VALIDATION_ERROR", Details: details})
		return false
	}
	return true
}

// mustGetCaller turns the token identity into an engine caller. Capabilities
// are resolved later from the caller's stored lead settings.
func mustGetCaller(c *gin.Context) (domain.Caller, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return domain.Caller{}, false
	}
	return domain.Caller{
		UserID: identity.UserID(),
		Roles:  domain.ParseRoles(identity.Roles()),
	}, true
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

// ifMatch returns the version named by If-Match, or nil when the header is
// absent. A header for another resource is rejected with 412.
func ifMatch(c *gin.Context, id uuid.UUID) (*int64, bool) {
	version, present, ok := httpkit.IfMatchVersion(c, etagKind, id.String())
	if !ok {
		c.JSON(http.StatusPreconditionFailed, httpkit.ErrorResponse{Error: msgInvalidIfMatch, Code: "PRECONDITION_FAILED"})
		return nil, false
	}
	if !present {
		return nil, true
	}
	return &version, true
}

func setLeadETag(c *gin.Context, lead transport.LeadResponse) string {
	etag := httpkit.StrongETag(etagKind, lead.ID.String(), lead.Version)
	c.Header("ETag", etag)
	return etag
}

func listETag(result transport.LeadListResponse) string {
	parts := make([]string, 0, 2*len(result.Items)+3)
	parts = append(parts, strconv.Itoa(result.Total), strconv.Itoa(result.Page), strconv.Itoa(result.PageSize))
	for _, item := range result.Items {
		parts = append(parts, item.ID.String(), strconv.FormatInt(item.Version, 10))
	}
	return httpkit.WeakETag(parts...)
}
