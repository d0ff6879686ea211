package design

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/draftly/server/internal/module/ledger"
	"github.com/draftly/server/internal/shared/middleware"
	"github.com/draftly/server/internal/shared/response"
)

// Handler handles design HTTP requests.
type Handler struct {
	service    *Service
	transcoder *Transcoder
	logger     *zap.Logger
}

// NewHandler creates a design handler.
func NewHandler(service *Service, transcoder *Transcoder, logger *zap.Logger) *Handler {
	return &Handler{service: service, transcoder: transcoder, logger: logger}
}

// RegisterRoutes registers design routes on an authenticated group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	designs := r.Group("/designs")
	{
		designs.POST("", h.Generate)
		designs.GET("", h.List)
		designs.GET("/:id", h.Get)
		designs.PATCH("/:id", h.Update)
		designs.DELETE("/:id", h.Delete)
		designs.GET("/:id/download", h.Download)
	}
}

var generateErrorMappings = []response.ErrorMapping{
	{Err: ErrEmptyPrompt, Status: http.StatusBadRequest},
	{Err: ErrInvalidType, Status: http.StatusBadRequest},
	{Err: ErrInvalidSize, Status: http.StatusBadRequest},
	{Err: ledger.ErrInsufficientCredits, Status: http.StatusPaymentRequired, Code: "insufficient_credits"},
	{Err: ledger.ErrAccountNotFound, Status: http.StatusNotFound, Code: "account_not_found"},
	{Err: ErrGenerationFailed, Status: http.StatusInternalServerError, Message: "design generation failed"},
}

// Generate handles POST /designs.
func (h *Handler) Generate(c *gin.Context) {
	accountID := middleware.GetUserID(c)
	if accountID == uuid.Nil {
		response.Unauthorized(c, "")
		return
	}

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	d, err := h.service.Generate(c.Request.Context(), accountID, &req)
	if err != nil {
		if d != nil {
			// The design was persisted but the debit lost a race. Return
			// the artifact with a code the client can surface.
			c.JSON(http.StatusOK, gin.H{
				"id":     d.ID,
				"images": []string(d.Images),
				"code":   "charge_failed",
			})
			return
		}
		if !response.HandleError(c, err, generateErrorMappings) {
			h.logger.Error("generation failed", zap.Error(err))
			response.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusCreated, GenerateResponse{ID: d.ID, Images: []string(d.Images)})
}

// List handles GET /designs.
func (h *Handler) List(c *gin.Context) {
	accountID := middleware.GetUserID(c)
	if accountID == uuid.Nil {
		response.Unauthorized(c, "")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	designs, total, err := h.service.List(c.Request.Context(), accountID, page, pageSize)
	if err != nil {
		h.logger.Error("list designs failed", zap.Error(err))
		response.InternalError(c, "")
		return
	}

	items := make([]Response, len(designs))
	for i, d := range designs {
		items[i] = toResponse(d)
	}
	c.JSON(http.StatusOK, ListResponse{Designs: items, Page: page, PageSize: pageSize, Total: total})
}

// Get handles GET /designs/:id.
func (h *Handler) Get(c *gin.Context) {
	d, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toResponse(d))
}

// Update handles PATCH /designs/:id.
func (h *Handler) Update(c *gin.Context) {
	accountID := middleware.GetUserID(c)
	if accountID == uuid.Nil {
		response.Unauthorized(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid design id")
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	d, err := h.service.Update(c.Request.Context(), id, accountID, &req)
	if err != nil {
		response.HandleErrorWithDefault(c, err, []response.ErrorMapping{
			{Err: ErrEmptyPrompt, Status: http.StatusBadRequest},
			{Err: ErrInvalidType, Status: http.StatusBadRequest},
			{Err: ErrInvalidSize, Status: http.StatusBadRequest},
			{Err: ErrDesignNotFound, Status: http.StatusNotFound},
			{Err: ErrForbidden, Status: http.StatusForbidden},
		})
		return
	}
	c.JSON(http.StatusOK, toResponse(d))
}

// Delete handles DELETE /designs/:id.
func (h *Handler) Delete(c *gin.Context) {
	accountID := middleware.GetUserID(c)
	if accountID == uuid.Nil {
		response.Unauthorized(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid design id")
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, accountID); err != nil {
		response.HandleErrorWithDefault(c, err, []response.ErrorMapping{
			{Err: ErrDesignNotFound, Status: http.StatusNotFound},
			{Err: ErrForbidden, Status: http.StatusForbidden},
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// Download handles GET /designs/:id/download?format=svg|png.
func (h *Handler) Download(c *gin.Context) {
	d, ok := h.lookup(c)
	if !ok {
		return
	}

	format, err := ParseFormat(c.Query("format"))
	if err != nil {
		response.BadRequest(c, "unsupported format")
		return
	}

	result, err := h.transcoder.Render(d, format)
	if err != nil {
		h.logger.Error("transcode failed",
			zap.Stringer("design_id", d.ID),
			zap.Error(err),
		)
		response.InternalError(c, "failed to render design")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// lookup resolves the :id path parameter to a design, writing the error
// response itself on failure.
func (h *Handler) lookup(c *gin.Context) (*Design, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid design id")
		return nil, false
	}

	d, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.HandleErrorWithDefault(c, err, []response.ErrorMapping{
			{Err: ErrDesignNotFound, Status: http.StatusNotFound},
		})
		return nil, false
	}
	return d, true
}
