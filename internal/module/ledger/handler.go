package ledger

import (
	"net/http"
	"strconv"

	"github.com/draftly/server/internal/shared/middleware"
	"github.com/draftly/server/internal/shared/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for the credit ledger.
type Handler struct {
	service *Service
}

// NewHandler creates a new ledger handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the ledger routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	credits := r.Group("/credits")
	{
		credits.GET("/balance", h.GetBalance)
		credits.GET("/entries", h.ListEntries)
	}
}

// GetBalance returns the authenticated account's credit balance.
func (h *Handler) GetBalance(c *gin.Context) {
	accountID := middleware.GetUserID(c)
	if accountID == uuid.Nil {
		response.Unauthorized(c, "")
		return
	}

	balance, err := h.service.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		response.HandleErrorWithDefault(c, err, []response.ErrorMapping{
			{Err: ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// ListEntries returns the authenticated account's ledger entries,
// newest first.
func (h *Handler) ListEntries(c *gin.Context) {
	accountID := middleware.GetUserID(c)
	if accountID == uuid.Nil {
		response.Unauthorized(c, "")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	entries, err := h.service.ListEntries(c.Request.Context(), accountID, page, pageSize)
	if err != nil {
		response.InternalError(c, "failed to list entries")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"page":    page,
	})
}
