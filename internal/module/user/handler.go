package user

import (
	"net/http"

	"github.com/draftly/server/internal/shared/middleware"
	"github.com/draftly/server/internal/shared/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for accounts.
type Handler struct {
	service *Service
}

// NewHandler creates a new account handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the account routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.GetProfile)
}

// Provision returns a middleware that creates the authenticated account
// on its first request. Mounted after auth so every entry point, not
// just the profile read, provisions the account and applies the signup
// grant.
func (h *Handler) Provision() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := middleware.GetUserID(c)
		if accountID == uuid.Nil {
			c.Next()
			return
		}
		_, err := h.service.EnsureAccount(
			c.Request.Context(),
			accountID,
			middleware.GetEmail(c),
			middleware.GetName(c),
		)
		if err != nil {
			response.InternalError(c, "failed to load account")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ProfileResponse is the account profile payload.
type ProfileResponse struct {
	ID                    string `json:"id"`
	Email                 string `json:"email"`
	Name                  string `json:"name,omitempty"`
	Plan                  string `json:"plan"`
	CreditBalance         int64  `json:"credit_balance"`
	SubscriptionStatus    string `json:"subscription_status,omitempty"`
	SubscriptionTier      string `json:"subscription_tier,omitempty"`
	SubscriptionPeriodEnd int64  `json:"subscription_period_end,omitempty"`
}

// GetProfile returns the authenticated account's profile, provisioning
// the account on first access.
func (h *Handler) GetProfile(c *gin.Context) {
	accountID := middleware.GetUserID(c)
	if accountID == uuid.Nil {
		response.Unauthorized(c, "")
		return
	}

	account, err := h.service.EnsureAccount(
		c.Request.Context(),
		accountID,
		middleware.GetEmail(c),
		middleware.GetName(c),
	)
	if err != nil {
		response.InternalError(c, "failed to load account")
		return
	}

	resp := ProfileResponse{
		ID:                 account.ID.String(),
		Email:              account.Email,
		Name:               account.Name,
		Plan:               string(account.Plan),
		CreditBalance:      account.CreditBalance,
		SubscriptionStatus: account.SubscriptionStatus,
		SubscriptionTier:   account.SubscriptionTier,
	}
	if account.SubscriptionPeriodEnd != nil {
		resp.SubscriptionPeriodEnd = account.SubscriptionPeriodEnd.Unix()
	}

	c.JSON(http.StatusOK, resp)
}
