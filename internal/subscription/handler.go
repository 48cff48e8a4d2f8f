package subscription

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"prepa/internal/auth"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// GetMySubscription godoc
// @Summary      Get current subscription
// @Tags         subscriptions
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} Subscription
// @Failure      404 {object} gin.H
// @Router       /subscription [get]
func (h *Handler) GetMySubscription(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	sub, err := h.repo.GetActiveForUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active subscription"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
		return
	}

	c.JSON(http.StatusOK, sub)
}

// ListUserSubscriptions godoc
// @Summary      List a user's subscriptions (admin)
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        userID path int true "User ID"
// @Success      200 {array} Subscription
// @Failure      400 {object} gin.H
// @Router       /admin/users/{userID}/subscriptions [get]
func (h *Handler) ListUserSubscriptions(c *gin.Context) {
	targetID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	subs, err := h.repo.ListByUser(c.Request.Context(), targetID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscriptions"})
		return
	}

	c.JSON(http.StatusOK, subs)
}

// Grant godoc
// @Summary      Grant a subscription to a user
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        userID  path int          true "User ID"
// @Param        request body GrantRequest true "Plan"
// @Success      201 {object} Subscription
// @Failure      400 {object} gin.H
// @Failure      500 {object} gin.H
// @Router       /admin/users/{userID}/subscription [post]
func (h *Handler) Grant(c *gin.Context) {
	targetID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Plan != PlanMonthly && req.Plan != PlanYearly {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan must be monthly or yearly"})
		return
	}

	sub, err := h.repo.Create(c.Request.Context(), targetID, req.Plan)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to grant subscription"})
		return
	}

	c.JSON(http.StatusCreated, sub)
}
