package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"prepa/internal/auth"
	"prepa/internal/metrics"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

type TopUpRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

type BonusRequest struct {
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description"`
}

type AuditResponse struct {
	UserID     int   `json:"user_id"`
	Balance    int64 `json:"balance"`
	SumEntries int64 `json:"sum_entries"`
	Consistent bool  `json:"consistent"`
}

// GetBalance godoc
// @Summary      Get credit balance
// @Tags         credits
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} Account
// @Failure      500 {object} gin.H
// @Router       /balance [get]
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	acc, err := h.repo.GetOrCreateAccount(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		return
	}

	metrics.BalanceCredits.WithLabelValues(strconv.Itoa(userID)).Set(float64(acc.Balance))
	c.JSON(http.StatusOK, acc)
}

// TopUp godoc
// @Summary      Purchase credits
// @Tags         credits
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body TopUpRequest true "Amount of credits"
// @Success      200 {object} gin.H
// @Failure      400 {object} gin.H
// @Failure      500 {object} gin.H
// @Router       /balance/topup [post]
func (h *Handler) TopUp(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	if _, err := h.repo.Credit(c.Request.Context(), userID, req.Amount, KindPurchase, "credit pack purchase", nil); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to top up credits"})
		return
	}

	metrics.RecordTopUp()

	acc, err := h.repo.GetOrCreateAccount(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account after top up"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "credits added",
		"account": acc,
	})
}

// ListTransactions godoc
// @Summary      List credit transactions
// @Tags         credits
// @Security     BearerAuth
// @Produce      json
// @Success      200 {array} Transaction
// @Failure      500 {object} gin.H
// @Router       /transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txs, err := h.repo.Transactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}

	c.JSON(http.StatusOK, txs)
}

// GrantBonus godoc
// @Summary      Grant bonus credits to a user
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        userID  path int          true "User ID"
// @Param        request body BonusRequest true "Bonus amount"
// @Success      200 {object} Transaction
// @Failure      400 {object} gin.H
// @Failure      500 {object} gin.H
// @Router       /admin/users/{userID}/bonus [post]
func (h *Handler) GrantBonus(c *gin.Context) {
	targetID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	var req BonusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	description := req.Description
	if description == "" {
		description = "bonus credits"
	}

	txn, err := h.repo.Credit(c.Request.Context(), targetID, req.Amount, KindBonus, description, nil)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to grant bonus"})
		return
	}

	c.JSON(http.StatusOK, txn)
}

// Audit godoc
// @Summary      Check balance against the transaction log
// @Description  Compares the materialized balance with the sum of the user's transactions.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        userID path int true "User ID"
// @Success      200 {object} AuditResponse
// @Failure      400 {object} gin.H
// @Failure      500 {object} gin.H
// @Router       /admin/users/{userID}/audit [get]
func (h *Handler) Audit(c *gin.Context) {
	targetID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	balance, err := h.repo.Balance(c.Request.Context(), targetID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balance"})
		return
	}

	sum, err := h.repo.SumTransactions(c.Request.Context(), targetID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sum transactions"})
		return
	}

	c.JSON(http.StatusOK, AuditResponse{
		UserID:     targetID,
		Balance:    balance,
		SumEntries: sum,
		Consistent: balance == sum,
	})
}
