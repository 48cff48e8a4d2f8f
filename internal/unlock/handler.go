package unlock

import (
	"errors"
	"net/http"
	"strconv"

	"prepa/internal/auth"
	"prepa/internal/catalog"
	"prepa/internal/ledger"
	"prepa/internal/subscription"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service     Service
	catalogRepo catalog.Repository
	subRepo     subscription.Repository
}

func NewHandler(service Service, catalogRepo catalog.Repository, subRepo subscription.Repository) *Handler {
	return &Handler{
		service:     service,
		catalogRepo: catalogRepo,
		subRepo:     subRepo,
	}
}

// UnlockPaper godoc
// @Summary      Unlock exam paper
// @Description  Debits the paper price once and grants permanent access.
// @Tags         papers
// @Security     BearerAuth
// @Produce      json
// @Param        paperID path int true "Paper ID"
// @Success      200 {object} Result
// @Failure      402 {object} gin.H
// @Failure      404 {object} gin.H
// @Failure      500 {object} gin.H
// @Router       /papers/{paperID}/unlock [post]
func (h *Handler) UnlockPaper(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	paperID, err := strconv.Atoi(c.Param("paperID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paper ID"})
		return
	}

	paper, err := h.catalogRepo.GetPaperByID(c.Request.Context(), paperID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
		return
	}

	hasUnlimited, err := h.subRepo.HasUnlimitedAccess(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check subscription"})
		return
	}

	result, err := h.service.Unlock(c.Request.Context(), userID, paperID, paper.Price, hasUnlimited)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unlock paper"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListMyUnlocks godoc
// @Summary      List my unlocked papers
// @Tags         papers
// @Security     BearerAuth
// @Produce      json
// @Success      200 {array} Record
// @Failure      500 {object} gin.H
// @Router       /unlocks [get]
func (h *Handler) ListMyUnlocks(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	recs, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unlocks"})
		return
	}

	c.JSON(http.StatusOK, recs)
}
