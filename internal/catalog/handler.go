package catalog

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// ListPapers godoc
// @Summary      List exam papers
// @Tags         papers
// @Security     BearerAuth
// @Produce      json
// @Param        matiere query string false "Subject filter"
// @Param        year    query int    false "Year filter"
// @Success      200 {array} Paper
// @Failure      500 {object} gin.H
// @Router       /papers [get]
func (h *Handler) ListPapers(c *gin.Context) {
	matiere := c.Query("matiere")
	year, _ := strconv.Atoi(c.DefaultQuery("year", "0"))

	papers, err := h.repo.ListPapers(c.Request.Context(), matiere, year)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load papers"})
		return
	}

	c.JSON(http.StatusOK, papers)
}

// GetPaper godoc
// @Summary      Get one exam paper
// @Tags         papers
// @Security     BearerAuth
// @Produce      json
// @Param        paperID path int true "Paper ID"
// @Success      200 {object} Paper
// @Failure      404 {object} gin.H
// @Router       /papers/{paperID} [get]
func (h *Handler) GetPaper(c *gin.Context) {
	paperID, err := strconv.Atoi(c.Param("paperID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paper ID"})
		return
	}

	paper, err := h.repo.GetPaperByID(c.Request.Context(), paperID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
		return
	}

	c.JSON(http.StatusOK, paper)
}

// CreatePaper godoc
// @Summary      Create exam paper
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body CreatePaperRequest true "Paper data"
// @Success      201 {object} Paper
// @Failure      400 {object} gin.H
// @Failure      500 {object} gin.H
// @Router       /admin/papers [post]
func (h *Handler) CreatePaper(c *gin.Context) {
	var req CreatePaperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Price <= 0 {
		req.Price = 1
	}

	paper, err := h.repo.CreatePaper(c.Request.Context(), req.Title, req.Matiere, req.Year, req.Serie, req.Price, req.FileURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create paper"})
		return
	}

	c.JSON(http.StatusCreated, paper)
}
