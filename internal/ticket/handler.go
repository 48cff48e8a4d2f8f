package ticket

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"prepa/internal/auth"
	"prepa/internal/catalog"
	"prepa/internal/ledger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service     Service
	catalogRepo catalog.Repository
	validity    time.Duration
}

func NewHandler(service Service, catalogRepo catalog.Repository, validity time.Duration) *Handler {
	return &Handler{
		service:     service,
		catalogRepo: catalogRepo,
		validity:    validity,
	}
}

// CreateTicket godoc
// @Summary      Request a missing exam paper
// @Description  Opens a ticket and holds credits until it is resolved.
// @Tags         tickets
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body CreateTicketRequest true "Ticket request"
// @Success      201 {object} Ticket
// @Failure      400 {object} gin.H
// @Failure      402 {object} gin.H
// @Router       /tickets [post]
func (h *Handler) CreateTicket(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	// Tickets are for papers the catalog is missing.
	if paper, err := h.catalogRepo.FindPaper(c.Request.Context(), req.Matiere, req.Year, req.Serie); err == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":    "paper already available",
			"paper_id": paper.ID,
		})
		return
	}

	t, err := h.service.Create(c.Request.Context(), userID, req.Matiere, req.Year, req.Serie)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ledger.ErrInsufficientCredits):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create ticket"})
		}
		return
	}

	c.JSON(http.StatusCreated, t)
}

// ListMyTickets godoc
// @Summary      List my tickets
// @Tags         tickets
// @Security     BearerAuth
// @Produce      json
// @Success      200 {array} Ticket
// @Router       /tickets [get]
func (h *Handler) ListMyTickets(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	ts, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tickets"})
		return
	}

	c.JSON(http.StatusOK, ts)
}

// GetMyTicket godoc
// @Summary      Get one of my tickets
// @Tags         tickets
// @Security     BearerAuth
// @Produce      json
// @Param        ticketID path int true "Ticket ID"
// @Success      200 {object} Ticket
// @Failure      404 {object} gin.H
// @Router       /tickets/{ticketID} [get]
func (h *Handler) GetMyTicket(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	ticketID, err := strconv.Atoi(c.Param("ticketID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket ID"})
		return
	}

	t, err := h.service.GetForUser(c.Request.Context(), ticketID, userID)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load ticket"})
		return
	}

	c.JSON(http.StatusOK, t)
}

// ListTickets godoc
// @Summary      List tickets by status (admin)
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        status query string false "Status filter" default(pending)
// @Success      200 {array} Ticket
// @Router       /admin/tickets [get]
func (h *Handler) ListTickets(c *gin.Context) {
	status := Status(c.DefaultQuery("status", string(StatusPending)))
	switch status {
	case StatusPending, StatusFulfilled, StatusRefunded, StatusExpired:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	ts, err := h.service.ListByStatus(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tickets"})
		return
	}

	c.JSON(http.StatusOK, ts)
}

// FulfillTicket godoc
// @Summary      Fulfill a ticket with a paper (admin)
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        ticketID path int true "Ticket ID"
// @Param        request body FulfillTicketRequest true "Paper reference"
// @Success      200 {object} Ticket
// @Failure      404 {object} gin.H
// @Failure      409 {object} gin.H
// @Router       /admin/tickets/{ticketID}/fulfill [post]
func (h *Handler) FulfillTicket(c *gin.Context) {
	ticketID, err := strconv.Atoi(c.Param("ticketID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket ID"})
		return
	}

	var req FulfillTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if _, err := h.catalogRepo.GetPaperByID(c.Request.Context(), req.PaperID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paper not found"})
		return
	}

	t, err := h.service.Fulfill(c.Request.Context(), ticketID, req.PaperID)
	if err != nil {
		h.renderTransitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

// RefundTicket godoc
// @Summary      Refund a ticket (admin)
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        ticketID path int true "Ticket ID"
// @Param        request body RefundTicketRequest true "Refund reason"
// @Success      200 {object} Ticket
// @Failure      404 {object} gin.H
// @Failure      409 {object} gin.H
// @Router       /admin/tickets/{ticketID}/refund [post]
func (h *Handler) RefundTicket(c *gin.Context) {
	ticketID, err := strconv.Atoi(c.Param("ticketID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket ID"})
		return
	}

	var req RefundTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	t, err := h.service.Refund(c.Request.Context(), ticketID, req.Comment)
	if err != nil {
		h.renderTransitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

// SweepTickets godoc
// @Summary      Expire stale pending tickets (admin)
// @Description  Closes pending tickets older than the validity window
//               and releases their holds.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} SweepReport
// @Router       /admin/tickets/sweep [post]
func (h *Handler) SweepTickets(c *gin.Context) {
	report, err := h.service.ExpireStale(c.Request.Context(), time.Now(), h.validity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) renderTransitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrTicketNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
	case errors.Is(err, ErrTicketTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update ticket"})
	}
}
