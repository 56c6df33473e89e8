package handlers

import (
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/reimbursement-service/internal/api/dto"
	"github.com/spec-kit/reimbursement-service/internal/auth"
	"github.com/spec-kit/reimbursement-service/internal/domain"
	"github.com/spec-kit/reimbursement-service/internal/service"
	apperrors "github.com/spec-kit/reimbursement-service/pkg/util"
)

// TicketsHandler manages the ticket workflow endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// Submit POST /tickets.
func (h *TicketsHandler) Submit(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.SubmitTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.Submit(c.UserContext(), service.TicketDraft{
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
	}, principal.User.ID)
	if err != nil {
		return err
	}
	return success(c, http.StatusCreated, dto.NewTicketView(ticket))
}

// ListOwn GET /tickets. The optional `type` query filters by the ticket
// type discriminator.
func (h *TicketsHandler) ListOwn(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	tickets, err := h.service.TicketsForOwner(c.UserContext(), principal.User.ID, c.Query("type"))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, dto.NewTicketViews(tickets))
}

// Pending GET /tickets/pending.
func (h *TicketsHandler) Pending(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	tickets, err := h.service.PendingTickets(c.UserContext())
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, dto.NewTicketViews(tickets))
}

// Decide POST /tickets/:id/decision.
func (h *TicketsHandler) Decide(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.DecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.Process(c.UserContext(), c.Params("id"), principal.User.ID, domain.TicketStatus(req.Decision))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, dto.NewTicketView(ticket))
}

// UploadReceipt POST /tickets/:id/receipts (multipart, field "receipt").
func (h *TicketsHandler) UploadReceipt(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	header, err := c.FormFile("receipt")
	if err != nil {
		return apperrors.NewValidationError("receipt file is required", nil)
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewValidationError("receipt file unreadable", nil)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	ticket, err := h.service.UploadReceipt(c.UserContext(), principal.User.ID, c.Params("id"), service.ReceiptUpload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, dto.NewTicketView(ticket))
}
