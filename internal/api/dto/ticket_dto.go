package dto

import (
	"time"

	"github.com/spec-kit/reimbursement-service/internal/domain"
)

// SubmitTicketRequest payload.
type SubmitTicketRequest struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// DecisionRequest carries a reviewer decision for a pending ticket.
type DecisionRequest struct {
	Decision string `json:"decision"`
}

// ReceiptView is the caller-visible receipt reference.
type ReceiptView struct {
	FileName   string    `json:"file_name"`
	UploadedAt time.Time `json:"uploaded_at"`
	SignedURL  string    `json:"signed_url,omitempty"`
}

// TicketView is the public projection of a ticket: the storage
// addressing details stay internal.
type TicketView struct {
	TicketID    string        `json:"ticket_id"`
	OwnerID     string        `json:"owner_id"`
	Type        string        `json:"type,omitempty"`
	Amount      float64       `json:"amount"`
	Description string        `json:"description"`
	Status      string        `json:"status"`
	Receipts    []ReceiptView `json:"receipt_references"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewTicketView projects a domain ticket to its API shape.
func NewTicketView(ticket *domain.Ticket) TicketView {
	receipts := make([]ReceiptView, 0, len(ticket.Receipts))
	for _, ref := range ticket.Receipts {
		receipts = append(receipts, ReceiptView{
			FileName:   ref.FileName,
			UploadedAt: ref.UploadedAt,
			SignedURL:  ref.SignedURL,
		})
	}
	return TicketView{
		TicketID:    ticket.ID,
		OwnerID:     ticket.OwnerID,
		Type:        ticket.Type,
		Amount:      ticket.Amount,
		Description: ticket.Description,
		Status:      string(ticket.Status),
		Receipts:    receipts,
		CreatedAt:   ticket.CreatedAt,
	}
}

// NewTicketViews projects a batch of tickets.
func NewTicketViews(tickets []domain.Ticket) []TicketView {
	views := make([]TicketView, 0, len(tickets))
	for i := range tickets {
		views = append(views, NewTicketView(&tickets[i]))
	}
	return views
}
