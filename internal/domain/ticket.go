package domain

import "time"

// TicketStatus enumerates lifecycle states for reimbursement tickets.
// Pending is the only non-terminal state: a ticket transitions out of it
// exactly once.
type TicketStatus string

const (
	TicketStatusPending  TicketStatus = "Pending"
	TicketStatusApproved TicketStatus = "Approved"
	TicketStatusRejected TicketStatus = "Rejected"
)

// Terminal reports whether no further status transitions are permitted.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusApproved || s == TicketStatusRejected
}

// Decision validates a reviewer decision value.
func (s TicketStatus) Decision() bool {
	return s == TicketStatusApproved || s == TicketStatusRejected
}

// ReceiptReference points at an uploaded receipt object. SignedURL is
// populated on read paths only and is never written back to the store.
type ReceiptReference struct {
	FileName   string    `json:"file_name"`
	UploadedAt time.Time `json:"uploaded_at"`
	SignedURL  string    `json:"signed_url,omitempty"`
}

// Ticket is the reimbursement request aggregate. Amount, Description and
// Type are carried opaquely; the workflow only interprets OwnerID, Status
// and Receipts.
type Ticket struct {
	ID          string             `json:"ticket_id"`
	OwnerID     string             `json:"owner_id"`
	Type        string             `json:"type,omitempty"`
	Amount      float64            `json:"amount"`
	Description string             `json:"description"`
	Status      TicketStatus       `json:"status"`
	Receipts    []ReceiptReference `json:"receipt_references"`
	CreatedAt   time.Time          `json:"created_at"`
}
