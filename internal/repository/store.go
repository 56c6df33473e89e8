package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/reimbursement-service/internal/domain"
)

// Sentinel errors shared by all store drivers. Services translate these
// into the caller-facing taxonomy.
var (
	// ErrNotFound signals a missing record.
	ErrNotFound = errors.New("record not found")
	// ErrConflict signals a uniqueness violation (duplicate username).
	ErrConflict = errors.New("record already exists")
	// ErrStaleStatus signals a conditional status update that matched no
	// record in the expected state: the ticket is missing or a concurrent
	// reviewer already finalized it.
	ErrStaleStatus = errors.New("ticket not in expected status")
)

// UserStore is the persistence port for employee accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
}

// TicketStore is the persistence port for the ticket aggregate. Tickets
// are addressed by a composite owner/ticket key; GetTicket resolves a
// bare ticket id through a secondary index.
type TicketStore interface {
	CreateTicket(ctx context.Context, ticket *domain.Ticket) error
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	TicketsByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error)
	TicketsByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error)
	TicketsByOwnerAndType(ctx context.Context, ownerID, ticketType string) ([]domain.Ticket, error)

	// UpdateTicketStatus performs a compare-and-set: the status moves from
	// `from` to `to` only when the ticket is currently in `from`. At most
	// one concurrent caller succeeds; the rest get ErrStaleStatus.
	UpdateTicketStatus(ctx context.Context, ticketID string, from, to domain.TicketStatus) (*domain.Ticket, error)

	// AppendReceipt atomically appends one receipt reference to the
	// ticket's list. Appends are serialized by the driver so concurrent
	// uploads never lose entries.
	AppendReceipt(ctx context.Context, ownerID, ticketID string, ref domain.ReceiptReference) (*domain.Ticket, error)
}

// Store bundles both ports as implemented by a single driver.
type Store interface {
	UserStore
	TicketStore
}
