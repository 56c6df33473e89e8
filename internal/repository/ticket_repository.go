package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/reimbursement-service/internal/domain"
)

const ticketColumns = `ticket_id, owner_id, type, amount, description, status, receipts, created_at`

func (r *PostgresStore) CreateTicket(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_id, owner_id, type, amount, description, status, receipts, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,'[]'::jsonb,$7)`

	cmd, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.OwnerID,
		nullableText(ticket.Type),
		ticket.Amount,
		ticket.Description,
		ticket.Status,
		ticket.CreatedAt,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PostgresStore) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id=$1`
	row := r.pool.QueryRow(ctx, query, ticketID)
	ticket, err := scanTicketRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (r *PostgresStore) TicketsByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE status=$1 ORDER BY created_at`
	return r.queryTickets(ctx, query, status)
}

func (r *PostgresStore) TicketsByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE owner_id=$1 ORDER BY created_at`
	return r.queryTickets(ctx, query, ownerID)
}

func (r *PostgresStore) TicketsByOwnerAndType(ctx context.Context, ownerID, ticketType string) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE owner_id=$1 AND type=$2 ORDER BY created_at`
	return r.queryTickets(ctx, query, ownerID, ticketType)
}

// UpdateTicketStatus relies on the conditional WHERE clause for the
// at-most-once transition: under concurrency only one UPDATE matches.
func (r *PostgresStore) UpdateTicketStatus(ctx context.Context, ticketID string, from, to domain.TicketStatus) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets SET status=$1
        WHERE ticket_id=$2 AND status=$3
        RETURNING ` + ticketColumns
	row := r.pool.QueryRow(ctx, query, to, ticketID, from)
	ticket, err := scanTicketRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaleStatus
		}
		return nil, err
	}
	return ticket, nil
}

// AppendReceipt uses jsonb concatenation so concurrent appends serialize
// on the row without read-modify-write races.
func (r *PostgresStore) AppendReceipt(ctx context.Context, ownerID, ticketID string, ref domain.ReceiptReference) (*domain.Ticket, error) {
	payload, err := json.Marshal([]domain.ReceiptReference{ref})
	if err != nil {
		return nil, err
	}
	const query = `
        UPDATE tickets SET receipts = receipts || $1::jsonb
        WHERE ticket_id=$2 AND owner_id=$3
        RETURNING ` + ticketColumns
	row := r.pool.QueryRow(ctx, query, string(payload), ticketID, ownerID)
	ticket, err := scanTicketRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (r *PostgresStore) queryTickets(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicketRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicketRow(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket     domain.Ticket
		ticketType *string
		receipts   []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.OwnerID,
		&ticketType,
		&ticket.Amount,
		&ticket.Description,
		&ticket.Status,
		&receipts,
		&ticket.CreatedAt,
	); err != nil {
		return nil, err
	}
	if ticketType != nil {
		ticket.Type = *ticketType
	}
	if len(receipts) > 0 {
		if err := json.Unmarshal(receipts, &ticket.Receipts); err != nil {
			return nil, err
		}
	}
	if ticket.Receipts == nil {
		ticket.Receipts = []domain.ReceiptReference{}
	}
	return &ticket, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
