package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/reimbursement-service/internal/blob"
	"github.com/spec-kit/reimbursement-service/internal/domain"
	"github.com/spec-kit/reimbursement-service/internal/repository"
	apperrors "github.com/spec-kit/reimbursement-service/pkg/util"
)

// TicketService coordinates the reimbursement ticket workflow.
type TicketService struct {
	users   repository.UserStore
	tickets repository.TicketStore
	blobs   blob.Store
	urlTTL  time.Duration
	logger  *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Users   repository.UserStore
	Tickets repository.TicketStore
	Blobs   blob.Store
	// SignedURLTTL bounds the lifetime of receipt retrieval URLs.
	SignedURLTTL time.Duration
}

// TicketDraft describes the caller-supplied ticket payload. The fields
// are carried opaquely onto the ticket.
type TicketDraft struct {
	Type        string
	Amount      float64
	Description string
}

// ReceiptUpload is an uploaded receipt file.
type ReceiptUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies, logger *zap.Logger) *TicketService {
	ttl := deps.SignedURLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TicketService{
		users:   deps.Users,
		tickets: deps.Tickets,
		blobs:   deps.Blobs,
		urlTTL:  ttl,
		logger:  logger,
	}
}

// Submit creates a Pending ticket owned by ownerID.
func (s *TicketService) Submit(ctx context.Context, draft TicketDraft, ownerID string) (*domain.Ticket, error) {
	if _, err := s.users.GetUser(ctx, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("ticket submission for unknown user", zap.String("user_id", ownerID))
			return nil, apperrors.NewNotFound("user does not exist", nil)
		}
		s.logger.Error("owner lookup failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}

	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Type:        draft.Type,
		Amount:      draft.Amount,
		Description: draft.Description,
		Status:      domain.TicketStatusPending,
		Receipts:    []domain.ReceiptReference{},
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.tickets.CreateTicket(ctx, ticket); err != nil {
		s.logger.Error("ticket creation failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return nil, apperrors.NewPersistenceError("failed to create ticket", err)
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("owner_id", ownerID),
	)
	return ticket, nil
}

// PendingTickets returns all tickets awaiting review, with receipt
// references enriched by signed retrieval URLs.
func (s *TicketService) PendingTickets(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.tickets.TicketsByStatus(ctx, domain.TicketStatusPending)
	if err != nil {
		s.logger.Error("pending ticket query failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	if len(tickets) == 0 {
		s.logger.Warn("no pending tickets found")
		return nil, apperrors.NewEmptyResult("no pending tickets available for processing")
	}

	tickets, err = s.withSignedURLs(ctx, tickets)
	if err != nil {
		return nil, err
	}

	s.logger.Info("pending tickets retrieved", zap.Int("count", len(tickets)))
	return tickets, nil
}

// Process transitions a Pending ticket to the reviewer's decision. The
// transition happens at most once: the conditional store update is the
// arbiter under concurrency, and the owner may never decide their own
// ticket.
func (s *TicketService) Process(ctx context.Context, ticketID, actorID string, decision domain.TicketStatus) (*domain.Ticket, error) {
	if !decision.Decision() {
		return nil, apperrors.NewValidationError("decision must be Approved or Rejected", nil)
	}

	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("cannot process ticket", zap.String("ticket_id", ticketID), zap.String("reason", "not found"))
			return nil, apperrors.NewInvalidState("ticket cannot be processed: it does not exist or is already finalized")
		}
		s.logger.Error("ticket lookup failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	if ticket.Status != domain.TicketStatusPending {
		s.logger.Warn("cannot process ticket",
			zap.String("ticket_id", ticketID),
			zap.String("status", string(ticket.Status)),
		)
		return nil, apperrors.NewInvalidState("ticket cannot be processed: it does not exist or is already finalized")
	}

	// Exact string comparison of the stored owner id and the actor id;
	// no normalization.
	if ticket.OwnerID == actorID {
		s.logger.Warn("self-review rejected", zap.String("ticket_id", ticketID), zap.String("actor_id", actorID))
		return nil, apperrors.NewForbidden("cannot process own ticket")
	}

	updated, err := s.tickets.UpdateTicketStatus(ctx, ticketID, domain.TicketStatusPending, decision)
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			// Lost the race to a concurrent reviewer.
			return nil, apperrors.NewInvalidState("ticket cannot be processed: it does not exist or is already finalized")
		}
		s.logger.Error("ticket status update failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return nil, apperrors.NewPersistenceError("failed to update ticket status", err)
	}

	s.logger.Info("ticket processed",
		zap.String("ticket_id", ticketID),
		zap.String("decision", string(decision)),
		zap.String("actor_id", actorID),
	)
	return updated, nil
}

// TicketsForOwner returns the tickets submitted by userID, optionally
// filtered by the type discriminator, enriched with signed URLs.
func (s *TicketService) TicketsForOwner(ctx context.Context, userID, typeFilter string) ([]domain.Ticket, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user does not exist", nil)
		}
		s.logger.Error("user lookup failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}

	var (
		tickets []domain.Ticket
		err     error
	)
	if typeFilter != "" {
		tickets, err = s.tickets.TicketsByOwnerAndType(ctx, userID, typeFilter)
	} else {
		tickets, err = s.tickets.TicketsByOwner(ctx, userID)
	}
	if err != nil {
		s.logger.Error("owner ticket query failed", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	if len(tickets) == 0 {
		s.logger.Warn("no tickets found for user", zap.String("user_id", userID))
		return nil, apperrors.NewEmptyResult("no previous tickets found for the user")
	}

	tickets, err = s.withSignedURLs(ctx, tickets)
	if err != nil {
		return nil, err
	}

	s.logger.Info("tickets retrieved for user",
		zap.String("user_id", userID),
		zap.Int("count", len(tickets)),
	)
	return tickets, nil
}

// UploadReceipt stores the receipt binary and appends its reference to
// the ticket. Only the ticket owner may upload; finalized tickets still
// accept receipts.
func (s *TicketService) UploadReceipt(ctx context.Context, userID, ticketID string, file ReceiptUpload) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("receipt upload rejected", zap.String("ticket_id", ticketID), zap.String("reason", "not found"))
			return nil, apperrors.NewForbidden("ticket not found or not owned by user")
		}
		s.logger.Error("ticket lookup failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	if ticket.OwnerID != userID {
		s.logger.Warn("receipt upload rejected",
			zap.String("ticket_id", ticketID),
			zap.String("user_id", userID),
			zap.String("reason", "ownership mismatch"),
		)
		return nil, apperrors.NewForbidden("ticket not found or not owned by user")
	}

	now := time.Now().UTC()
	path := fmt.Sprintf("%s/%s/%d_%s", userID, ticketID, now.UnixMilli(), file.Name)

	if err := s.blobs.Put(ctx, path, file.Data, file.ContentType); err != nil {
		s.logger.Error("receipt blob write failed", zap.String("path", path), zap.Error(err))
		return nil, apperrors.NewStorageError("failed to store receipt", err)
	}

	ref := domain.ReceiptReference{FileName: path, UploadedAt: now}
	updated, err := s.tickets.AppendReceipt(ctx, userID, ticketID, ref)
	if err != nil {
		s.logger.Error("receipt reference append failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return nil, apperrors.NewPersistenceError("failed to record receipt", err)
	}

	s.logger.Info("receipt uploaded",
		zap.String("ticket_id", ticketID),
		zap.String("path", path),
	)
	return updated, nil
}

// withSignedURLs attaches a time-limited retrieval URL to every receipt
// reference that carries a file name. References without a name pass
// through untouched; a presigner failure aborts the read.
func (s *TicketService) withSignedURLs(ctx context.Context, tickets []domain.Ticket) ([]domain.Ticket, error) {
	for i := range tickets {
		for j := range tickets[i].Receipts {
			ref := &tickets[i].Receipts[j]
			if ref.FileName == "" {
				continue
			}
			url, err := s.blobs.SignedURL(ctx, ref.FileName, s.urlTTL)
			if err != nil {
				s.logger.Error("signed url generation failed", zap.String("file", ref.FileName), zap.Error(err))
				return nil, apperrors.NewInternalError(err)
			}
			ref.SignedURL = url
		}
	}
	return tickets, nil
}
