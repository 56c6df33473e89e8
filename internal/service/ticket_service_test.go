package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/reimbursement-service/internal/blob"
	"github.com/spec-kit/reimbursement-service/internal/domain"
	"github.com/spec-kit/reimbursement-service/internal/repository"
	apperrors "github.com/spec-kit/reimbursement-service/pkg/util"
)

type ticketFixture struct {
	svc   *TicketService
	store *repository.MemoryStore
	blobs *blob.MemoryStore
}

func newTicketFixture() *ticketFixture {
	store := repository.NewMemoryStore()
	blobs := blob.NewMemoryStore(blob.NewPresigner("test-secret", "http://localhost:8080"))
	svc := NewTicketService(TicketDependencies{
		Users:        store,
		Tickets:      store,
		Blobs:        blobs,
		SignedURLTTL: time.Hour,
	}, zap.NewNop())
	return &ticketFixture{svc: svc, store: store, blobs: blobs}
}

func (f *ticketFixture) addUser(t *testing.T, id, username string) {
	t.Helper()
	err := f.store.CreateUser(context.Background(), &domain.User{
		ID:       id,
		Username: username,
		Role:     domain.RoleEmployee,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
}

func (f *ticketFixture) submit(t *testing.T, ownerID string) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.Submit(context.Background(), TicketDraft{
		Type:        "travel",
		Amount:      42.50,
		Description: "conference train ticket",
	}, ownerID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return ticket
}

func TestSubmit(t *testing.T) {
	f := newTicketFixture()
	f.addUser(t, "u1", "alice")
	ctx := context.Background()

	t.Run("unknown owner", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, TicketDraft{}, "ghost")
		if got := apperrors.CodeOf(err); got != apperrors.CodeNotFound {
			t.Fatalf("expected NOT_FOUND, got %s", got)
		}
	})

	t.Run("creates pending ticket", func(t *testing.T) {
		ticket := f.submit(t, "u1")
		if ticket.ID == "" {
			t.Fatal("expected generated ticket id")
		}
		if ticket.Status != domain.TicketStatusPending {
			t.Fatalf("expected Pending, got %s", ticket.Status)
		}
		if len(ticket.Receipts) != 0 {
			t.Fatalf("expected empty receipts, got %d", len(ticket.Receipts))
		}
		if ticket.CreatedAt.IsZero() {
			t.Fatal("expected creation timestamp")
		}
	})
}

func TestPendingTicketsEmpty(t *testing.T) {
	f := newTicketFixture()
	_, err := f.svc.PendingTickets(context.Background())
	if got := apperrors.CodeOf(err); got != apperrors.CodeEmptyResult {
		t.Fatalf("expected EMPTY_RESULT, got %s (err=%v)", got, err)
	}
}

func TestProcessLifecycle(t *testing.T) {
	f := newTicketFixture()
	f.addUser(t, "u1", "alice")
	f.addUser(t, "u2", "bob")
	ctx := context.Background()

	ticket := f.submit(t, "u1")

	updated, err := f.svc.Process(ctx, ticket.ID, "u2", domain.TicketStatusApproved)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if updated.Status != domain.TicketStatusApproved {
		t.Fatalf("expected Approved, got %s", updated.Status)
	}

	// The transition is terminal: a second decision must fail.
	_, err = f.svc.Process(ctx, ticket.ID, "u2", domain.TicketStatusRejected)
	if got := apperrors.CodeOf(err); got != apperrors.CodeInvalidState {
		t.Fatalf("expected INVALID_STATE, got %s", got)
	}

	stored, err := f.store.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored.Status != domain.TicketStatusApproved {
		t.Fatalf("decision was overwritten: %s", stored.Status)
	}
}

func TestProcessSelfReviewForbidden(t *testing.T) {
	f := newTicketFixture()
	f.addUser(t, "u1", "alice")
	ctx := context.Background()

	ticket := f.submit(t, "u1")

	_, err := f.svc.Process(ctx, ticket.ID, "u1", domain.TicketStatusApproved)
	if got := apperrors.CodeOf(err); got != apperrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %s", got)
	}

	stored, err := f.store.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored.Status != domain.TicketStatusPending {
		t.Fatalf("self-review mutated the ticket: %s", stored.Status)
	}
}

func TestProcessValidation(t *testing.T) {
	f := newTicketFixture()
	f.addUser(t, "u1", "alice")
	f.addUser(t, "u2", "bob")
	ctx := context.Background()

	ticket := f.submit(t, "u1")

	t.Run("unknown decision", func(t *testing.T) {
		_, err := f.svc.Process(ctx, ticket.ID, "u2", domain.TicketStatus("Escalated"))
		if got := apperrors.CodeOf(err); got != apperrors.CodeValidationFailed {
			t.Fatalf("expected VALIDATION_FAILED, got %s", got)
		}
	})

	t.Run("missing ticket", func(t *testing.T) {
		_, err := f.svc.Process(ctx, "no-such-ticket", "u2", domain.TicketStatusApproved)
		if got := apperrors.CodeOf(err); got != apperrors.CodeInvalidState {
			t.Fatalf("expected INVALID_STATE, got %s", got)
		}
	})
}

func TestTicketsForOwner(t *testing.T) {
	f := newTicketFixture()
	f.addUser(t, "u1", "alice")
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.svc.TicketsForOwner(ctx, "ghost", "")
		if got := apperrors.CodeOf(err); got != apperrors.CodeNotFound {
			t.Fatalf("expected NOT_FOUND, got %s", got)
		}
	})

	t.Run("no tickets", func(t *testing.T) {
		_, err := f.svc.TicketsForOwner(ctx, "u1", "")
		if got := apperrors.CodeOf(err); got != apperrors.CodeEmptyResult {
			t.Fatalf("expected EMPTY_RESULT, got %s", got)
		}
	})

	f.submit(t, "u1")

	t.Run("type filter excludes everything", func(t *testing.T) {
		_, err := f.svc.TicketsForOwner(ctx, "u1", "meals")
		if got := apperrors.CodeOf(err); got != apperrors.CodeEmptyResult {
			t.Fatalf("expected EMPTY_RESULT, got %s", got)
		}
	})

	t.Run("type filter matches", func(t *testing.T) {
		tickets, err := f.svc.TicketsForOwner(ctx, "u1", "travel")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(tickets) != 1 {
			t.Fatalf("expected 1 ticket, got %d", len(tickets))
		}
	})
}

func TestUploadReceiptOwnership(t *testing.T) {
	f := newTicketFixture()
	f.addUser(t, "u1", "alice")
	f.addUser(t, "u2", "bob")
	ctx := context.Background()

	ticket := f.submit(t, "u1")
	file := ReceiptUpload{Name: "receipt.png", ContentType: "image/png", Data: []byte("png-bytes")}

	t.Run("non-owner forbidden", func(t *testing.T) {
		_, err := f.svc.UploadReceipt(ctx, "u2", ticket.ID, file)
		if got := apperrors.CodeOf(err); got != apperrors.CodeForbidden {
			t.Fatalf("expected FORBIDDEN, got %s", got)
		}
	})

	t.Run("missing ticket forbidden", func(t *testing.T) {
		_, err := f.svc.UploadReceipt(ctx, "u1", "no-such-ticket", file)
		if got := apperrors.CodeOf(err); got != apperrors.CodeForbidden {
			t.Fatalf("expected FORBIDDEN, got %s", got)
		}
	})
}

func TestUploadReceiptAppendOrder(t *testing.T) {
	f := newTicketFixture()
	f.addUser(t, "u1", "alice")
	ctx := context.Background()

	ticket := f.submit(t, "u1")

	const uploads = 3
	var last *domain.Ticket
	for i := 0; i < uploads; i++ {
		var err error
		last, err = f.svc.UploadReceipt(ctx, "u1", ticket.ID, ReceiptUpload{
			Name:        fmt.Sprintf("receipt-%d.jpg", i),
			ContentType: "image/jpeg",
			Data:        []byte{byte(i)},
		})
		if err != nil {
			t.Fatalf("upload %d: %v", i, err)
		}
	}

	if len(last.Receipts) != uploads {
		t.Fatalf("expected %d receipts, got %d", uploads, len(last.Receipts))
	}
	for i, ref := range last.Receipts {
		want := fmt.Sprintf("receipt-%d.jpg", i)
		if !strings.HasSuffix(ref.FileName, want) {
			t.Fatalf("receipt %d out of order: %s", i, ref.FileName)
		}
		if !strings.HasPrefix(ref.FileName, "u1/"+ticket.ID+"/") {
			t.Fatalf("receipt path not scoped to owner and ticket: %s", ref.FileName)
		}
	}

	obj, err := f.blobs.Get(ctx, last.Receipts[0].FileName)
	if err != nil {
		t.Fatalf("blob lookup: %v", err)
	}
	if obj.ContentType != "image/jpeg" {
		t.Fatalf("content type not preserved: %s", obj.ContentType)
	}
}

func TestUploadReceiptAllowedAfterDecision(t *testing.T) {
	f := newTicketFixture()
	f.addUser(t, "u1", "alice")
	f.addUser(t, "u2", "bob")
	ctx := context.Background()

	ticket := f.submit(t, "u1")
	if _, err := f.svc.Process(ctx, ticket.ID, "u2", domain.TicketStatusApproved); err != nil {
		t.Fatalf("process: %v", err)
	}

	updated, err := f.svc.UploadReceipt(ctx, "u1", ticket.ID, ReceiptUpload{
		Name: "late.pdf", ContentType: "application/pdf", Data: []byte("pdf"),
	})
	if err != nil {
		t.Fatalf("upload after decision: %v", err)
	}
	if len(updated.Receipts) != 1 {
		t.Fatalf("expected 1 receipt, got %d", len(updated.Receipts))
	}
}

func TestSignedURLEnrichment(t *testing.T) {
	f := newTicketFixture()
	f.addUser(t, "u1", "alice")
	ctx := context.Background()

	ticket := f.submit(t, "u1")
	if _, err := f.svc.UploadReceipt(ctx, "u1", ticket.ID, ReceiptUpload{
		Name: "a.png", ContentType: "image/png", Data: []byte("a"),
	}); err != nil {
		t.Fatalf("upload: %v", err)
	}

	tickets, err := f.svc.PendingTickets(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(tickets) != 1 || len(tickets[0].Receipts) != 1 {
		t.Fatalf("unexpected result shape: %+v", tickets)
	}
	signed := tickets[0].Receipts[0].SignedURL
	if signed == "" {
		t.Fatal("expected signed url on receipt reference")
	}
	if !strings.Contains(signed, "expires=") || !strings.Contains(signed, "signature=") {
		t.Fatalf("signed url missing parameters: %s", signed)
	}

	// The stored record must stay untouched by enrichment.
	stored, err := f.store.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored.Receipts[0].SignedURL != "" {
		t.Fatal("enrichment leaked into the stored record")
	}
}

func TestEnrichmentSkipsUnnamedReferences(t *testing.T) {
	f := newTicketFixture()
	f.addUser(t, "u1", "alice")
	ctx := context.Background()

	ticket := f.submit(t, "u1")
	if _, err := f.store.AppendReceipt(ctx, "u1", ticket.ID, domain.ReceiptReference{FileName: ""}); err != nil {
		t.Fatalf("seed unnamed reference: %v", err)
	}

	tickets, err := f.svc.PendingTickets(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if got := tickets[0].Receipts[0].SignedURL; got != "" {
		t.Fatalf("unnamed reference should pass through, got url %q", got)
	}
}

// failingBlobStore simulates a presigner collaborator outage.
type failingBlobStore struct{}

func (failingBlobStore) Put(context.Context, string, []byte, string) error { return nil }
func (failingBlobStore) Get(context.Context, string) (*blob.Object, error) {
	return nil, blob.ErrNotFound
}
func (failingBlobStore) SignedURL(context.Context, string, time.Duration) (string, error) {
	return "", errors.New("signing backend down")
}

func TestEnrichmentFailureSurfacesAsInternal(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewTicketService(TicketDependencies{
		Users:        store,
		Tickets:      store,
		Blobs:        failingBlobStore{},
		SignedURLTTL: time.Hour,
	}, zap.NewNop())
	ctx := context.Background()

	if err := store.CreateUser(ctx, &domain.User{ID: "u1", Username: "alice"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	ticket, err := svc.Submit(ctx, TicketDraft{}, "u1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := store.AppendReceipt(ctx, "u1", ticket.ID, domain.ReceiptReference{FileName: "u1/x/1_a.png"}); err != nil {
		t.Fatalf("seed receipt: %v", err)
	}

	_, err = svc.PendingTickets(ctx)
	if got := apperrors.CodeOf(err); got != apperrors.CodeInternal {
		t.Fatalf("expected INTERNAL_ERROR, got %s (err=%v)", got, err)
	}
}
