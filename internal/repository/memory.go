package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/reimbursement-service/internal/domain"
)

// MemoryStore is a map-backed Store used by tests and as a development
// fallback. It honors the same CAS and append semantics as the durable
// drivers.
type MemoryStore struct {
	mu        sync.Mutex
	users     map[string]domain.User // keyed by user id
	usernames map[string]string      // username -> user id
	tickets   map[string]domain.Ticket
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		usernames: make(map[string]string),
		tickets:   make(map[string]domain.Ticket),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usernames[user.Username]; exists {
		return ErrConflict
	}
	s.usernames[user.Username] = user.ID
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.usernames[username]
	if !ok {
		return nil, ErrNotFound
	}
	user := s.users[id]
	return &user, nil
}

func (s *MemoryStore) CreateTicket(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tickets[ticket.ID]; exists {
		return ErrConflict
	}
	s.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (s *MemoryStore) GetTicket(_ context.Context, ticketID string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, ErrNotFound
	}
	ticket = cloneTicket(ticket)
	return &ticket, nil
}

func (s *MemoryStore) TicketsByStatus(_ context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if ticket.Status == status {
			result = append(result, cloneTicket(ticket))
		}
	}
	sortByCreation(result)
	return result, nil
}

func (s *MemoryStore) TicketsByOwner(_ context.Context, ownerID string) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if ticket.OwnerID == ownerID {
			result = append(result, cloneTicket(ticket))
		}
	}
	sortByCreation(result)
	return result, nil
}

func (s *MemoryStore) TicketsByOwnerAndType(_ context.Context, ownerID, ticketType string) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if ticket.OwnerID == ownerID && ticket.Type == ticketType {
			result = append(result, cloneTicket(ticket))
		}
	}
	sortByCreation(result)
	return result, nil
}

func (s *MemoryStore) UpdateTicketStatus(_ context.Context, ticketID string, from, to domain.TicketStatus) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok || ticket.Status != from {
		return nil, ErrStaleStatus
	}
	ticket.Status = to
	s.tickets[ticketID] = ticket
	ticket = cloneTicket(ticket)
	return &ticket, nil
}

func (s *MemoryStore) AppendReceipt(_ context.Context, ownerID, ticketID string, ref domain.ReceiptReference) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok || ticket.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	ticket.Receipts = append(ticket.Receipts, ref)
	s.tickets[ticketID] = cloneTicket(ticket)
	ticket = cloneTicket(ticket)
	return &ticket, nil
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	receipts := make([]domain.ReceiptReference, len(t.Receipts))
	copy(receipts, t.Receipts)
	t.Receipts = receipts
	return t
}

func sortByCreation(tickets []domain.Ticket) {
	sort.Slice(tickets, func(i, j int) bool {
		if tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].ID < tickets[j].ID
		}
		return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
	})
}
