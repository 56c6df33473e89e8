package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/reimbursement-service/internal/domain"
)

// RedisStore implements Store as a document store on Redis. Users are
// JSON strings, tickets are hashes addressed by a composite
// owner/ticket key with a pointer index for bare ticket-id lookups,
// and set indexes serve the status and owner queries.
//
// Key layout:
//
//	user#{userID}                 user document (JSON)
//	username#{username}           username -> userID (uniqueness guard)
//	ticket#{ownerID}#{ticketID}   ticket document (hash)
//	ticket-id#{ticketID}          ticketID -> document key
//	tickets:status:{status}       set of document keys
//	tickets:owner:{ownerID}       set of document keys
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore instantiates the driver.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func userKey(id string) string                  { return "user#" + id }
func usernameKey(name string) string            { return "username#" + name }
func ticketKey(owner, id string) string         { return "ticket#" + owner + "#" + id }
func ticketIndexKey(id string) string           { return "ticket-id#" + id }
func statusSetKey(s domain.TicketStatus) string { return "tickets:status:" + string(s) }
func ownerSetKey(owner string) string           { return "tickets:owner:" + owner }

func (r *RedisStore) CreateUser(ctx context.Context, user *domain.User) error {
	ok, err := r.client.SetNX(ctx, usernameKey(user.Username), user.ID, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	doc, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, userKey(user.ID), doc, 0).Err()
}

func (r *RedisStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchUser(ctx, userKey(id))
}

func (r *RedisStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	id, err := r.client.Get(ctx, usernameKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r.fetchUser(ctx, userKey(id))
}

func (r *RedisStore) fetchUser(ctx context.Context, key string) (*domain.User, error) {
	doc, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var user domain.User
	if err := json.Unmarshal([]byte(doc), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *RedisStore) CreateTicket(ctx context.Context, ticket *domain.Ticket) error {
	docKey := ticketKey(ticket.OwnerID, ticket.ID)
	fields, err := hashFromTicket(ticket)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, docKey, fields)
	pipe.Set(ctx, ticketIndexKey(ticket.ID), docKey, 0)
	pipe.SAdd(ctx, statusSetKey(ticket.Status), docKey)
	pipe.SAdd(ctx, ownerSetKey(ticket.OwnerID), docKey)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	docKey, err := r.client.Get(ctx, ticketIndexKey(ticketID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r.fetchTicket(ctx, docKey)
}

func (r *RedisStore) TicketsByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	return r.ticketsFromSet(ctx, statusSetKey(status), "")
}

func (r *RedisStore) TicketsByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error) {
	return r.ticketsFromSet(ctx, ownerSetKey(ownerID), "")
}

func (r *RedisStore) TicketsByOwnerAndType(ctx context.Context, ownerID, ticketType string) ([]domain.Ticket, error) {
	return r.ticketsFromSet(ctx, ownerSetKey(ownerID), ticketType)
}

// updateStatusScript performs the compare-and-set inside Redis so that
// at most one concurrent transition out of Pending succeeds.
var updateStatusScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return redis.error_reply('STALE')
end
if status ~= ARGV[1] then
  return redis.error_reply('STALE')
end
redis.call('HSET', KEYS[1], 'status', ARGV[2])
redis.call('SREM', KEYS[2], KEYS[1])
redis.call('SADD', KEYS[3], KEYS[1])
return redis.call('HGETALL', KEYS[1])
`)

func (r *RedisStore) UpdateTicketStatus(ctx context.Context, ticketID string, from, to domain.TicketStatus) (*domain.Ticket, error) {
	docKey, err := r.client.Get(ctx, ticketIndexKey(ticketID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStaleStatus
		}
		return nil, err
	}

	keys := []string{docKey, statusSetKey(from), statusSetKey(to)}
	reply, err := updateStatusScript.Run(ctx, r.client, keys, string(from), string(to)).Result()
	if err != nil {
		if strings.Contains(err.Error(), "STALE") {
			return nil, ErrStaleStatus
		}
		return nil, err
	}
	fields, err := fieldsFromReply(reply)
	if err != nil {
		return nil, err
	}
	return ticketFromHash(fields)
}

// appendReceiptScript serializes receipt appends on the document so
// concurrent uploads never lose entries.
var appendReceiptScript = redis.NewScript(`
local receipts = redis.call('HGET', KEYS[1], 'receipts')
if not receipts then
  return redis.error_reply('NOTFOUND')
end
local arr = cjson.decode(receipts)
table.insert(arr, cjson.decode(ARGV[1]))
redis.call('HSET', KEYS[1], 'receipts', cjson.encode(arr))
return redis.call('HGETALL', KEYS[1])
`)

func (r *RedisStore) AppendReceipt(ctx context.Context, ownerID, ticketID string, ref domain.ReceiptReference) (*domain.Ticket, error) {
	payload, err := json.Marshal(ref)
	if err != nil {
		return nil, err
	}
	docKey := ticketKey(ownerID, ticketID)
	reply, err := appendReceiptScript.Run(ctx, r.client, []string{docKey}, string(payload)).Result()
	if err != nil {
		if strings.Contains(err.Error(), "NOTFOUND") {
			return nil, ErrNotFound
		}
		return nil, err
	}
	fields, err := fieldsFromReply(reply)
	if err != nil {
		return nil, err
	}
	return ticketFromHash(fields)
}

func (r *RedisStore) fetchTicket(ctx context.Context, docKey string) (*domain.Ticket, error) {
	fields, err := r.client.HGetAll(ctx, docKey).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return ticketFromHash(fields)
}

func (r *RedisStore) ticketsFromSet(ctx context.Context, setKey, typeFilter string) ([]domain.Ticket, error) {
	docKeys, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, err
	}

	var result []domain.Ticket
	for _, docKey := range docKeys {
		ticket, err := r.fetchTicket(ctx, docKey)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if typeFilter != "" && ticket.Type != typeFilter {
			continue
		}
		result = append(result, *ticket)
	}
	sortByCreation(result)
	return result, nil
}

func hashFromTicket(t *domain.Ticket) (map[string]any, error) {
	receipts := t.Receipts
	if receipts == nil {
		receipts = []domain.ReceiptReference{}
	}
	encoded, err := json.Marshal(receipts)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"ticket_id":   t.ID,
		"owner_id":    t.OwnerID,
		"type":        t.Type,
		"amount":      strconv.FormatFloat(t.Amount, 'f', -1, 64),
		"description": t.Description,
		"status":      string(t.Status),
		"receipts":    string(encoded),
		"created_at":  t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func ticketFromHash(fields map[string]string) (*domain.Ticket, error) {
	amount, err := strconv.ParseFloat(fields["amount"], 64)
	if err != nil {
		return nil, fmt.Errorf("decode ticket amount: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("decode ticket created_at: %w", err)
	}
	ticket := &domain.Ticket{
		ID:          fields["ticket_id"],
		OwnerID:     fields["owner_id"],
		Type:        fields["type"],
		Amount:      amount,
		Description: fields["description"],
		Status:      domain.TicketStatus(fields["status"]),
		CreatedAt:   createdAt,
		Receipts:    []domain.ReceiptReference{},
	}
	if raw := fields["receipts"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &ticket.Receipts); err != nil {
			return nil, fmt.Errorf("decode ticket receipts: %w", err)
		}
	}
	return ticket, nil
}

func fieldsFromReply(reply any) (map[string]string, error) {
	entries, ok := reply.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected script reply type %T", reply)
	}
	fields := make(map[string]string, len(entries)/2)
	for i := 0; i+1 < len(entries); i += 2 {
		key, okKey := entries[i].(string)
		val, okVal := entries[i+1].(string)
		if !okKey || !okVal {
			return nil, fmt.Errorf("unexpected script reply entry at %d", i)
		}
		fields[key] = val
	}
	return fields, nil
}
