package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/reimbursement-service/internal/domain"
)

// PostgresStore implements Store on a pgx connection pool. User
// operations live here; ticket operations in ticket_repository.go.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore instantiates the driver.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const uniqueViolation = "23505"

func (r *PostgresStore) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (user_id, username, password_hash, role)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.Role,
	).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *PostgresStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT user_id, username, password_hash, role, created_at
        FROM users WHERE user_id=$1`
	return r.fetchUser(ctx, query, id)
}

func (r *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `
        SELECT user_id, username, password_hash, role, created_at
        FROM users WHERE username=$1`
	return r.fetchUser(ctx, query, username)
}

func (r *PostgresStore) fetchUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
