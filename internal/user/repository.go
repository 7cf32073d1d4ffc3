// Package user manages user accounts and their persistence.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User represents a registered account. Users own their images; deleting a
// user cascades to every image record they own.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// ErrUsernameTaken is returned when the username is already registered.
var ErrUsernameTaken = errors.New("username already registered")

// ErrEmailTaken is returned when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// Repository is the persistence interface for user accounts.
type Repository interface {
	Create(ctx context.Context, username, email, passwordHash string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	List(ctx context.Context, skip, limit int) ([]*User, error)
}

// PostgresRepository handles all user database operations.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgresRepository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user and returns the created record.
func (r *PostgresRepository) Create(ctx context.Context, username, email, passwordHash string) (*User, error) {
	u := &User{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, username, email, password_hash, is_admin, created_at`,
		username, email, passwordHash,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if strings.Contains(constraint, "email") {
				return nil, ErrEmailTaken
			}
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetByID fetches a user by their id.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.get(ctx,
		`SELECT id, username, email, password_hash, is_admin, created_at
		 FROM users WHERE id = $1`, id)
}

// GetByIdentifier fetches a user whose username or email matches identifier.
func (r *PostgresRepository) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	return r.get(ctx,
		`SELECT id, username, email, password_hash, is_admin, created_at
		 FROM users WHERE username = $1 OR email = $1`, identifier)
}

// List returns users newest-first with skip/limit pagination.
func (r *PostgresRepository) List(ctx context.Context, skip, limit int) ([]*User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, username, email, password_hash, is_admin, created_at
		 FROM users
		 ORDER BY created_at DESC
		 OFFSET $1 LIMIT $2`,
		skip, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u := &User{}
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg interface{}) (*User, error) {
	u := &User{}
	err := r.db.QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// uniqueViolation reports whether err is a PostgreSQL unique_violation (code
// 23505) and returns the violated constraint name.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}
