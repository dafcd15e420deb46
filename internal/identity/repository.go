package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/devclassik/harmoney-backend-sub000/internal/infra"
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	UpdatePIN(ctx context.Context, id string, hash []byte) error
	UpdatePreferences(ctx context.Context, id string, notificationsEnabled bool) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db infra.DBTX
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db infra.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, first_name, last_name, phone, notifications_enabled, pin_hash, created_at`

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return ErrInvalidProfile
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, email, first_name, last_name, phone, notifications_enabled, pin_hash, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		userID, user.Email, user.FirstName, user.LastName, user.Phone, user.NotificationsEnabled, user.PINHash, user.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrExists
	}
	return err
}

// FindByID fetches a live user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`, userID))
}

// FindByEmail fetches a live user by e-mail address.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 AND deleted_at IS NULL`, email))
}

// UpdatePIN stores a new PIN hash.
func (r *PostgresRepository) UpdatePIN(ctx context.Context, id string, hash []byte) error {
	return r.update(ctx, `UPDATE users SET pin_hash = $2 WHERE id = $1 AND deleted_at IS NULL`, id, hash)
}

// UpdatePreferences stores the credit notification preference.
func (r *PostgresRepository) UpdatePreferences(ctx context.Context, id string, notificationsEnabled bool) error {
	return r.update(ctx, `UPDATE users SET notifications_enabled = $2 WHERE id = $1 AND deleted_at IS NULL`, id, notificationsEnabled)
}

func (r *PostgresRepository) update(ctx context.Context, query, id string, value any) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, query, userID, value)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id   uuid.UUID
		user User
	)
	if err := row.Scan(&id, &user.Email, &user.FirstName, &user.LastName, &user.Phone,
		&user.NotificationsEnabled, &user.PINHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.ID = id.String()
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}
