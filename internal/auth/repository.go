package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUserByID(ctx context.Context, id string) (User, error)
	CreateUserWithPassword(ctx context.Context, email, passwordHash string) (User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// DBOps defines the subset of pgxpool.Pool methods we use.
// This allows us to inject a mock for testing.
type DBOps interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	db DBOps
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT id, email, password, created_at, updated_at
      FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *PostgresRepository) FindUserByID(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT id, email, password, created_at, updated_at
      FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *PostgresRepository) CreateUserWithPassword(ctx context.Context, email, passwordHash string) (User, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO users (email, password)
        VALUES ($1, $2)
        RETURNING id, email, password, created_at, updated_at`,
		email, passwordHash,
	)
	return scanUser(row)
}

// DeleteUser removes the user; every gig, track, set and set item they own
// goes with them through the FK cascade.
func (r *PostgresRepository) DeleteUser(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	return err
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}
