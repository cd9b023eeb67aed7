package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrAccountExists is returned when the handle is already taken.
	ErrAccountExists = errors.New("account exists")
	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")
)

// Repository persists accounts.
type Repository interface {
	Create(ctx context.Context, account Account) error
	FindByHandle(ctx context.Context, handle string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	UpdateTokenVersion(ctx context.Context, id string, version int) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

const accountsSchema = `CREATE TABLE IF NOT EXISTS accounts (
    id UUID PRIMARY KEY,
    handle TEXT NOT NULL UNIQUE,
    secret_hash BYTEA NOT NULL,
    token_version INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL,
    last_login TIMESTAMPTZ NULL
)`

// Migrate creates the accounts table when it does not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, accountsSchema)
	return err
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new account.
func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	id, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO accounts (id, handle, secret_hash, token_version, created_at)
        VALUES ($1, $2, $3, $4, $5)`, id, account.Handle, account.SecretHash, account.TokenVersion, account.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAccountExists
	}
	return err
}

// FindByHandle fetches an account by its login handle.
func (r *PostgresRepository) FindByHandle(ctx context.Context, handle string) (Account, error) {
	return r.findOne(ctx, `SELECT id, handle, secret_hash, token_version, created_at, last_login FROM accounts WHERE handle = $1`, handle)
}

// FindByID fetches an account by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrAccountNotFound
	}
	return r.findOne(ctx, `SELECT id, handle, secret_hash, token_version, created_at, last_login FROM accounts WHERE id = $1`, accountID)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (Account, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		lastLogin *time.Time
		account   Account
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(&id, &account.Handle, &account.SecretHash, &account.TokenVersion, &createdAt, &lastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, err
	}
	account.ID = id.String()
	account.CreatedAt = createdAt.UTC()
	account.LastLogin = lastLogin
	return account, nil
}

// UpdateTokenVersion stores a new token version, invalidating older tokens.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, id string, version int) error {
	return r.update(ctx, `UPDATE accounts SET token_version = $1 WHERE id = $2`, version, id)
}

// TouchLogin records the time of the latest successful login.
func (r *PostgresRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, `UPDATE accounts SET last_login = $1 WHERE id = $2`, at.UTC(), id)
}

func (r *PostgresRepository) update(ctx context.Context, query string, value any, id string) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound
	}
	cmd, err := r.db.Exec(ctx, query, value, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
