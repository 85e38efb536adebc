package scope

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 10

	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 2

	// DefaultConnMaxLifetime is the default maximum lifetime of a connection
	DefaultConnMaxLifetime = 5 * time.Minute

	// DefaultPingTimeout is the default timeout for pinging the database
	DefaultPingTimeout = 5 * time.Second
)

// NewPostgresConnection opens a pooled connection to the credential database.
func NewPostgresConnection(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(pingCtx); pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return db, nil
}

// PostgresStore reads grants from the auth_data table:
//
//	CREATE TABLE auth_data (
//		person_id TEXT PRIMARY KEY,
//		scope     TEXT NOT NULL DEFAULT '',
//		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a store on an open connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GrantedScopes implements Store.
func (s *PostgresStore) GrantedScopes(ctx context.Context, callerID string) ([]string, error) {
	var raw string
	query := `SELECT scope FROM auth_data WHERE person_id = $1`

	err := s.db.GetContext(ctx, &raw, query, callerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownCaller
		}
		return nil, fmt.Errorf("failed to get scopes: %w", err)
	}

	return ParseScopes(raw), nil
}

// Grant upserts the scopes granted by callerID.
func (s *PostgresStore) Grant(ctx context.Context, callerID string, scopes ...string) error {
	query := `
		INSERT INTO auth_data (person_id, scope, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (person_id) DO UPDATE SET
			scope = EXCLUDED.scope,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, callerID, JoinScopes(scopes), time.Now())
	if err != nil {
		return fmt.Errorf("failed to grant scopes: %w", err)
	}

	return nil
}

// Revoke deletes the grant of callerID.
func (s *PostgresStore) Revoke(ctx context.Context, callerID string) error {
	query := `DELETE FROM auth_data WHERE person_id = $1`

	if _, err := s.db.ExecContext(ctx, query, callerID); err != nil {
		return fmt.Errorf("failed to revoke scopes: %w", err)
	}

	return nil
}

// Close closes the underlying connection.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
