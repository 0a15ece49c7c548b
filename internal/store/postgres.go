package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courierchat/courier/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		recipient TEXT NOT NULL,
		ciphertext TEXT NOT NULL,
		iv TEXT NOT NULL,
		file TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender);
	CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient);
	CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveMessage inserts a message record.
func (s *PostgresStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender, recipient, ciphertext, iv, file, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.Sender, msg.Recipient, msg.Ciphertext, msg.IV, msg.File, msg.CreatedAt)
	return err
}

// Conversation retrieves all messages between two users, oldest first.
func (s *PostgresStore) Conversation(ctx context.Context, a, b string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender, recipient, ciphertext, iv, file, created_at
		FROM messages
		WHERE sender IN ($1, $2) AND recipient IN ($1, $2)
		ORDER BY created_at ASC, id ASC
	`, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.Sender,
			&msg.Recipient,
			&msg.Ciphertext,
			&msg.IV,
			&msg.File,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// UpsertUser records a user identity, updating the username if it changed.
func (s *PostgresStore) UpsertUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username
	`, user.ID, user.Username)
	return err
}

// ListUsers returns all known users.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username FROM users ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}
