package store

import (
	"context"

	"github.com/courierchat/courier/internal/models"
)

// MessageStore defines the interface for durable storage of messages
// and known users. Both PostgresStore and SQLiteStore implement this
// interface.
type MessageStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Message operations
	SaveMessage(ctx context.Context, msg *models.Message) error
	// Conversation returns all messages exchanged between the two users,
	// in either direction, ordered by creation time ascending with the
	// message ID breaking ties.
	Conversation(ctx context.Context, a, b string) ([]models.Message, error)

	// User operations
	UpsertUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context) ([]models.User, error)
}
