package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Room represents a persisted chat room.
type Room struct {
	ID           string
	Title        string
	Capacity     int
	Owner        string // identity token of the creator
	PasswordHash string // empty for public rooms
	CreatedAt    time.Time
}

// Private reports whether joining the room requires a password.
func (r *Room) Private() bool {
	return r.PasswordHash != ""
}

// Chat represents a persisted chat message.
// A chat carries text, an image reference, both, or (rarely) neither.
type Chat struct {
	ID        int64
	RoomID    string
	User      string
	Text      string
	Image     string
	CreatedAt time.Time
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom inserts a room. ID and CreatedAt must be set by the caller.
	CreateRoom(ctx context.Context, room *Room) error

	// GetRoomByID retrieves a room by ID. Returns ErrNotFound if absent.
	GetRoomByID(ctx context.Context, id string) (*Room, error)

	// ListRooms lists all rooms, newest first.
	ListRooms(ctx context.Context) ([]*Room, error)

	// DeleteRoom removes a room. Deleting a missing room is not an error.
	DeleteRoom(ctx context.Context, id string) error
}

// ChatStore handles chat persistence.
type ChatStore interface {
	// SaveChat persists a chat and fills in its ID.
	SaveChat(ctx context.Context, chat *Chat) error

	// ListChats returns every chat of a room in ascending creation order.
	ListChats(ctx context.Context, roomID string) ([]*Chat, error)

	// DeleteChatsByRoom removes all chats that reference the room.
	DeleteChatsByRoom(ctx context.Context, roomID string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	RoomStore
	ChatStore

	// Close closes the underlying database connection.
	Close() error
}
