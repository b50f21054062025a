package core

import "time"

// Message is the domain model for a chat message.
type Message struct {
	ID        int64
	Room      string
	User      string
	Text      string
	Image     string
	CreatedAt time.Time
}

// RoomInfo describes a room in directory events.
type RoomInfo struct {
	ID        string
	Title     string
	Capacity  int
	Owner     string
	Private   bool
	CreatedAt time.Time
}
