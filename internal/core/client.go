package core

// Client is a live connection as seen by the core layer.
// Room is empty for directory subscribers.
type Client struct {
	ID     string
	User   string
	Room   string
	Events chan *Event
}

// NewClient constructs a client with an initialized event buffer.
func NewClient(id, user, room string) *Client {
	if user == "" {
		user = id
	}
	return &Client{
		ID:     id,
		User:   user,
		Room:   room,
		Events: make(chan *Event, 16),
	}
}

// Directory reports whether the client listens to room lifecycle events.
func (c *Client) Directory() bool {
	return c.Room == ""
}
