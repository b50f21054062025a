package proto

const (
	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNewRoom    = "newRoom"
	EventRemoveRoom = "removeRoom"
	EventJoin       = "join"
	EventExit       = "exit"
	EventChat       = "chat"
)

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Room describes a room in directory events and HTTP responses.
type Room struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Max       int    `json:"max"`
	Owner     string `json:"owner"`
	Private   bool   `json:"private"`
	Occupancy int    `json:"occupancy"`
	CreatedAt string `json:"createdAt"`
}

// RemoveRoom is the payload of a removeRoom event.
type RemoveRoom struct {
	ID string `json:"id"`
}

// System is a presence message (join/exit) authored by the server.
type System struct {
	User string `json:"user"`
	Chat string `json:"chat"`
}

// Chat is a persisted text or image message.
type Chat struct {
	ID        int64  `json:"id"`
	Room      string `json:"room"`
	User      string `json:"user"`
	Chat      string `json:"chat,omitempty"`
	Gif       string `json:"gif,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
