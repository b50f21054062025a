package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventNewRoom notifies directory subscribers about a created room.
	EventNewRoom EventKind = iota
	// EventRemoveRoom notifies directory subscribers about a deleted room.
	EventRemoveRoom
	// EventUserJoined is the system message sent to occupants when someone joins.
	EventUserJoined
	// EventUserLeft is the system message sent to occupants when someone leaves.
	EventUserLeft
	// EventChat delivers a text or image chat message to a room.
	EventChat
)

// SystemUser is the author of presence messages.
const SystemUser = "system"

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Room     string
	User     string
	Text     string    // system message for presence events
	Message  *Message  // EventChat
	RoomInfo *RoomInfo // EventNewRoom
}

