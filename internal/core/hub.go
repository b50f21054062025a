package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RoomReaper deletes rooms whose last occupant left.
type RoomReaper interface {
	DeleteRoom(ctx context.Context, roomID string) error
}

type commandKind int

const (
	commandSubscribe commandKind = iota
	commandUnsubscribe
	commandPublishDirectory
	commandPublishRoom
	commandOccupancy
)

type command struct {
	kind   commandKind
	client *Client
	room   string
	event  *Event
	reply  chan int
}

// Hub owns every membership set. All mutations and fan-out run on the single
// Run goroutine, so joins and leaves on a room are applied in order.
type Hub struct {
	commands chan command
	done     chan struct{}

	directory map[*Client]struct{}
	rooms     map[string]*Room

	reaper        RoomReaper
	reaperTimeout time.Duration
	reapers       sync.WaitGroup

	log *zerolog.Logger
}

// NewHub creates a new hub. Call Run to start processing.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "hub").Logger()
	return &Hub{
		commands:      make(chan command, 64),
		done:          make(chan struct{}),
		directory:     make(map[*Client]struct{}),
		rooms:         make(map[string]*Room),
		reaperTimeout: 5 * time.Second,
		log:           &l,
	}
}

// SetReaper installs the callback for rooms that become empty.
// It must be called before Run.
func (h *Hub) SetReaper(r RoomReaper, timeout time.Duration) {
	h.reaper = r
	if timeout > 0 {
		h.reaperTimeout = timeout
	}
}

// Run processes commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.log.Debug().Msg("hub running")
	defer func() {
		h.closeAll()
		close(h.done)
		h.reapers.Wait()
		h.log.Debug().Msg("hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.commands:
			h.handle(cmd)
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Subscribe attaches a client to the directory channel or to its room.
func (h *Hub) Subscribe(c *Client) {
	h.send(command{kind: commandSubscribe, client: c})
}

// Unsubscribe detaches a client and closes its event channel.
func (h *Hub) Unsubscribe(c *Client) {
	h.send(command{kind: commandUnsubscribe, client: c})
}

// PublishDirectory fans an event out to every directory subscriber.
func (h *Hub) PublishDirectory(ev *Event) {
	h.send(command{kind: commandPublishDirectory, event: ev})
}

// PublishRoom fans an event out to every occupant of roomID.
func (h *Hub) PublishRoom(roomID string, ev *Event) {
	h.send(command{kind: commandPublishRoom, room: roomID, event: ev})
}

// Occupancy returns the number of live connections attached to roomID.
func (h *Hub) Occupancy(ctx context.Context, roomID string) int {
	reply := make(chan int, 1)
	select {
	case h.commands <- command{kind: commandOccupancy, room: roomID, reply: reply}:
	case <-h.done:
		return 0
	case <-ctx.Done():
		return 0
	}

	select {
	case n := <-reply:
		return n
	case <-h.done:
		return 0
	case <-ctx.Done():
		return 0
	}
}

func (h *Hub) send(cmd command) {
	select {
	case h.commands <- cmd:
	case <-h.done:
	}
}

func (h *Hub) handle(cmd command) {
	switch cmd.kind {
	case commandSubscribe:
		h.join(cmd.client)
	case commandUnsubscribe:
		h.leave(cmd.client)
	case commandPublishDirectory:
		for c := range h.directory {
			deliver(c, cmd.event)
		}
	case commandPublishRoom:
		if room, ok := h.rooms[cmd.room]; ok {
			room.Broadcast(cmd.event, nil)
		}
	case commandOccupancy:
		n := 0
		if room, ok := h.rooms[cmd.room]; ok {
			n = room.Len()
		}
		cmd.reply <- n
	}
}

func (h *Hub) join(c *Client) {
	if c.Directory() {
		h.directory[c] = struct{}{}
		return
	}

	room, ok := h.rooms[c.Room]
	if !ok {
		room = NewRoom(c.Room)
		h.rooms[c.Room] = room
	}
	if !room.AddClient(c) {
		return
	}

	h.log.Debug().Str("room", c.Room).Str("user", c.User).Int("occupancy", room.Len()).Msg("client joined")
	room.Broadcast(&Event{
		Kind: EventUserJoined,
		Room: c.Room,
		User: SystemUser,
		Text: fmt.Sprintf("%s joined.", c.User),
	}, c)
}

func (h *Hub) leave(c *Client) {
	if c.Directory() {
		if _, ok := h.directory[c]; ok {
			delete(h.directory, c)
			close(c.Events)
		}
		return
	}

	room, ok := h.rooms[c.Room]
	if !ok || !room.RemoveClient(c) {
		return
	}
	close(c.Events)

	if room.Empty() {
		delete(h.rooms, c.Room)
		h.log.Debug().Str("room", c.Room).Msg("room empty")
		h.reap(c.Room)
		return
	}

	room.Broadcast(&Event{
		Kind: EventUserLeft,
		Room: c.Room,
		User: SystemUser,
		Text: fmt.Sprintf("%s left.", c.User),
	}, nil)
}

// reap asks the reaper to delete the room without blocking the loop.
func (h *Hub) reap(roomID string) {
	if h.reaper == nil {
		return
	}

	h.reapers.Add(1)
	go func() {
		defer h.reapers.Done()

		ctx, cancel := context.WithTimeout(context.Background(), h.reaperTimeout)
		defer cancel()

		if err := h.reaper.DeleteRoom(ctx, roomID); err != nil {
			h.log.Error().Err(err).Str("room", roomID).Msg("failed to delete empty room")
			return
		}
		h.log.Info().Str("room", roomID).Msg("empty room deleted")
	}()
}

func (h *Hub) closeAll() {
	for c := range h.directory {
		close(c.Events)
	}
	for _, room := range h.rooms {
		for c := range room.clients {
			close(c.Events)
		}
	}
	h.directory = make(map[*Client]struct{})
	h.rooms = make(map[string]*Room)
}
