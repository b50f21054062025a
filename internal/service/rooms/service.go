package rooms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/gifchat-server/internal/core"
	"github.com/vovakirdan/gifchat-server/internal/store"
)

const (
	// DefaultCapacity is offered by the room creation form.
	DefaultCapacity = 10
	// MinCapacity is the smallest allowed room.
	MinCapacity = 2
)

// Broadcaster is the part of the hub the registry talks to.
type Broadcaster interface {
	PublishDirectory(ev *core.Event)
	PublishRoom(roomID string, ev *core.Event)
	Occupancy(ctx context.Context, roomID string) int
}

// CreateRoomInput holds the fields of a new room.
type CreateRoomInput struct {
	Title    string
	Capacity int
	Owner    string
	Password string
}

// RoomView is a room as listed in the directory.
type RoomView struct {
	*store.Room
	Occupancy int
}

// RoomDetail is a room together with its chat history.
type RoomDetail struct {
	Room      *store.Room
	Chats     []*store.Chat
	Occupancy int
}

// Service implements the room registry.
type Service struct {
	store       store.Store
	bus         Broadcaster
	removeDelay time.Duration
	log         *zerolog.Logger

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool

	now func() time.Time
}

// New creates a room registry. removeDelay is how long the directory waits
// before hearing about a deleted room.
func New(st store.Store, bus Broadcaster, removeDelay time.Duration, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "rooms").Logger()
	return &Service{
		store:       st,
		bus:         bus,
		removeDelay: removeDelay,
		log:         &l,
		timers:      make(map[*time.Timer]struct{}),
		now:         time.Now,
	}
}

// ListRooms returns every room with its live occupancy.
func (s *Service) ListRooms(ctx context.Context) ([]RoomView, error) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	views := make([]RoomView, 0, len(rooms))
	for _, r := range rooms {
		views = append(views, RoomView{Room: r, Occupancy: s.bus.Occupancy(ctx, r.ID)})
	}
	return views, nil
}

// CreateRoom validates and persists a room, then announces it to the directory.
func (s *Service) CreateRoom(ctx context.Context, in CreateRoomInput) (*store.Room, error) {
	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		return nil, &ValidationError{Field: "title", Reason: "is required"}
	case in.Capacity == 0:
		return nil, &ValidationError{Field: "max", Reason: "is required"}
	case in.Capacity < MinCapacity:
		return nil, &ValidationError{Field: "max", Reason: fmt.Sprintf("must be at least %d", MinCapacity)}
	}

	room := &store.Room{
		ID:        uuid.NewString(),
		Title:     title,
		Capacity:  in.Capacity,
		Owner:     in.Owner,
		CreatedAt: s.now(),
	}
	if in.Password != "" {
		hash, err := HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		room.PasswordHash = hash
	}

	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	s.log.Info().Str("room_id", room.ID).Str("title", room.Title).Int("max", room.Capacity).Msg("room created")
	s.bus.PublishDirectory(&core.Event{
		Kind:     core.EventNewRoom,
		Room:     room.ID,
		RoomInfo: roomInfo(room),
	})
	return room, nil
}

// GetRoom admits a visitor: the room must exist, the password must match and
// there must be a free seat right now.
func (s *Service) GetRoom(ctx context.Context, id, password string) (*RoomDetail, error) {
	room, err := s.findRoom(ctx, id)
	if err != nil {
		return nil, err
	}

	if room.Private() {
		if password == "" || ComparePassword(room.PasswordHash, password) != nil {
			return nil, ErrUnauthorized
		}
	}

	occupancy := s.bus.Occupancy(ctx, room.ID)
	if occupancy >= room.Capacity {
		return nil, ErrCapacityExceeded
	}

	chats, err := s.store.ListChats(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	return &RoomDetail{Room: room, Chats: chats, Occupancy: occupancy}, nil
}

// DeleteRoom removes the room and then its chats. The two deletes are not
// atomic; a failure between them leaves orphaned chats behind.
func (s *Service) DeleteRoom(ctx context.Context, id string) error {
	if err := s.store.DeleteRoom(ctx, id); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if err := s.store.DeleteChatsByRoom(ctx, id); err != nil {
		return fmt.Errorf("delete chats of room %s: %w", id, err)
	}

	s.log.Info().Str("room_id", id).Msg("room deleted")
	s.scheduleRemoval(id)
	return nil
}

// PostChat stores a text message and delivers it to the room.
func (s *Service) PostChat(ctx context.Context, roomID, user, text string) (*store.Chat, error) {
	return s.post(ctx, &store.Chat{RoomID: roomID, User: user, Text: text})
}

// PostImage stores an image message and delivers it to the room.
func (s *Service) PostImage(ctx context.Context, roomID, user, image string) (*store.Chat, error) {
	return s.post(ctx, &store.Chat{RoomID: roomID, User: user, Image: image})
}

// Close cancels removal broadcasts that have not fired yet.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for t := range s.timers {
		t.Stop()
	}
	s.timers = make(map[*time.Timer]struct{})
}

func (s *Service) post(ctx context.Context, chat *store.Chat) (*store.Chat, error) {
	if _, err := s.findRoom(ctx, chat.RoomID); err != nil {
		return nil, err
	}

	chat.CreatedAt = s.now()
	if err := s.store.SaveChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("save chat: %w", err)
	}

	s.bus.PublishRoom(chat.RoomID, &core.Event{
		Kind: core.EventChat,
		Room: chat.RoomID,
		User: chat.User,
		Message: &core.Message{
			ID:        chat.ID,
			Room:      chat.RoomID,
			User:      chat.User,
			Text:      chat.Text,
			Image:     chat.Image,
			CreatedAt: chat.CreatedAt,
		},
	})
	return chat, nil
}

func (s *Service) findRoom(ctx context.Context, id string) (*store.Room, error) {
	room, err := s.store.GetRoomByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

// scheduleRemoval arms a one-shot timer that only remembers the room id.
func (s *Service) scheduleRemoval(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(s.removeDelay, func() {
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()

		s.bus.PublishDirectory(&core.Event{Kind: core.EventRemoveRoom, Room: id})
	})
	s.timers[t] = struct{}{}
}

func roomInfo(r *store.Room) *core.RoomInfo {
	return &core.RoomInfo{
		ID:        r.ID,
		Title:     r.Title,
		Capacity:  r.Capacity,
		Owner:     r.Owner,
		Private:   r.Private(),
		CreatedAt: r.CreatedAt,
	}
}
