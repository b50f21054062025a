package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/gifchat-server/internal/proto"
	"github.com/vovakirdan/gifchat-server/internal/service/rooms"
	"github.com/vovakirdan/gifchat-server/internal/upload"
)

// multipart framing allowed on top of the image itself
const multipartOverhead = 1 << 20

// RoomHandlers provides HTTP handlers for the room registry.
type RoomHandlers struct {
	rooms   *rooms.Service
	uploads *upload.Storage
	log     *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(svc *rooms.Service, uploads *upload.Storage, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		rooms:   svc,
		uploads: uploads,
		log:     logger,
	}
}

// DirectoryResponse is the room directory.
type DirectoryResponse struct {
	Rooms []proto.Room `json:"rooms"`
	Error string       `json:"error"`
	User  string       `json:"user"`
}

// RoomFormResponse carries the defaults of the room creation form.
type RoomFormResponse struct {
	Capacity int `json:"capacity"`
}

// CreateRoomRequest represents the create room form or JSON body.
type CreateRoomRequest struct {
	Title    string `form:"title" json:"title"`
	Max      int    `form:"max" json:"max"`
	Capacity int    `form:"capacity" json:"capacity"`
	Password string `form:"password" json:"password"`
}

// RoomDetailResponse is a room together with its history.
type RoomDetailResponse struct {
	Room  proto.Room   `json:"room"`
	Chats []proto.Chat `json:"chats"`
	User  string       `json:"user"`
}

// ChatRequest represents a text message.
type ChatRequest struct {
	Chat string `form:"chat" json:"chat"`
}

// ListRooms renders the room directory.
// GET /
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	views, err := h.rooms.ListRooms(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, DirectoryResponse{
		Rooms: roomViewsToProto(views),
		Error: popFlash(c),
		User:  sessionFrom(c).Color,
	})
}

// CreateRoomForm returns the defaults of the creation form.
// GET /room
func (h *RoomHandlers) CreateRoomForm(c *gin.Context) {
	c.JSON(http.StatusOK, RoomFormResponse{Capacity: rooms.DefaultCapacity})
}

// CreateRoom creates a room and sends the creator into it.
// POST /room
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBind(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		_ = c.Error(&rooms.ValidationError{Field: "form", Reason: "is malformed"})
		return
	}

	capacity := req.Max
	if capacity == 0 {
		capacity = req.Capacity
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), rooms.CreateRoomInput{
		Title:    req.Title,
		Capacity: capacity,
		Owner:    sessionFrom(c).Color,
		Password: req.Password,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Redirect(http.StatusFound, fmt.Sprintf("/room/%s?password=%s", room.ID, url.QueryEscape(req.Password)))
}

// GetRoom admits the visitor into a room.
// GET /room/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	ctx := c.Request.Context()

	detail, err := h.rooms.GetRoom(ctx, c.Param("id"), c.Query("password"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, RoomDetailResponse{
		Room:  roomToProto(detail.Room, detail.Occupancy),
		Chats: chatsToProto(detail.Chats),
		User:  sessionFrom(c).Color,
	})
}

// DeleteRoom deletes a room and its history.
// DELETE /room/:id
func (h *RoomHandlers) DeleteRoom(c *gin.Context) {
	if err := h.rooms.DeleteRoom(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.String(http.StatusOK, "OK")
}

// PostChat stores a text message and broadcasts it to the room.
// POST /room/:id/chat
func (h *RoomHandlers) PostChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	_, err := h.rooms.PostChat(c.Request.Context(), c.Param("id"), sessionFrom(c).Color, req.Chat)
	if err != nil {
		h.respondPostError(c, err)
		return
	}
	c.String(http.StatusOK, "ok")
}

// PostGif stores an uploaded image and broadcasts it to the room.
// POST /room/:id/gif
func (h *RoomHandlers) PostGif(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploads.MaxBytes()+multipartOverhead)

	fh, err := c.FormFile("gif")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = c.Error(upload.ErrTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "gif file is required"})
		return
	}
	if fh.Size > h.uploads.MaxBytes() {
		_ = c.Error(upload.ErrTooLarge)
		return
	}

	src, err := fh.Open()
	if err != nil {
		_ = c.Error(fmt.Errorf("open upload: %w", err))
		return
	}
	defer src.Close()

	name, err := h.uploads.Save(fh.Filename, src)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if _, err := h.rooms.PostImage(c.Request.Context(), c.Param("id"), sessionFrom(c).Color, name); err != nil {
		if rmErr := h.uploads.Remove(name); rmErr != nil {
			h.log.Warn().Err(rmErr).Str("file", name).Msg("failed to remove orphaned upload")
		}
		h.respondPostError(c, err)
		return
	}
	c.String(http.StatusOK, "ok")
}

// respondPostError answers message posts. These are background requests, so
// a missing room is a plain 404 rather than a redirect.
func (h *RoomHandlers) respondPostError(c *gin.Context, err error) {
	if errors.Is(err, rooms.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	_ = c.Error(err)
}
