package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/gifchat-server/internal/core"
	"github.com/vovakirdan/gifchat-server/internal/proto"
	"github.com/vovakirdan/gifchat-server/internal/session"
	"github.com/vovakirdan/gifchat-server/internal/utils"
)

var errRateLimited = errors.New("inbound rate limit exceeded")

// WSHandler upgrades HTTP connections and bridges them to core.Client.
// It is mounted outside gin so websocket.Accept gets the raw ResponseWriter.
type WSHandler struct {
	hub        *core.Hub
	sessions   *session.Manager
	maxInbound int
	log        *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, sessions *session.Manager, maxInboundPerMinute int, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, sessions: sessions, maxInbound: maxInboundPerMinute, log: logger}
}

// ServeHTTP serves /ws/room (directory channel) and /ws/chat (room channel).
func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var roomID string
	switch r.URL.Path {
	case "/ws/room":
	case "/ws/chat":
		roomID = roomIDFromReferer(r.Header.Get("Referer"))
		if roomID == "" {
			roomID = r.URL.Query().Get("room")
		}
		if roomID == "" {
			writeJSONError(w, stdhttp.StatusBadRequest, "room is required")
			return
		}
	default:
		writeJSONError(w, stdhttp.StatusNotFound, "not found")
		return
	}

	sess, err := resolveSession(w, r, h.sessions, h.log)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to issue session")
		writeJSONError(w, stdhttp.StatusInternalServerError, "internal server error")
		return
	}

	h.serve(w, r, sess, roomID)
}

func (h *WSHandler) serve(w stdhttp.ResponseWriter, r *stdhttp.Request, sess *session.Session, roomID string) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(utils.NewID(), sess.Color, roomID)
	h.hub.Subscribe(client)
	defer h.hub.Unsubscribe(client)

	h.log.Debug().Str("client_id", client.ID).Str("room_id", roomID).Msg("ws connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	switch {
	case errors.Is(err, errRateLimited):
		status = websocket.StatusPolicyViolation
		reason = "rate limited"
	case err != nil && !errors.Is(err, context.Canceled):
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
	h.log.Debug().Str("client_id", client.ID).Str("room_id", roomID).Int("status", int(status)).Msg("ws disconnected")
}

func writeJSONError(w stdhttp.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

// readLoop drains client frames. Their content is ignored; they only keep
// disconnect detection working and count towards the flood limit.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.maxInbound)
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return err
		}
		if !limiter.allow() {
			h.log.Warn().Str("client_id", client.ID).Msg("ws inbound rate limit exceeded")
			_ = wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many messages"},
			})
			return errRateLimited
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// roomIDFromReferer takes the last path segment of the page that opened the
// socket, e.g. "/room/abc?password=x" yields "abc".
func roomIDFromReferer(referer string) string {
	if referer == "" {
		return ""
	}

	path := referer
	if u, err := url.Parse(referer); err == nil {
		path = u.Path
	} else if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	path = strings.TrimRight(path, "/")
	id := path[strings.LastIndexByte(path, '/')+1:]
	if id == "room" {
		return ""
	}
	return id
}
