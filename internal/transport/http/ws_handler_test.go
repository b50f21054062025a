package http

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/gifchat-server/internal/core"
	"github.com/vovakirdan/gifchat-server/internal/proto"
	"github.com/vovakirdan/gifchat-server/internal/session"
)

func TestJoinAndExitAnnouncements(t *testing.T) {
	env := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := newBrowser(t)
	bob := newBrowser(t)
	bobColor := visit(t, env, bob).User
	id := roomIDFromLocation(t, createRoom(t, env, alice, "title=Party&max=5"))

	connA := dialChat(ctx, t, env, alice, id)
	waitOccupancy(t, env.hub, id, 1)

	connB := dialChat(ctx, t, env, bob, id)
	waitOccupancy(t, env.hub, id, 2)

	var joined proto.System
	readEvent(ctx, t, connA, proto.EventJoin, &joined)
	if joined.User != core.SystemUser || joined.Chat != bobColor+" joined." {
		t.Fatalf("unexpected join payload %+v", joined)
	}

	connB.Close(websocket.StatusNormalClosure, "bye")
	waitOccupancy(t, env.hub, id, 1)

	var left proto.System
	readEvent(ctx, t, connA, proto.EventExit, &left)
	if left.User != core.SystemUser || left.Chat != bobColor+" left." {
		t.Fatalf("unexpected exit payload %+v", left)
	}

	// the room is still occupied, so it must survive
	if dir := visit(t, env, alice); len(dir.Rooms) != 1 {
		t.Fatalf("room deleted while occupied: %+v", dir.Rooms)
	}
}

func TestLastLeaveDeletesRoom(t *testing.T) {
	env := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := newBrowser(t)
	id := roomIDFromLocation(t, createRoom(t, env, client, "title=Short&max=5"))

	dirConn := dialDirectory(ctx, t, env)

	conn := dialChat(ctx, t, env, client, id)
	waitOccupancy(t, env.hub, id, 1)
	conn.Close(websocket.StatusNormalClosure, "bye")

	var removed proto.RemoveRoom
	readEvent(ctx, t, dirConn, proto.EventRemoveRoom, &removed)
	if removed.ID != id {
		t.Fatalf("unexpected removeRoom payload %+v", removed)
	}

	if dir := visit(t, env, client); len(dir.Rooms) != 0 {
		t.Fatalf("empty room still listed: %+v", dir.Rooms)
	}
}

func TestChatSocketRoomFromQuery(t *testing.T) {
	env := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := newBrowser(t)
	id := roomIDFromLocation(t, createRoom(t, env, client, "title=Query&max=5"))

	conn, _, err := websocket.Dial(ctx, wsURL(env, "/ws/chat?room="+id), &websocket.DialOptions{HTTPClient: client})
	if err != nil {
		t.Fatalf("dial chat: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	waitOccupancy(t, env.hub, id, 1)
}

func TestChatSocketRequiresRoom(t *testing.T) {
	env := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL(env, "/ws/chat"), nil)
	if err == nil {
		t.Fatalf("expected dial to fail without a room")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 response, got %+v", resp)
	}
}

func TestSocketUpgradeIssuesSession(t *testing.T) {
	env := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, wsURL(env, "/ws/room"), nil)
	if err != nil {
		t.Fatalf("dial directory: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}
	found := false
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected session cookie on upgrade, got %v", resp.Header.Values("Set-Cookie"))
	}
}

func TestSocketUpgradeReachesHub(t *testing.T) {
	env := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := newBrowser(t)
	color := visit(t, env, client).User
	id := roomIDFromLocation(t, createRoom(t, env, client, "title=Hub&max=5"))

	dirConn := dialDirectory(ctx, t, env)
	conn := dialChat(ctx, t, env, client, id)
	waitOccupancy(t, env.hub, id, 1)

	// the socket is subscribed, so a chat post must reach it
	resp, err := client.Post(env.ts.URL+"/room/"+id+"/chat", "application/x-www-form-urlencoded", strings.NewReader("chat=hello"))
	if err != nil {
		t.Fatalf("post chat: %v", err)
	}
	resp.Body.Close()

	var chat proto.Chat
	readEvent(ctx, t, conn, proto.EventChat, &chat)
	if chat.User != color || chat.Chat != "hello" {
		t.Fatalf("unexpected chat payload %+v", chat)
	}

	conn.Close(websocket.StatusNormalClosure, "bye")
	var removed proto.RemoveRoom
	readEvent(ctx, t, dirConn, proto.EventRemoveRoom, &removed)
	if removed.ID != id {
		t.Fatalf("unexpected removeRoom payload %+v", removed)
	}
}

func TestUnknownSocketPath(t *testing.T) {
	env := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL(env, "/ws/nope"), nil)
	if err == nil {
		t.Fatalf("expected dial to fail on unknown path")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %+v", resp)
	}
}

func TestInboundFloodClosesConnection(t *testing.T) {
	env := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := newBrowser(t)
	id := roomIDFromLocation(t, createRoom(t, env, client, "title=Noisy&max=5"))
	conn := dialChat(ctx, t, env, client, id)
	waitOccupancy(t, env.hub, id, 1)

	for i := 0; i < 200; i++ {
		if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"noise"}`)); err != nil {
			break
		}
	}

	var closeErr error
	for closeErr == nil {
		_, _, closeErr = conn.Read(ctx)
	}
	if status := websocket.CloseStatus(closeErr); status != websocket.StatusPolicyViolation {
		t.Fatalf("expected policy violation close, got %v", closeErr)
	}

	waitOccupancy(t, env.hub, id, 0)
}

func TestRoomIDFromReferer(t *testing.T) {
	tests := []struct {
		referer string
		want    string
	}{
		{referer: "", want: ""},
		{referer: "http://localhost:8005/room/abc", want: "abc"},
		{referer: "http://localhost:8005/room/abc?password=secret", want: "abc"},
		{referer: "http://localhost:8005/room/abc/", want: "abc"},
		{referer: "/room/abc?password=", want: "abc"},
		{referer: "http://localhost:8005/", want: ""},
		{referer: "http://localhost:8005/room", want: ""},
	}

	for _, tt := range tests {
		if got := roomIDFromReferer(tt.referer); got != tt.want {
			t.Errorf("roomIDFromReferer(%q) = %q, want %q", tt.referer, got, tt.want)
		}
	}
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	limiter := newRateLimiter(2)
	limiter.now = func() time.Time { return now }

	if !limiter.allow() || !limiter.allow() {
		t.Fatalf("first two frames must pass")
	}
	if limiter.allow() {
		t.Fatalf("third frame in the same window must be rejected")
	}

	now = now.Add(time.Minute)
	if !limiter.allow() {
		t.Fatalf("limit must reset after a minute")
	}

	if !newRateLimiter(0).allow() {
		t.Fatalf("zero limit disables limiting")
	}
}

func TestOutboundEventNames(t *testing.T) {
	tests := []struct {
		kind core.EventKind
		want string
	}{
		{core.EventNewRoom, proto.EventNewRoom},
		{core.EventRemoveRoom, proto.EventRemoveRoom},
		{core.EventUserJoined, proto.EventJoin},
		{core.EventUserLeft, proto.EventExit},
		{core.EventChat, proto.EventChat},
	}

	for _, tt := range tests {
		out := outboundFromEvent(&core.Event{Kind: tt.kind})
		if out.Type != proto.OutboundTypeEvent || out.Event != tt.want {
			t.Errorf("kind %d mapped to %+v, want event %q", tt.kind, out, tt.want)
		}
	}
}

func TestOutboundFromUnknownEvent(t *testing.T) {
	out := outboundFromEvent(&core.Event{Kind: core.EventKind(99)})
	if out.Type != proto.OutboundTypeError || out.Error == nil {
		t.Fatalf("expected error envelope, got %+v", out)
	}
}
