package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/gifchat-server/internal/config"
	"github.com/vovakirdan/gifchat-server/internal/core"
	"github.com/vovakirdan/gifchat-server/internal/proto"
	"github.com/vovakirdan/gifchat-server/internal/service/rooms"
	"github.com/vovakirdan/gifchat-server/internal/session"
	"github.com/vovakirdan/gifchat-server/internal/store/sqlite"
	"github.com/vovakirdan/gifchat-server/internal/upload"
)

type testEnv struct {
	ts      *httptest.Server
	hub     *core.Hub
	rooms   *rooms.Service
	uploads *upload.Storage
}

// startTestServer wires a full server against an in-memory store.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	disabledLogger := zerolog.Nop()

	cfg := config.Default()
	cfg.UploadDir = filepath.Join(t.TempDir(), "uploads")
	cfg.MaxUploadBytes = 1024
	cfg.RemoveRoomDelay = 20 * time.Millisecond
	cfg.ReaperTimeout = time.Second

	uploads, err := upload.NewStorage(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		t.Fatalf("failed to create upload storage: %v", err)
	}

	hub := core.NewHub(&disabledLogger)
	svc := rooms.New(st, hub, cfg.RemoveRoomDelay, &disabledLogger)
	hub.SetReaper(svc, cfg.ReaperTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	sessions := session.NewManager("test-secret", time.Hour)
	server := NewServer(hub, svc, sessions, uploads, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)

	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-hub.Done()
		svc.Close()
		_ = st.Close()
	})

	return &testEnv{ts: ts, hub: hub, rooms: svc, uploads: uploads}
}

// newBrowser returns a client that keeps cookies and does not follow redirects.
func newBrowser(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// createRoom posts the creation form and returns the redirect target.
func createRoom(t *testing.T, env *testEnv, client *http.Client, form string) string {
	t.Helper()

	resp, err := client.Post(env.ts.URL+"/room", "application/x-www-form-urlencoded", strings.NewReader(form))
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected redirect, got %d", resp.StatusCode)
	}
	return resp.Header.Get("Location")
}

// dialChat opens a room channel socket as if opened from the room page.
func dialChat(ctx context.Context, t *testing.T, env *testEnv, client *http.Client, roomID string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	header.Set("Referer", env.ts.URL+"/room/"+roomID+"?password=")
	conn, _, err := websocket.Dial(ctx, wsURL(env, "/ws/chat"), &websocket.DialOptions{
		HTTPClient: client,
		HTTPHeader: header,
	})
	if err != nil {
		t.Fatalf("dial chat: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func dialDirectory(ctx context.Context, t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, wsURL(env, "/ws/room"), nil)
	if err != nil {
		t.Fatalf("dial directory: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func wsURL(env *testEnv, path string) string {
	return strings.Replace(env.ts.URL, "http", "ws", 1) + path
}

// wireEvent is an outbound envelope with its payload left undecoded.
type wireEvent struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readEvent reads frames until one with the wanted event name arrives and
// decodes its payload into data.
func readEvent(ctx context.Context, t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()

	for {
		var out wireEvent
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if out.Event != event {
			continue
		}
		if data != nil {
			if err := json.Unmarshal(out.Data, data); err != nil {
				t.Fatalf("decode %s payload: %v", event, err)
			}
		}
		return
	}
}

// waitOccupancy polls the hub until the room holds want connections.
func waitOccupancy(t *testing.T, hub *core.Hub, roomID string, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Occupancy(context.Background(), roomID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s never reached occupancy %d", roomID, want)
}

func roomIDFromLocation(t *testing.T, location string) string {
	t.Helper()

	rest, ok := strings.CutPrefix(location, "/room/")
	if !ok {
		t.Fatalf("unexpected location %q", location)
	}
	id, _, _ := strings.Cut(rest, "?")
	return id
}
