package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/gifchat-server/internal/proto"
)

type options struct {
	server   string
	room     string
	password string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Printf("ws_watch: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "ws_watch",
		Short: "Print directory or room events; in a room, stdin lines are sent as chats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:8005", "server base URL")
	cmd.Flags().StringVar(&opts.room, "room", "", "room id to join; empty watches the directory")
	cmd.Flags().StringVar(&opts.password, "password", "", "password of a private room")
	return cmd
}

func run(parent context.Context, opts options) error {
	baseCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	client := &http.Client{Jar: jar}

	wsBase := "ws" + strings.TrimPrefix(opts.server, "http")
	header := http.Header{}
	endpoint := wsBase + "/ws/room"

	if opts.room != "" {
		roomURL := fmt.Sprintf("%s/room/%s?password=%s", opts.server, opts.room, url.QueryEscape(opts.password))
		if err := admit(ctx, client, roomURL); err != nil {
			return err
		}
		header.Set("Referer", roomURL)
		endpoint = wsBase + "/ws/chat"
	}

	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPClient: client,
		HTTPHeader: header,
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if opts.room == "" {
		fmt.Printf("Watching room directory on %s. Ctrl+C to exit.\n", opts.server)
		readLoop(ctx, conn)
		return nil
	}

	fmt.Printf("Joined room %s. Type messages and press Enter to send. Ctrl+C to exit.\n", opts.room)
	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()
	writeLoop(ctx, client, opts)

	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

// admit loads the room page so the server checks the password and capacity.
func admit(ctx context.Context, client *http.Client, roomURL string) error {
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	defer func() { client.CheckRedirect = nil }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, roomURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("open room: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusFound {
		return errors.New("room refused entry: it does not exist, is full, or the password is wrong")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open room: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var outbound struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if outbound.Error != nil {
			fmt.Printf("error %s: %s\n", outbound.Error.Code, outbound.Error.Msg)
			continue
		}

		switch outbound.Event {
		case proto.EventNewRoom:
			var evt proto.Room
			if err := json.Unmarshal(outbound.Data, &evt); err != nil {
				log.Printf("unmarshal newRoom: %v", err)
				continue
			}
			fmt.Printf("+ room %s %q (max %d, private %t)\n", evt.ID, evt.Title, evt.Max, evt.Private)
		case proto.EventRemoveRoom:
			var evt proto.RemoveRoom
			if err := json.Unmarshal(outbound.Data, &evt); err != nil {
				log.Printf("unmarshal removeRoom: %v", err)
				continue
			}
			fmt.Printf("- room %s\n", evt.ID)
		case proto.EventJoin, proto.EventExit:
			var evt proto.System
			if err := json.Unmarshal(outbound.Data, &evt); err != nil {
				log.Printf("unmarshal %s: %v", outbound.Event, err)
				continue
			}
			fmt.Printf("* %s\n", evt.Chat)
		case proto.EventChat:
			var evt proto.Chat
			if err := json.Unmarshal(outbound.Data, &evt); err != nil {
				log.Printf("unmarshal chat: %v", err)
				continue
			}
			if evt.Gif != "" {
				fmt.Printf("%s: [gif /gif/%s]\n", evt.User, evt.Gif)
				continue
			}
			fmt.Printf("%s: %s\n", evt.User, evt.Chat)
		default:
			fmt.Printf("event=%s data=%s\n", outbound.Event, outbound.Data)
		}
	}
}

func writeLoop(ctx context.Context, client *http.Client, opts options) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	chatURL := fmt.Sprintf("%s/room/%s/chat", opts.server, opts.room)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			form := url.Values{"chat": {text}}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, chatURL, strings.NewReader(form.Encode()))
			if err != nil {
				log.Printf("build chat request: %v", err)
				return
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			resp, err := client.Do(req)
			if err != nil {
				log.Printf("send error: %v", err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				log.Printf("send error: status %d", resp.StatusCode)
			}
		}
	}
}
