package race

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Client is a websocket participant in one race room. Inbound events
// are applied to an internal View and mirrored onto Events for callers
// that want to react to individual messages.
type Client struct {
	conn *websocket.Conn
	name string

	writeMu sync.Mutex // gorilla allows one concurrent writer

	viewMu sync.Mutex
	view   *View

	events chan any
	done   chan struct{}

	lastSent int
}

// Dial joins the room at baseURL (an http:// or https:// server
// address) as name. The display name is url-escaped into the channel
// path; opening the channel is the join.
func Dial(ctx context.Context, baseURL, room, name string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/typing/" + room + "/ws/" + url.PathEscape(name)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:   conn,
		name:   name,
		view:   NewView(name),
		events: make(chan any, 64),
		done:   make(chan struct{}),
	}

	go c.readLoop()

	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := Decode(data)
		if err != nil {
			continue
		}

		c.viewMu.Lock()
		c.view.Apply(msg)
		if _, ok := msg.(*GameStartMessage); ok {
			c.lastSent = 0
		}
		c.viewMu.Unlock()

		select {
		case c.events <- msg:
		default:
			// slow consumer; the view stays authoritative
		}
	}
}

// Events yields decoded server messages. The channel closes when the
// connection does.
func (c *Client) Events() <-chan any {
	return c.events
}

// Done is closed once the server side of the channel has gone away.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// View returns a copy of the current room projection.
func (c *Client) View() View {
	c.viewMu.Lock()
	defer c.viewMu.Unlock()

	v := *c.view
	v.Players = append([]PlayerView(nil), c.view.Players...)
	v.Rankings = append([]RankEntry(nil), c.view.Rankings...)
	return v
}

func (c *Client) send(msg ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.conn.WriteJSON(msg)
}

// Start asks the coordinator to begin the race.
func (c *Client) Start() error {
	return c.send(ClientMessage{Type: TypeStartGame})
}

// PlayAgain asks the coordinator to return a finished room to the lobby.
func (c *Client) PlayAgain() error {
	return c.send(ClientMessage{Type: TypePlayAgain})
}

// SendProgress reports a raw progress percentage.
func (c *Client) SendProgress(progress int) error {
	return c.send(ClientMessage{Type: TypeProgressUpdate, Progress: progress})
}

// Type recomputes progress from the full typed input and reports it
// when it advances. Input is ignored while the race is not running or
// after the local player has finished. Returns the computed progress.
func (c *Client) Type(typed string) (int, error) {
	c.viewMu.Lock()
	locked := c.view.InputLocked()
	target := c.view.Paragraph
	last := c.lastSent
	c.viewMu.Unlock()

	if locked || target == "" {
		return last, nil
	}

	progress := Progress(typed, target)
	if progress <= last {
		return progress, nil
	}

	if err := c.SendProgress(progress); err != nil {
		return progress, err
	}

	c.viewMu.Lock()
	if progress > c.lastSent {
		c.lastSent = progress
	}
	c.viewMu.Unlock()

	return progress, nil
}

// Close tears down the channel, which the coordinator treats as leave.
func (c *Client) Close() error {
	return c.conn.Close()
}
