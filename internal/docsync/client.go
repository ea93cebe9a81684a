// Package docsync talks to the collaborative document editor backend
// over websockets. One connection is held per document room, opened
// lazily on first use and redialed after failures.
package docsync

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"ideaforge/internal/stream"
)

const replaceChunkSize = 4096

type request struct {
	Type    string                `json:"type"`
	Content string                `json:"content,omitempty"`
	Edits   []stream.DocumentEdit `json:"edits,omitempty"`
	Done    bool                  `json:"done,omitempty"`
}

type response struct {
	Type    string              `json:"type"`
	Content string              `json:"content,omitempty"`
	Results []stream.EditResult `json:"results,omitempty"`
	Error   string              `json:"error,omitempty"`
}

type roomConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Client implements the document backend used for replacement and
// structural edits during generation runs.
type Client struct {
	baseURL string

	mu    sync.Mutex
	rooms map[string]*roomConn
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		rooms:   make(map[string]*roomConn),
	}
}

func (c *Client) roomURL(room string) string {
	return c.baseURL + "/rooms/" + url.PathEscape(room)
}

// Connect ensures a live connection for the room. Safe to call
// repeatedly; an existing connection is reused.
func (c *Client) Connect(ctx context.Context, room string) error {
	_, err := c.room(ctx, room)
	return err
}

func (c *Client) room(ctx context.Context, room string) (*roomConn, error) {
	if strings.TrimSpace(room) == "" {
		return nil, fmt.Errorf("document room is required")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("document backend url is not configured")
	}

	c.mu.Lock()
	rc, ok := c.rooms[room]
	if !ok {
		rc = &roomConn{}
		c.rooms[room] = rc
	}
	c.mu.Unlock()

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.conn != nil {
		return rc, nil
	}
	conn, _, err := websocket.Dial(ctx, c.roomURL(room), nil)
	if err != nil {
		return nil, fmt.Errorf("dial document room %s: %w", room, err)
	}
	rc.conn = conn
	return rc, nil
}

// roundTrip sends one request and reads one response while holding the
// room lock; a transport failure drops the connection for redial.
func (c *Client) roundTrip(ctx context.Context, room string, req request) (*response, error) {
	rc, err := c.room(ctx, room)
	if err != nil {
		return nil, err
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.conn == nil {
		return nil, fmt.Errorf("document room %s is not connected", room)
	}

	if err := wsjson.Write(ctx, rc.conn, req); err != nil {
		c.dropLocked(rc)
		return nil, fmt.Errorf("write to document room %s: %w", room, err)
	}
	var resp response
	if err := wsjson.Read(ctx, rc.conn, &resp); err != nil {
		c.dropLocked(rc)
		return nil, fmt.Errorf("read from document room %s: %w", room, err)
	}
	if resp.Type == "error" {
		return nil, fmt.Errorf("document backend: %s", resp.Error)
	}
	return &resp, nil
}

func (c *Client) dropLocked(rc *roomConn) {
	if rc.conn != nil {
		rc.conn.Close(websocket.StatusInternalError, "request failed")
		rc.conn = nil
	}
}

// GetContent fetches the current document markdown.
func (c *Client) GetContent(ctx context.Context, room string) (string, error) {
	resp, err := c.roundTrip(ctx, room, request{Type: "get_content"})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// StreamReplaceContent replaces the whole document, sending the new
// content in chunks so connected editors render progressively. The
// backend acknowledges after the final chunk.
func (c *Client) StreamReplaceContent(ctx context.Context, room, content string) error {
	rc, err := c.room(ctx, room)
	if err != nil {
		return err
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.conn == nil {
		return fmt.Errorf("document room %s is not connected", room)
	}

	for offset := 0; ; offset += replaceChunkSize {
		end := offset + replaceChunkSize
		if end > len(content) {
			end = len(content)
		}
		done := end == len(content)
		if err := wsjson.Write(ctx, rc.conn, request{
			Type:    "replace_chunk",
			Content: content[offset:end],
			Done:    done,
		}); err != nil {
			c.dropLocked(rc)
			return fmt.Errorf("write to document room %s: %w", room, err)
		}
		if done {
			break
		}
	}

	var resp response
	if err := wsjson.Read(ctx, rc.conn, &resp); err != nil {
		c.dropLocked(rc)
		return fmt.Errorf("read from document room %s: %w", room, err)
	}
	if resp.Type == "error" {
		return fmt.Errorf("document backend: %s", resp.Error)
	}
	return nil
}

// ApplyEdits applies structural edits and returns per-edit results in
// input order.
func (c *Client) ApplyEdits(ctx context.Context, room string, edits []stream.DocumentEdit) ([]stream.EditResult, error) {
	resp, err := c.roundTrip(ctx, room, request{Type: "apply_edits", Edits: edits})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// ClearCursor removes the streaming cursor marker left by a
// replacement, so editors stop showing the in-progress indicator.
func (c *Client) ClearCursor(ctx context.Context, room string) error {
	_, err := c.roundTrip(ctx, room, request{Type: "clear_cursor"})
	return err
}

// Close shuts down every room connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rc := range c.rooms {
		rc.mu.Lock()
		if rc.conn != nil {
			rc.conn.Close(websocket.StatusNormalClosure, "shutting down")
			rc.conn = nil
		}
		rc.mu.Unlock()
	}
	c.rooms = make(map[string]*roomConn)
}

var _ stream.DocumentClient = (*Client)(nil)
