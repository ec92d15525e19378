package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/lotas/tabgruppen/internal/applog"
)

// DefaultPort is where the extension expects the daemon.
const DefaultPort = 19191

// ErrNotConnected is returned by Request while no extension is connected.
var ErrNotConnected = errors.New("extension not connected")

// Incoming message types.
const (
	TypeResponse     = "response"
	TypeSnapshot     = "snapshot"
	TypeTabCreated   = "tabCreated"
	TypeTabUpdated   = "tabUpdated"
	TypeTabRemoved   = "tabRemoved"
	TypeTabActivated = "tabActivated"
	TypeGroupRemoved = "groupRemoved"

	// Requests from the extension popup.
	TypeUndo             = "undo"
	TypeUndoHistory      = "undoHistory"
	TypeClearUndoHistory = "clearUndoHistory"
	TypeGroupTabs        = "groupTabs"
	TypeGetConfig        = "getConfig"
	TypeSetConfig        = "setConfig"
)

// ChangeInfo lists the tab properties a tabUpdated event changed.
type ChangeInfo struct {
	Status string `json:"status,omitempty"`
	URL    string `json:"url,omitempty"`
	Title  string `json:"title,omitempty"`
}

// IncomingMsg is a message from the extension: a browser event, a popup
// request, or the response to one of our commands.
type IncomingMsg struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	Tab        json.RawMessage `json:"tab,omitempty"`
	Tabs       json.RawMessage `json:"tabs,omitempty"`
	Groups     json.RawMessage `json:"groups,omitempty"`
	TabID      int             `json:"tabId,omitempty"`
	GroupID    int             `json:"groupId,omitempty"`
	WindowID   int             `json:"windowId,omitempty"`
	ChangeInfo *ChangeInfo     `json:"changeInfo,omitempty"`
	ActionID   string          `json:"actionId,omitempty"`
	Settings   json.RawMessage `json:"settings,omitempty"`
	// Command response fields
	OK    *bool  `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
}

// OutgoingMsg is a command to the extension or the reply to a popup
// request.
type OutgoingMsg struct {
	ID        string  `json:"id"`
	Action    string  `json:"action"`
	TabID     int     `json:"tabId,omitempty"`
	TabIDs    []int   `json:"tabIds,omitempty"`
	GroupID   int     `json:"groupId,omitempty"`
	WindowID  int     `json:"windowId,omitempty"`
	Title     *string `json:"title,omitempty"`
	Color     string  `json:"color,omitempty"`
	Collapsed *bool   `json:"collapsed,omitempty"`
	Ungrouped bool    `json:"ungrouped,omitempty"`
	NoPinned  bool    `json:"noPinned,omitempty"`
	// Popup reply fields
	OK    *bool  `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Server manages the WebSocket connection to the extension.
type Server struct {
	port    int
	msgs    chan IncomingMsg
	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
	waiters map[string]chan IncomingMsg
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port:    port,
		msgs:    make(chan IncomingMsg, 64),
		waiters: make(map[string]chan IncomingMsg),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Messages returns the channel of incoming events and popup requests.
// Responses to Request calls are not delivered here.
func (s *Server) Messages() <-chan IncomingMsg {
	return s.msgs
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send sends a message to the connected extension. Without a connection the
// message is dropped.
func (s *Server) Send(msg OutgoingMsg) error {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	applog.Info("ws.send", "action", msg.Action, "id", msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Request sends a command and waits for the extension's response with the
// same id.
func (s *Server) Request(ctx context.Context, msg OutgoingMsg) (IncomingMsg, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	ch := make(chan IncomingMsg, 1)

	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return IncomingMsg{}, ErrNotConnected
	}
	s.waiters[msg.ID] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.waiters, msg.ID)
		s.mu.Unlock()
	}()

	if err := s.Send(msg); err != nil {
		return IncomingMsg{}, fmt.Errorf("send %s: %w", msg.Action, err)
	}
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return IncomingMsg{}, fmt.Errorf("%s: %w", msg.Action, ctx.Err())
	}
}

// deliver hands a response to its waiting Request. It reports false when
// nobody waits for it.
func (s *Server) deliver(msg IncomingMsg) bool {
	s.mu.Lock()
	ch, ok := s.waiters[msg.ID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- msg:
	default:
	}
	return true
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Printf("websocket accept: %v", err)
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(16 << 20) // snapshots of large sessions

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.connCtx = nil
			}
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			if msg.Type == TypeResponse {
				if !s.deliver(msg) {
					applog.Warn("ws.orphan_response", nil, "id", msg.ID)
				}
				continue
			}
			applog.Info("ws.recv", "type", msg.Type)
			select {
			case s.msgs <- msg:
			default:
				applog.Warn("ws.drop", nil, "type", msg.Type)
			}
		}
	})
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return srv.ListenAndServe()
}
