package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

func dial(t *testing.T, srv *Server) (*websocket.Conn, context.Context) {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	// Give server a moment to register the connection
	deadline := time.Now().Add(time.Second)
	for !srv.Connected() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	return conn, ctx
}

func TestServerAcceptsConnection(t *testing.T) {
	srv := New(0) // port 0 = pick any free port
	conn, ctx := dial(t, srv)

	data, _ := json.Marshal(IncomingMsg{Type: TypeTabCreated, Tab: json.RawMessage(`{"id":7}`)})
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case msg := <-srv.Messages():
		if msg.Type != TypeTabCreated {
			t.Errorf("got type %q, want %s", msg.Type, TypeTabCreated)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestServerSendsCommand(t *testing.T) {
	srv := New(0)
	conn, ctx := dial(t, srv)

	srv.Send(OutgoingMsg{ID: "cmd-1", Action: ActionUngroup, TabIDs: []int{42}})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got OutgoingMsg
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != "cmd-1" || got.Action != ActionUngroup || len(got.TabIDs) != 1 {
		t.Errorf("got %+v, want cmd-1/ungroup", got)
	}
}

func TestServerRequestRoundTrip(t *testing.T) {
	srv := New(0)
	conn, ctx := dial(t, srv)

	// Fake extension: answer every command with its id.
	go func() {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var cmd OutgoingMsg
			json.Unmarshal(data, &cmd)
			ok := true
			reply, _ := json.Marshal(IncomingMsg{Type: TypeResponse, ID: cmd.ID, OK: &ok, GroupID: 99})
			conn.Write(ctx, websocket.MessageText, reply)
		}
	}()

	resp, err := srv.Request(ctx, OutgoingMsg{Action: ActionGroup, TabIDs: []int{1}})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.GroupID != 99 {
		t.Errorf("GroupID = %d, want 99", resp.GroupID)
	}

	select {
	case msg := <-srv.Messages():
		t.Errorf("response leaked to Messages: %+v", msg)
	default:
	}
}

func TestServerRequestTimesOut(t *testing.T) {
	srv := New(0)
	dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := srv.Request(ctx, OutgoingMsg{Action: ActionGetTab, TabID: 1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestServerRequestWithoutExtension(t *testing.T) {
	_, err := New(0).Request(context.Background(), OutgoingMsg{Action: ActionGetTab})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}
