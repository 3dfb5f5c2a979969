package aliceblue

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Feed streams live quotes from the Alice Blue websocket. It delivers raw
// tick messages to OnTick and leaves all business logic to the caller; per
// the push/poll split, the consumer keeps its own quote table.
//
// The feed does not reconnect on its own. A read failure surfaces through
// OnError and OnClose; the owner decides whether to dial again.

const (
	feedURI           = "wss://ws1.aliceblueonline.com/NorenWS/"
	heartbeatInterval = 10 * time.Second
	writeDeadline     = 5 * time.Second
)

// TickMessage is one normalized tick from the wire.
type TickMessage struct {
	Exchange string
	Token    string
	LTP      string // decimal rupee string as delivered, e.g. "120.50"
	Received time.Time
}

// Feed wire frames. The protocol is JSON text frames:
// connect {"t":"c"}, ack {"t":"ck"}, subscribe {"t":"t","k":"NFO|token"},
// ticks {"t":"tk"|"tf","e":"NFO","tk":"...","lp":"..."}.
type wireFrame struct {
	Type     string `json:"t"`
	Status   string `json:"s,omitempty"`
	Exchange string `json:"e,omitempty"`
	Token    string `json:"tk,omitempty"`
	LTP      string `json:"lp,omitempty"`
	Key      string `json:"k,omitempty"`
}

// Feed is the websocket quote stream client.
type Feed struct {
	userID    string
	sessionID string
	uri       string

	dialer *websocket.Dialer

	mu         sync.Mutex
	conn       *websocket.Conn
	subscribed map[string]struct{} // "EXCHANGE|token"
	closed     bool
	done       chan struct{}

	// Callbacks. Set before Dial; invoked from the feed's goroutines.
	OnTick  func(TickMessage)
	OnOpen  func()
	OnClose func()
	OnError func(err error)
}

// NewFeed creates a feed client for an authenticated session.
func NewFeed(userID, sessionID string) *Feed {
	return &Feed{
		userID:     userID,
		sessionID:  sessionID,
		uri:        feedURI,
		dialer:     websocket.DefaultDialer,
		subscribed: make(map[string]struct{}),
		done:       make(chan struct{}),
	}
}

// SetURI overrides the stream endpoint (tests point this at a local server).
func (f *Feed) SetURI(uri string) { f.uri = uri }

// Dial connects and sends the session-auth frame. The server acknowledges
// with a "ck" frame, which fires OnOpen from the read loop; callers that
// need a connected barrier wait on OnOpen, not on Dial returning.
func (f *Feed) Dial() error {
	conn, resp, err := f.dialer.Dial(f.uri, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("aliceblue: feed dial: %w (status %s)", err, resp.Status)
		}
		return fmt.Errorf("aliceblue: feed dial: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	f.closed = false
	f.done = make(chan struct{}) // fresh lifetime per dial
	f.mu.Unlock()

	// susertoken is a double SHA-256 of the session ID.
	inner := sha256.Sum256([]byte(f.sessionID))
	outer := sha256.Sum256([]byte(hex.EncodeToString(inner[:])))

	auth := map[string]string{
		"t":          "c",
		"susertoken": hex.EncodeToString(outer[:]),
		"actid":      f.userID + "_API",
		"uid":        f.userID + "_API",
		"source":     "API",
	}
	if err := f.writeJSON(auth); err != nil {
		conn.Close()
		return fmt.Errorf("aliceblue: feed auth: %w", err)
	}

	go f.readLoop(conn)
	go f.heartbeatLoop(conn, f.done)
	return nil
}

// Subscribe registers interest in a token's tick stream.
// Re-subscribing an already-subscribed token is a no-op.
func (f *Feed) Subscribe(exchange, token string) error {
	key := exchange + "|" + token

	f.mu.Lock()
	if _, ok := f.subscribed[key]; ok {
		f.mu.Unlock()
		return nil
	}
	if f.conn == nil {
		f.mu.Unlock()
		return errors.New("aliceblue: feed not connected")
	}
	f.subscribed[key] = struct{}{}
	f.mu.Unlock()

	if err := f.writeJSON(wireFrame{Type: "t", Key: key}); err != nil {
		f.mu.Lock()
		delete(f.subscribed, key)
		f.mu.Unlock()
		return err
	}
	return nil
}

// Unsubscribe drops a token's tick stream.
func (f *Feed) Unsubscribe(exchange, token string) error {
	key := exchange + "|" + token

	f.mu.Lock()
	if _, ok := f.subscribed[key]; !ok {
		f.mu.Unlock()
		return nil
	}
	delete(f.subscribed, key)
	if f.conn == nil {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	return f.writeJSON(wireFrame{Type: "u", Key: key})
}

// Close tears down the connection. Safe to call more than once.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	conn := f.conn
	f.conn = nil
	close(f.done)
	f.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeDeadline))
		conn.Close()
	}
}

func (f *Feed) writeJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return errors.New("aliceblue: feed not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return f.conn.WriteJSON(v)
}

func (f *Feed) readLoop(conn *websocket.Conn) {
	defer func() {
		if f.OnClose != nil {
			f.OnClose()
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			f.mu.Lock()
			wasClosed := f.closed
			f.mu.Unlock()
			if !wasClosed && f.OnError != nil {
				f.OnError(fmt.Errorf("aliceblue: feed read: %w", err))
			}
			return
		}

		var frame wireFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			log.Printf("[aliceblue] feed: unparseable frame: %v", err)
			continue
		}

		switch frame.Type {
		case "ck":
			if !strings.EqualFold(frame.Status, "ok") {
				if f.OnError != nil {
					f.OnError(fmt.Errorf("aliceblue: feed auth rejected: %s", frame.Status))
				}
				return
			}
			if f.OnOpen != nil {
				f.OnOpen()
			}
		case "tk", "tf":
			// tk is the subscription acknowledgement snapshot, tf the
			// incremental update; both may carry an LTP.
			if frame.LTP == "" {
				continue
			}
			if f.OnTick != nil {
				f.OnTick(TickMessage{
					Exchange: frame.Exchange,
					Token:    frame.Token,
					LTP:      frame.LTP,
					Received: time.Now(),
				})
			}
		default:
			// control frames we do not act on
		}
	}
}

func (f *Feed) heartbeatLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, []byte("ping"),
				time.Now().Add(writeDeadline))
			if err != nil {
				return
			}
		}
	}
}
