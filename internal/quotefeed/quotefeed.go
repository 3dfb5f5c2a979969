// Package quotefeed adapts the broker's push websocket into a poll-friendly
// quote table. Ticks arrive on the feed's delivery goroutine and land in a
// mutex-guarded map; consumers only ever poll Latest. The two paths share
// nothing but the table, so polling logic stays deterministic and testable
// while delivery stays network-bound.
package quotefeed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"bn-breakoutv1/internal/model"
	"bn-breakoutv1/pkg/aliceblue"
)

var (
	// ErrConnection means the feed handshake did not complete in time, or an
	// operation was attempted in a state that cannot serve it.
	ErrConnection = errors.New("quotefeed: connection error")

	// ErrNoQuote means no tick for the symbol arrived within the wait.
	// Expected during normal operation; callers retry later, never abort on it.
	ErrNoQuote = errors.New("quotefeed: no quote available")
)

// State is the adapter connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Stream is the underlying push transport (satisfied by *aliceblue.Feed).
type Stream interface {
	Dial() error
	Subscribe(exchange, token string) error
	Close()
}

// Resolver maps trading symbols to instruments (satisfied by *contracts.Table).
type Resolver interface {
	Resolve(tradingSymbol string) (model.Instrument, error)
}

// Options configure the adapter.
type Options struct {
	ConnectTimeout time.Duration // handshake wait bound, default 10s
	PollStep       time.Duration // Latest() re-check interval, default 100ms
}

// Adapter is the quote feed adapter.
type Adapter struct {
	stream   Stream
	resolver Resolver
	opts     Options

	mu     sync.Mutex
	state  State
	openCh chan struct{} // one-shot handshake signal for the current Connect
	subs   map[string]model.Instrument

	quotesMu      sync.RWMutex
	quotes        map[string]model.Quote
	tokenToSymbol map[string]string // "EXCHANGE|token" -> subscribed symbol

	// OnQuote, if set, observes every stored quote (metrics, publishing).
	// Called on the delivery goroutine; must not block.
	OnQuote func(model.Quote)
}

// New creates an adapter over a stream and resolver.
func New(stream Stream, resolver Resolver, opts Options) *Adapter {
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.PollStep == 0 {
		opts.PollStep = 100 * time.Millisecond
	}
	return &Adapter{
		stream:        stream,
		resolver:      resolver,
		opts:          opts,
		state:         StateDisconnected,
		subs:          make(map[string]model.Instrument),
		quotes:        make(map[string]model.Quote),
		tokenToSymbol: make(map[string]string),
	}
}

// NewFromFeed wires an adapter onto a broker feed's callbacks.
func NewFromFeed(feed *aliceblue.Feed, resolver Resolver, opts Options) *Adapter {
	a := New(feed, resolver, opts)
	feed.OnOpen = a.HandleOpen
	feed.OnTick = a.HandleTick
	feed.OnError = a.HandleStreamError
	feed.OnClose = a.HandleStreamClose
	return a
}

// State returns the current connection state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Connect dials the stream and blocks until the server acknowledges the
// session, the timeout expires, or ctx is cancelled. The acknowledgement is
// a one-shot signal from the read loop; no caller can observe CONNECTED
// before the handshake actually completed.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.state == StateConnected || a.state == StateConnecting {
		a.mu.Unlock()
		return fmt.Errorf("%w: connect in state %s", ErrConnection, a.state)
	}
	if a.state == StateError {
		a.mu.Unlock()
		return fmt.Errorf("%w: feed in ERROR state, disconnect first", ErrConnection)
	}
	a.state = StateConnecting
	a.openCh = make(chan struct{})
	openCh := a.openCh
	a.mu.Unlock()

	if err := a.stream.Dial(); err != nil {
		a.setState(StateDisconnected)
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	select {
	case <-openCh:
		a.setState(StateConnected)
		log.Printf("[quotefeed] connected")
		return nil
	case <-time.After(a.opts.ConnectTimeout):
		a.stream.Close()
		a.setState(StateDisconnected)
		return fmt.Errorf("%w: handshake timeout after %s", ErrConnection, a.opts.ConnectTimeout)
	case <-ctx.Done():
		a.stream.Close()
		a.setState(StateDisconnected)
		return ctx.Err()
	}
}

// Subscribe registers interest in a symbol's quotes. Idempotent: subscribing
// an already-subscribed symbol is a no-op. Fails explicitly when not
// connected; resolution failures propagate unchanged.
func (a *Adapter) Subscribe(symbol string) error {
	symbol = strings.ToUpper(symbol)

	a.mu.Lock()
	if a.state != StateConnected {
		state := a.state
		a.mu.Unlock()
		return fmt.Errorf("%w: subscribe in state %s", ErrConnection, state)
	}
	if _, ok := a.subs[symbol]; ok {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	inst, err := a.resolver.Resolve(symbol)
	if err != nil {
		return err
	}

	// Register the token route before the wire subscribe so the snapshot
	// tick that rides the acknowledgement is not dropped.
	a.quotesMu.Lock()
	a.tokenToSymbol[inst.Exchange+"|"+inst.Token] = symbol
	a.quotesMu.Unlock()

	if err := a.stream.Subscribe(inst.Exchange, inst.Token); err != nil {
		return fmt.Errorf("%w: subscribe %s: %v", ErrConnection, symbol, err)
	}

	a.mu.Lock()
	a.subs[symbol] = inst
	a.mu.Unlock()

	log.Printf("[quotefeed] subscribed %s (%s:%s)", symbol, inst.Exchange, inst.Token)
	return nil
}

// Latest returns the most recent quote for symbol, polling the table until
// one appears or the timeout elapses. Never blocks past timeout.
func (a *Adapter) Latest(ctx context.Context, symbol string, timeout time.Duration) (model.Quote, error) {
	symbol = strings.ToUpper(symbol)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	step := time.NewTicker(a.opts.PollStep)
	defer step.Stop()

	for {
		if q, ok := a.LastQuote(symbol); ok {
			return q, nil
		}
		select {
		case <-ctx.Done():
			return model.Quote{}, ctx.Err()
		case <-deadline.C:
			return model.Quote{}, fmt.Errorf("%w: %s within %s", ErrNoQuote, symbol, timeout)
		case <-step.C:
		}
	}
}

// LastQuote is the non-blocking table read. Used by Latest and by the
// monitor's time-exit fallback.
func (a *Adapter) LastQuote(symbol string) (model.Quote, bool) {
	a.quotesMu.RLock()
	defer a.quotesMu.RUnlock()
	q, ok := a.quotes[strings.ToUpper(symbol)]
	return q, ok
}

// Disconnect releases the stream. Idempotent, never errors.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	if a.state == StateDisconnected {
		a.mu.Unlock()
		return
	}
	a.state = StateDisconnected
	a.mu.Unlock()
	a.stream.Close()
	log.Printf("[quotefeed] disconnected")
}

// ---- delivery-path handlers (feed goroutine) ----

// HandleOpen signals the handshake barrier.
func (a *Adapter) HandleOpen() {
	a.mu.Lock()
	ch := a.openCh
	a.openCh = nil
	a.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// HandleTick normalizes a wire tick into the quote table.
// Last-write-wins per symbol: out-of-order delivery for the same symbol is
// resolved as "most recently processed wins", which can briefly overwrite
// with a stale price. Acceptable for this strategy's tolerance.
func (a *Adapter) HandleTick(msg aliceblue.TickMessage) {
	a.quotesMu.Lock()
	symbol, ok := a.tokenToSymbol[msg.Exchange+"|"+msg.Token]
	if !ok {
		a.quotesMu.Unlock()
		return
	}
	price, err := model.ParsePaise(msg.LTP)
	if err != nil {
		a.quotesMu.Unlock()
		log.Printf("[quotefeed] bad ltp %q for %s: %v", msg.LTP, symbol, err)
		return
	}
	q := model.Quote{Symbol: symbol, Price: price, ReceivedAt: msg.Received}
	a.quotes[symbol] = q
	a.quotesMu.Unlock()

	if a.OnQuote != nil {
		a.OnQuote(q)
	}
}

// HandleStreamError marks the feed failed. From ERROR the only way forward
// is Disconnect then a fresh Connect; there is no automatic reconnect.
func (a *Adapter) HandleStreamError(err error) {
	log.Printf("[quotefeed] feed error: %v", err)
	a.mu.Lock()
	if a.state == StateConnected || a.state == StateConnecting {
		a.state = StateError
	}
	a.mu.Unlock()
}

// HandleStreamClose logs feed teardown observed from the read loop.
func (a *Adapter) HandleStreamClose() {
	log.Printf("[quotefeed] feed closed")
}

func (a *Adapter) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}
