package quotefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bn-breakoutv1/internal/contracts"
	"bn-breakoutv1/internal/model"
	"bn-breakoutv1/pkg/aliceblue"
)

// fakeStream is a Stream that acknowledges the handshake through the
// adapter's HandleOpen, like the real feed's read loop does.
type fakeStream struct {
	mu         sync.Mutex
	subscribes []string
	dialErr    error
	silent     bool // if true, never acknowledge the handshake
	adapter    *Adapter
	closed     int
}

func (s *fakeStream) Dial() error {
	if s.dialErr != nil {
		return s.dialErr
	}
	if !s.silent {
		go s.adapter.HandleOpen()
	}
	return nil
}

func (s *fakeStream) Subscribe(exchange, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribes = append(s.subscribes, exchange+"|"+token)
	return nil
}

func (s *fakeStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *fakeStream) subscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribes)
}

type fakeResolver struct {
	known map[string]model.Instrument
}

func (r *fakeResolver) Resolve(symbol string) (model.Instrument, error) {
	inst, ok := r.known[symbol]
	if !ok {
		return model.Instrument{}, fmt.Errorf("%w: %s", contracts.ErrInstrumentNotFound, symbol)
	}
	return inst, nil
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeStream) {
	t.Helper()
	stream := &fakeStream{}
	resolver := &fakeResolver{known: map[string]model.Instrument{
		"BANKNIFTY28AUG2557300CE": {Token: "54321", Exchange: "NFO", TradingSymbol: "BANKNIFTY28AUG2557300CE"},
	}}
	a := New(stream, resolver, Options{
		ConnectTimeout: 200 * time.Millisecond,
		PollStep:       5 * time.Millisecond,
	})
	stream.adapter = a
	return a, stream
}

func mustConnect(t *testing.T, a *Adapter) {
	t.Helper()
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if a.State() != StateConnected {
		t.Fatalf("state = %s, want CONNECTED", a.State())
	}
}

func TestConnect_HandshakeBarrier(t *testing.T) {
	a, _ := newTestAdapter(t)
	mustConnect(t, a)
}

func TestConnect_TimeoutWithoutAck(t *testing.T) {
	a, stream := newTestAdapter(t)
	stream.silent = true

	err := a.Connect(context.Background())
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if a.State() != StateDisconnected {
		t.Errorf("state = %s, want DISCONNECTED after failed connect", a.State())
	}
	if stream.closed == 0 {
		t.Error("stream not closed after handshake timeout")
	}
}

func TestSubscribe_BeforeConnectFailsExplicitly(t *testing.T) {
	a, _ := newTestAdapter(t)
	err := a.Subscribe("BANKNIFTY28AUG2557300CE")
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestSubscribe_Idempotent(t *testing.T) {
	a, stream := newTestAdapter(t)
	mustConnect(t, a)

	if err := a.Subscribe("BANKNIFTY28AUG2557300CE"); err != nil {
		t.Fatalf("first subscribe: %v", err)
	}
	if err := a.Subscribe("BANKNIFTY28AUG2557300CE"); err != nil {
		t.Fatalf("second subscribe: %v", err)
	}
	if n := stream.subscribeCount(); n != 1 {
		t.Errorf("wire subscribes = %d, want 1", n)
	}
}

func TestSubscribe_UnknownSymbol(t *testing.T) {
	a, _ := newTestAdapter(t)
	mustConnect(t, a)

	err := a.Subscribe("BANKNIFTY28AUG2599999CE")
	if !errors.Is(err, contracts.ErrInstrumentNotFound) {
		t.Fatalf("expected ErrInstrumentNotFound, got %v", err)
	}
}

func TestLatest_TimesOutThenDelivers(t *testing.T) {
	a, _ := newTestAdapter(t)
	mustConnect(t, a)
	if err := a.Subscribe("BANKNIFTY28AUG2557300CE"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	_, err := a.Latest(context.Background(), "BANKNIFTY28AUG2557300CE", 30*time.Millisecond)
	if !errors.Is(err, ErrNoQuote) {
		t.Fatalf("expected ErrNoQuote before any tick, got %v", err)
	}

	a.HandleTick(aliceblue.TickMessage{
		Exchange: "NFO", Token: "54321", LTP: "120.50", Received: time.Now(),
	})

	q, err := a.Latest(context.Background(), "BANKNIFTY28AUG2557300CE", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("latest after tick: %v", err)
	}
	if q.Price != 12050 {
		t.Errorf("price = %d paise, want 12050", q.Price)
	}
}

func TestHandleTick_LastWriteWins(t *testing.T) {
	a, _ := newTestAdapter(t)
	mustConnect(t, a)
	if err := a.Subscribe("BANKNIFTY28AUG2557300CE"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for _, ltp := range []string{"120.00", "128.00", "135.00"} {
		a.HandleTick(aliceblue.TickMessage{Exchange: "NFO", Token: "54321", LTP: ltp, Received: time.Now()})
	}
	q, ok := a.LastQuote("BANKNIFTY28AUG2557300CE")
	if !ok {
		t.Fatal("no quote stored")
	}
	if q.Price != 13500 {
		t.Errorf("price = %d, want 13500 (last write wins)", q.Price)
	}
}

func TestHandleTick_UnknownTokenIgnored(t *testing.T) {
	a, _ := newTestAdapter(t)
	mustConnect(t, a)

	a.HandleTick(aliceblue.TickMessage{Exchange: "NFO", Token: "999", LTP: "50.00", Received: time.Now()})
	if _, ok := a.LastQuote("BANKNIFTY28AUG2557300CE"); ok {
		t.Error("quote stored for unsubscribed token")
	}
}

func TestErrorState_RequiresDisconnectBeforeReconnect(t *testing.T) {
	a, _ := newTestAdapter(t)
	mustConnect(t, a)

	a.HandleStreamError(errors.New("wire broke"))
	if a.State() != StateError {
		t.Fatalf("state = %s, want ERROR", a.State())
	}

	if err := a.Connect(context.Background()); !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection while in ERROR, got %v", err)
	}

	a.Disconnect()
	a.Disconnect() // idempotent
	if a.State() != StateDisconnected {
		t.Fatalf("state = %s, want DISCONNECTED", a.State())
	}
	mustConnect(t, a)
}
