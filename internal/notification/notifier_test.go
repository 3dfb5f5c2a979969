package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bn-breakoutv1/internal/model"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Send(context.Background(), Alert{
		Level:   AlertWarning,
		Title:   "Trade closed: STOPLOSS_HIT",
		Message: "pnl -0.50",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["level"] != "WARNING" {
		t.Errorf("level = %q, want WARNING", got["level"])
	}
	if got["title"] != "Trade closed: STOPLOSS_HIT" {
		t.Errorf("unexpected title %q", got["title"])
	}
	if got["ts"] == "" {
		t.Error("payload missing timestamp")
	}
}

func TestWebhookNotifier_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), Alert{Level: AlertInfo, Title: "x"}); err == nil {
		t.Fatal("expected error on 502 response")
	}
}

type failingNotifier struct{}

func (failingNotifier) Send(ctx context.Context, alert Alert) error {
	return errors.New("backend down")
}

type recordingNotifier struct{ sent []Alert }

func (r *recordingNotifier) Send(ctx context.Context, alert Alert) error {
	r.sent = append(r.sent, alert)
	return nil
}

func TestFanout_SurvivesBackendFailure(t *testing.T) {
	rec := &recordingNotifier{}
	f := NewFanout(failingNotifier{}, rec)

	if err := f.Send(context.Background(), Alert{Level: AlertInfo, Title: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(rec.sent) != 1 || rec.sent[0].Title != "hello" {
		t.Errorf("later backend not reached: %+v", rec.sent)
	}
}

func TestTradeClosed_Alert(t *testing.T) {
	o := model.TradeOutcome{
		Position: model.Position{
			Symbol:     "BANKNIFTY28AUG2557300PE",
			Direction:  model.DirectionShort,
			EntryPrice: 25000,
		},
		ExitPrice:   25050,
		ExitReason:  model.ExitStoplossHit,
		RealizedPnL: -50,
	}
	a := TradeClosed(o)
	if a.Level != AlertWarning {
		t.Errorf("level = %s, want WARNING on stoploss", a.Level)
	}
	if !strings.Contains(a.Message, "pnl -0.50") {
		t.Errorf("sub-rupee loss lost its sign: %q", a.Message)
	}
}
