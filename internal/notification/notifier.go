// Package notification provides alert delivery to external channels
// (Telegram, webhooks) for strategy events.
package notification

import (
	"context"
	"fmt"
	"log"

	"bn-breakoutv1/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Fanout delivers each alert to every backend. Delivery failures are
// logged, not returned; a dead Telegram token must not abort the runner.
type Fanout struct {
	backends []Notifier
}

// NewFanout creates a fan-out notifier over the given backends.
func NewFanout(backends ...Notifier) *Fanout {
	return &Fanout{backends: backends}
}

func (f *Fanout) Send(ctx context.Context, alert Alert) error {
	for _, b := range f.backends {
		if err := b.Send(ctx, alert); err != nil {
			log.Printf("[notify] backend %T failed: %v", b, err)
		}
	}
	return nil
}

// TradeClosed builds the alert sent when a position exits.
func TradeClosed(o model.TradeOutcome) Alert {
	level := AlertInfo
	if o.ExitReason == model.ExitStoplossHit {
		level = AlertWarning
	}
	return Alert{
		Level: level,
		Title: fmt.Sprintf("Trade closed: %s", o.ExitReason),
		Message: fmt.Sprintf("%s %s entry %s exit %s pnl %s",
			o.Position.Symbol, o.Position.Direction,
			model.FormatPaise(o.Position.EntryPrice), model.FormatPaise(o.ExitPrice),
			model.FormatPaise(o.RealizedPnL)),
	}
}

// RunAborted builds the alert sent when the runner stops without a trade.
func RunAborted(stage string, err error) Alert {
	return Alert{
		Level:   AlertCritical,
		Title:   fmt.Sprintf("Run aborted at %s", stage),
		Message: err.Error(),
	}
}
