package recorder

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"bn-breakoutv1/internal/model"
)

const (
	latestLTPTTL      = 30 * time.Minute
	tradeStreamKey    = "trades:stream"
	tradeStreamMaxLen = 1000
)

// Publisher mirrors live quotes and trade outcomes to Redis. Optional:
// the run proceeds without it, and publish failures are reported, never
// allowed to disturb the monitor.
type Publisher struct {
	client *goredis.Client
}

// NewPublisher connects and pings the Redis server.
func NewPublisher(addr, password string) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("recorder: redis ping: %w", err)
	}
	log.Printf("[recorder] redis connected at %s", addr)
	return &Publisher{client: client}, nil
}

// PublishQuote stores the latest LTP under ltp:{symbol} with a TTL.
func (p *Publisher) PublishQuote(ctx context.Context, q model.Quote) {
	key := "ltp:" + q.Symbol
	if err := p.client.Set(ctx, key, q.Price, latestLTPTTL).Err(); err != nil {
		log.Printf("[recorder] redis set %s: %v", key, err)
	}
}

// PublishOutcome appends the trade outcome to the trades stream.
func (p *Publisher) PublishOutcome(ctx context.Context, strategy string, out model.TradeOutcome) error {
	err := p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: tradeStreamKey,
		MaxLen: tradeStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"strategy":     strategy,
			"symbol":       out.Position.Symbol,
			"strike":       out.Position.Strike,
			"direction":    string(out.Position.Direction),
			"entry_price":  out.Position.EntryPrice,
			"exit_price":   out.ExitPrice,
			"realized_pnl": out.RealizedPnL,
			"exit_reason":  string(out.ExitReason),
			"closed_at":    out.ClosedAt.UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("recorder: redis xadd: %w", err)
	}
	return nil
}

// Client exposes the underlying connection for health probes.
func (p *Publisher) Client() *goredis.Client {
	return p.client
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
