// Package alerts watches the stock movement stream and raises low-stock
// alerts for the back-office dashboard.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/petaldesk/florist-backoffice/internal/events"
	kafkax "github.com/petaldesk/florist-backoffice/internal/kafka"
	"github.com/petaldesk/florist-backoffice/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	Log         *zap.Logger
	Threshold   int
	ServiceName string
}

// HandleMovement is wired as the consumer handler for stock.movement.applied.
func (s *Service) HandleMovement(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != events.EventStockMovement {
		return nil
	}

	p, err := kafkax.UnwrapPayload[events.StockMovementPayload](env.Payload)
	if err != nil {
		return err
	}

	// variation quantities are not comparable to the product threshold and
	// must never latch or clear the product's alert
	if p.VariationID != nil {
		return nil
	}

	// dedup by event id so redeliveries never double-alert
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	latch := fmt.Sprintf(redisx.KeyLowStockAlert, p.ProductID)
	if p.After > s.Threshold {
		// stock recovered, clear the latch so the next dip alerts again
		_ = s.Redis.Del(ctx, latch).Err()
		return nil
	}

	if latched, _ := redisx.Exists(ctx, s.Redis, latch); latched {
		return nil
	}
	_ = s.Redis.Set(ctx, latch, strconv.Itoa(p.After), redisx.TTLLowStockAlert).Err()

	s.Log.Warn("low stock",
		zap.String("product_id", p.ProductID),
		zap.Int("quantity", p.After),
		zap.Int("threshold", s.Threshold),
		zap.String("reason", p.Reason))
	return nil
}
