package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	tomb "gopkg.in/tomb.v2"

	"mako/domain/book"
	"mako/service"
)

// Command is the inbound order-entry message.
type Command struct {
	Type    string `json:"type"` // "place" or "cancel"
	OrderID uint64 `json:"order_id"`
	Side    string `json:"side,omitempty"` // "bid" or "ask"
	Price   int64  `json:"price,omitempty"`
	Qty     int64  `json:"qty,omitempty"`
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type Consumer struct {
	reader *kafka.Reader
	engine *service.Engine
}

func NewConsumer(cfg ConsumerConfig, engine *service.Engine) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		}),
		engine: engine,
	}
}

// Run consumes commands until the tomb dies. Malformed or rejected
// commands are logged and skipped; only transport failures stop the
// consumer.
func (c *Consumer) Run(t *tomb.Tomb) error {
	ctx := t.Context(context.Background())

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("kafka read: %w", err)
		}
		c.dispatch(msg.Value)
	}
}

func (c *Consumer) dispatch(raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		log.Warn().Err(err).Msg("drop malformed command")
		return
	}

	switch cmd.Type {
	case "place":
		side, ok := parseSide(cmd.Side)
		if !ok {
			log.Warn().Str("side", cmd.Side).Uint64("order_id", cmd.OrderID).Msg("drop command with bad side")
			return
		}
		if _, err := c.engine.PlaceOrder(cmd.OrderID, side, cmd.Qty, cmd.Price); err != nil {
			log.Warn().Err(err).Uint64("order_id", cmd.OrderID).Msg("place rejected")
		}

	case "cancel":
		if _, err := c.engine.CancelOrder(cmd.OrderID); err != nil {
			log.Warn().Err(err).Uint64("order_id", cmd.OrderID).Msg("cancel rejected")
		}

	default:
		log.Warn().Str("type", cmd.Type).Msg("drop command with unknown type")
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func parseSide(s string) (book.Side, bool) {
	switch s {
	case "bid":
		return book.Bid, true
	case "ask":
		return book.Ask, true
	default:
		return 0, false
	}
}
