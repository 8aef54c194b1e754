// Package events publishes reorder alerts for the notification service.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/domain"
)

// ReorderAlert is the JSON payload of one alert message
type ReorderAlert struct {
	EventID                  string         `json:"event_id"`
	ItemID                   string         `json:"item_id"`
	ItemName                 string         `json:"item_name"`
	Urgency                  domain.Urgency `json:"urgency"`
	DaysUntilStockout        int            `json:"days_until_stockout"`
	LeadTimeDays             int            `json:"lead_time_days"`
	RecommendedOrderQuantity int            `json:"recommended_order_quantity"`
	StockoutDate             *time.Time     `json:"stockout_date,omitempty"`
	EmittedAt                time.Time      `json:"emitted_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes alerts to a Kafka topic, keyed by item id
type Publisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NoopPublisher drops alerts; used when events are disabled
type NoopPublisher struct{}

func (NoopPublisher) PublishReorderAlerts(ctx context.Context, recs []domain.ReorderRecommendation) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }

// ReorderPublisher is what the server wires into the reorder sweep
type ReorderPublisher interface {
	PublishReorderAlerts(ctx context.Context, recs []domain.ReorderRecommendation) error
	Close() error
}

// NewReorderPublisher returns a Kafka publisher, or a no-op one when events are disabled
func NewReorderPublisher(cfg config.EventsConfig) (ReorderPublisher, error) {
	if !cfg.Enabled {
		return NoopPublisher{}, nil
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: time.Second,
	}
	return newPublisher(writer, cfg.ReorderTopic), nil
}

func newPublisher(w messageWriter, topic string) *Publisher {
	return &Publisher{writer: w, topic: topic, now: time.Now}
}

func (p *Publisher) PublishReorderAlerts(ctx context.Context, recs []domain.ReorderRecommendation) error {
	if len(recs) == 0 {
		return nil
	}

	msgs, err := p.buildMessages(recs)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish reorder alerts: %w", err)
	}

	log.Info().Str("topic", p.topic).Int("alerts", len(msgs)).Msg("reorder alerts published")
	return nil
}

func (p *Publisher) buildMessages(recs []domain.ReorderRecommendation) ([]kafka.Message, error) {
	now := p.now()
	msgs := make([]kafka.Message, 0, len(recs))
	for _, rec := range recs {
		alert := ReorderAlert{
			EventID:                  uuid.NewString(),
			ItemID:                   rec.ItemID,
			ItemName:                 rec.ItemName,
			Urgency:                  rec.Urgency,
			DaysUntilStockout:        rec.DaysUntilStockout,
			LeadTimeDays:             rec.LeadTimeDays,
			RecommendedOrderQuantity: rec.RecommendedOrderQuantity,
			StockoutDate:             rec.StockoutDate,
			EmittedAt:                now,
		}
		value, err := json.Marshal(alert)
		if err != nil {
			return nil, fmt.Errorf("marshal alert for %s: %w", rec.ItemID, err)
		}
		msgs = append(msgs, kafka.Message{
			Topic: p.topic,
			Key:   []byte(rec.ItemID),
			Value: value,
			Time:  now,
		})
	}
	return msgs, nil
}

func (p *Publisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
