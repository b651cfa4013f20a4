// Package publish streams conversation conclusions to Kafka for downstream
// consumers (dashboards, review queues). Without brokers it runs in
// log-only mode so the adjudication paths never depend on Kafka being up.
package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/storewatch/storewatch/internal/agents"
	"github.com/storewatch/storewatch/internal/metrics"
)

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Enabled bool     `yaml:"enabled"`
}

// DefaultTopic is used when the config leaves the topic empty.
const DefaultTopic = "storewatch.conclusions"

// Publisher writes conclusion events. Safe to use when disabled.
type Publisher struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
	metrics *metrics.Metrics
}

// New creates a publisher. A nil config, Enabled=false, or no brokers all
// yield log-only mode.
func New(cfg *Config) *Publisher {
	m := metrics.Default

	if cfg == nil || !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("kafka disabled, conclusions publish in log-only mode")
		p := &Publisher{topic: DefaultTopic, metrics: m}
		if cfg != nil && cfg.Topic != "" {
			p.topic = cfg.Topic
		}
		return p
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	log.Info().Strs("brokers", cfg.Brokers).Str("topic", topic).Msg("kafka publisher initialized")
	return &Publisher{writer: writer, topic: topic, enabled: true, metrics: m}
}

// PublishConclusion emits one terminal conclusion keyed by incident id.
func (p *Publisher) PublishConclusion(ctx context.Context, c agents.ConversationConclusion) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}

	log.Debug().
		Str("topic", p.topic).
		Str("incident_id", c.IncidentID).
		Str("verdict", c.FinalVerdict).
		Msg("publishing conclusion")

	if !p.enabled || p.writer == nil {
		p.metrics.RecordPublish(p.topic, nil)
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(c.IncidentID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte("conversation_conclusion")},
			{Key: "conversationId", Value: []byte(c.ConversationID)},
		},
	}
	err = p.writer.WriteMessages(ctx, msg)
	if err != nil {
		log.Error().Err(err).Str("topic", p.topic).Msg("kafka write failed")
	}
	p.metrics.RecordPublish(p.topic, err)
	return err
}

// Close releases the Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
