package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"tipcast/pkg/logging"
)

// Producer publishes settlement events to Kafka.
type Producer struct {
	client *kgo.Client
	logger logging.Logger
	topic  string
}

// NewProducer creates a new Kafka producer for settlement events.
func NewProducer(brokers []string, topic string, logger logging.Logger) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID("bursar"),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10 * time.Millisecond),
		kgo.ProducerBatchMaxBytes(1000000),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &Producer{
		client: client,
		logger: logger,
		topic:  topic,
	}, nil
}

// Close flushes and shuts down the underlying client.
func (p *Producer) Close() error {
	p.client.Close()
	return nil
}

// GetClient returns the underlying kgo.Client for health checks
func (p *Producer) GetClient() *kgo.Client {
	return p.client
}

// SettlementEvent is the wire payload published after a donation reaches a
// terminal status or a withdrawal is requested.
type SettlementEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	UserID      string    `json:"user_id"`
	DonationID  string    `json:"donation_id,omitempty"`
	WithdrawID  string    `json:"withdraw_id,omitempty"`
	GoalID      string    `json:"goal_id,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	NetCents    int64     `json:"net_cents,omitempty"`
	Method      string    `json:"method,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Settlement event types
const (
	EventDonationSettled   = "donation.settled"
	EventDonationFailed    = "donation.failed"
	EventDonationExpired   = "donation.expired"
	EventWithdrawRequested = "withdraw.requested"
	EventGoalReached       = "goal.reached"
)

// PublishSettlementEvent publishes a single settlement event keyed by user so
// consumers see a per-user ordered stream.
func (p *Producer) PublishSettlementEvent(ctx context.Context, event *SettlementEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.UserID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	produceCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result := p.client.ProduceSync(produceCtx, record)
	if err := result.FirstErr(); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	return nil
}
