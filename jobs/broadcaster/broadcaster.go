package broadcaster

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"

	"disorderbook/infra/feed"
)

// Broadcaster mirrors the engine feed to a Kafka topic so external
// consumers can follow tickers and executions without holding a
// websocket open. Delivery is best effort: a failed send is logged
// and dropped, never retried out of order.
type Broadcaster struct {
	producer sarama.SyncProducer
	topic    string
	log      *slog.Logger
}

// Message is the Kafka payload: the feed event envelope with the
// engine's JSON body embedded verbatim.
type Message struct {
	Kind    feed.Kind       `json:"kind"`
	Account string          `json:"account,omitempty"`
	Venue   string          `json:"venue"`
	Symbol  string          `json:"symbol"`
	Data    json.RawMessage `json:"data"`
}

func New(brokers []string, topic string, log *slog.Logger) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{producer: producer, topic: topic, log: log}, nil
}

// Run drains the subscription until the context ends.
func (b *Broadcaster) Run(ctx context.Context, sub *feed.Subscription[feed.Event]) {
	b.log.Info("kafka broadcaster started", "topic", b.topic)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			b.publish(ev)
		}
	}
}

func (b *Broadcaster) publish(ev feed.Event) {
	value, err := json.Marshal(Message{
		Kind:    ev.Kind,
		Account: ev.Account,
		Venue:   ev.Venue,
		Symbol:  ev.Symbol,
		Data:    json.RawMessage(ev.Body),
	})
	if err != nil {
		b.log.Error("encode feed event", "error", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(ev.Venue + ":" + ev.Symbol),
		Value: sarama.ByteEncoder(value),
	}
	if _, _, err := b.producer.SendMessage(msg); err != nil {
		b.log.Error("publish feed event", "error", err)
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
