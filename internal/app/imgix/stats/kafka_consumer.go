package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	minReadBackoff = 100 * time.Millisecond
	maxReadBackoff = 10 * time.Second
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type KafkaConsumer struct {
	reader     messageReader
	w          Writer
	batchSize  int
	interval   time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewKafkaConsumer(brokers []string, topic string, w Writer) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  "url-events-consumer",
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		w:          w,
		batchSize:  defaultBatchSize,
		interval:   defaultInterval,
		minBackoff: minReadBackoff,
		maxBackoff: maxReadBackoff,
	}
}

// Run reads until ctx is done. Offsets are committed by the reader as
// messages are read, so a failed flush loses that batch.
func (k *KafkaConsumer) Run(ctx context.Context) error {
	batch := make([]BuildEvent, 0, k.batchSize)
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	msgCh := make(chan BuildEvent, k.batchSize)
	go k.read(ctx, msgCh)

	for {
		select {
		case <-ctx.Done():
			flush(k.w, batch, "kafka")
			return nil
		case event, ok := <-msgCh:
			if !ok {
				flush(k.w, batch, "kafka")
				return nil
			}
			batch = append(batch, event)
			if len(batch) >= k.batchSize {
				flush(k.w, batch, "kafka")
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				flush(k.w, batch, "kafka")
				batch = batch[:0]
			}
		}
	}
}

func (k *KafkaConsumer) read(ctx context.Context, out chan<- BuildEvent) {
	defer close(out)
	backoff := k.minBackoff
	for {
		msg, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("kafka read failed", "err", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, k.maxBackoff)
			continue
		}
		backoff = k.minBackoff

		event, err := decodeEvent(msg.Value)
		if err != nil {
			slog.Error("kafka decode event failed", "err", err, "offset", msg.Offset)
			continue
		}
		select {
		case out <- event:
		case <-ctx.Done():
			return
		}
	}
}

func decodeEvent(b []byte) (BuildEvent, error) {
	var e BuildEvent
	err := json.Unmarshal(b, &e)
	return e, err
}

func (k *KafkaConsumer) Close() {
	if err := k.reader.Close(); err != nil {
		slog.Error("kafka reader close failed", "err", err)
	}
}
