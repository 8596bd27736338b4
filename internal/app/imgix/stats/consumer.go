package stats

import (
	"context"
	"log/slog"
	"time"
)

// Consumer drains a ChannelCollector into a Writer in batches.
type Consumer struct {
	w         Writer
	events    <-chan BuildEvent
	batchSize int
	interval  time.Duration
}

func NewConsumer(w Writer, collector *ChannelCollector) *Consumer {
	return &Consumer{
		w:         w,
		events:    collector.Events(),
		batchSize: defaultBatchSize,
		interval:  defaultInterval,
	}
}

// Run blocks until ctx is done or the collector is closed. Events already
// buffered when ctx ends are flushed before returning.
func (c *Consumer) Run(ctx context.Context) error {
	batch := make([]BuildEvent, 0, c.batchSize)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			batch = drain(c.events, batch)
			flush(c.w, batch, "channel")
			return nil
		case event, ok := <-c.events:
			if !ok {
				flush(c.w, batch, "channel")
				return nil
			}
			batch = append(batch, event)
			if len(batch) >= c.batchSize {
				flush(c.w, batch, "channel")
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				flush(c.w, batch, "channel")
				batch = batch[:0]
			}
		}
	}
}

func drain(events <-chan BuildEvent, batch []BuildEvent) []BuildEvent {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return batch
			}
			batch = append(batch, e)
		default:
			return batch
		}
	}
}

// flush runs on its own context so a batch still lands during shutdown.
func flush(w Writer, batch []BuildEvent, via string) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := w.Write(ctx, batch); err != nil {
		slog.Error("url events: flush failed", "via", via, "count", len(batch), "err", err)
		return
	}
	slog.Debug("url events: flushed", "via", via, "count", len(batch))
}
