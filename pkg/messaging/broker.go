package messaging

import (
	"context"

	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// LogBroker stands in when no broker is configured: published events are
// logged and dropped.
type LogBroker struct {
	logger *logger.Logger
}

func NewLogBroker(logger *logger.Logger) *LogBroker {
	return &LogBroker{logger: logger}
}

func (b *LogBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	b.logger.Debug("event published", "channel", channel, "payload", string(payload))
	return nil
}

func (b *LogBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (b *LogBroker) Close() error { return nil }
