package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectFeedImported is published by the importer after every successful import
const SubjectFeedImported = "stringchart.feed.imported"

// FeedImported announces a new feed version
type FeedImported struct {
	Version    string    `json:"version"`
	Source     string    `json:"source"`
	Target     string    `json:"target"`
	ImportedAt time.Time `json:"importedAt"`
	StopTimes  int       `json:"stopTimes"`
}

// Bus wraps one NATS connection for publishing and subscribing
type Bus struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// Connect dials NATS with reconnect logging
func Connect(url, name string, logger *zap.Logger) (*Bus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &Bus{nc: nc, logger: logger}, nil
}

func (b *Bus) Close() {
	if b != nil && b.nc != nil {
		_ = b.nc.Drain()
		b.nc.Close()
	}
}

// PublishFeedImported announces evt and flushes it to the server
func (b *Bus) PublishFeedImported(evt FeedImported) error {
	data, err := EncodeFeedImported(evt)
	if err != nil {
		return err
	}
	if err := b.nc.Publish(SubjectFeedImported, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", SubjectFeedImported, err)
	}
	return b.nc.Flush()
}

// SubscribeFeedImported calls fn for every announced import. Malformed payloads
// are logged and dropped.
func (b *Bus) SubscribeFeedImported(fn func(FeedImported)) (*nats.Subscription, error) {
	sub, err := b.nc.Subscribe(SubjectFeedImported, func(msg *nats.Msg) {
		evt, err := DecodeFeedImported(msg.Data)
		if err != nil {
			b.logger.Warn("dropping malformed event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		fn(evt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe %s: %w", SubjectFeedImported, err)
	}
	return sub, nil
}

func EncodeFeedImported(evt FeedImported) ([]byte, error) {
	if evt.Version == "" {
		return nil, fmt.Errorf("feed imported event without version")
	}
	return json.Marshal(evt)
}

func DecodeFeedImported(data []byte) (FeedImported, error) {
	var evt FeedImported
	if err := json.Unmarshal(data, &evt); err != nil {
		return FeedImported{}, fmt.Errorf("invalid event payload: %w", err)
	}
	if evt.Version == "" {
		return FeedImported{}, fmt.Errorf("event without version")
	}
	return evt, nil
}
