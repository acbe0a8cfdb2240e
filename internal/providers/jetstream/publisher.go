package jetstream

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/feral-file/ff-dao-mirror/internal/adapter"
	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/logger"
	"github.com/feral-file/ff-dao-mirror/internal/messaging"
)

// Config holds the configuration for NATS JetStream connection
type Config struct {
	URL            string
	StreamName     string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	// DuplicateWindow is how long the stream remembers message ids
	DuplicateWindow time.Duration
}

// ConnectOptions returns the connection options shared by publishers and consumers
func ConnectOptions(cfg Config) []nats.Option {
	return []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}
}

type publisher struct {
	nc         adapter.NatsConn
	js         adapter.JetStream
	streamName string
	json       adapter.JSON
}

// NewPublisher connects to NATS and makes sure the batch stream exists
func NewPublisher(ctx context.Context, cfg Config, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) (messaging.Publisher, error) {
	nc, js, err := natsJS.Connect(cfg.URL, ConnectOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	info, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   []string{messaging.AllSubjects()},
		Retention:  jetstream.WorkQueuePolicy,
		Duplicates: cfg.DuplicateWindow,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream %s: %w", cfg.StreamName, err)
	}
	if info != nil {
		logger.Info("Stream ready", zap.String("stream", info.Config.Name), zap.Uint64("messages", info.State.Msgs))
	}

	return &publisher{
		nc:         nc,
		js:         js,
		streamName: cfg.StreamName,
		json:       jsonAdapter,
	}, nil
}

// MessageID derives a deterministic message id from the canonical JSON form of a batch
func MessageID(jsonAdapter adapter.JSON, batch *domain.EventBatch) (string, error) {
	canonical, err := jsonAdapter.MarshalCanonical(batch)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize batch: %w", err)
	}
	return crypto.Keccak256Hash(canonical).Hex(), nil
}

// PublishBatch publishes an event batch to NATS JetStream
func (p *publisher) PublishBatch(ctx context.Context, batch *domain.EventBatch) error {
	data, err := p.json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	msgID, err := MessageID(p.json, batch)
	if err != nil {
		return err
	}

	subject := messaging.Subject(batch.Contract)

	ack, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(msgID))
	if err != nil {
		return fmt.Errorf("failed to publish batch: %w", err)
	}

	fields := []zap.Field{
		zap.String("subject", subject),
		zap.String("msgID", msgID),
		zap.Uint64("fromBlock", batch.FromBlock),
		zap.Uint64("toBlock", batch.ToBlock),
		zap.Int("events", len(batch.Events)),
	}
	if ack != nil && ack.Duplicate {
		logger.DebugCtx(ctx, "Batch already published", fields...)
		return nil
	}
	logger.DebugCtx(ctx, "Published batch", fields...)

	return nil
}

// Close closes the NATS connection
func (p *publisher) Close() {
	if p.nc == nil {
		return
	}

	p.nc.Close()
}
