package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/feral-file/ff-dao-mirror/internal/adapter"
	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/logger"
	"github.com/feral-file/ff-dao-mirror/internal/messaging"
	"github.com/feral-file/ff-dao-mirror/internal/mirror"
	jsprovider "github.com/feral-file/ff-dao-mirror/internal/providers/jetstream"
	"github.com/feral-file/ff-dao-mirror/internal/snapshot"
)

// Config holds the configuration for the mirror worker
type Config struct {
	NATS           jsprovider.Config
	ConsumerPrefix string
	AckWaitTimeout time.Duration
	MaxDeliver     int
	// NakDelay is how long a batch that could not be fully mirrored waits before redelivery
	NakDelay time.Duration
}

// Worker consumes event batches and mirrors them
//
//go:generate mockgen -source=worker.go -destination=../mocks/worker.go -package=mocks -mock_names=Worker=MockWorker
type Worker interface {
	// Run consumes until ctx is cancelled
	Run(ctx context.Context) error
	// Close closes the worker and cleans up resources
	Close()
}

type worker struct {
	nc          adapter.NatsConn
	js          adapter.JetStream
	contracts   map[string]domain.ContractDescriptor
	snapshotter snapshot.Snapshotter
	engine      mirror.Engine
	json        adapter.JSON
	config      Config
}

// NewWorker connects to NATS and prepares a worker for the given contracts
func NewWorker(
	cfg Config,
	natsJS adapter.NatsJetStream,
	contracts []domain.ContractDescriptor,
	snapshotter snapshot.Snapshotter,
	engine mirror.Engine,
	jsonAdapter adapter.JSON,
) (Worker, error) {
	nc, js, err := natsJS.Connect(cfg.NATS.URL, jsprovider.ConnectOptions(cfg.NATS)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	byAddress := make(map[string]domain.ContractDescriptor, len(contracts))
	for _, c := range contracts {
		byAddress[strings.ToLower(c.PublicAddress)] = c
	}

	return &worker{
		nc:          nc,
		js:          js,
		contracts:   byAddress,
		snapshotter: snapshotter,
		engine:      engine,
		json:        jsonAdapter,
		config:      cfg,
	}, nil
}

// consumerName returns the durable consumer name of a contract
func (w *worker) consumerName(contract string) string {
	return fmt.Sprintf("%s-%s", w.config.ConsumerPrefix, strings.ToLower(contract))
}

// Run creates one durable consumer per contract. Each consumer delivers its
// batches one at a time, so a contract's batches are mirrored in stream order
// while different contracts proceed independently.
func (w *worker) Run(ctx context.Context) error {
	logger.InfoCtx(ctx, "Starting mirror worker",
		zap.String("stream", w.config.NATS.StreamName),
		zap.Int("contracts", len(w.contracts)))

	var subs []adapter.ConsumeContext
	defer func() {
		for _, sub := range subs {
			sub.Stop()
		}
	}()

	for address := range w.contracts {
		consumerConfig := jetstream.ConsumerConfig{
			Durable:       w.consumerName(address),
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       w.config.AckWaitTimeout,
			MaxDeliver:    w.config.MaxDeliver,
			FilterSubject: messaging.Subject(address),
		}

		consumer, err := w.js.CreateOrUpdateConsumer(ctx, w.config.NATS.StreamName, consumerConfig)
		if err != nil {
			return fmt.Errorf("failed to create/update consumer for %s: %w", address, err)
		}

		consumerInfo, err := consumer.Info(ctx)
		if err != nil {
			return fmt.Errorf("failed to get consumer info: %w", err)
		}
		logger.InfoCtx(ctx, "Consumer created/retrieved",
			zap.String("consumer", consumerInfo.Name),
			zap.Uint64("pending", consumerInfo.NumPending))

		sub, err := consumer.Consume(func(msg adapter.Message) {
			w.handleMessage(ctx, msg)
		})
		if err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	logger.InfoCtx(ctx, "Started consuming batches")

	<-ctx.Done()
	logger.InfoCtx(ctx, "Shutting down mirror worker")
	return ctx.Err()
}

// handleMessage mirrors one batch and settles the message:
// Ack when done, NakWithDelay when redelivery can make progress, Term when it never will
func (w *worker) handleMessage(ctx context.Context, msg adapter.Message) {
	var delivered uint64
	if metadata, err := msg.Metadata(); err == nil && metadata != nil {
		delivered = metadata.NumDelivered
	}

	var batch domain.EventBatch
	if err := w.json.Unmarshal(msg.Data(), &batch); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to unmarshal batch"), zap.String("subject", msg.Subject()))
		w.term(ctx, msg)
		return
	}

	descriptor, ok := w.contracts[strings.ToLower(batch.Contract)]
	if !ok {
		logger.ErrorCtx(ctx, fmt.Errorf("%w: %s", domain.ErrContractNotTracked, batch.Contract))
		w.term(ctx, msg)
		return
	}

	fields := []zap.Field{
		zap.String("contract", batch.Contract),
		zap.Uint64("fromBlock", batch.FromBlock),
		zap.Uint64("toBlock", batch.ToBlock),
		zap.Int("events", len(batch.Events)),
		zap.Uint64("deliveryCount", delivered),
	}
	logger.InfoCtx(ctx, "Received batch", fields...)

	if len(batch.Events) == 0 {
		w.ack(ctx, msg)
		return
	}

	state := w.snapshotter.Snapshot(ctx, descriptor)
	report := w.engine.MirrorBatch(ctx, batch.Events, descriptor.Map, state, descriptor.CollectiveID)

	fields = append(fields,
		zap.Int("mirrored", report.Mirrored()),
		zap.Int("skipped", len(report.Skipped())),
		zap.Int("ignored", report.Ignored))

	if report.Retryable() {
		if w.config.MaxDeliver > 0 && delivered >= uint64(w.config.MaxDeliver) { //nolint:gosec,G115
			logger.ErrorCtx(ctx, errors.New("batch not fully mirrored after last delivery"), fields...)
		} else {
			logger.WarnCtx(ctx, "Batch not fully mirrored, scheduling redelivery", fields...)
		}
		if err := msg.NakWithDelay(w.config.NakDelay); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to NAK message"))
		}
		return
	}

	logger.InfoCtx(ctx, "Batch mirrored", fields...)
	w.ack(ctx, msg)
}

func (w *worker) ack(ctx context.Context, msg adapter.Message) {
	if err := msg.Ack(); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to ACK message"))
	}
}

func (w *worker) term(ctx context.Context, msg adapter.Message) {
	if err := msg.Term(); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to terminate message"))
	}
}

// Close closes the worker and cleans up resources
func (w *worker) Close() {
	if w.nc == nil {
		return
	}

	w.nc.Close()
}
