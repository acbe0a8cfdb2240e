package emitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/feral-file/ff-dao-mirror/internal/adapter"
	"github.com/feral-file/ff-dao-mirror/internal/block"
	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/logger"
	"github.com/feral-file/ff-dao-mirror/internal/messaging"
	"github.com/feral-file/ff-dao-mirror/internal/providers/ethereum"
	"github.com/feral-file/ff-dao-mirror/internal/store"
)

// Config holds the configuration for the event emitter
type Config struct {
	ChainID domain.Chain
	// Confirmations is how many blocks behind the head scanning stops
	Confirmations uint64
	// WindowSize is the number of blocks published as one batch
	WindowSize uint64
	// PollInterval is the pause between two scans of every contract
	PollInterval time.Duration
	// MaxConcurrency bounds how many contracts are scanned at once
	MaxConcurrency int
	// RetryMaxElapsed bounds the retries of a single upstream fetch
	RetryMaxElapsed time.Duration
}

// Emitter defines the interface for the event emitter
//
//go:generate mockgen -source=emitter.go -destination=../mocks/emitter.go -package=mocks -mock_names=Emitter=MockEmitter
type Emitter interface {
	// Run scans every tracked contract until ctx is cancelled
	Run(ctx context.Context) error
	// Close closes the emitter and cleans up resources
	Close()
}

type emitter struct {
	client    ethereum.EthereumClient
	blocks    block.BlockProvider
	publisher messaging.Publisher
	cursors   store.CursorStore
	contracts []domain.ContractDescriptor
	pool      pond.Pool
	config    Config
	clock     adapter.Clock
}

// NewEmitter creates a new event emitter
func NewEmitter(
	client ethereum.EthereumClient,
	blocks block.BlockProvider,
	pub messaging.Publisher,
	cursors store.CursorStore,
	contracts []domain.ContractDescriptor,
	cfg Config,
	clock adapter.Clock,
) Emitter {
	if cfg.WindowSize == 0 {
		cfg.WindowSize = 1000
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = len(contracts)
	}

	return &emitter{
		client:    client,
		blocks:    blocks,
		publisher: pub,
		cursors:   cursors,
		contracts: contracts,
		pool:      pond.NewPool(cfg.MaxConcurrency),
		config:    cfg,
		clock:     clock,
	}
}

// Run scans every contract, waits PollInterval and starts over
func (e *emitter) Run(ctx context.Context) error {
	logger.InfoCtx(ctx, "Starting event emitter",
		zap.String("chain", string(e.config.ChainID)),
		zap.Int("contracts", len(e.contracts)),
		zap.Uint64("confirmations", e.config.Confirmations))

	for {
		e.scanAll(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.clock.After(e.config.PollInterval):
		}
	}
}

// scanAll scans the contracts concurrently and waits for all of them.
// A failing contract is logged and retried on the next round.
func (e *emitter) scanAll(ctx context.Context) {
	group := e.pool.NewGroupContext(ctx)
	for _, descriptor := range e.contracts {
		descriptor := descriptor
		group.Submit(func() {
			if err := e.scanContract(ctx, descriptor); err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorCtx(ctx, err,
					zap.String("message", "Failed to scan contract"),
					zap.String("contract", descriptor.PublicAddress))
			}
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		logger.ErrorCtx(ctx, err, zap.String("message", "Contract scan group failed"))
	}
}

// startBlock returns the first block that has not been scanned yet for a contract
func (e *emitter) startBlock(ctx context.Context, descriptor domain.ContractDescriptor) (uint64, error) {
	cursor, err := e.cursors.GetBlockCursor(ctx, e.config.ChainID, descriptor.PublicAddress)
	if err != nil {
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}
	if cursor > 0 {
		return cursor + 1, nil
	}
	if descriptor.StartBlock > 0 {
		return descriptor.StartBlock, nil
	}
	return domain.DEFAULT_START_BLOCK, nil
}

// scanContract publishes every confirmed window after the cursor and advances the cursor behind it
func (e *emitter) scanContract(ctx context.Context, descriptor domain.ContractDescriptor) error {
	from, err := e.startBlock(ctx, descriptor)
	if err != nil {
		return err
	}

	latest, err := e.blocks.GetLatestBlock(ctx)
	if err != nil {
		return err
	}
	if latest < e.config.Confirmations {
		return nil
	}
	head := latest - e.config.Confirmations

	for from <= head {
		if err := ctx.Err(); err != nil {
			return err
		}

		to := min(from+e.config.WindowSize-1, head)

		events, err := e.fetchWithRetry(ctx, descriptor, from, to)
		if err != nil {
			return err
		}

		// Windows without events only move the cursor
		if len(events) > 0 {
			batch := &domain.EventBatch{
				Chain:     e.config.ChainID,
				Contract:  descriptor.PublicAddress,
				FromBlock: from,
				ToBlock:   to,
				Events:    events,
			}
			if err := e.publisher.PublishBatch(ctx, batch); err != nil {
				return fmt.Errorf("failed to publish blocks %d-%d: %w", from, to, err)
			}
			logger.InfoCtx(ctx, "Published event batch",
				zap.String("contract", descriptor.PublicAddress),
				zap.Uint64("fromBlock", from),
				zap.Uint64("toBlock", to),
				zap.Int("events", len(events)))
		}

		if err := e.cursors.SetBlockCursor(ctx, e.config.ChainID, descriptor.PublicAddress, to); err != nil {
			return fmt.Errorf("failed to save block cursor: %w", err)
		}

		from = to + 1
	}

	return nil
}

// fetchWithRetry fetches a window of events with exponential backoff
func (e *emitter) fetchWithRetry(ctx context.Context, descriptor domain.ContractDescriptor, from, to uint64) ([]domain.ChainEvent, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = e.config.RetryMaxElapsed

	var events []domain.ChainEvent
	operation := func() error {
		var err error
		events, err = e.client.FetchEvents(ctx, descriptor, from, to)
		if err != nil && !errors.Is(err, domain.ErrUpstreamFetch) {
			// Decoding and ABI errors do not go away by retrying
			return backoff.Permanent(err)
		}
		return err
	}

	var attemptCount int
	notifyOnError := func(err error, duration time.Duration) {
		attemptCount++
		logger.WarnCtx(ctx, "Event fetch failed, retrying",
			zap.Error(err),
			zap.String("contract", descriptor.PublicAddress),
			zap.Uint64("fromBlock", from),
			zap.Uint64("toBlock", to),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", duration),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notifyOnError); err != nil {
		return nil, fmt.Errorf("failed to fetch blocks %d-%d after %d attempts: %w", from, to, attemptCount+1, err)
	}

	return events, nil
}

// Close stops the pool and closes the publisher and chain client
func (e *emitter) Close() {
	e.pool.StopAndWait()
	e.publisher.Close()
	e.client.Close()
}
