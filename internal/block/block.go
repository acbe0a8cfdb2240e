package block

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/ff-dao-mirror/internal/adapter"
	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/logger"
)

// BlockInfo represents cached head information
type BlockInfo struct {
	Number   uint64
	CachedAt time.Time
}

// timestampEntry is a cached timestamp for a specific block number
type timestampEntry struct {
	Timestamp time.Time
	CachedAt  time.Time
}

// BlockProvider provides cached access to the chain head and to block timestamps.
// Mirroring reads a block timestamp for every proposal and vote; proposals and their
// votes usually share a handful of blocks, so the cache absorbs most lookups.
//
//go:generate mockgen -source=block.go -destination=../mocks/block_provider.go -package=mocks -mock_names=BlockProvider=MockBlockProvider
type BlockProvider interface {
	// GetLatestBlock returns the latest block number, potentially from cache
	GetLatestBlock(ctx context.Context) (uint64, error)

	// GetBlockTimestamp returns the timestamp for a given block number, potentially from cache
	GetBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)
}

// BlockFetcher is the interface for fetching block information from the blockchain
//
//go:generate mockgen -source=block.go -destination=../mocks/block_provider.go -package=mocks -mock_names=BlockFetcher=MockBlockFetcher
type BlockFetcher interface {
	// FetchLatestBlock fetches the latest block from the blockchain
	FetchLatestBlock(ctx context.Context) (uint64, error)

	// FetchBlockTimestamp fetches the timestamp for a given block number
	FetchBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)
}

// Config holds configuration for the BlockProvider
type Config struct {
	// TTL is how long to cache the head block number
	TTL time.Duration

	// StaleWindow is how long stale data may be served when fetching fails
	StaleWindow time.Duration

	// BlockTimestampTTL is how long to cache block timestamps; 0 caches forever
	BlockTimestampTTL time.Duration

	// MaxCachedTimestamps bounds the timestamp cache; 0 means unbounded.
	// The oldest inserted entries are evicted first.
	MaxCachedTimestamps int
}

type blockProvider struct {
	fetcher BlockFetcher
	config  Config
	clock   adapter.Clock

	mu         sync.RWMutex
	head       *BlockInfo
	timestamps map[uint64]*timestampEntry
	order      []uint64
}

// NewBlockProvider creates a new BlockProvider with caching
func NewBlockProvider(fetcher BlockFetcher, config Config, clock adapter.Clock) BlockProvider {
	return &blockProvider{
		fetcher:    fetcher,
		config:     config,
		clock:      clock,
		timestamps: make(map[uint64]*timestampEntry),
	}
}

// GetLatestBlock returns the latest block number, using cache if valid
func (p *blockProvider) GetLatestBlock(ctx context.Context) (uint64, error) {
	p.mu.RLock()
	cached := p.head
	p.mu.RUnlock()

	now := p.clock.Now()

	if cached != nil && now.Sub(cached.CachedAt) < p.config.TTL {
		logger.DebugCtx(ctx, "Using cached block number", zap.Uint64("block_number", cached.Number))
		return cached.Number, nil
	}

	blockNumber, err := p.fetcher.FetchLatestBlock(ctx)
	if err != nil {
		if cached != nil && now.Sub(cached.CachedAt) < p.config.StaleWindow {
			logger.WarnCtx(ctx, "Using stale block number", zap.Uint64("block_number", cached.Number), zap.Error(err))
			return cached.Number, nil
		}
		return 0, fmt.Errorf("%w: latest block: %v", domain.ErrUpstreamFetch, err)
	}

	p.mu.Lock()
	p.head = &BlockInfo{Number: blockNumber, CachedAt: now}
	p.mu.Unlock()

	return blockNumber, nil
}

// GetBlockTimestamp returns the timestamp for a given block number, using cache if valid
func (p *blockProvider) GetBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	p.mu.RLock()
	cached := p.timestamps[blockNumber]
	p.mu.RUnlock()

	now := p.clock.Now()

	if cached != nil && (p.config.BlockTimestampTTL == 0 || now.Sub(cached.CachedAt) < p.config.BlockTimestampTTL) {
		return cached.Timestamp, nil
	}

	logger.DebugCtx(ctx, "Fetching block timestamp", zap.Uint64("block_number", blockNumber))
	timestamp, err := p.fetcher.FetchBlockTimestamp(ctx, blockNumber)
	if err != nil {
		if cached != nil && now.Sub(cached.CachedAt) < p.config.StaleWindow {
			logger.WarnCtx(ctx, "Using stale block timestamp", zap.Uint64("block_number", blockNumber), zap.Error(err))
			return cached.Timestamp, nil
		}
		return time.Time{}, fmt.Errorf("%w: timestamp of block %d: %v", domain.ErrUpstreamFetch, blockNumber, err)
	}

	p.mu.Lock()
	p.store(blockNumber, &timestampEntry{Timestamp: timestamp, CachedAt: now})
	p.mu.Unlock()

	return timestamp, nil
}

// store caches a timestamp. Caller must hold p.mu.
func (p *blockProvider) store(blockNumber uint64, entry *timestampEntry) {
	if _, exists := p.timestamps[blockNumber]; !exists {
		p.order = append(p.order, blockNumber)
	}
	p.timestamps[blockNumber] = entry

	limit := p.config.MaxCachedTimestamps
	for limit > 0 && len(p.order) > limit {
		evict := p.order[0]
		p.order = p.order[1:]
		delete(p.timestamps, evict)
	}
}
