package mirror

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/feral-file/ff-dao-mirror/internal/block"
	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/identity"
	"github.com/feral-file/ff-dao-mirror/internal/logger"
	"github.com/feral-file/ff-dao-mirror/internal/membership"
	"github.com/feral-file/ff-dao-mirror/internal/store"
)

// Config holds the event names the router dispatches on
type Config struct {
	// SubmissionEvents are event names mirrored as proposals
	SubmissionEvents []string
	// VoteEvents are event names mirrored as votes
	VoteEvents []string
}

// DefaultConfig returns the Moloch style event names
func DefaultConfig() Config {
	return Config{
		SubmissionEvents: []string{domain.EVENT_SUBMIT_PROPOSAL},
		VoteEvents:       []string{domain.EVENT_SUBMIT_VOTE},
	}
}

// Engine mirrors chain events into proposal and vote records
//
//go:generate mockgen -source=engine.go -destination=../mocks/mirror_engine.go -package=mocks -mock_names=Engine=MockMirrorEngine
type Engine interface {
	// MirrorBatch mirrors events in delivery order. Failures are contained per event
	// and reported; the batch is never aborted by a single event.
	MirrorBatch(ctx context.Context, events []domain.ChainEvent, mappings []domain.EventMapping, state domain.State, collectiveID string) Report
}

type engine struct {
	store    store.Store
	resolver identity.Resolver
	blocks   block.BlockProvider
	titler   Titler
	closing  ClosingRule
	config   Config
}

// NewEngine creates a mirroring engine
func NewEngine(
	st store.Store,
	resolver identity.Resolver,
	blocks block.BlockProvider,
	titler Titler,
	closing ClosingRule,
	cfg Config,
) Engine {
	if len(cfg.SubmissionEvents) == 0 && len(cfg.VoteEvents) == 0 {
		cfg = DefaultConfig()
	}
	return &engine{
		store:    st,
		resolver: resolver,
		blocks:   blocks,
		titler:   titler,
		closing:  closing,
		config:   cfg,
	}
}

// MirrorBatch dispatches each event to the mirror selected by the matching mapping entries
func (e *engine) MirrorBatch(ctx context.Context, events []domain.ChainEvent, mappings []domain.EventMapping, state domain.State, collectiveID string) Report {
	var report Report

	for _, event := range events {
		if ctx.Err() != nil {
			report.Cancelled = true
			logger.WarnCtx(ctx, "Mirroring cancelled", zap.Int("processed", len(report.Outcomes)), zap.Error(ctx.Err()))
			break
		}

		matched := false
		for _, mapping := range mappings {
			if mapping.EventName != event.EventName {
				continue
			}

			switch mapping.CollectionType {
			case domain.CollectionProposal:
				switch {
				case slices.Contains(e.config.SubmissionEvents, event.EventName):
					matched = true
					report.Outcomes = append(report.Outcomes, e.record(ctx, event, KindProposal, func() (string, error) {
						return e.mirrorProposal(ctx, event, mapping, state, collectiveID)
					}))
				case slices.Contains(e.config.VoteEvents, event.EventName):
					matched = true
					report.Outcomes = append(report.Outcomes, e.record(ctx, event, KindVote, func() (string, error) {
						return e.mirrorVote(ctx, event, mapping, collectiveID)
					}))
				}
			case domain.CollectionVote:
				// reserved
			}
		}

		if !matched {
			report.Ignored++
		}
	}

	return report
}

// record runs one mirror call and turns its result into a logged outcome
func (e *engine) record(ctx context.Context, event domain.ChainEvent, kind Kind, mirror func() (string, error)) Outcome {
	id, err := mirror()
	outcome := Outcome{
		Kind:            kind,
		EventName:       event.EventName,
		TransactionHash: event.TransactionHash,
		BlockNumber:     event.BlockNumber,
		LogIndex:        event.LogIndex,
		RecordID:        id,
		Err:             err,
	}

	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("event", event.EventName),
		zap.String("txHash", event.TransactionHash),
		zap.Uint64("blockNumber", event.BlockNumber),
	}

	switch {
	case err == nil:
		logger.InfoCtx(ctx, "Mirrored event", append(fields, zap.String("recordID", id))...)
	case errors.Is(err, domain.ErrMissingCorrelation):
		logger.InfoCtx(ctx, "Skipped event, correlation not mirrored yet", append(fields, zap.Error(err))...)
	case errors.Is(err, domain.ErrUnresolvableAuthor),
		errors.Is(err, domain.ErrMissingProposalIndex),
		errors.Is(err, domain.ErrUnknownChoice),
		errors.Is(err, domain.ErrNoPoll):
		logger.WarnCtx(ctx, "Skipped event", append(fields, zap.Error(err))...)
	default:
		logger.ErrorCtx(ctx, err, append(fields, zap.String("recordID", id))...)
	}

	return outcome
}

// resolveAuthor provisions an identity for every address in the event and returns
// the identity id of the author candidate
func (e *engine) resolveAuthor(ctx context.Context, event domain.ChainEvent, collectiveID string) (string, error) {
	classified, author := membership.Extract(event.ReturnValues)

	authorID := ""
	var authorErr error
	for _, c := range classified {
		id, err := e.resolver.Resolve(ctx, c.Address, c.Role, collectiveID)
		if err != nil {
			logger.WarnCtx(ctx, "Failed to resolve identity",
				zap.String("address", c.Address),
				zap.String("role", string(c.Role)),
				zap.Error(err))
		}
		if author != "" && identity.Username(c.Address) == author {
			authorID, authorErr = id, err
		}
	}

	if author == "" {
		return "", domain.ErrUnresolvableAuthor
	}
	if authorErr != nil {
		return "", authorErr
	}
	if authorID == "" {
		return "", domain.ErrUnresolvableAuthor
	}
	return authorID, nil
}

// importID reads the proposal index of an event as a decimal string
func importID(values domain.ReturnValues) (string, error) {
	v, ok := values.Get(domain.FIELD_PROPOSAL_INDEX)
	if !ok {
		return "", domain.ErrMissingProposalIndex
	}
	s, err := domain.DecimalString(v)
	if err != nil {
		if errors.Is(err, domain.ErrMissingProposalIndex) {
			return "", err
		}
		return "", errors.Join(domain.ErrMissingProposalIndex, err)
	}
	return s, nil
}
