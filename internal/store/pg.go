package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/store/schema"
)

// Columns overwritten when a proposal is re-delivered. The poll array is owned by
// SetProposalPoll and deliberately left out so a replayed parent keeps its options.
var proposalUpdateColumns = []string{
	"title",
	"url",
	"date",
	"proposer_address",
	"author_id",
	"block_height",
	"import_id",
	"poll_choice_id",
	"poll_id",
	"collective_id",
	"closing",
	"updated_at",
}

var voteUpdateColumns = []string{
	"proposal_id",
	"address",
	"timestamp",
	"block_number",
	"transaction_hash",
	"collective_id",
	"updated_at",
}

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// Zero values fall back to the defaults of NormalizeConnectionPoolSettings.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 10
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	if maxIdleConns <= 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime <= 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// UpsertProposal stores a proposal by its keyword
func (s *pgStore) UpsertProposal(ctx context.Context, proposal *schema.Proposal) (string, error) {
	if proposal.Keyword == "" {
		return "", fmt.Errorf("%w: proposal keyword is empty", domain.ErrPersistenceWrite)
	}
	return upsert(ctx, s.db, proposal,
		map[string]any{"keyword": proposal.Keyword},
		proposalUpdateColumns)
}

// GetProposalByKeyword retrieves a proposal or poll option by its keyword
func (s *pgStore) GetProposalByKeyword(ctx context.Context, keyword string) (*schema.Proposal, error) {
	var proposal schema.Proposal
	err := s.db.WithContext(ctx).Where("keyword = ?", keyword).First(&proposal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return &proposal, nil
}

// GetProposalByImportID retrieves the parent proposal with the given index.
// Poll options share the parent's import id and are excluded.
func (s *pgStore) GetProposalByImportID(ctx context.Context, collectiveID, importID string) (*schema.Proposal, error) {
	var proposal schema.Proposal
	err := s.db.WithContext(ctx).
		Where("collective_id = ? AND import_id = ? AND poll_id = ''", collectiveID, importID).
		Order("created_at ASC").
		First(&proposal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get proposal by import id: %w", err)
	}
	return &proposal, nil
}

// SetProposalPoll replaces the poll array of a proposal
func (s *pgStore) SetProposalPoll(ctx context.Context, proposalID string, poll []schema.PollEntry) error {
	result := s.db.WithContext(ctx).
		Model(&schema.Proposal{}).
		Where("id = ?", proposalID).
		Updates(map[string]any{
			"poll":       datatypes.NewJSONSlice(poll),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("%w: failed to set proposal poll: %v", domain.ErrPersistenceWrite, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: proposal %s not found", domain.ErrPersistenceWrite, proposalID)
	}
	return nil
}

// UpsertVote stores a vote by (identity, poll option)
func (s *pgStore) UpsertVote(ctx context.Context, vote *schema.Vote) (string, error) {
	if vote.IdentityID == "" || vote.PollOptionID == "" {
		return "", fmt.Errorf("%w: vote natural key is incomplete", domain.ErrPersistenceWrite)
	}
	return upsert(ctx, s.db, vote,
		map[string]any{"identity_id": vote.IdentityID, "poll_option_id": vote.PollOptionID},
		voteUpdateColumns)
}

// GetVote retrieves the vote of an identity on a poll option
func (s *pgStore) GetVote(ctx context.Context, identityID, pollOptionID string) (*schema.Vote, error) {
	var vote schema.Vote
	err := s.db.WithContext(ctx).
		Where("identity_id = ? AND poll_option_id = ?", identityID, pollOptionID).
		First(&vote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return &vote, nil
}

// GetIdentityByUsername retrieves an identity by its lowercased address
func (s *pgStore) GetIdentityByUsername(ctx context.Context, username string) (*schema.Identity, error) {
	var identity schema.Identity
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return &identity, nil
}

// UpdateIdentity creates the identity when missing, then applies mutate under SELECT ... FOR UPDATE
// so concurrent resolutions of the same address serialize.
func (s *pgStore) UpdateIdentity(ctx context.Context, username string, mutate func(*schema.Identity)) (*schema.Identity, error) {
	var identity schema.Identity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := schema.Identity{
			ID:       NewID(),
			Username: username,
			Profile:  datatypes.NewJSONType(schema.Profile{Collectives: []string{}}),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return fmt.Errorf("failed to create identity: %w", err)
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("username = ?", username).
			First(&identity).Error; err != nil {
			return fmt.Errorf("failed to lock identity: %w", err)
		}

		mutate(&identity)

		if err := tx.Model(&schema.Identity{}).
			Where("id = ?", identity.ID).
			Updates(map[string]any{
				"profile":    identity.Profile,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return fmt.Errorf("failed to update identity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceWrite, err)
	}
	return &identity, nil
}
