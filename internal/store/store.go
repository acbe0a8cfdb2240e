package store

import (
	"context"

	"github.com/feral-file/ff-dao-mirror/internal/store/schema"
)

// Store defines the interface for database operations on mirrored records
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// UpsertProposal stores a proposal by its keyword and returns the stored id.
	// On a write failure the id of the previously stored row (or "") is returned with the error.
	UpsertProposal(ctx context.Context, proposal *schema.Proposal) (string, error)
	// GetProposalByKeyword retrieves a proposal or poll option by its keyword
	GetProposalByKeyword(ctx context.Context, keyword string) (*schema.Proposal, error)
	// GetProposalByImportID retrieves the parent proposal with the given on-chain index in a collective
	GetProposalByImportID(ctx context.Context, collectiveID, importID string) (*schema.Proposal, error)
	// SetProposalPoll replaces the poll array of a proposal
	SetProposalPoll(ctx context.Context, proposalID string, poll []schema.PollEntry) error

	// UpsertVote stores a vote by (identity, poll option) and returns the stored id
	UpsertVote(ctx context.Context, vote *schema.Vote) (string, error)
	// GetVote retrieves the vote of an identity on a poll option
	GetVote(ctx context.Context, identityID, pollOptionID string) (*schema.Vote, error)

	// GetIdentityByUsername retrieves an identity by its lowercased address
	GetIdentityByUsername(ctx context.Context, username string) (*schema.Identity, error)
	// UpdateIdentity creates the identity when missing and applies mutate to it under a row lock
	UpdateIdentity(ctx context.Context, username string, mutate func(*schema.Identity)) (*schema.Identity, error)
}
