package mirror

import (
	"context"
	"fmt"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/store/schema"
)

// ChoiceForCode maps a vote code to a poll choice
func ChoiceForCode(code int64) (string, bool) {
	switch code {
	case domain.VOTE_CODE_YES:
		return domain.CHOICE_YES, true
	case domain.VOTE_CODE_NO:
		return domain.CHOICE_NO, true
	default:
		return "", false
	}
}

// mirrorVote stores a vote correlated to the poll option of a mirrored proposal
func (e *engine) mirrorVote(ctx context.Context, event domain.ChainEvent, _ domain.EventMapping, collectiveID string) (string, error) {
	authorID, err := e.resolveAuthor(ctx, event, collectiveID)
	if err != nil {
		return "", err
	}

	index, err := importID(event.ReturnValues)
	if err != nil {
		return "", err
	}

	proposal, err := e.store.GetProposalByImportID(ctx, collectiveID, index)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPersistenceRead, err)
	}
	if proposal == nil {
		return "", fmt.Errorf("%w: proposal index %s", domain.ErrMissingCorrelation, index)
	}
	if len(proposal.Poll) == 0 {
		return "", fmt.Errorf("%w: proposal %s", domain.ErrNoPoll, proposal.Keyword)
	}

	code, _ := event.ReturnValues.Get(domain.FIELD_UINT_VOTE)
	choice, ok := ChoiceForCode(domain.ChoiceCode(code))
	if !ok {
		return "", fmt.Errorf("%w: %v", domain.ErrUnknownChoice, code)
	}

	optionKeyword := PollOptionKeyword(proposal.Keyword, choice)
	option, err := e.store.GetProposalByKeyword(ctx, optionKeyword)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPersistenceRead, err)
	}
	if option == nil {
		return "", fmt.Errorf("%w: poll option %s", domain.ErrMissingCorrelation, optionKeyword)
	}

	blockTime, err := e.blocks.GetBlockTimestamp(ctx, event.BlockNumber)
	if err != nil {
		return "", err
	}

	vote := schema.Vote{
		IdentityID:      authorID,
		PollOptionID:    option.ID,
		ProposalID:      proposal.ID,
		Address:         proposal.Keyword,
		Timestamp:       blockTime,
		BlockNumber:     event.BlockNumber,
		TransactionHash: event.TransactionHash,
		CollectiveID:    collectiveID,
	}

	return e.store.UpsertVote(ctx, &vote)
}
