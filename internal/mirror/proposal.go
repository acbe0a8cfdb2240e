package mirror

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/logger"
	"github.com/feral-file/ff-dao-mirror/internal/store/schema"
)

// DatePath returns the date partitioned path of a proposal submitted at t
func DatePath(t time.Time, txHash string) string {
	t = t.UTC()
	return fmt.Sprintf("/%d/%d/%d/%s", t.Year(), int(t.Month()), t.Day(), txHash)
}

// PollOptionKeyword returns the natural key of a poll option
func PollOptionKeyword(proposalKeyword, choice string) string {
	return proposalKeyword + "/" + choice
}

// mirrorProposal stores a proposal submission and, with poll voting, its poll options.
// The returned id is the parent proposal id whenever the parent was stored.
func (e *engine) mirrorProposal(ctx context.Context, event domain.ChainEvent, mapping domain.EventMapping, state domain.State, collectiveID string) (string, error) {
	authorID, err := e.resolveAuthor(ctx, event, collectiveID)
	if err != nil {
		return "", err
	}

	index, err := importID(event.ReturnValues)
	if err != nil {
		return "", err
	}

	blockTime, err := e.blocks.GetBlockTimestamp(ctx, event.BlockNumber)
	if err != nil {
		return "", err
	}

	values := event.ReturnValues
	if applicant := values.String(domain.FIELD_APPLICANT); applicant != "" {
		found, err := e.resolver.FindByUsername(ctx, applicant)
		if err != nil {
			logger.WarnCtx(ctx, "Failed to look up applicant", zap.String("applicant", applicant), zap.Error(err))
		} else if found != nil {
			values = values.With(domain.FIELD_APPLICANT_ID, found.ID)
		}
	}

	parent := schema.Proposal{
		Title:           e.titler.Title(mapping.Rules.TitleTemplate, values),
		Keyword:         event.TransactionHash,
		URL:             DatePath(blockTime, event.TransactionHash),
		Date:            blockTime,
		ProposerAddress: values.String(domain.FIELD_DELEGATE_KEY),
		AuthorID:        authorID,
		BlockHeight:     event.BlockNumber,
		ImportID:        index,
		CollectiveID:    collectiveID,
		Closing:         datatypes.NewJSONType(e.closing.Closing(state, event.BlockNumber, blockTime)),
	}

	parentID, err := e.store.UpsertProposal(ctx, &parent)
	if err != nil {
		return parentID, err
	}

	if !mapping.Rules.PollVoting {
		return parentID, nil
	}

	poll := make([]schema.PollEntry, 0, len(domain.PollChoices))
	for i, choice := range domain.PollChoices {
		option := newPollOption(parent, parentID, i, choice, mapping.Rules.ChoiceLabel(choice))
		optionID, err := e.store.UpsertProposal(ctx, &option)
		if err != nil {
			return parentID, fmt.Errorf("poll option %s: %w", option.Keyword, err)
		}
		poll = append(poll, schema.PollEntry{ContractID: optionID, TotalStaked: domain.INITIAL_TOTAL_STAKED})
	}

	if err := e.store.SetProposalPoll(ctx, parentID, poll); err != nil {
		return parentID, err
	}

	return parentID, nil
}

// newPollOption builds a poll option as a fresh value derived from the stored parent
func newPollOption(parent schema.Proposal, parentID string, index int, choice, title string) schema.Proposal {
	return schema.Proposal{
		Title:           title,
		Keyword:         PollOptionKeyword(parent.Keyword, choice),
		URL:             parent.URL,
		Date:            parent.Date,
		ProposerAddress: parent.ProposerAddress,
		AuthorID:        parent.AuthorID,
		BlockHeight:     parent.BlockHeight,
		ImportID:        parent.ImportID,
		PollChoiceID:    strconv.Itoa(index),
		PollID:          parentID,
		CollectiveID:    parent.CollectiveID,
		Closing:         datatypes.NewJSONType(parent.Closing.Data()),
	}
}
