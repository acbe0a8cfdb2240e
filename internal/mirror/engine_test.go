package mirror_test

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/identity"
	"github.com/feral-file/ff-dao-mirror/internal/logger"
	"github.com/feral-file/ff-dao-mirror/internal/mirror"
	"github.com/feral-file/ff-dao-mirror/internal/mocks"
)

const (
	memberAddr    = "0x1111111111111111111111111111111111111111"
	applicantAddr = "0x2222222222222222222222222222222222222222"
	delegateAddr  = "0x3333333333333333333333333333333333333333"
	collective    = "collective-a"
)

var blockTime = time.Date(2019, 3, 5, 10, 30, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testEngineMocks struct {
	ctrl   *gomock.Controller
	store  *memStore
	blocks *mocks.MockBlockProvider
	engine mirror.Engine
}

func setupTest(t *testing.T) *testEngineMocks {
	ctrl := gomock.NewController(t)
	st := newMemStore()
	blocks := mocks.NewMockBlockProvider(ctrl)

	engine := mirror.NewEngine(
		st,
		identity.NewResolver(st),
		blocks,
		mirror.NewTitler(""),
		mirror.NewPeriodClosingRule(),
		mirror.DefaultConfig(),
	)

	return &testEngineMocks{ctrl: ctrl, store: st, blocks: blocks, engine: engine}
}

func tearDownTest(tm *testEngineMocks) {
	tm.ctrl.Finish()
}

func (tm *testEngineMocks) blockTimesAnyTimes() {
	tm.blocks.EXPECT().GetBlockTimestamp(gomock.Any(), gomock.Any()).Return(blockTime, nil).AnyTimes()
}

func proposalMappings(pollVoting bool) []domain.EventMapping {
	return []domain.EventMapping{
		{
			EventName:      domain.EVENT_SUBMIT_PROPOSAL,
			CollectionType: domain.CollectionProposal,
			Rules: domain.MappingRules{
				PollVoting:    pollVoting,
				TitleTemplate: "Proposal {{proposalIndex}} for {{applicantId}}",
				ChoiceLabels:  map[string]string{"yes": "Yes", "no": "No"},
			},
		},
		{
			EventName:      domain.EVENT_SUBMIT_VOTE,
			CollectionType: domain.CollectionProposal,
		},
	}
}

func submitProposal(txHash string, index any) domain.ChainEvent {
	return domain.ChainEvent{
		EventName: domain.EVENT_SUBMIT_PROPOSAL,
		ReturnValues: domain.ReturnValues{
			{Name: "proposalIndex", Value: index},
			{Name: "delegateKey", Value: delegateAddr},
			{Name: "memberAddress", Value: memberAddr},
			{Name: "applicant", Value: applicantAddr},
			{Name: "tokenTribute", Value: big.NewInt(100)},
		},
		BlockNumber:     100,
		TransactionHash: txHash,
	}
}

func submitVote(txHash string, index any, code any) domain.ChainEvent {
	return domain.ChainEvent{
		EventName: domain.EVENT_SUBMIT_VOTE,
		ReturnValues: domain.ReturnValues{
			{Name: "proposalIndex", Value: index},
			{Name: "delegateKey", Value: delegateAddr},
			{Name: "memberAddress", Value: memberAddr},
			{Name: "uintVote", Value: code},
		},
		BlockNumber:     120,
		TransactionHash: txHash,
	}
}

func TestMirrorBatch_ProposalWithPoll(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)
	tm.blockTimesAnyTimes()

	ctx := context.Background()
	report := tm.engine.MirrorBatch(ctx, []domain.ChainEvent{submitProposal("0xT1", "3")}, proposalMappings(true), domain.State{}, collective)

	require.Len(t, report.Outcomes, 1)
	require.NoError(t, report.Outcomes[0].Err)
	assert.Equal(t, 1, report.Mirrored())
	assert.False(t, report.Retryable())

	parent, err := tm.store.GetProposalByKeyword(ctx, "0xT1")
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, report.Outcomes[0].RecordID, parent.ID)
	assert.Equal(t, "3", parent.ImportID)
	assert.Equal(t, "/2019/3/5/0xT1", parent.URL)
	assert.Equal(t, blockTime, parent.Date)
	assert.Equal(t, delegateAddr, parent.ProposerAddress)
	assert.Equal(t, uint64(100), parent.BlockHeight)
	assert.Equal(t, collective, parent.CollectiveID)
	assert.Empty(t, parent.PollID)

	applicant, err := tm.store.GetIdentityByUsername(ctx, applicantAddr)
	require.NoError(t, err)
	require.NotNil(t, applicant)
	assert.Equal(t, "Proposal 3 for "+applicant.ID, parent.Title)

	author, err := tm.store.GetIdentityByUsername(ctx, memberAddr)
	require.NoError(t, err)
	assert.Equal(t, author.ID, parent.AuthorID)

	no, err := tm.store.GetProposalByKeyword(ctx, "0xT1/no")
	require.NoError(t, err)
	yes, err := tm.store.GetProposalByKeyword(ctx, "0xT1/yes")
	require.NoError(t, err)
	require.NotNil(t, no)
	require.NotNil(t, yes)
	assert.NotEqual(t, no.ID, yes.ID)

	assert.Equal(t, "0", no.PollChoiceID)
	assert.Equal(t, "1", yes.PollChoiceID)
	assert.Equal(t, parent.ID, no.PollID)
	assert.Equal(t, parent.ID, yes.PollID)
	assert.Equal(t, "No", no.Title)
	assert.Equal(t, "Yes", yes.Title)
	assert.Equal(t, "3", yes.ImportID)

	poll := []map[string]string{}
	for _, entry := range parent.Poll {
		poll = append(poll, map[string]string{"contractId": entry.ContractID, "totalStaked": entry.TotalStaked})
	}
	assert.Equal(t, []map[string]string{
		{"contractId": no.ID, "totalStaked": "0"},
		{"contractId": yes.ID, "totalStaked": "0"},
	}, poll)
}

func TestMirrorBatch_ProposalIsIdempotent(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)
	tm.blockTimesAnyTimes()

	ctx := context.Background()
	events := []domain.ChainEvent{submitProposal("0xT1", "3")}

	first := tm.engine.MirrorBatch(ctx, events, proposalMappings(true), domain.State{}, collective)
	yes1, _ := tm.store.GetProposalByKeyword(ctx, "0xT1/yes")

	second := tm.engine.MirrorBatch(ctx, events, proposalMappings(true), domain.State{}, collective)
	yes2, _ := tm.store.GetProposalByKeyword(ctx, "0xT1/yes")

	require.Len(t, first.Outcomes, 1)
	require.Len(t, second.Outcomes, 1)
	assert.Equal(t, first.Outcomes[0].RecordID, second.Outcomes[0].RecordID)
	assert.Equal(t, yes1.ID, yes2.ID)
	assert.Len(t, tm.store.proposals, 3)
	assert.Len(t, tm.store.identities, 3)
}

func TestMirrorBatch_ProposalWithoutPoll(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)
	tm.blockTimesAnyTimes()

	ctx := context.Background()
	report := tm.engine.MirrorBatch(ctx, []domain.ChainEvent{submitProposal("0xT1", "3")}, proposalMappings(false), domain.State{}, collective)

	require.Len(t, report.Outcomes, 1)
	assert.NoError(t, report.Outcomes[0].Err)
	assert.Len(t, tm.store.proposals, 1)

	parent, _ := tm.store.GetProposalByKeyword(ctx, "0xT1")
	assert.Empty(t, parent.Poll)
}

func TestMirrorBatch_ProposalIndexWiderThan64Bits(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)
	tm.blockTimesAnyTimes()

	index, ok := new(big.Int).SetString("340282366920938463463374607431768211457", 10)
	require.True(t, ok)

	ctx := context.Background()
	report := tm.engine.MirrorBatch(ctx, []domain.ChainEvent{submitProposal("0xT9", index)}, proposalMappings(false), domain.State{}, collective)
	require.NoError(t, report.Outcomes[0].Err)

	parent, _ := tm.store.GetProposalByKeyword(ctx, "0xT9")
	assert.Equal(t, "340282366920938463463374607431768211457", parent.ImportID)
}

func TestMirrorBatch_ProposalClosingFromState(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)
	tm.blockTimesAnyTimes()

	ctx := context.Background()
	state := domain.State{
		mirror.PARAM_PERIOD_DURATION:      big.NewInt(60),
		mirror.PARAM_VOTING_PERIOD_LENGTH: big.NewInt(10),
	}
	report := tm.engine.MirrorBatch(ctx, []domain.ChainEvent{submitProposal("0xT1", "3")}, proposalMappings(false), state, collective)
	require.NoError(t, report.Outcomes[0].Err)

	parent, _ := tm.store.GetProposalByKeyword(ctx, "0xT1")
	closing := parent.Closing.Data()
	assert.Equal(t, uint64(600), closing.Delta)
	assert.Equal(t, uint64(140), closing.Height)
	assert.Equal(t, blockTime.Add(10*time.Minute), closing.Calendar)
}

func TestMirrorBatch_ProvisionsIdentityForEveryAddress(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)
	tm.blockTimesAnyTimes()

	ctx := context.Background()
	tm.engine.MirrorBatch(ctx, []domain.ChainEvent{submitProposal("0xT1", "3")}, proposalMappings(false), domain.State{}, collective)

	expected := map[string]string{
		delegateAddr:  "DELEGATE",
		memberAddr:    "MEMBER",
		applicantAddr: "APPLICANT",
	}
	for address, role := range expected {
		i, err := tm.store.GetIdentityByUsername(ctx, address)
		require.NoError(t, err)
		require.NotNil(t, i, address)
		assert.Equal(t, role, i.Profile.Data().Membership)
		assert.Equal(t, []string{collective}, i.Profile.Data().Collectives)
	}
}

func TestMirrorBatch_UnresolvableAuthorIsDropped(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	event := domain.ChainEvent{
		EventName: domain.EVENT_SUBMIT_PROPOSAL,
		ReturnValues: domain.ReturnValues{
			{Name: "proposalIndex", Value: "4"},
			{Name: "delegateKey", Value: delegateAddr},
		},
		TransactionHash: "0xT4",
	}

	report := tm.engine.MirrorBatch(context.Background(), []domain.ChainEvent{event}, proposalMappings(true), domain.State{}, collective)

	require.Len(t, report.Outcomes, 1)
	assert.ErrorIs(t, report.Outcomes[0].Err, domain.ErrUnresolvableAuthor)
	assert.False(t, report.Retryable())
	assert.Empty(t, tm.store.proposals)
	// The delegate is still provisioned
	assert.Len(t, tm.store.identities, 1)
}

func TestMirrorBatch_MissingProposalIndex(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	event := submitProposal("0xT5", "")
	report := tm.engine.MirrorBatch(context.Background(), []domain.ChainEvent{event}, proposalMappings(true), domain.State{}, collective)

	require.Len(t, report.Outcomes, 1)
	assert.ErrorIs(t, report.Outcomes[0].Err, domain.ErrMissingProposalIndex)
	assert.Empty(t, tm.store.proposals)
}

func TestMirrorBatch_BlockFetchFailureIsRetryable(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	tm.blocks.EXPECT().GetBlockTimestamp(gomock.Any(), uint64(100)).
		Return(time.Time{}, fmt.Errorf("%w: timeout", domain.ErrUpstreamFetch))

	report := tm.engine.MirrorBatch(context.Background(), []domain.ChainEvent{submitProposal("0xT1", "3")}, proposalMappings(true), domain.State{}, collective)

	require.Len(t, report.Outcomes, 1)
	assert.ErrorIs(t, report.Outcomes[0].Err, domain.ErrUpstreamFetch)
	assert.True(t, report.Retryable())
	assert.Empty(t, tm.store.proposals)
}

func TestMirrorBatch_PollOptionWriteFailureSkipsPollUpdate(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)
	tm.blockTimesAnyTimes()

	ctx := context.Background()
	tm.store.failKeywords["0xT1/yes"] = true

	report := tm.engine.MirrorBatch(ctx, []domain.ChainEvent{submitProposal("0xT1", "3")}, proposalMappings(true), domain.State{}, collective)
	require.Len(t, report.Outcomes, 1)
	assert.ErrorIs(t, report.Outcomes[0].Err, domain.ErrPersistenceWrite)
	assert.True(t, report.Retryable())

	parent, _ := tm.store.GetProposalByKeyword(ctx, "0xT1")
	require.NotNil(t, parent)
	assert.Equal(t, parent.ID, report.Outcomes[0].RecordID)
	assert.Empty(t, parent.Poll)

	// Re-delivery repairs the poll array
	delete(tm.store.failKeywords, "0xT1/yes")
	report = tm.engine.MirrorBatch(ctx, []domain.ChainEvent{submitProposal("0xT1", "3")}, proposalMappings(true), domain.State{}, collective)
	require.NoError(t, report.Outcomes[0].Err)

	parent, _ = tm.store.GetProposalByKeyword(ctx, "0xT1")
	assert.Len(t, parent.Poll, 2)
}

func TestMirrorBatch_VoteCorrelatesToPollOption(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)
	tm.blockTimesAnyTimes()

	ctx := context.Background()
	events := []domain.ChainEvent{
		submitProposal("0xT1", "3"),
		submitVote("0xT2", "3", uint8(1)),
	}

	report := tm.engine.MirrorBatch(ctx, events, proposalMappings(true), domain.State{}, collective)
	require.Len(t, report.Outcomes, 2)
	require.NoError(t, report.Outcomes[0].Err)
	require.NoError(t, report.Outcomes[1].Err)
	assert.Equal(t, mirror.KindVote, report.Outcomes[1].Kind)

	parent, _ := tm.store.GetProposalByKeyword(ctx, "0xT1")
	yes, _ := tm.store.GetProposalByKeyword(ctx, "0xT1/yes")
	author, _ := tm.store.GetIdentityByUsername(ctx, memberAddr)

	vote, err := tm.store.GetVote(ctx, author.ID, yes.ID)
	require.NoError(t, err)
	require.NotNil(t, vote)
	assert.Equal(t, report.Outcomes[1].RecordID, vote.ID)
	assert.Equal(t, parent.ID, vote.ProposalID)
	assert.Equal(t, "0xT1", vote.Address)
	assert.Equal(t, blockTime, vote.Timestamp)
	assert.Equal(t, "0xT2", vote.TransactionHash)

	// Re-delivery updates in place
	again := tm.engine.MirrorBatch(ctx, events[1:], proposalMappings(true), domain.State{}, collective)
	require.Len(t, again.Outcomes, 1)
	assert.Equal(t, vote.ID, again.Outcomes[0].RecordID)
	assert.Equal(t, 1, tm.store.voteCount())
}

func TestMirrorBatch_VoteNoChoice(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)
	tm.blockTimesAnyTimes()

	ctx := context.Background()
	events := []domain.ChainEvent{
		submitProposal("0xT1", "3"),
		submitVote("0xT3", big.NewInt(3), big.NewInt(2)),
	}

	report := tm.engine.MirrorBatch(ctx, events, proposalMappings(true), domain.State{}, collective)
	require.NoError(t, report.Outcomes[1].Err)

	no, _ := tm.store.GetProposalByKeyword(ctx, "0xT1/no")
	author, _ := tm.store.GetIdentityByUsername(ctx, memberAddr)
	vote, _ := tm.store.GetVote(ctx, author.ID, no.ID)
	require.NotNil(t, vote)
}

func TestMirrorBatch_VoteWithoutProposalIsRecoverable(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	report := tm.engine.MirrorBatch(context.Background(), []domain.ChainEvent{submitVote("0xT2", "7", uint8(1))}, proposalMappings(true), domain.State{}, collective)

	require.Len(t, report.Outcomes, 1)
	assert.ErrorIs(t, report.Outcomes[0].Err, domain.ErrMissingCorrelation)
	assert.True(t, report.Retryable())
	assert.Equal(t, 0, tm.store.voteCount())
}

func TestMirrorBatch_VoteOnProposalWithoutPollIsFinal(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)
	tm.blockTimesAnyTimes()

	ctx := context.Background()
	events := []domain.ChainEvent{
		submitProposal("0xT1", "3"),
		submitVote("0xT2", "3", uint8(1)),
	}

	report := tm.engine.MirrorBatch(ctx, events, proposalMappings(false), domain.State{}, collective)

	require.Len(t, report.Outcomes, 2)
	assert.NoError(t, report.Outcomes[0].Err)
	assert.ErrorIs(t, report.Outcomes[1].Err, domain.ErrNoPoll)
	assert.False(t, report.Outcomes[1].Retryable())
	assert.False(t, report.Retryable())
	assert.Equal(t, 0, tm.store.voteCount())
}

func TestMirrorBatch_VoteDoesNotCorrelateAcrossCollectives(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)
	tm.blockTimesAnyTimes()

	ctx := context.Background()
	tm.engine.MirrorBatch(ctx, []domain.ChainEvent{submitProposal("0xT1", "3")}, proposalMappings(true), domain.State{}, collective)

	report := tm.engine.MirrorBatch(ctx, []domain.ChainEvent{submitVote("0xT2", "3", uint8(1))}, proposalMappings(true), domain.State{}, "collective-b")
	assert.ErrorIs(t, report.Outcomes[0].Err, domain.ErrMissingCorrelation)
	assert.Equal(t, 0, tm.store.voteCount())
}

func TestMirrorBatch_VoteUnknownChoice(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)
	tm.blockTimesAnyTimes()

	ctx := context.Background()
	events := []domain.ChainEvent{
		submitProposal("0xT1", "3"),
		submitVote("0xT2", "3", uint8(0)),
		submitVote("0xT3", "3", "abc"),
	}

	report := tm.engine.MirrorBatch(ctx, events, proposalMappings(true), domain.State{}, collective)
	require.Len(t, report.Outcomes, 3)
	assert.ErrorIs(t, report.Outcomes[1].Err, domain.ErrUnknownChoice)
	assert.ErrorIs(t, report.Outcomes[2].Err, domain.ErrUnknownChoice)
	assert.False(t, report.Retryable())
	assert.Len(t, report.Skipped(), 2)
	assert.Equal(t, 0, tm.store.voteCount())
}

func TestMirrorBatch_VoteWriteFailure(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)
	tm.blockTimesAnyTimes()

	ctx := context.Background()
	tm.store.failVotes = true

	events := []domain.ChainEvent{submitProposal("0xT1", "3"), submitVote("0xT2", "3", uint8(1))}
	report := tm.engine.MirrorBatch(ctx, events, proposalMappings(true), domain.State{}, collective)

	require.Len(t, report.Outcomes, 2)
	assert.NoError(t, report.Outcomes[0].Err)
	assert.ErrorIs(t, report.Outcomes[1].Err, domain.ErrPersistenceWrite)
	assert.Empty(t, report.Outcomes[1].RecordID)
	assert.True(t, report.Retryable())
}

func TestMirrorBatch_Routing(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	mappings := []domain.EventMapping{
		{EventName: domain.EVENT_SUBMIT_PROPOSAL, CollectionType: domain.CollectionVote},
		{EventName: "ProcessProposal", CollectionType: domain.CollectionProposal},
	}
	events := []domain.ChainEvent{
		submitProposal("0xT1", "3"),
		{EventName: "ProcessProposal", TransactionHash: "0xT6"},
		{EventName: "Ragequit", TransactionHash: "0xT7"},
	}

	report := tm.engine.MirrorBatch(context.Background(), events, mappings, domain.State{}, collective)

	assert.Empty(t, report.Outcomes)
	assert.Equal(t, 3, report.Ignored)
	assert.Empty(t, tm.store.proposals)
	assert.Empty(t, tm.store.identities)
}

func TestMirrorBatch_ConfigurableEventNames(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := newMemStore()
	blocks := mocks.NewMockBlockProvider(ctrl)
	blocks.EXPECT().GetBlockTimestamp(gomock.Any(), gomock.Any()).Return(blockTime, nil).AnyTimes()

	engine := mirror.NewEngine(st, identity.NewResolver(st), blocks, mirror.NewTitler("Grant {{proposalIndex}}"), mirror.NewPeriodClosingRule(), mirror.Config{
		SubmissionEvents: []string{"SubmitGrant"},
	})

	event := submitProposal("0xT8", "8")
	event.EventName = "SubmitGrant"
	report := engine.MirrorBatch(context.Background(), []domain.ChainEvent{event}, []domain.EventMapping{
		{EventName: "SubmitGrant", CollectionType: domain.CollectionProposal},
	}, domain.State{}, collective)

	require.Len(t, report.Outcomes, 1)
	require.NoError(t, report.Outcomes[0].Err)

	parent, _ := st.GetProposalByKeyword(context.Background(), "0xT8")
	assert.Equal(t, "Grant 8", parent.Title)
}

func TestMirrorBatch_StopsOnCancellation(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := tm.engine.MirrorBatch(ctx, []domain.ChainEvent{submitProposal("0xT1", "3")}, proposalMappings(true), domain.State{}, collective)

	assert.True(t, report.Cancelled)
	assert.True(t, report.Retryable())
	assert.Empty(t, report.Outcomes)
	assert.Empty(t, tm.store.proposals)
}
