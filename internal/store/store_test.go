package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/store/schema"
)

// =============================================================================
// Test Data Builders
// =============================================================================

// buildTestProposal creates a parent proposal for a submission transaction
func buildTestProposal(txHash, collectiveID, importID string) *schema.Proposal {
	date := time.Date(2019, 4, 12, 10, 30, 0, 0, time.UTC)
	return &schema.Proposal{
		Keyword:         txHash,
		Title:           "Proposal #" + importID,
		URL:             "/2019/4/12/" + txHash,
		Date:            date,
		ProposerAddress: "0xdelegate",
		AuthorID:        "author-1",
		BlockHeight:     7500000,
		ImportID:        importID,
		CollectiveID:    collectiveID,
		Closing: datatypes.NewJSONType(schema.Closing{
			Blockchain: "ETH",
			Height:     7517280,
			Calendar:   date.Add(72 * time.Hour),
			Delta:      259200,
		}),
	}
}

// buildTestPollOption creates a poll option of a parent proposal
func buildTestPollOption(parent *schema.Proposal, choiceIndex int, choice string) *schema.Proposal {
	option := *parent
	option.ID = ""
	option.Keyword = parent.Keyword + "/" + choice
	option.Title = choice
	option.PollChoiceID = []string{"0", "1"}[choiceIndex]
	option.PollID = parent.ID
	option.Poll = nil
	return &option
}

// buildTestVote creates a vote of an identity on a poll option
func buildTestVote(identityID string, option *schema.Proposal, txHash string) *schema.Vote {
	return &schema.Vote{
		IdentityID:      identityID,
		PollOptionID:    option.ID,
		ProposalID:      option.PollID,
		Address:         option.Keyword,
		Timestamp:       time.Date(2019, 4, 13, 8, 0, 0, 0, time.UTC),
		BlockNumber:     7500100,
		TransactionHash: txHash,
		CollectiveID:    option.CollectiveID,
	}
}

// =============================================================================
// Test: Proposals
// =============================================================================

func testUpsertProposal(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("insert assigns an id", func(t *testing.T) {
		proposal := buildTestProposal("0xinsert", "collective-1", "0")

		id, err := store.UpsertProposal(ctx, proposal)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
		assert.Equal(t, id, proposal.ID)

		stored, err := store.GetProposalByKeyword(ctx, "0xinsert")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, id, stored.ID)
		assert.Equal(t, "Proposal #0", stored.Title)
		assert.Equal(t, uint64(7500000), stored.BlockHeight)
		assert.Equal(t, uint64(7517280), stored.Closing.Data().Height)
		assert.False(t, stored.IsPollOption())
	})

	t.Run("re-delivery keeps the id and overwrites fields", func(t *testing.T) {
		first := buildTestProposal("0xreplay", "collective-1", "1")
		id, err := store.UpsertProposal(ctx, first)
		require.NoError(t, err)

		second := buildTestProposal("0xreplay", "collective-1", "1")
		second.Title = "Renamed"
		again, err := store.UpsertProposal(ctx, second)
		require.NoError(t, err)
		assert.Equal(t, id, again)

		stored, err := store.GetProposalByKeyword(ctx, "0xreplay")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", stored.Title)
	})

	t.Run("re-delivery keeps the poll array", func(t *testing.T) {
		parent := buildTestProposal("0xkeeppoll", "collective-1", "2")
		id, err := store.UpsertProposal(ctx, parent)
		require.NoError(t, err)

		poll := []schema.PollEntry{{ContractID: "a", TotalStaked: "0"}, {ContractID: "b", TotalStaked: "0"}}
		require.NoError(t, store.SetProposalPoll(ctx, id, poll))

		_, err = store.UpsertProposal(ctx, buildTestProposal("0xkeeppoll", "collective-1", "2"))
		require.NoError(t, err)

		stored, err := store.GetProposalByKeyword(ctx, "0xkeeppoll")
		require.NoError(t, err)
		assert.Equal(t, poll, []schema.PollEntry(stored.Poll))
	})

	t.Run("empty keyword is rejected", func(t *testing.T) {
		proposal := buildTestProposal("", "collective-1", "3")
		id, err := store.UpsertProposal(ctx, proposal)
		assert.ErrorIs(t, err, domain.ErrPersistenceWrite)
		assert.Empty(t, id)
	})

	t.Run("get non-existent proposal returns nil", func(t *testing.T) {
		stored, err := store.GetProposalByKeyword(ctx, "0xmissing")
		require.NoError(t, err)
		assert.Nil(t, stored)
	})
}

func testGetProposalByImportID(t *testing.T, store Store) {
	ctx := context.Background()

	parent := buildTestProposal("0ximport", "collective-a", "7")
	_, err := store.UpsertProposal(ctx, parent)
	require.NoError(t, err)

	for i, choice := range []string{"no", "yes"} {
		_, err := store.UpsertProposal(ctx, buildTestPollOption(parent, i, choice))
		require.NoError(t, err)
	}

	other := buildTestProposal("0ximport-other", "collective-b", "7")
	_, err = store.UpsertProposal(ctx, other)
	require.NoError(t, err)

	t.Run("returns the parent and never a poll option", func(t *testing.T) {
		found, err := store.GetProposalByImportID(ctx, "collective-a", "7")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, parent.ID, found.ID)
		assert.False(t, found.IsPollOption())
	})

	t.Run("is scoped by collective", func(t *testing.T) {
		found, err := store.GetProposalByImportID(ctx, "collective-b", "7")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, other.ID, found.ID)
	})

	t.Run("unknown index returns nil", func(t *testing.T) {
		found, err := store.GetProposalByImportID(ctx, "collective-a", "8")
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func testPollOptions(t *testing.T, store Store) {
	ctx := context.Background()

	parent := buildTestProposal("0xpoll", "collective-1", "4")
	parentID, err := store.UpsertProposal(ctx, parent)
	require.NoError(t, err)

	var poll []schema.PollEntry
	for i, choice := range []string{"no", "yes"} {
		id, err := store.UpsertProposal(ctx, buildTestPollOption(parent, i, choice))
		require.NoError(t, err)
		poll = append(poll, schema.PollEntry{ContractID: id, TotalStaked: "0"})
	}
	require.NoError(t, store.SetProposalPoll(ctx, parentID, poll))

	t.Run("options reference the parent", func(t *testing.T) {
		yes, err := store.GetProposalByKeyword(ctx, "0xpoll/yes")
		require.NoError(t, err)
		require.NotNil(t, yes)
		assert.Equal(t, parentID, yes.PollID)
		assert.Equal(t, "1", yes.PollChoiceID)
		assert.True(t, yes.IsPollOption())
		assert.Equal(t, poll[1].ContractID, yes.ID)
	})

	t.Run("parent lists options in choice order", func(t *testing.T) {
		stored, err := store.GetProposalByKeyword(ctx, "0xpoll")
		require.NoError(t, err)
		assert.Equal(t, poll, []schema.PollEntry(stored.Poll))
	})

	t.Run("re-upserting options keeps their ids", func(t *testing.T) {
		for i, choice := range []string{"no", "yes"} {
			id, err := store.UpsertProposal(ctx, buildTestPollOption(parent, i, choice))
			require.NoError(t, err)
			assert.Equal(t, poll[i].ContractID, id)
		}
	})

	t.Run("set poll on unknown proposal fails", func(t *testing.T) {
		err := store.SetProposalPoll(ctx, "missing", poll)
		assert.ErrorIs(t, err, domain.ErrPersistenceWrite)
	})
}

// =============================================================================
// Test: Votes
// =============================================================================

func testUpsertVote(t *testing.T, store Store) {
	ctx := context.Background()

	parent := buildTestProposal("0xvoted", "collective-1", "5")
	_, err := store.UpsertProposal(ctx, parent)
	require.NoError(t, err)
	yes := buildTestPollOption(parent, 1, "yes")
	_, err = store.UpsertProposal(ctx, yes)
	require.NoError(t, err)

	t.Run("one vote per identity and option", func(t *testing.T) {
		id, err := store.UpsertVote(ctx, buildTestVote("identity-1", yes, "0xvote1"))
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		replay := buildTestVote("identity-1", yes, "0xvote1")
		replay.BlockNumber = 7500200
		again, err := store.UpsertVote(ctx, replay)
		require.NoError(t, err)
		assert.Equal(t, id, again)

		stored, err := store.GetVote(ctx, "identity-1", yes.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, uint64(7500200), stored.BlockNumber)
		assert.Equal(t, parent.ID, stored.ProposalID)
		assert.Equal(t, "0xvoted/yes", stored.Address)
	})

	t.Run("different identities get different votes", func(t *testing.T) {
		first, err := store.UpsertVote(ctx, buildTestVote("identity-2", yes, "0xvote2"))
		require.NoError(t, err)
		second, err := store.UpsertVote(ctx, buildTestVote("identity-3", yes, "0xvote3"))
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("incomplete natural key is rejected", func(t *testing.T) {
		id, err := store.UpsertVote(ctx, buildTestVote("", yes, "0xvote4"))
		assert.ErrorIs(t, err, domain.ErrPersistenceWrite)
		assert.Empty(t, id)
	})

	t.Run("get non-existent vote returns nil", func(t *testing.T) {
		stored, err := store.GetVote(ctx, "identity-9", yes.ID)
		require.NoError(t, err)
		assert.Nil(t, stored)
	})
}

// =============================================================================
// Test: Identities
// =============================================================================

func testUpdateIdentity(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("creates a missing identity", func(t *testing.T) {
		identity, err := store.UpdateIdentity(ctx, "0xmember", func(i *schema.Identity) {
			profile := i.Profile.Data()
			profile.Membership = "MEMBER"
			profile.Collectives = append(profile.Collectives, "collective-1")
			i.Profile = datatypes.NewJSONType(profile)
		})
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.NotEmpty(t, identity.ID)

		stored, err := store.GetIdentityByUsername(ctx, "0xmember")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, identity.ID, stored.ID)
		assert.Equal(t, "MEMBER", stored.Profile.Data().Membership)
		assert.Equal(t, []string{"collective-1"}, stored.Profile.Data().Collectives)
	})

	t.Run("mutates an existing identity in place", func(t *testing.T) {
		first, err := store.UpdateIdentity(ctx, "0xrepeat", func(i *schema.Identity) {})
		require.NoError(t, err)
		assert.Equal(t, []string{}, first.Profile.Data().Collectives)

		second, err := store.UpdateIdentity(ctx, "0xrepeat", func(i *schema.Identity) {
			profile := i.Profile.Data()
			profile.Membership = "APPLICANT"
			i.Profile = datatypes.NewJSONType(profile)
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		stored, err := store.GetIdentityByUsername(ctx, "0xrepeat")
		require.NoError(t, err)
		assert.Equal(t, "APPLICANT", stored.Profile.Data().Membership)
	})

	t.Run("get non-existent identity returns nil", func(t *testing.T) {
		stored, err := store.GetIdentityByUsername(ctx, "0xnobody")
		require.NoError(t, err)
		assert.Nil(t, stored)
	})
}

// =============================================================================
// Test: Block cursors
// =============================================================================

func testBlockCursor(t *testing.T, store CursorStore) {
	ctx := context.Background()
	chain := domain.ChainEthereumMainnet

	t.Run("get non-existent cursor returns 0", func(t *testing.T) {
		cursor, err := store.GetBlockCursor(ctx, chain, "0xnonexistent")
		require.NoError(t, err)
		assert.Equal(t, uint64(0), cursor)
	})

	t.Run("set and get cursor", func(t *testing.T) {
		err := store.SetBlockCursor(ctx, chain, "0xCursor", 12345)
		require.NoError(t, err)

		cursor, err := store.GetBlockCursor(ctx, chain, "0xcursor")
		require.NoError(t, err)
		assert.Equal(t, uint64(12345), cursor)
	})

	t.Run("update existing cursor", func(t *testing.T) {
		require.NoError(t, store.SetBlockCursor(ctx, chain, "0xupdate", 100))
		require.NoError(t, store.SetBlockCursor(ctx, chain, "0xupdate", 200))

		cursor, err := store.GetBlockCursor(ctx, chain, "0xupdate")
		require.NoError(t, err)
		assert.Equal(t, uint64(200), cursor)
	})

	t.Run("cursors are kept per contract and chain", func(t *testing.T) {
		require.NoError(t, store.SetBlockCursor(ctx, chain, "0xfirst", 10))
		require.NoError(t, store.SetBlockCursor(ctx, domain.ChainEthereumSepolia, "0xfirst", 20))

		cursor, err := store.GetBlockCursor(ctx, chain, "0xfirst")
		require.NoError(t, err)
		assert.Equal(t, uint64(10), cursor)

		cursor, err = store.GetBlockCursor(ctx, domain.ChainEthereumSepolia, "0xfirst")
		require.NoError(t, err)
		assert.Equal(t, uint64(20), cursor)
	})
}

func TestNormalizeConnectionPoolSettings(t *testing.T) {
	tests := []struct {
		name                       string
		maxOpen, maxIdle           int
		lifetime, idleTime         time.Duration
		wantOpen, wantIdle         int
		wantLifetime, wantIdleTime time.Duration
	}{
		{
			name:         "defaults",
			wantOpen:     10,
			wantIdle:     5,
			wantLifetime: 5 * time.Minute,
			wantIdleTime: 10 * time.Minute,
		},
		{
			name:         "idle clamped to open",
			maxOpen:      3,
			maxIdle:      8,
			lifetime:     time.Minute,
			idleTime:     time.Minute,
			wantOpen:     3,
			wantIdle:     3,
			wantLifetime: time.Minute,
			wantIdleTime: time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, idle, lifetime, idleTime := NormalizeConnectionPoolSettings(tt.maxOpen, tt.maxIdle, tt.lifetime, tt.idleTime)
			assert.Equal(t, tt.wantOpen, open)
			assert.Equal(t, tt.wantIdle, idle)
			assert.Equal(t, tt.wantLifetime, lifetime)
			assert.Equal(t, tt.wantIdleTime, idleTime)
		})
	}
}

func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"UpsertProposal", testUpsertProposal},
		{"GetProposalByImportID", testGetProposalByImportID},
		{"PollOptions", testPollOptions},
		{"UpsertVote", testUpsertVote},
		{"UpdateIdentity", testUpdateIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}
