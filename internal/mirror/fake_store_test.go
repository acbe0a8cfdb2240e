package mirror_test

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/datatypes"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/store"
	"github.com/feral-file/ff-dao-mirror/internal/store/schema"
)

// memStore is an in-memory store.Store with the same natural-key semantics as the postgres store
type memStore struct {
	mu         sync.Mutex
	proposals  map[string]*schema.Proposal
	votes      map[string]*schema.Vote
	identities map[string]*schema.Identity

	// failKeywords makes UpsertProposal fail for the listed keywords
	failKeywords map[string]bool
	failVotes    bool
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		proposals:    make(map[string]*schema.Proposal),
		votes:        make(map[string]*schema.Vote),
		identities:   make(map[string]*schema.Identity),
		failKeywords: make(map[string]bool),
	}
}

func (s *memStore) UpsertProposal(_ context.Context, p *schema.Proposal) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existingID := ""
	if existing, ok := s.proposals[p.Keyword]; ok {
		existingID = existing.ID
	}
	if s.failKeywords[p.Keyword] {
		return existingID, fmt.Errorf("%w: injected", domain.ErrPersistenceWrite)
	}

	stored := *p
	if existingID != "" {
		stored.ID = existingID
		stored.Poll = s.proposals[p.Keyword].Poll
	} else {
		stored.ID = store.NewID()
	}
	s.proposals[p.Keyword] = &stored
	p.ID = stored.ID
	return stored.ID, nil
}

func (s *memStore) GetProposalByKeyword(_ context.Context, keyword string) (*schema.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[keyword]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) GetProposalByImportID(_ context.Context, collectiveID, importID string) (*schema.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.proposals {
		if p.CollectiveID == collectiveID && p.ImportID == importID && !p.IsPollOption() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) SetProposalPoll(_ context.Context, proposalID string, poll []schema.PollEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.proposals {
		if p.ID == proposalID {
			p.Poll = datatypes.NewJSONSlice(poll)
			return nil
		}
	}
	return fmt.Errorf("%w: proposal %s not found", domain.ErrPersistenceWrite, proposalID)
}

func voteKey(identityID, pollOptionID string) string {
	return identityID + "|" + pollOptionID
}

func (s *memStore) UpsertVote(_ context.Context, v *schema.Vote) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := voteKey(v.IdentityID, v.PollOptionID)
	existingID := ""
	if existing, ok := s.votes[key]; ok {
		existingID = existing.ID
	}
	if s.failVotes {
		return existingID, fmt.Errorf("%w: injected", domain.ErrPersistenceWrite)
	}

	stored := *v
	if existingID != "" {
		stored.ID = existingID
	} else {
		stored.ID = store.NewID()
	}
	s.votes[key] = &stored
	v.ID = stored.ID
	return stored.ID, nil
}

func (s *memStore) GetVote(_ context.Context, identityID, pollOptionID string) (*schema.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.votes[voteKey(identityID, pollOptionID)]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (s *memStore) GetIdentityByUsername(_ context.Context, username string) (*schema.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.identities[username]
	if !ok {
		return nil, nil
	}
	cp := *i
	return &cp, nil
}

func (s *memStore) UpdateIdentity(_ context.Context, username string, mutate func(*schema.Identity)) (*schema.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.identities[username]
	if !ok {
		i = &schema.Identity{ID: store.NewID(), Username: username}
		s.identities[username] = i
	}
	mutate(i)
	cp := *i
	return &cp, nil
}

func (s *memStore) voteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.votes)
}
