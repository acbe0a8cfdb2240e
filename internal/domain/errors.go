package domain

import "errors"

var (
	// ErrUnresolvableAuthor is returned when an event carries no MEMBER-classified address
	ErrUnresolvableAuthor = errors.New("unresolvable author")

	// ErrMissingCorrelation is returned when a vote references a proposal that is not mirrored yet
	ErrMissingCorrelation = errors.New("proposal not mirrored yet")

	// ErrMissingProposalIndex is returned when an event has no usable proposalIndex
	ErrMissingProposalIndex = errors.New("missing proposal index")

	// ErrNoPoll is returned when a vote targets a proposal that was mirrored without poll options
	ErrNoPoll = errors.New("proposal has no poll")

	// ErrUnknownChoice is returned when a vote code maps to no poll option
	ErrUnknownChoice = errors.New("unknown vote choice")

	// ErrUpstreamFetch is returned when block metadata or on-chain state cannot be fetched
	ErrUpstreamFetch = errors.New("upstream fetch failed")

	// ErrPersistenceWrite is returned when an upsert fails and the record state is unknown
	ErrPersistenceWrite = errors.New("persistence write failed")

	// ErrPersistenceRead is returned when a lookup the mirror depends on fails
	ErrPersistenceRead = errors.New("persistence read failed")

	// ErrContractNotTracked is returned when a batch references an unknown contract
	ErrContractNotTracked = errors.New("contract not tracked")
)
