package mirror

import (
	"errors"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
)

// Kind is the kind of record an event was mirrored into
type Kind string

const (
	KindProposal Kind = "proposal"
	KindVote     Kind = "vote"
)

// Outcome is the result of mirroring one event through one mapping entry
type Outcome struct {
	Kind            Kind
	EventName       string
	TransactionHash string
	BlockNumber     uint64
	LogIndex        uint
	// RecordID is the id of the stored record. It may be set even when Err is not nil,
	// for instance when a proposal was stored but one of its poll options was not.
	RecordID string
	// Err is nil when the event was mirrored
	Err error
}

// Skipped reports whether the event was not (fully) mirrored
func (o Outcome) Skipped() bool {
	return o.Err != nil
}

// Retryable reports whether re-delivering the event could make progress
func (o Outcome) Retryable() bool {
	return isRetryable(o.Err)
}

func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrMissingCorrelation) ||
		errors.Is(err, domain.ErrUpstreamFetch) ||
		errors.Is(err, domain.ErrPersistenceWrite) ||
		errors.Is(err, domain.ErrPersistenceRead)
}

// Report summarises a MirrorBatch call
type Report struct {
	Outcomes []Outcome
	// Ignored counts events that matched no mapping entry or a reserved one
	Ignored int
	// Cancelled is set when the context was cancelled before every event was processed
	Cancelled bool
}

// Mirrored returns the number of events that were mirrored without error
func (r Report) Mirrored() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Skipped() {
			n++
		}
	}
	return n
}

// Skipped returns the outcomes that ended in an error
func (r Report) Skipped() []Outcome {
	var skipped []Outcome
	for _, o := range r.Outcomes {
		if o.Skipped() {
			skipped = append(skipped, o)
		}
	}
	return skipped
}

// Retryable reports whether re-delivering the batch could make progress
func (r Report) Retryable() bool {
	if r.Cancelled {
		return true
	}
	for _, o := range r.Outcomes {
		if o.Retryable() {
			return true
		}
	}
	return false
}
