package mirror

import (
	"time"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/store/schema"
)

const (
	// Parameters read from the state snapshot
	PARAM_PERIOD_DURATION      = "periodDuration"
	PARAM_VOTING_PERIOD_LENGTH = "votingPeriodLength"
	PARAM_GRACE_PERIOD_LENGTH  = "gracePeriodLength"
)

// ClosingRule derives when voting on a proposal closes
type ClosingRule interface {
	Closing(state domain.State, blockNumber uint64, blockTime time.Time) schema.Closing
}

// PeriodClosingRule closes a proposal after votingPeriodLength periods of
// periodDuration seconds, optionally extended by the grace period.
// Missing parameters yield a closing at the submission block.
type PeriodClosingRule struct {
	Blockchain   string
	BlockTime    time.Duration
	IncludeGrace bool
}

// NewPeriodClosingRule returns a closing rule for an Ethereum chain
func NewPeriodClosingRule() ClosingRule {
	return PeriodClosingRule{Blockchain: "ETH", BlockTime: 15 * time.Second}
}

func (r PeriodClosingRule) Closing(state domain.State, blockNumber uint64, blockTime time.Time) schema.Closing {
	duration := stateUint(state, PARAM_PERIOD_DURATION)
	periods := stateUint(state, PARAM_VOTING_PERIOD_LENGTH)
	if r.IncludeGrace {
		periods += stateUint(state, PARAM_GRACE_PERIOD_LENGTH)
	}

	delta := duration * periods

	blocks := uint64(0)
	if secs := uint64(r.BlockTime / time.Second); secs > 0 {
		blocks = delta / secs
	}

	return schema.Closing{
		Blockchain: r.Blockchain,
		Height:     blockNumber + blocks,
		Calendar:   blockTime.Add(time.Duration(delta) * time.Second), //nolint:gosec,G115
		Delta:      delta,
	}
}

// stateUint reads a numeric parameter, 0 when absent or not representable
func stateUint(state domain.State, name string) uint64 {
	v, ok := state[name]
	if !ok {
		return 0
	}
	code := domain.ChoiceCode(v)
	if code < 0 {
		return 0
	}
	return uint64(code)
}
