package mirror_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/mirror"
)

func TestTitler(t *testing.T) {
	values := domain.ReturnValues{
		{Name: "proposalIndex", Value: big.NewInt(12)},
		{Name: "applicant", Value: "0xabc"},
		{Name: "sharesRequested", Value: uint64(5)},
	}

	tests := []struct {
		name     string
		fallback string
		template string
		expected string
	}{
		{name: "substitutes fields", template: "{{applicant}} asks for {{ sharesRequested }} shares", expected: "0xabc asks for 5 shares"},
		{name: "unknown tag renders empty", template: "Proposal {{proposalIndex}}{{missing}}", expected: "Proposal 12"},
		{name: "default fallback", expected: "Proposal #12"},
		{name: "custom fallback", fallback: "DAO #{{proposalIndex}}", expected: "DAO #12"},
		{name: "plain text", template: "Membership", expected: "Membership"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mirror.NewTitler(tt.fallback).Title(tt.template, values))
		})
	}
}

func TestDatePath(t *testing.T) {
	assert.Equal(t, "/2019/3/5/0xT1", mirror.DatePath(time.Date(2019, 3, 5, 23, 0, 0, 0, time.UTC), "0xT1"))
	assert.Equal(t, "/2020/12/31/0xT2", mirror.DatePath(time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC), "0xT2"))
	// Rendered in UTC regardless of the input location
	loc := time.FixedZone("UTC+9", 9*3600)
	assert.Equal(t, "/2021/1/1/0xT3", mirror.DatePath(time.Date(2021, 1, 2, 8, 0, 0, 0, loc), "0xT3"))
}

func TestChoiceForCode(t *testing.T) {
	choice, ok := mirror.ChoiceForCode(1)
	assert.True(t, ok)
	assert.Equal(t, "yes", choice)

	choice, ok = mirror.ChoiceForCode(2)
	assert.True(t, ok)
	assert.Equal(t, "no", choice)

	_, ok = mirror.ChoiceForCode(3)
	assert.False(t, ok)
}

func TestPeriodClosingRule_MissingParameters(t *testing.T) {
	at := time.Date(2019, 3, 5, 0, 0, 0, 0, time.UTC)
	closing := mirror.NewPeriodClosingRule().Closing(domain.State{}, 100, at)

	assert.Equal(t, "ETH", closing.Blockchain)
	assert.Equal(t, uint64(100), closing.Height)
	assert.Equal(t, at, closing.Calendar)
	assert.Equal(t, uint64(0), closing.Delta)
}

func TestPeriodClosingRule_IncludesGrace(t *testing.T) {
	at := time.Date(2019, 3, 5, 0, 0, 0, 0, time.UTC)
	rule := mirror.PeriodClosingRule{Blockchain: "ETH", BlockTime: 15 * time.Second, IncludeGrace: true}
	closing := rule.Closing(domain.State{
		mirror.PARAM_PERIOD_DURATION:      "30",
		mirror.PARAM_VOTING_PERIOD_LENGTH: big.NewInt(2),
		mirror.PARAM_GRACE_PERIOD_LENGTH:  uint64(1),
	}, 10, at)

	assert.Equal(t, uint64(90), closing.Delta)
	assert.Equal(t, uint64(16), closing.Height)
	assert.Equal(t, at.Add(90*time.Second), closing.Calendar)
}
