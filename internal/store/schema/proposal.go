package schema

import (
	"time"

	"gorm.io/datatypes"
)

// PollEntry references one poll option of a proposal
type PollEntry struct {
	ContractID  string `json:"contractId"`
	TotalStaked string `json:"totalStaked"`
}

// Closing describes when voting on a proposal ends
type Closing struct {
	Blockchain string    `json:"blockchain"`
	Height     uint64    `json:"height"`
	Calendar   time.Time `json:"calendar"`
	Delta      uint64    `json:"delta"`
}

// Proposal represents the proposals table - mirrored governance proposals and their poll options.
// Poll options are stored as proposals whose PollID references the parent.
type Proposal struct {
	// ID is a ULID assigned on first insert
	ID string `gorm:"column:id;primaryKey;type:text"`
	// Keyword is the natural key: the transaction hash, or "hash/choice" for a poll option
	Keyword string `gorm:"column:keyword;not null;uniqueIndex;type:text"`
	// Title is the rendered display title
	Title string `gorm:"column:title;not null;type:text"`
	// URL is the date partitioned path of the proposal
	URL string `gorm:"column:url;not null;type:text"`
	// Date is the timestamp of the block that included the submission
	Date time.Time `gorm:"column:date;not null;type:timestamptz"`
	// ProposerAddress is the delegate key that submitted the proposal
	ProposerAddress string `gorm:"column:proposer_address;type:text"`
	// AuthorID references the identity of the submitting member
	AuthorID string `gorm:"column:author_id;type:text"`
	// BlockHeight is the block number of the submission
	BlockHeight uint64 `gorm:"column:block_height;not null"`
	// ImportID is the on-chain proposal index as a decimal string
	ImportID string `gorm:"column:import_id;not null;type:text;index:idx_proposals_collective_import,priority:2"`
	// PollChoiceID is the choice index for a poll option, empty for a parent
	PollChoiceID string `gorm:"column:poll_choice_id;not null;default:'';type:text"`
	// PollID references the parent proposal for a poll option, empty for a parent
	PollID string `gorm:"column:poll_id;not null;default:'';type:text"`
	// CollectiveID identifies the collective subscribed to the contract
	CollectiveID string `gorm:"column:collective_id;not null;type:text;index:idx_proposals_collective_import,priority:1"`
	// Closing holds the closing rule output
	Closing datatypes.JSONType[Closing] `gorm:"column:closing;type:jsonb"`
	// Poll references the poll options of a parent proposal
	Poll datatypes.JSONSlice[PollEntry] `gorm:"column:poll;type:jsonb"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Proposal model
func (Proposal) TableName() string {
	return "proposals"
}

func (p *Proposal) GetID() string   { return p.ID }
func (p *Proposal) SetID(id string) { p.ID = id }

// IsPollOption reports whether the proposal is a poll option of another proposal
func (p *Proposal) IsPollOption() bool {
	return p.PollID != ""
}
