package schema

import "time"

// Vote represents the votes table - at most one vote per identity per poll option
type Vote struct {
	ID string `gorm:"column:id;primaryKey;type:text"`
	// IdentityID references the voting identity
	IdentityID string `gorm:"column:identity_id;not null;type:text;uniqueIndex:idx_votes_identity_poll_option,priority:1"`
	// PollOptionID references the poll option proposal that was chosen
	PollOptionID string `gorm:"column:poll_option_id;not null;type:text;uniqueIndex:idx_votes_identity_poll_option,priority:2"`
	// ProposalID references the parent proposal
	ProposalID string `gorm:"column:proposal_id;not null;type:text;index"`
	// Address is the keyword of the proposal voted on
	Address         string    `gorm:"column:address;not null;type:text"`
	Timestamp       time.Time `gorm:"column:timestamp;not null;type:timestamptz"`
	BlockNumber     uint64    `gorm:"column:block_number;not null"`
	TransactionHash string    `gorm:"column:transaction_hash;not null;type:text"`
	CollectiveID    string    `gorm:"column:collective_id;not null;type:text"`
	CreatedAt       time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt       time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Vote model
func (Vote) TableName() string {
	return "votes"
}

func (v *Vote) GetID() string   { return v.ID }
func (v *Vote) SetID(id string) { v.ID = id }
