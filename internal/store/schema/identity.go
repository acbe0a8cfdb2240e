package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Profile is the part of an identity maintained by the mirror
type Profile struct {
	Membership  string   `json:"membership"`
	Collectives []string `json:"collectives"`
}

// Identity represents the identities table - one row per observed on-chain address
type Identity struct {
	ID string `gorm:"column:id;primaryKey;type:text"`
	// Username is the lowercased address
	Username  string                      `gorm:"column:username;not null;uniqueIndex;type:text"`
	Profile   datatypes.JSONType[Profile] `gorm:"column:profile;type:jsonb"`
	CreatedAt time.Time                   `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt time.Time                   `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Identity model
func (Identity) TableName() string {
	return "identities"
}

func (i *Identity) GetID() string   { return i.ID }
func (i *Identity) SetID(id string) { i.ID = id }
