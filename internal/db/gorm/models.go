package gorm

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/promptdock/internal/locale"
)

// GORM Models

// PromptFolder is a folder of reusable prompt content. Ownership columns
// determine the access scope: user_id set → personal, company_id set →
// organization, neither → official.
type PromptFolder struct {
	Title          locale.Field   `gorm:"type:jsonb"`
	Description    locale.Field   `gorm:"type:jsonb"`
	UserID         sql.NullString `gorm:"index:idx_folders_user"`
	CompanyID      sql.NullString `gorm:"index:idx_folders_company"`
	ParentID       sql.NullInt64  `gorm:"index:idx_folders_parent"`
	ID             int64          `gorm:"primaryKey;autoIncrement"`
	Priority       int            `gorm:"default:0"`
	CreatedAtEpoch int64          `gorm:"index:idx_folders_created,sort:desc;not null"`
}

func (PromptFolder) TableName() string { return "prompt_folders" }

// BeforeCreate hook to ensure timestamps are set.
func (f *PromptFolder) BeforeCreate(tx *gorm.DB) error {
	if f.CreatedAtEpoch == 0 {
		f.CreatedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}

// UserMetadata is the per-user record holding pinned-folder state and the
// cleaned onboarding answers. Created lazily on first write.
type UserMetadata struct {
	PinnedFolderIDs Int64Array     `gorm:"type:jsonb"`
	Interests       StringArray    `gorm:"type:jsonb"`
	JobType         sql.NullString
	JobIndustry     sql.NullString
	JobSeniority    sql.NullString
	SignupSource    sql.NullString
	UserID          string `gorm:"primaryKey"`
	UpdatedAtEpoch  int64  `gorm:"not null"`
}

func (UserMetadata) TableName() string { return "users_metadata" }

// BeforeSave hook to keep the update timestamp current.
func (m *UserMetadata) BeforeSave(tx *gorm.DB) error {
	m.UpdatedAtEpoch = time.Now().UnixMilli()
	return nil
}

// ChatLog is a captured chat conversation.
type ChatLog struct {
	UserID         string `gorm:"index:idx_chats_user;not null"`
	ProviderID     string `gorm:"uniqueIndex"`
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	CreatedAtEpoch int64  `gorm:"index:idx_chats_created,sort:desc;not null"`
}

func (ChatLog) TableName() string { return "chats" }

// BeforeCreate hook to ensure timestamps are set.
func (c *ChatLog) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAtEpoch == 0 {
		c.CreatedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}

// MessageLog is one captured chat message.
type MessageLog struct {
	UserID         string `gorm:"index:idx_messages_user;not null"`
	ChatProviderID string `gorm:"index:idx_messages_chat"`
	Role           string `gorm:"type:text;check:role IN ('user', 'assistant');not null"`
	Content        string `gorm:"type:text"`
	Model          string
	ID             int64 `gorm:"primaryKey;autoIncrement"`
	CreatedAtEpoch int64 `gorm:"index:idx_messages_created,sort:desc;not null"`
}

func (MessageLog) TableName() string { return "messages" }

// BeforeCreate hook to ensure timestamps are set.
func (m *MessageLog) BeforeCreate(tx *gorm.DB) error {
	if m.CreatedAtEpoch == 0 {
		m.CreatedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}
