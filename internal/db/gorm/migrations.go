package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Folder catalog
		{
			ID: "001_prompt_folders",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&PromptFolder{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("prompt_folders")
			},
		},

		// Migration 002: Per-user metadata (pinned folders, onboarding answers)
		{
			ID: "002_users_metadata",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&UserMetadata{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("users_metadata")
			},
		},

		// Migration 003: Captured chats and messages
		{
			ID: "003_chat_logs",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&ChatLog{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&MessageLog{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("chats", "messages")
			},
		},
	})

	return m.Migrate()
}
