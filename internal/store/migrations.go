package store

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations brings the schema up to date using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&SessionRecord{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&PromptRecord{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&ResponseRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("sessions", "prompts", "responses")
			},
		},
		{
			ID: "002_coaching",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&CoachingRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("coaching")
			},
		},
		{
			ID: "003_upload_ledger",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&UploadRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("uploads")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run gormigrate migrations: %w", err)
	}
	return nil
}
