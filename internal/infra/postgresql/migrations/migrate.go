package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/tracerx/tracerx/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_drug_batches",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.BatchRecordModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_drug_batches_status_updated ON drug_batches (status, updated_at)`,
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_drug_batches_token_id ON drug_batches (token_id) WHERE token_id IS NOT NULL`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.BatchRecordModel{})
			},
		},
	})

	return m.Migrate()
}
