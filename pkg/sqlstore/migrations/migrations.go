package migrations

import (
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migrate executes all migrations UP that did not run yet.
//
//  1. Migrations must be backward compatible and only extend the schema.
//  2. Migration ID must be a unix epoch time in seconds (use 'date +%s').
//  3. Rollback function must be provided, and migrations must not import
//     any models: instead, the type should be explicitly defined within
//     the migration body.
//  4. Migration code must be tested within the sqlstore package.
func Migrate(db *gorm.DB) error {
	return gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createProfileTableMigration(),
		addProfileCountersMigration(),
	}).Migrate()
}

func createProfileTableMigration() *gormigrate.Migration {
	type profile struct {
		ID           int64  `gorm:"primarykey"`
		RequestID    string `gorm:"type:varchar(64);not null;index"`
		Scope        string `gorm:"column:groupby;type:varchar(255);not null;index"`
		ScriptType   string `gorm:"type:varchar(16);not null"`
		Method       string `gorm:"type:varchar(16)"`
		Path         string `gorm:"type:varchar(1024)"`
		Parameters   string `gorm:"type:text"`
		ResponseCode int
		User         string `gorm:"type:varchar(255)"`
		Host         string `gorm:"type:varchar(255)"`
		PID          int

		CreatedAt  time.Time `gorm:"index"`
		UpdatedAt  time.Time
		FinishedAt *time.Time `gorm:"default:null"`
		Duration   int64      `gorm:"index"`
		Reason     uint8      `gorm:"not null;index"`
		LockReason string     `gorm:"type:varchar(255);not null;default:''"`

		FlameData     []byte `gorm:"type:blob"`
		DataSize      int
		SampleCount   int64
		SampleRate    int
		MaxStackDepth int
	}

	return &gormigrate.Migration{
		ID: "1760860800",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&profile{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&profile{})
		},
	}
}

func addProfileCountersMigration() *gormigrate.Migration {
	type profile struct {
		DBReads    int64
		DBWrites   int64
		MemoryPeak int64
	}

	columns := []string{"DBReads", "DBWrites", "MemoryPeak"}
	return &gormigrate.Migration{
		ID: "1760947200",
		Migrate: func(tx *gorm.DB) error {
			for _, c := range columns {
				if tx.Migrator().HasColumn(&profile{}, c) {
					continue
				}
				if err := tx.Migrator().AddColumn(&profile{}, c); err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			for _, c := range columns {
				if err := tx.Migrator().DropColumn(&profile{}, c); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
