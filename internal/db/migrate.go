package db

import (
	"propdesk/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Plan{},
		&models.Account{},
		&models.Trade{},
		&models.AssetPrice{},
		&models.Violation{},
		&models.AccountActivity{},
		&models.PayoutRequest{},
		&models.SystemSetting{},
	)
}
