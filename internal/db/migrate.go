package db

import (
	"context"

	"gorm.io/gorm"

	"noyel/internal/models"
)

// Migrate creates or updates the tables backing the persistent models.
func Migrate(ctx context.Context, database *gorm.DB) error {
	if err := database.SetupJoinTable(&models.Present{}, "Participants", &models.Participant{}); err != nil {
		return err
	}

	return database.WithContext(ctx).AutoMigrate(models.All()...)
}

// Drop removes every table created by Migrate.
func Drop(ctx context.Context, database *gorm.DB) error {
	all := models.All()
	reversed := make([]any, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		reversed = append(reversed, all[i])
	}
	return database.WithContext(ctx).Migrator().DropTable(reversed...)
}
