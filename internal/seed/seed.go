// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"

	"impostor/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	ShouldClean bool
}

// Seed populates the database with the built-in theme packs and test users.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Starting database seeding with %d users...", opts.NumUsers)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway...")
		}
	}

	count, err := SeedThemes(db)
	if err != nil {
		return fmt.Errorf("failed to seed themes: %w", err)
	}
	log.Printf("%d built-in themes available", count)

	if opts.NumUsers > 0 {
		factory := NewFactory(db)
		users, err := factory.CreateUsers(opts.NumUsers)
		if err != nil {
			return fmt.Errorf("failed to create users: %w", err)
		}
		log.Printf("%d test users created", len(users))
	}

	log.Println("Database seeding completed")
	return nil
}

// SeedThemes upserts the embedded word packs as public approved themes,
// keyed by access code. Re-running refreshes titles and words in place.
func SeedThemes(db *gorm.DB) (int, error) {
	packs, err := LoadPacks()
	if err != nil {
		return 0, err
	}

	for _, pack := range packs {
		theme := &models.Theme{
			ID:            uuid.NewString(),
			Title:         pack.Title,
			Author:        "equipe",
			IsPublic:      true,
			AccessCode:    pack.Code,
			PaymentStatus: models.PaymentApproved,
			Approved:      true,
		}
		theme.SetWords(pack.Words)

		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "access_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"titulo", "palavras", "is_public", "payment_status", "approved"}),
		}).Create(theme).Error
		if err != nil {
			return 0, fmt.Errorf("upsert theme %s: %w", pack.Code, err)
		}
	}
	return len(packs), nil
}

func clearData(db *gorm.DB) error {
	// Rooms first, they are the only table referencing live game state.
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Room{}).Error; err != nil {
		return err
	}
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Session{}).Error; err != nil {
		return err
	}
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.User{}).Error; err != nil {
		return err
	}
	return nil
}
