package database

import "impostor/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Session{},
		&models.Room{},
		&models.Theme{},
	}
}
