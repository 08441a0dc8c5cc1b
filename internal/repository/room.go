// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"time"

	"impostor/internal/models"

	"gorm.io/gorm"
)

// RoomRepository defines persistence operations for game rooms.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	GetByCode(ctx context.Context, code string) (*models.Room, error)
	Update(ctx context.Context, room *models.Room) error
	Delete(ctx context.Context, code string) error
	ListIdleSince(ctx context.Context, cutoff time.Time) ([]models.Room, error)
	Exists(ctx context.Context, code string) (bool, error)
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository returns a new RoomRepository implementation.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.Version == 0 {
		room.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("room code already in use")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *roomRepository) GetByCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	if err := readDB(r.db).WithContext(ctx).First(&room, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Room", code)
		}
		return nil, models.NewInternalError(err)
	}
	return &room, nil
}

// Update applies the room state with an optimistic version guard. The
// in-process lock table serializes writers within one process; the guard
// catches interleaved read-modify-write cycles between processes. A stale
// writer gets a Conflict and must reload.
func (r *roomRepository) Update(ctx context.Context, room *models.Room) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Room{}).
		Where("code = ? AND version = ?", room.Code, room.Version).
		Updates(map[string]interface{}{
			"host_id":          room.HostID,
			"status":           room.Status,
			"game_mode":        room.GameMode,
			"current_category": room.CurrentCategory,
			"current_word":     room.CurrentWord,
			"impostor_id":      room.ImpostorID,
			"game_data":        room.GameData,
			"players":          room.PlayersState,
			"version":          room.Version + 1,
			"updated_at":       now,
		})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewConflictError("room was updated concurrently")
	}
	room.Version++
	room.UpdatedAt = now
	return nil
}

func (r *roomRepository) Delete(ctx context.Context, code string) error {
	if err := r.db.WithContext(ctx).Delete(&models.Room{}, "code = ?", code).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *roomRepository) ListIdleSince(ctx context.Context, cutoff time.Time) ([]models.Room, error) {
	var rooms []models.Room
	if err := readDB(r.db).WithContext(ctx).Where("updated_at < ?", cutoff).Find(&rooms).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rooms, nil
}

func (r *roomRepository) Exists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.Room{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}
