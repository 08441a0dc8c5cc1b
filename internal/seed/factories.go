package seed

import (
	"fmt"
	"log"
	"strings"
	"time"

	"impostor/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db *gorm.DB
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{db: db}
}

// CreateUsers persists n test users with a shared known password.
func (f *Factory) CreateUsers(n int) ([]*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("Test1ng-Passw0rd!"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		username := fmt.Sprintf("%s%d", strings.ToLower(gofakeit.Username()), i)
		if len(username) > 30 {
			username = username[:30]
		}
		user := &models.User{
			Username: username,
			Email:    fmt.Sprintf("%s@example.com", username),
			Password: string(hashed),
		}
		if err := f.db.Create(user).Error; err != nil {
			log.Printf("seed: skipping user %s: %v", username, err)
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// CreateWaitingRoom persists a waiting room with n fake players, the first
// one as host. Useful for demo environments and load tests.
func (f *Factory) CreateWaitingRoom(code string, n int) (*models.Room, error) {
	players := make([]models.Player, 0, n)
	for i := 0; i < n; i++ {
		players = append(players, models.Player{
			UID:  gofakeit.UUID(),
			Name: gofakeit.FirstName(),
		})
	}

	room := &models.Room{
		Code:    code,
		Status:  models.RoomWaiting,
		Version: 1,
	}
	if len(players) > 0 {
		room.HostID = players[0].UID
	}
	room.SetPlayers(players)

	if err := f.db.Create(room).Error; err != nil {
		return nil, err
	}
	return room, nil
}
