package service

import (
	"bhabhi-service/internal/service/auth"
	"bhabhi-service/internal/service/game"
	"bhabhi-service/internal/service/user"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Auth *auth.Service
	User *user.Service
	Game *game.Service
}

func NewContainer(db *gorm.DB, rdb *redis.Client) *Container {
	users := user.NewService(db, rdb)
	return &Container{
		Auth: auth.NewService(db),
		User: users,
		Game: game.NewService(db, users),
	}
}
