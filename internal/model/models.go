package model

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Username     string `gorm:"unique;not null"`
	Email        string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	GamesPlayed  int    `gorm:"default:0"`
	GamesWon     int    `gorm:"default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MatchRecord archives one finished game. Written once, after the room
// runtime has already moved on.
type MatchRecord struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	RoomCode    string `gorm:"index;size:8"`
	LoserID     string `gorm:"size:36"`
	PlayerCount int
	ResultJSON  datatypes.JSON `gorm:"type:jsonb"` // finish order, per-player kind, trick count
	StartedAt   time.Time
	EndedAt     time.Time
}
