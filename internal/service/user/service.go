package user

import (
	"context"

	"bhabhi-service/internal/model"
	appErr "bhabhi-service/pkg/errors"
	"bhabhi-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const leaderboardKey = "bhabhi:leaderboard:wins"

type Service struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{db: db, rdb: rdb}
}

type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	GamesPlayed int    `json:"gamesPlayed"`
	GamesWon    int    `json:"gamesWon"`
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrUserNotFound
		}
		return nil, err
	}
	return &Profile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		GamesPlayed: u.GamesPlayed,
		GamesWon:    u.GamesWon,
	}, nil
}

// RecordResult bumps the played/won counters for the human participants of a
// finished game and feeds the win leaderboard. Escaping counts as a win;
// the loser only gets a game played.
func (s *Service) RecordResult(ctx context.Context, playedIDs, escapedIDs []string) {
	if len(playedIDs) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.User{}).
			Where("id IN ?", playedIDs).
			UpdateColumn("games_played", gorm.Expr("games_played + 1")).Error; err != nil {
			logger.Log.Error("failed to bump games_played", zap.Error(err))
		}
	}
	if len(escapedIDs) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.User{}).
			Where("id IN ?", escapedIDs).
			UpdateColumn("games_won", gorm.Expr("games_won + 1")).Error; err != nil {
			logger.Log.Error("failed to bump games_won", zap.Error(err))
		}
	}
	if s.rdb == nil {
		return
	}
	for _, id := range escapedIDs {
		if err := s.rdb.ZIncrBy(ctx, leaderboardKey, 1, id).Err(); err != nil {
			logger.Log.Warn("leaderboard update failed", zap.String("userID", id), zap.Error(err))
		}
	}
}

type LeaderboardEntry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Wins     int64  `json:"wins"`
}

func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if s.rdb == nil {
		return []LeaderboardEntry{}, nil
	}
	members, err := s.rdb.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(members))
	for _, m := range members {
		id, _ := m.Member.(string)
		entry := LeaderboardEntry{UserID: id, Wins: int64(m.Score)}
		var u model.User
		if err := s.db.WithContext(ctx).Select("username").First(&u, "id = ?", id).Error; err == nil {
			entry.Username = u.Username
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
