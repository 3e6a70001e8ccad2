package game

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"bhabhi-service/internal/config"
	"bhabhi-service/internal/model"
	"bhabhi-service/internal/service/user"
	appErr "bhabhi-service/pkg/errors"
	"bhabhi-service/pkg/logger"
	"bhabhi-service/pkg/utils/random"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const roomCodeLength = 6

// Service owns the room registry. Rooms live entirely in memory; only
// finished games and user stats are persisted, and always outside the
// room lock.
type Service struct {
	db    *gorm.DB
	users *user.Service
	rooms sync.Map // code -> *Runtime
}

func NewService(db *gorm.DB, users *user.Service) *Service {
	return &Service{db: db, users: users}
}

func (s *Service) CreateRoom(hostID, hostName, roomName string, maxPlayers int) *Runtime {
	if maxPlayers < 2 {
		maxPlayers = 2
	}
	if maxPlayers > 8 {
		maxPlayers = 8
	}

	cfg := config.GlobalConfig.Game
	for {
		code := random.Code(roomCodeLength)
		rt := newRuntime(
			code,
			roomName,
			maxPlayers,
			Player{ID: hostID, Username: hostName},
			time.Duration(cfg.TurnSeconds)*time.Second,
			time.Duration(cfg.BotDelayMs)*time.Millisecond,
			s.handleFinish,
			s.removeRoom,
		)
		if _, loaded := s.rooms.LoadOrStore(code, rt); !loaded {
			logger.Log.Info("room created",
				zap.String("room", code),
				zap.String("host", hostID),
				zap.Int("maxPlayers", maxPlayers),
			)
			return rt
		}
	}
}

func (s *Service) GetRoom(code string) (*Runtime, error) {
	v, ok := s.rooms.Load(strings.ToUpper(code))
	if !ok {
		return nil, appErr.ErrRoomNotFound
	}
	return v.(*Runtime), nil
}

func (s *Service) removeRoom(code string) {
	s.rooms.Delete(code)
	logger.Log.Info("room removed", zap.String("room", code))
}

type matchResult struct {
	FinishedOrder []string     `json:"finishedOrder"`
	Loser         string       `json:"loser"`
	Players       []PlayerInfo `json:"players"`
	TrickCount    int          `json:"trickCount"`
}

// handleFinish archives the game and updates stats. It runs on its own
// goroutine after the room has already moved to finished.
func (s *Service) handleFinish(summary FinishSummary) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload, err := json.Marshal(matchResult{
		FinishedOrder: summary.FinishedOrder,
		Loser:         summary.LoserID,
		Players:       summary.Players,
		TrickCount:    summary.TrickCount,
	})
	if err != nil {
		logger.Log.Error("failed to encode match result", zap.Error(err))
		return
	}
	record := model.MatchRecord{
		RoomCode:    summary.RoomCode,
		LoserID:     summary.LoserID,
		PlayerCount: len(summary.Players),
		ResultJSON:  payload,
		StartedAt:   time.Unix(summary.StartedAt, 0),
		EndedAt:     time.Unix(summary.EndedAt, 0),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		logger.Log.Error("failed to archive match", zap.String("room", summary.RoomCode), zap.Error(err))
	}

	human := make(map[string]bool, len(summary.Players))
	for _, p := range summary.Players {
		if !p.IsBot {
			human[p.ID] = true
		}
	}
	var played, escaped []string
	for _, p := range summary.Players {
		if human[p.ID] {
			played = append(played, p.ID)
		}
	}
	for _, pid := range summary.FinishedOrder {
		if human[pid] {
			escaped = append(escaped, pid)
		}
	}
	s.users.RecordResult(ctx, played, escaped)
}
