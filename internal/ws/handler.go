package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bhabhi-service/internal/service/game"
	pkgAuth "bhabhi-service/pkg/auth"
	appErr "bhabhi-service/pkg/errors"
	"bhabhi-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	gameSvc *game.Service
}

func NewHandler(gameSvc *game.Service) *Handler {
	return &Handler{gameSvc: gameSvc}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

func (h *Handler) HandleRoomWS(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))

	token, err := getTokenFromRequest(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	claims, err := pkgAuth.ParseToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	userID := claims.UserID

	rt, err := h.gameSvc.GetRoom(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	outbound, err := rt.Subscribe(userID)
	if err != nil {
		if errors.Is(err, appErr.ErrNotInRoom) {
			conn.WriteJSON(game.OutgoingMessage{Type: "error", Data: gin.H{"message": "not in room"}})
		}
		conn.Close()
		return
	}

	logger.Log.Info("New WebSocket connection",
		zap.String("room", code),
		zap.String("userID", userID),
	)

	client := newClient(conn, userID, rt, outbound)
	client.run()
}

func getTokenFromRequest(c *gin.Context) (string, error) {
	token := strings.TrimSpace(c.Query("token"))
	if token != "" {
		return token, nil
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
			if token != "" {
				return token, nil
			}
		}
	}
	return "", errors.New("missing token")
}

type client struct {
	conn      *websocket.Conn
	userID    string
	rt        *game.Runtime
	outbound  <-chan game.OutgoingMessage
	done      chan struct{}
	pingEvery time.Duration
}

func newClient(conn *websocket.Conn, userID string, rt *game.Runtime, outbound <-chan game.OutgoingMessage) *client {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	return &client{
		conn:      conn,
		userID:    userID,
		rt:        rt,
		outbound:  outbound,
		done:      make(chan struct{}),
		pingEvery: 25 * time.Second,
	}
}

func (c *client) run() {
	go c.writePump()
	c.readPump()
}

func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.rt.Unsubscribe(c.userID, c.outbound)
		c.conn.Close()
	}()

	for {
		mt, message, err := c.conn.ReadMessage()
		if err != nil {
			logger.Log.Info("WS read error", zap.Error(err), zap.String("userID", c.userID), zap.String("room", c.rt.Code()))
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		var incoming struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.safeWrite(game.OutgoingMessage{
				Type: "error",
				Data: gin.H{"message": "invalid payload"},
			})
			continue
		}
		if incoming.Type == "" {
			continue
		}

		if err := c.handleAction(incoming.Type, incoming.Data); err != nil {
			c.safeWrite(game.OutgoingMessage{
				Type: "error",
				Data: gin.H{"message": fmt.Sprintf("action failed: %v", err)},
			})
		}
	}
}

func (c *client) handleAction(action string, data json.RawMessage) error {
	switch action {
	case "play_card":
		var payload struct {
			Card game.Card `json:"card"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		card, ok := game.NormalizeCard(payload.Card)
		if !ok {
			return appErr.ErrCardNotInHand
		}
		return c.rt.Play(c.userID, card)

	case "request_cards":
		var payload struct {
			TargetID string `json:"targetId"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.rt.RequestCards(c.userID, payload.TargetID)

	case "respond_request":
		var payload struct {
			RequesterID string `json:"requesterId"`
			Accept      bool   `json:"accept"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.rt.RespondRequest(c.userID, payload.RequesterID, payload.Accept)

	case "forfeit":
		return c.rt.Forfeit(c.userID)

	case "watch_hand":
		var payload struct {
			TargetID string `json:"targetId"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.rt.WatchHand(c.userID, payload.TargetID)

	case "rejoin":
		c.rt.Resync(c.userID)
		return nil

	case "ping":
		c.rt.SendToUser(c.userID, "pong", gin.H{"message": "pong"})
		return nil

	// Pass-through relays: none of these touch game state.
	case "chat_message":
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		c.rt.Broadcast("chat_message", gin.H{
			"userId":    c.userID,
			"message":   payload.Message,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return nil

	case "reaction":
		var payload struct {
			Reaction string `json:"reaction"`
			IsEmoji  bool   `json:"isEmoji"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		c.rt.Broadcast("reaction", gin.H{
			"userId":   c.userID,
			"reaction": payload.Reaction,
			"isEmoji":  payload.IsEmoji,
		})
		return nil

	case "voice_join", "voice_leave", "voice_status":
		var payload map[string]interface{}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &payload); err != nil {
				return err
			}
		}
		if payload == nil {
			payload = map[string]interface{}{}
		}
		payload["userId"] = c.userID
		c.rt.Broadcast(action, payload)
		return nil

	case "voice_signal":
		var payload struct {
			TargetUser string          `json:"targetUser"`
			Signal     json.RawMessage `json:"signal"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		if payload.TargetUser == "" {
			return nil
		}
		c.rt.SendToUser(payload.TargetUser, "voice_signal", gin.H{
			"fromUser": c.userID,
			"signal":   payload.Signal,
		})
		return nil

	default:
		return fmt.Errorf("unsupported action")
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Log.Info("WS write error", zap.Error(err), zap.String("userID", c.userID), zap.String("room", c.rt.Code()))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) safeWrite(msg game.OutgoingMessage) {
	if err := c.conn.WriteJSON(msg); err != nil {
		logger.Log.Info("WS write error", zap.Error(err), zap.String("userID", c.userID), zap.String("room", c.rt.Code()))
	}
}
