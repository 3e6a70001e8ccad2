package api

import (
	"errors"
	"net/http"
	"strconv"

	"bhabhi-service/internal/middleware"
	"bhabhi-service/internal/service"
	"bhabhi-service/internal/service/game"
	"bhabhi-service/internal/ws"
	appErr "bhabhi-service/pkg/errors"
	"bhabhi-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Game)

	r.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "healthy", "service": "bhabhi-game-api"})
	})

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", handler.Register)
			authGroup.POST("/login", handler.Login)
			authGroup.GET("/me", middleware.AuthRequired(), handler.Me)
		}

		api.GET("/leaderboard", handler.Leaderboard)

		roomGroup := api.Group("/rooms")
		roomGroup.Use(middleware.AuthRequired())
		{
			roomGroup.POST("", handler.CreateRoom)
			roomGroup.GET("/:code", handler.GetRoom)
			roomGroup.POST("/:code/join", handler.JoinRoom)
			roomGroup.POST("/:code/leave", handler.LeaveRoom)
			roomGroup.POST("/:code/ready", handler.ToggleReady)
			roomGroup.POST("/:code/bots", handler.AddBot)
			roomGroup.DELETE("/:code/bots/:botId", handler.RemoveBot)
		}

		gameGroup := api.Group("/game")
		gameGroup.Use(middleware.AuthRequired())
		{
			gameGroup.POST("/:code/start", handler.StartGame)
			gameGroup.GET("/:code", handler.GetGameState)
			gameGroup.POST("/:code/play", handler.PlayCard)
			gameGroup.POST("/:code/request-cards", handler.RequestCards)
			gameGroup.POST("/:code/respond-request", handler.RespondRequest)
			gameGroup.POST("/:code/forfeit", handler.Forfeit)
			gameGroup.POST("/:code/restart", handler.RestartGame)
			gameGroup.POST("/:code/watch", handler.WatchHand)
		}
	}

	r.GET("/ws/rooms/:code", wsHandler.HandleRoomWS)
}

type registerBody struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type createRoomBody struct {
	Name       string `json:"name" binding:"required"`
	MaxPlayers int    `json:"maxPlayers"`
}

type playCardBody struct {
	Card game.Card `json:"card" binding:"required"`
}

type targetBody struct {
	TargetID string `json:"targetId" binding:"required"`
}

type respondRequestBody struct {
	RequesterID string `json:"requesterId" binding:"required"`
	Accept      bool   `json:"accept"`
}

// ---- auth ----

func (h *Handler) Register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	result, err := h.services.Auth.Register(c.Request.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	result, err := h.services.Auth.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) Me(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	profile, err := h.services.User.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, profile)
}

func (h *Handler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	entries, err := h.services.User.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	response.Success(c, gin.H{"entries": entries})
}

// ---- rooms ----

func (h *Handler) CreateRoom(c *gin.Context) {
	userID, username, ok := getUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body createRoomBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	rt := h.services.Game.CreateRoom(userID, username, body.Name, body.MaxPlayers)
	response.Success(c, gin.H{"room": rt.RoomInfo()})
}

func (h *Handler) GetRoom(c *gin.Context) {
	rt, err := h.services.Game.GetRoom(c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, gin.H{"room": rt.RoomInfo()})
}

func (h *Handler) JoinRoom(c *gin.Context) {
	userID, username, ok := getUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	rt, err := h.services.Game.GetRoom(c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if err := rt.Join(userID, username); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, gin.H{"room": rt.RoomInfo()})
}

func (h *Handler) LeaveRoom(c *gin.Context) {
	h.roomAction(c, func(rt *game.Runtime, userID string) error {
		return rt.Leave(userID)
	}, "Left room")
}

func (h *Handler) ToggleReady(c *gin.Context) {
	h.roomAction(c, func(rt *game.Runtime, userID string) error {
		return rt.ToggleReady(userID)
	}, "")
}

func (h *Handler) AddBot(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	rt, err := h.services.Game.GetRoom(c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	bot, err := rt.AddBot(userID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, gin.H{"room": rt.RoomInfo(), "bot": bot})
}

func (h *Handler) RemoveBot(c *gin.Context) {
	h.roomAction(c, func(rt *game.Runtime, userID string) error {
		return rt.RemoveBot(userID, c.Param("botId"))
	}, "Bot removed")
}

// ---- game ----

func (h *Handler) StartGame(c *gin.Context) {
	h.roomAction(c, func(rt *game.Runtime, userID string) error {
		return rt.Start(userID)
	}, "Game started")
}

func (h *Handler) GetGameState(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	rt, err := h.services.Game.GetRoom(c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	view, err := rt.Snapshot(userID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *Handler) PlayCard(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body playCardBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	card, valid := game.NormalizeCard(body.Card)
	if !valid {
		response.BadRequest(c, "invalid card")
		return
	}
	rt, err := h.services.Game.GetRoom(c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if err := rt.Play(userID, card); err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessWithMsg(c, nil, "Card played")
}

func (h *Handler) RequestCards(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body targetBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	rt, err := h.services.Game.GetRoom(c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if err := rt.RequestCards(userID, body.TargetID); err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessWithMsg(c, nil, "Request sent")
}

func (h *Handler) RespondRequest(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body respondRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	rt, err := h.services.Game.GetRoom(c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if err := rt.RespondRequest(userID, body.RequesterID, body.Accept); err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessWithMsg(c, nil, "Response recorded")
}

func (h *Handler) Forfeit(c *gin.Context) {
	h.roomAction(c, func(rt *game.Runtime, userID string) error {
		return rt.Forfeit(userID)
	}, "You forfeited")
}

func (h *Handler) RestartGame(c *gin.Context) {
	h.roomAction(c, func(rt *game.Runtime, userID string) error {
		return rt.Restart(userID)
	}, "Game restarted")
}

func (h *Handler) WatchHand(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body targetBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	rt, err := h.services.Game.GetRoom(c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if err := rt.WatchHand(userID, body.TargetID); err != nil {
		h.handleError(c, err)
		return
	}
	response.SuccessWithMsg(c, nil, "Watching")
}

// ---- helpers ----

func (h *Handler) roomAction(c *gin.Context, fn func(*game.Runtime, string) error, okMsg string) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	rt, err := h.services.Game.GetRoom(c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if err := fn(rt, userID); err != nil {
		h.handleError(c, err)
		return
	}
	if okMsg != "" {
		response.SuccessWithMsg(c, gin.H{"room": rt.RoomInfo()}, okMsg)
		return
	}
	response.Success(c, gin.H{"room": rt.RoomInfo()})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appErr.ErrRoomNotFound), errors.Is(err, appErr.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, appErr.ErrNotHost), errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, appErr.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, appErr.ErrEmailTaken),
		errors.Is(err, appErr.ErrUsernameTaken),
		errors.Is(err, appErr.ErrRoomFull),
		errors.Is(err, appErr.ErrRoomNotWaiting),
		errors.Is(err, appErr.ErrRoomNotPlaying),
		errors.Is(err, appErr.ErrRoomNotFinished),
		errors.Is(err, appErr.ErrNotInRoom),
		errors.Is(err, appErr.ErrInsufficientPlayers),
		errors.Is(err, appErr.ErrPlayersNotReady),
		errors.Is(err, appErr.ErrMaxBotsReached),
		errors.Is(err, appErr.ErrNotABot),
		errors.Is(err, appErr.ErrNotYourTurn),
		errors.Is(err, appErr.ErrCardNotInHand),
		errors.Is(err, appErr.ErrMustFollowSuit),
		errors.Is(err, appErr.ErrMustLeadAceOfSpades),
		errors.Is(err, appErr.ErrTargetNotEligible),
		errors.Is(err, appErr.ErrAlreadyFinished),
		errors.Is(err, appErr.ErrRequestPending),
		errors.Is(err, appErr.ErrNoSuchRequest),
		errors.Is(err, appErr.ErrAlreadyWatching),
		errors.Is(err, appErr.ErrNotASpectator):
		response.Error(c, http.StatusBadRequest, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, "internal error")
	}
}

func getUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func getUser(c *gin.Context) (string, string, bool) {
	id, ok := getUserID(c)
	if !ok {
		return "", "", false
	}
	v, _ := c.Get(middleware.ContextUsernameKey)
	name, _ := v.(string)
	return id, name, true
}
