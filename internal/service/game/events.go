package game

// OutgoingMessage is the wire envelope for everything pushed to a socket.
type OutgoingMessage struct {
	Type string      `json:"type"`
	Seq  int64       `json:"seq"`
	Data interface{} `json:"data"`
}

// Event types pushed by the runtime. Hand-bearing events are rendered per
// recipient; card_request is delivered to its target only.
const (
	EventRoomUpdate       = "room_update"
	EventPlayerJoined     = "player_joined"
	EventPlayerLeft       = "player_left"
	EventPlayerReady      = "player_ready_changed"
	EventGameStarted      = "game_started"
	EventGameUpdate       = "game_update"
	EventCardRequest      = "card_request"
	EventRequestDeclined  = "card_request_declined"
	EventCardsGiven       = "cards_given"
	EventGameRestarted    = "game_restarted"
	EventUserConnected    = "user_connected"
	EventUserDisconnected = "user_disconnected"
)

// PlayerInfo is the public view of a seat.
type PlayerInfo struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	IsHost    bool   `json:"isHost"`
	IsBot     bool   `json:"isBot"`
	IsReady   bool   `json:"isReady"`
	Connected bool   `json:"connected"`
}

// RoomView is the lobby snapshot.
type RoomView struct {
	Code       string       `json:"code"`
	Name       string       `json:"name"`
	HostID     string       `json:"hostId"`
	MaxPlayers int          `json:"maxPlayers"`
	Phase      Phase        `json:"phase"`
	Players    []PlayerInfo `json:"players"`
}

// WatchedHand carries the one hand an escaped player is allowed to see.
type WatchedHand struct {
	PlayerID string `json:"playerId"`
	Cards    []Card `json:"cards"`
}

// GameView is the per-recipient game snapshot. YourHand is always the
// recipient's own; no other live hand is ever included except the one a
// spectator is bound to.
type GameView struct {
	YourHand         []Card         `json:"yourHand"`
	WatchedHand      *WatchedHand   `json:"watchedHand,omitempty"`
	CurrentPlayer    string         `json:"currentPlayer"`
	CurrentTrick     []TrickCard    `json:"currentTrick"`
	CompletedTrick   []TrickCard    `json:"completedTrick,omitempty"`
	LeadSuit         Suit           `json:"leadSuit,omitempty"`
	PlayerOrder      []string       `json:"playerOrder"`
	PlayerCardCounts map[string]int `json:"playerCardCounts"`
	FinishedOrder    []string       `json:"finishedOrder"`
	Loser            string         `json:"loser,omitempty"`
	Status           string         `json:"status"`
	IsFirstTrick     bool           `json:"isFirstTrick"`
	TrickNumber      int            `json:"trickNumber"`
	LastTrickResult  *TrickResult   `json:"lastTrickResult,omitempty"`
	Countdown        int            `json:"countdown"`
	Players          []PlayerInfo   `json:"players"`
}

// CardRequestEvent goes to the target of a pending request.
type CardRequestEvent struct {
	RequesterID   string `json:"requesterId"`
	RequesterName string `json:"requesterName"`
	TargetID      string `json:"targetId"`
	YourCards     int    `json:"yourCards"`
}

// CardsGivenEvent announces an escape by accepted request.
type CardsGivenEvent struct {
	GiverID    string `json:"giverId"`
	ReceiverID string `json:"receiverId"`
	CardCount  int    `json:"cardCount"`
}

// FinishSummary is handed to the persistence hook after playing→finished.
type FinishSummary struct {
	RoomCode      string
	LoserID       string
	FinishedOrder []string
	Players       []PlayerInfo
	TrickCount    int
	StartedAt     int64
	EndedAt       int64
}
