package game

import "time"

const (
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// TrickCard is one play inside the current trick.
type TrickCard struct {
	PlayerID string `json:"playerId"`
	Card     Card   `json:"card"`
}

const (
	TrickDiscarded = "discarded"
	TrickPickup    = "pickup"
)

// TrickResult describes how the last trick resolved.
type TrickResult struct {
	Type        string      `json:"type"` // discarded or pickup
	PowerPlayer string      `json:"powerPlayer"`
	TochooBy    string      `json:"tochooBy,omitempty"`
	CardCount   int         `json:"cardCount,omitempty"`
	Trick       []TrickCard `json:"trick"`
	LeadSuit    Suit        `json:"leadSuit"`
}

// GameState is the authoritative state of one playing room. It is only ever
// mutated by the owning Runtime while its lock is held.
type GameState struct {
	Hands           map[string][]Card
	Order           []string // seat order at deal time, never reordered
	CurrentIndex    int
	CurrentTrick    []TrickCard
	LeadSuit        Suit // empty when no trick is in progress
	WastePile       []Card
	FinishedOrder   []string
	Loser           string
	Status          string
	FirstTrick      bool
	TrickNumber     int
	CompletedTrick  []TrickCard
	LastTrickResult *TrickResult
	PendingRequests map[string]string // target -> requester
	Watchers        map[string]string // escaped spectator -> watched player
	TochooSuits     map[string][]Suit // suits a player has been forced to pick up
	StartedAt       time.Time
}

// NewGameState shuffles, deals and seats the first player on the ace of
// spades (house rule: its holder leads the first trick).
func NewGameState(playerIDs []string) *GameState {
	deck := NewDeck()
	hands := Deal(deck, len(playerIDs))

	g := &GameState{
		Hands:           make(map[string][]Card, len(playerIDs)),
		Order:           append([]string(nil), playerIDs...),
		Status:          StatusPlaying,
		FirstTrick:      true,
		TrickNumber:     1,
		PendingRequests: make(map[string]string),
		Watchers:        make(map[string]string),
		TochooSuits:     make(map[string][]Suit),
		StartedAt:       time.Now(),
	}
	for i, pid := range playerIDs {
		g.Hands[pid] = hands[i]
	}
	for i, pid := range playerIDs {
		if holdsCard(g.Hands[pid], aceOfSpades) {
			g.CurrentIndex = i
			break
		}
	}
	return g
}

func (g *GameState) CurrentPlayerID() string {
	if len(g.Order) == 0 {
		return ""
	}
	return g.Order[g.CurrentIndex]
}

func (g *GameState) isFinished(playerID string) bool {
	for _, pid := range g.FinishedOrder {
		if pid == playerID {
			return true
		}
	}
	return false
}

// ActivePlayers returns, in seat order, everyone who has not escaped.
func (g *GameState) ActivePlayers() []string {
	active := make([]string, 0, len(g.Order))
	for _, pid := range g.Order {
		if !g.isFinished(pid) {
			active = append(active, pid)
		}
	}
	return active
}

func (g *GameState) indexOf(playerID string) int {
	for i, pid := range g.Order {
		if pid == playerID {
			return i
		}
	}
	return -1
}

// advanceFrom moves the turn to the first non-finished player after idx.
func (g *GameState) advanceFrom(idx int) {
	if len(g.ActivePlayers()) == 0 {
		return
	}
	next := idx
	for {
		next = (next + 1) % len(g.Order)
		if !g.isFinished(g.Order[next]) {
			g.CurrentIndex = next
			return
		}
	}
}

// setLeader hands the lead to playerID, or to the next active seat after
// them if they have escaped.
func (g *GameState) setLeader(playerID string) {
	idx := g.indexOf(playerID)
	if idx < 0 {
		return
	}
	if !g.isFinished(playerID) {
		g.CurrentIndex = idx
		return
	}
	g.advanceFrom(idx)
}

// markFinished appends playerID to the finish order and invalidates any
// pending card request they were part of. Turn ownership is fixed up so the
// index never rests on an escaped player.
func (g *GameState) markFinished(playerID string) {
	if g.isFinished(playerID) {
		return
	}
	g.FinishedOrder = append(g.FinishedOrder, playerID)
	delete(g.PendingRequests, playerID)
	for target, requester := range g.PendingRequests {
		if requester == playerID {
			delete(g.PendingRequests, target)
		}
	}
	if g.Status == StatusPlaying && g.CurrentPlayerID() == playerID {
		g.advanceFrom(g.CurrentIndex)
	}
}

// checkGameOver promotes the sole remaining player to loser.
func (g *GameState) checkGameOver() bool {
	active := g.ActivePlayers()
	if len(active) > 1 {
		return false
	}
	if len(active) == 1 {
		g.Loser = active[0]
	}
	g.Status = StatusFinished
	return true
}
