package game

import (
	"sync"
	"time"

	appErr "bhabhi-service/pkg/errors"
	"bhabhi-service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseDealing  Phase = "dealing"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

// Bots draw their usernames from a fixed roster; the roster size caps how
// many bots a room can hold.
var botNames = []string{"Anmol", "Simran", "Sehaj", "Jaggu", "Jaggi", "Jassi", "Munna"}

type Player struct {
	ID        string
	Username  string
	IsHost    bool
	IsBot     bool
	Ready     bool
	Connected bool
}

// Runtime owns one room: its lobby roster, its authoritative GameState and
// the fan-out to every subscribed socket. Every inbound action for the room
// is serialized through mu, so concurrent plays, request responses and timer
// expiries are strictly ordered. Broadcast payloads are snapshots copied
// while the lock is held; delivery happens on the subscribers' own pumps.
type Runtime struct {
	code       string
	name       string
	maxPlayers int
	phase      Phase
	players    []*Player
	state      *GameState
	policy     Policy

	subscribers map[string]chan OutgoingMessage
	seq         int64

	turnSeconds  time.Duration
	botDelay     time.Duration
	turnTimer    *time.Timer
	botTimer     *time.Timer
	turnDeadline time.Time
	turnEpoch    int64

	mu sync.Mutex

	onFinish func(FinishSummary)
	onEmpty  func(code string)
}

func newRuntime(code, name string, maxPlayers int, host Player, turnSeconds, botDelay time.Duration, onFinish func(FinishSummary), onEmpty func(string)) *Runtime {
	host.IsHost = true
	return &Runtime{
		code:        code,
		name:        name,
		maxPlayers:  maxPlayers,
		phase:       PhaseWaiting,
		players:     []*Player{&host},
		policy:      GreedyPolicy{},
		subscribers: make(map[string]chan OutgoingMessage),
		turnSeconds: turnSeconds,
		botDelay:    botDelay,
		onFinish:    onFinish,
		onEmpty:     onEmpty,
	}
}

func (rt *Runtime) Code() string { return rt.code }

// ---- lobby ----

func (rt *Runtime) Join(userID, username string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.findPlayerLocked(userID) != nil {
		return nil // rejoin, seat already reserved
	}
	if rt.phase != PhaseWaiting {
		return appErr.ErrRoomNotWaiting
	}
	if len(rt.players) >= rt.maxPlayers {
		return appErr.ErrRoomFull
	}
	rt.players = append(rt.players, &Player{ID: userID, Username: username})
	rt.broadcastRoomLocked(EventPlayerJoined)
	return nil
}

func (rt *Runtime) Leave(userID string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	p := rt.findPlayerLocked(userID)
	if p == nil {
		return appErr.ErrNotInRoom
	}

	// Leaving mid-game is an explicit forfeit, unlike a mere disconnect.
	if rt.phase == PhasePlaying && !rt.state.isFinished(userID) {
		if err := ApplyForfeit(rt.state, userID); err == nil {
			rt.broadcastGameLocked(EventGameUpdate)
			rt.finishLocked()
		}
	}

	rt.removePlayerLocked(userID)
	if p.IsHost && len(rt.players) > 0 {
		rt.players[0].IsHost = true
	}
	rt.broadcastRoomLocked(EventPlayerLeft)

	if rt.humanCountLocked() == 0 && rt.onEmpty != nil {
		rt.cancelTimersLocked()
		go rt.onEmpty(rt.code)
	}
	return nil
}

func (rt *Runtime) ToggleReady(userID string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.phase != PhaseWaiting {
		return appErr.ErrRoomNotWaiting
	}
	p := rt.findPlayerLocked(userID)
	if p == nil {
		return appErr.ErrNotInRoom
	}
	p.Ready = !p.Ready
	rt.broadcastRoomLocked(EventPlayerReady)
	return nil
}

func (rt *Runtime) AddBot(callerID string) (*PlayerInfo, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.requireHostLocked(callerID); err != nil {
		return nil, err
	}
	if rt.phase != PhaseWaiting {
		return nil, appErr.ErrRoomNotWaiting
	}
	if len(rt.players) >= rt.maxPlayers {
		return nil, appErr.ErrRoomFull
	}
	botCount := 0
	for _, p := range rt.players {
		if p.IsBot {
			botCount++
		}
	}
	if botCount >= len(botNames) {
		return nil, appErr.ErrMaxBotsReached
	}

	bot := &Player{
		ID:        "bot_" + uuid.NewString()[:8],
		Username:  botNames[botCount],
		IsBot:     true,
		Ready:     true,
		Connected: true,
	}
	rt.players = append(rt.players, bot)
	rt.broadcastRoomLocked(EventPlayerJoined)
	info := playerInfo(bot)
	return &info, nil
}

func (rt *Runtime) RemoveBot(callerID, botID string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.requireHostLocked(callerID); err != nil {
		return err
	}
	if rt.phase != PhaseWaiting {
		return appErr.ErrRoomNotWaiting
	}
	p := rt.findPlayerLocked(botID)
	if p == nil {
		return appErr.ErrNotInRoom
	}
	if !p.IsBot {
		return appErr.ErrNotABot
	}
	rt.removePlayerLocked(botID)
	rt.broadcastRoomLocked(EventPlayerLeft)
	return nil
}

// ---- game lifecycle ----

func (rt *Runtime) Start(callerID string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.requireHostLocked(callerID); err != nil {
		return err
	}
	if rt.phase != PhaseWaiting {
		return appErr.ErrRoomNotWaiting
	}
	if len(rt.players) < 2 {
		return appErr.ErrInsufficientPlayers
	}
	for _, p := range rt.players {
		if !p.IsBot && !p.IsHost && !p.Ready {
			return appErr.ErrPlayersNotReady
		}
	}
	rt.dealLocked()
	return nil
}

func (rt *Runtime) Restart(callerID string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.requireHostLocked(callerID); err != nil {
		return err
	}
	if rt.phase != PhaseFinished {
		return appErr.ErrRoomNotFinished
	}
	// Mid-game leaves may have shrunk the roster below a playable size.
	if len(rt.players) < 2 {
		return appErr.ErrInsufficientPlayers
	}
	rt.broadcastLocked(EventGameRestarted, RoomView{Code: rt.code, Players: rt.playerInfosLocked()})
	rt.dealLocked()
	return nil
}

// dealLocked runs waiting→dealing→playing: shuffle, deal, seat the ace of
// spades holder, push per-recipient game_started and arm the first turn.
func (rt *Runtime) dealLocked() {
	rt.phase = PhaseDealing
	ids := make([]string, len(rt.players))
	for i, p := range rt.players {
		ids[i] = p.ID
	}
	rt.state = NewGameState(ids)
	rt.phase = PhasePlaying

	logger.Log.Info("game started",
		zap.String("room", rt.code),
		zap.Int("players", len(ids)),
		zap.String("firstPlayer", rt.state.CurrentPlayerID()),
	)

	seq := rt.nextSeqLocked()
	for uid := range rt.subscribers {
		rt.pushLocked(uid, OutgoingMessage{Type: EventGameStarted, Seq: seq, Data: rt.exportGameLocked(uid)})
	}
	rt.armTurnLocked()
}

// ---- game actions ----

func (rt *Runtime) Play(playerID string, card Card) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.phase != PhasePlaying {
		return appErr.ErrRoomNotPlaying
	}
	return rt.playCardLocked(playerID, card)
}

func (rt *Runtime) RequestCards(requesterID, targetID string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.phase != PhasePlaying {
		return appErr.ErrRoomNotPlaying
	}
	if err := ApplyRequest(rt.state, requesterID, targetID); err != nil {
		return err
	}

	target := rt.findPlayerLocked(targetID)
	if target != nil && target.IsBot {
		// Bots always take the escape.
		return rt.respondLocked(targetID, requesterID, true)
	}

	requester := rt.findPlayerLocked(requesterID)
	name := ""
	if requester != nil {
		name = requester.Username
	}
	rt.pushLocked(targetID, OutgoingMessage{
		Type: EventCardRequest,
		Seq:  rt.nextSeqLocked(),
		Data: CardRequestEvent{
			RequesterID:   requesterID,
			RequesterName: name,
			TargetID:      targetID,
			YourCards:     len(rt.state.Hands[targetID]),
		},
	})
	return nil
}

func (rt *Runtime) RespondRequest(targetID, requesterID string, accept bool) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.phase != PhasePlaying {
		return appErr.ErrRoomNotPlaying
	}
	return rt.respondLocked(targetID, requesterID, accept)
}

func (rt *Runtime) respondLocked(targetID, requesterID string, accept bool) error {
	prev := rt.state.CurrentPlayerID()
	outcome, err := ApplyResponse(rt.state, targetID, requesterID, accept)
	if err != nil {
		return err
	}
	if outcome.Accepted == "" {
		rt.pushLocked(requesterID, OutgoingMessage{
			Type: EventRequestDeclined,
			Seq:  rt.nextSeqLocked(),
			Data: CardsGivenEvent{GiverID: targetID, ReceiverID: requesterID},
		})
		return nil
	}

	rt.broadcastLocked(EventCardsGiven, CardsGivenEvent{
		GiverID:    targetID,
		ReceiverID: requesterID,
		CardCount:  outcome.CardCount,
	})
	rt.broadcastGameLocked(EventGameUpdate)
	if outcome.GameOver {
		rt.finishLocked()
		return nil
	}
	if outcome.TrickResolved || rt.state.CurrentPlayerID() != prev {
		rt.armTurnLocked()
	}
	return nil
}

func (rt *Runtime) Forfeit(playerID string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.phase != PhasePlaying {
		return appErr.ErrRoomNotPlaying
	}
	if err := ApplyForfeit(rt.state, playerID); err != nil {
		return err
	}
	rt.broadcastGameLocked(EventGameUpdate)
	rt.finishLocked()
	return nil
}

func (rt *Runtime) WatchHand(spectatorID, targetID string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.phase != PhasePlaying {
		return appErr.ErrRoomNotPlaying
	}
	if err := ApplyWatch(rt.state, spectatorID, targetID); err != nil {
		return err
	}
	rt.pushLocked(spectatorID, OutgoingMessage{Type: EventGameUpdate, Seq: rt.nextSeqLocked(), Data: rt.exportGameLocked(spectatorID)})
	return nil
}

// playCardLocked is the single application path for human plays, timer
// auto-plays and bot plays.
func (rt *Runtime) playCardLocked(playerID string, card Card) error {
	prev := rt.state.CurrentPlayerID()
	outcome, err := ApplyPlay(rt.state, playerID, card)
	if err != nil {
		return err
	}
	rt.broadcastGameLocked(EventGameUpdate)
	if outcome.GameOver {
		rt.finishLocked()
		return nil
	}
	if outcome.TrickResolved || rt.state.CurrentPlayerID() != prev {
		rt.armTurnLocked()
	}
	return nil
}

// ---- turn timer & bots ----

// armTurnLocked starts the countdown for the current turn. The epoch bump
// invalidates every previously scheduled callback, so a stale timer or bot
// firing after a human play can never apply.
func (rt *Runtime) armTurnLocked() {
	rt.cancelTimersLocked()
	rt.turnEpoch++
	epoch := rt.turnEpoch
	rt.turnDeadline = time.Now().Add(rt.turnSeconds)
	rt.turnTimer = time.AfterFunc(rt.turnSeconds, func() { rt.onTurnTimeout(epoch) })

	if p := rt.findPlayerLocked(rt.state.CurrentPlayerID()); p != nil && p.IsBot {
		rt.botTimer = time.AfterFunc(rt.botDelay, func() { rt.onBotTurn(epoch) })
	}
}

func (rt *Runtime) cancelTimersLocked() {
	if rt.turnTimer != nil {
		rt.turnTimer.Stop()
		rt.turnTimer = nil
	}
	if rt.botTimer != nil {
		rt.botTimer.Stop()
		rt.botTimer = nil
	}
	rt.turnDeadline = time.Time{}
}

func (rt *Runtime) onTurnTimeout(epoch int64) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if epoch != rt.turnEpoch || rt.phase != PhasePlaying {
		return
	}
	pid := rt.state.CurrentPlayerID()
	hand := rt.state.Hands[pid]
	if len(hand) == 0 {
		// Unreachable by the state invariants; don't stall the room.
		logger.Log.Error("turn timeout with empty hand, forcing advance",
			zap.String("room", rt.code), zap.String("player", pid))
		rt.state.advanceFrom(rt.state.CurrentIndex)
		rt.armTurnLocked()
		rt.broadcastGameLocked(EventGameUpdate)
		return
	}

	card := rt.policy.ChooseCard(rt.state, pid)
	logger.Log.Info("turn timeout auto-play",
		zap.String("room", rt.code), zap.String("player", pid))
	if err := rt.playCardLocked(pid, card); err != nil {
		logger.Log.Error("auto-play rejected, forcing advance",
			zap.String("room", rt.code), zap.String("player", pid), zap.Error(err))
		rt.state.advanceFrom(rt.state.CurrentIndex)
		rt.armTurnLocked()
		rt.broadcastGameLocked(EventGameUpdate)
	}
}

// botConcedeAt is the hand size at which a bot gives up the game as lost.
const botConcedeAt = 35

func (rt *Runtime) onBotTurn(epoch int64) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if epoch != rt.turnEpoch || rt.phase != PhasePlaying {
		return
	}
	pid := rt.state.CurrentPlayerID()
	p := rt.findPlayerLocked(pid)
	if p == nil || !p.IsBot {
		return
	}
	if len(rt.state.Hands[pid]) >= botConcedeAt {
		if err := ApplyForfeit(rt.state, pid); err == nil {
			rt.broadcastGameLocked(EventGameUpdate)
			rt.finishLocked()
		}
		return
	}
	card := rt.policy.ChooseCard(rt.state, pid)
	if err := rt.playCardLocked(pid, card); err != nil {
		logger.Log.Error("bot play rejected",
			zap.String("room", rt.code), zap.String("bot", pid), zap.Error(err))
	}
}

func (rt *Runtime) finishLocked() {
	rt.phase = PhaseFinished
	rt.cancelTimersLocked()

	summary := FinishSummary{
		RoomCode:      rt.code,
		LoserID:       rt.state.Loser,
		FinishedOrder: append([]string(nil), rt.state.FinishedOrder...),
		Players:       rt.playerInfosLocked(),
		TrickCount:    rt.state.TrickNumber - 1,
		StartedAt:     rt.state.StartedAt.Unix(),
		EndedAt:       time.Now().Unix(),
	}
	logger.Log.Info("game finished",
		zap.String("room", rt.code),
		zap.String("loser", summary.LoserID),
		zap.Int("tricks", summary.TrickCount),
	)
	if rt.onFinish != nil {
		go rt.onFinish(summary)
	}
}

// ---- fan-out ----

// Subscribe registers a socket for userID and immediately pushes the
// current snapshot, so a reconnecting client never depends on missed
// events for correctness.
func (rt *Runtime) Subscribe(userID string) (<-chan OutgoingMessage, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	p := rt.findPlayerLocked(userID)
	if p == nil {
		return nil, appErr.ErrNotInRoom
	}
	if old, ok := rt.subscribers[userID]; ok {
		close(old)
	}
	ch := make(chan OutgoingMessage, 16)
	rt.subscribers[userID] = ch
	p.Connected = true

	rt.pushLocked(userID, OutgoingMessage{Type: EventRoomUpdate, Seq: rt.nextSeqLocked(), Data: rt.roomViewLocked()})
	if rt.state != nil {
		rt.pushLocked(userID, OutgoingMessage{Type: EventGameUpdate, Seq: rt.nextSeqLocked(), Data: rt.exportGameLocked(userID)})
	}
	rt.broadcastLocked(EventUserConnected, map[string]interface{}{
		"userId":         userID,
		"connectedUsers": rt.connectedUsersLocked(),
	})
	return ch, nil
}

// Unsubscribe removes the subscription identified by ch. A reconnect
// replaces the map entry, so a stale connection tearing itself down must
// not touch the fresh subscriber.
func (rt *Runtime) Unsubscribe(userID string, ch <-chan OutgoingMessage) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	cur, ok := rt.subscribers[userID]
	if !ok || (<-chan OutgoingMessage)(cur) != ch {
		return
	}
	delete(rt.subscribers, userID)
	close(cur)

	// The seat stays reserved; only the connection flag drops.
	if p := rt.findPlayerLocked(userID); p != nil {
		p.Connected = false
	}
	rt.broadcastLocked(EventUserDisconnected, map[string]interface{}{
		"userId":         userID,
		"connectedUsers": rt.connectedUsersLocked(),
	})
}

// Broadcast relays an application-level message (chat, reactions, voice
// presence) to every connected socket. It never touches game state.
func (rt *Runtime) Broadcast(msgType string, data interface{}) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.broadcastLocked(msgType, data)
}

// SendToUser relays a message to a single recipient (WebRTC signaling).
func (rt *Runtime) SendToUser(userID, msgType string, data interface{}) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.pushLocked(userID, OutgoingMessage{Type: msgType, Seq: rt.nextSeqLocked(), Data: data})
}

// Resync pushes a fresh snapshot to one subscriber.
func (rt *Runtime) Resync(userID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.pushLocked(userID, OutgoingMessage{Type: EventRoomUpdate, Seq: rt.nextSeqLocked(), Data: rt.roomViewLocked()})
	if rt.state != nil {
		rt.pushLocked(userID, OutgoingMessage{Type: EventGameUpdate, Seq: rt.nextSeqLocked(), Data: rt.exportGameLocked(userID)})
	}
}

// ---- snapshots ----

func (rt *Runtime) RoomInfo() RoomView {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.roomViewLocked()
}

// Snapshot is the idempotent pull-side of the resync contract: two calls
// without an intervening action return identical views.
func (rt *Runtime) Snapshot(userID string) (*GameView, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.state == nil {
		return nil, appErr.ErrRoomNotPlaying
	}
	if rt.findPlayerLocked(userID) == nil {
		return nil, appErr.ErrNotInRoom
	}
	view := rt.exportGameLocked(userID)
	return &view, nil
}

func (rt *Runtime) roomViewLocked() RoomView {
	hostID := ""
	for _, p := range rt.players {
		if p.IsHost {
			hostID = p.ID
		}
	}
	return RoomView{
		Code:       rt.code,
		Name:       rt.name,
		HostID:     hostID,
		MaxPlayers: rt.maxPlayers,
		Phase:      rt.phase,
		Players:    rt.playerInfosLocked(),
	}
}

// exportGameLocked renders the per-recipient view: the recipient's own hand,
// plus the one watched hand if they are an escaped spectator. Everyone else
// is reduced to card counts.
func (rt *Runtime) exportGameLocked(userID string) GameView {
	g := rt.state
	counts := make(map[string]int, len(g.Hands))
	for pid, hand := range g.Hands {
		counts[pid] = len(hand)
	}
	view := GameView{
		YourHand:         append([]Card(nil), g.Hands[userID]...),
		CurrentPlayer:    g.CurrentPlayerID(),
		CurrentTrick:     append([]TrickCard(nil), g.CurrentTrick...),
		CompletedTrick:   append([]TrickCard(nil), g.CompletedTrick...),
		LeadSuit:         g.LeadSuit,
		PlayerOrder:      append([]string(nil), g.Order...),
		PlayerCardCounts: counts,
		FinishedOrder:    append([]string(nil), g.FinishedOrder...),
		Loser:            g.Loser,
		Status:           g.Status,
		IsFirstTrick:     g.FirstTrick,
		TrickNumber:      g.TrickNumber,
		LastTrickResult:  g.LastTrickResult,
		Countdown:        rt.countdownSecondsLocked(),
		Players:          rt.playerInfosLocked(),
	}
	if watched, ok := g.Watchers[userID]; ok {
		view.WatchedHand = &WatchedHand{
			PlayerID: watched,
			Cards:    append([]Card(nil), g.Hands[watched]...),
		}
	}
	return view
}

func (rt *Runtime) countdownSecondsLocked() int {
	if rt.turnDeadline.IsZero() {
		return 0
	}
	diff := time.Until(rt.turnDeadline)
	if diff <= 0 {
		return 0
	}
	return int(diff / time.Second)
}

// ---- plumbing ----

func (rt *Runtime) nextSeqLocked() int64 {
	rt.seq++
	return rt.seq
}

func (rt *Runtime) pushLocked(userID string, msg OutgoingMessage) {
	if ch, ok := rt.subscribers[userID]; ok {
		select {
		case ch <- msg:
		default:
			logger.Log.Warn("subscriber channel full, dropping event",
				zap.String("userID", userID), zap.String("room", rt.code))
		}
	}
}

func (rt *Runtime) broadcastLocked(msgType string, data interface{}) {
	seq := rt.nextSeqLocked()
	for uid := range rt.subscribers {
		rt.pushLocked(uid, OutgoingMessage{Type: msgType, Seq: seq, Data: data})
	}
}

func (rt *Runtime) broadcastGameLocked(msgType string) {
	seq := rt.nextSeqLocked()
	for uid := range rt.subscribers {
		rt.pushLocked(uid, OutgoingMessage{Type: msgType, Seq: seq, Data: rt.exportGameLocked(uid)})
	}
}

func (rt *Runtime) broadcastRoomLocked(msgType string) {
	rt.broadcastLocked(msgType, rt.roomViewLocked())
}

func (rt *Runtime) findPlayerLocked(userID string) *Player {
	for _, p := range rt.players {
		if p.ID == userID {
			return p
		}
	}
	return nil
}

func (rt *Runtime) removePlayerLocked(userID string) {
	for i, p := range rt.players {
		if p.ID == userID {
			rt.players = append(rt.players[:i], rt.players[i+1:]...)
			return
		}
	}
}

func (rt *Runtime) requireHostLocked(userID string) error {
	p := rt.findPlayerLocked(userID)
	if p == nil {
		return appErr.ErrNotInRoom
	}
	if !p.IsHost {
		return appErr.ErrNotHost
	}
	return nil
}

func (rt *Runtime) humanCountLocked() int {
	n := 0
	for _, p := range rt.players {
		if !p.IsBot {
			n++
		}
	}
	return n
}

func (rt *Runtime) connectedUsersLocked() []string {
	out := make([]string, 0, len(rt.subscribers))
	for uid := range rt.subscribers {
		out = append(out, uid)
	}
	return out
}

func (rt *Runtime) playerInfosLocked() []PlayerInfo {
	out := make([]PlayerInfo, len(rt.players))
	for i, p := range rt.players {
		out[i] = playerInfo(p)
	}
	return out
}

func playerInfo(p *Player) PlayerInfo {
	return PlayerInfo{
		ID:        p.ID,
		Username:  p.Username,
		IsHost:    p.IsHost,
		IsBot:     p.IsBot,
		IsReady:   p.Ready,
		Connected: p.Connected,
	}
}
