package game

import (
	"errors"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	appErr "bhabhi-service/pkg/errors"
	"bhabhi-service/pkg/logger"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// newTestRuntime builds a room with generous timers so nothing fires unless a
// test asks for it.
func newTestRuntime(turn, botDelay time.Duration) *Runtime {
	return newRuntime("TEST01", "Test Room", 6, Player{ID: "host", Username: "Host"}, turn, botDelay, nil, nil)
}

func readyRoom(t *testing.T, rt *Runtime, players ...string) {
	t.Helper()
	for _, pid := range players {
		if err := rt.Join(pid, pid); err != nil {
			t.Fatalf("join %s failed: %v", pid, err)
		}
		if err := rt.ToggleReady(pid); err != nil {
			t.Fatalf("ready %s failed: %v", pid, err)
		}
	}
}

func waitFor(t *testing.T, ch <-chan OutgoingMessage, msgType string) OutgoingMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed while waiting for %s", msgType)
			}
			if msg.Type == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

func TestStartValidation(t *testing.T) {
	rt := newTestRuntime(time.Hour, time.Hour)

	if err := rt.Start("host"); !errors.Is(err, appErr.ErrInsufficientPlayers) {
		t.Fatalf("expected ErrInsufficientPlayers, got %v", err)
	}
	if err := rt.Join("p2", "p2"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if err := rt.Start("host"); !errors.Is(err, appErr.ErrPlayersNotReady) {
		t.Fatalf("expected ErrPlayersNotReady, got %v", err)
	}
	if err := rt.Start("p2"); !errors.Is(err, appErr.ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
	if err := rt.Start("ghost"); !errors.Is(err, appErr.ErrNotInRoom) {
		t.Fatalf("expected ErrNotInRoom, got %v", err)
	}
}

func TestStartDealsFullDeck(t *testing.T) {
	rt := newTestRuntime(time.Hour, time.Hour)
	readyRoom(t, rt, "p2", "p3")

	if err := rt.Start("host"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.phase != PhasePlaying {
		t.Fatalf("expected playing phase, got %s", rt.phase)
	}
	total := 0
	for _, hand := range rt.state.Hands {
		total += len(hand)
	}
	if total != 52 {
		t.Fatalf("expected 52 cards dealt, got %d", total)
	}
	current := rt.state.CurrentPlayerID()
	if !holdsCard(rt.state.Hands[current], aceOfSpades) {
		t.Fatalf("first player %s does not hold the ace of spades", current)
	}
}

func TestConcurrentPlaysOnlyOneApplies(t *testing.T) {
	rt := newTestRuntime(time.Hour, time.Hour)
	readyRoom(t, rt, "p2", "p3")
	if err := rt.Start("host"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	rt.mu.Lock()
	pid := rt.state.CurrentPlayerID()
	card := rt.policy.ChooseCard(rt.state, pid)
	rt.mu.Unlock()

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- rt.Play(pid, card)
		}()
	}
	wg.Wait()
	close(results)

	failures := 0
	for err := range results {
		if err != nil {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one rejected play, got %d", failures)
	}
}

func TestSnapshotIdempotent(t *testing.T) {
	rt := newTestRuntime(time.Hour, time.Hour)
	readyRoom(t, rt, "p2")
	if err := rt.Start("host"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	first, err := rt.Snapshot("host")
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	second, err := rt.Snapshot("host")
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	second.Countdown = first.Countdown
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("snapshots diverged without an intervening action:\n%+v\n%+v", first, second)
	}

	if _, err := rt.Snapshot("ghost"); !errors.Is(err, appErr.ErrNotInRoom) {
		t.Fatalf("expected ErrNotInRoom, got %v", err)
	}
}

func TestTurnTimeoutAutoPlays(t *testing.T) {
	rt := newTestRuntime(40*time.Millisecond, time.Hour)
	readyRoom(t, rt, "p2")
	if err := rt.Start("host"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	rt.mu.Lock()
	pid := rt.state.CurrentPlayerID()
	handSize := len(rt.state.Hands[pid])
	rt.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rt.mu.Lock()
		played := len(rt.state.Hands[pid]) < handSize
		rt.mu.Unlock()
		if played {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("turn never auto-played after timeout")
}

func TestBotPlaysItsTurn(t *testing.T) {
	rt := newTestRuntime(time.Hour, 10*time.Millisecond)
	for i := 0; i < 2; i++ {
		if _, err := rt.AddBot("host"); err != nil {
			t.Fatalf("add bot failed: %v", err)
		}
	}
	if err := rt.Start("host"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rt.mu.Lock()
		progressed := len(rt.state.CurrentTrick) > 0 || rt.state.TrickNumber > 1 || rt.state.CurrentPlayerID() == "host"
		onHuman := rt.state.CurrentPlayerID() == "host"
		rt.mu.Unlock()
		if progressed && !onHuman {
			return
		}
		if onHuman {
			// Bots moved the trick to the human seat; that is progress too.
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("bots never played")
}

func TestBotAutoAcceptsCardRequest(t *testing.T) {
	rt := newTestRuntime(time.Hour, time.Hour)
	bot, err := rt.AddBot("host")
	if err != nil {
		t.Fatalf("add bot failed: %v", err)
	}
	if err := rt.Start("host"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	rt.mu.Lock()
	rt.state.Hands[bot.ID] = rt.state.Hands[bot.ID][:2]
	rt.mu.Unlock()

	if err := rt.RequestCards("host", bot.ID); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !rt.state.isFinished(bot.ID) {
		t.Fatalf("bot should have accepted and escaped")
	}
	// With the bot gone the host is the sole survivor.
	if rt.phase != PhaseFinished || rt.state.Loser != "host" {
		t.Fatalf("expected finished game with host losing, got phase=%s loser=%q", rt.phase, rt.state.Loser)
	}
}

func TestRestartDealsFreshGame(t *testing.T) {
	rt := newTestRuntime(time.Hour, time.Hour)
	readyRoom(t, rt, "p2")

	if err := rt.Restart("host"); !errors.Is(err, appErr.ErrRoomNotFinished) {
		t.Fatalf("expected ErrRoomNotFinished, got %v", err)
	}
	if err := rt.Start("host"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := rt.Forfeit("host"); err != nil {
		t.Fatalf("forfeit failed: %v", err)
	}
	if err := rt.Restart("host"); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.phase != PhasePlaying {
		t.Fatalf("expected playing phase after restart, got %s", rt.phase)
	}
	if rt.state.TrickNumber != 1 || !rt.state.FirstTrick || rt.state.Loser != "" {
		t.Fatalf("restart did not reset the game: %+v", rt.state)
	}
	total := 0
	for _, hand := range rt.state.Hands {
		total += len(hand)
	}
	if total != 52 {
		t.Fatalf("expected a fresh 52-card deal, got %d", total)
	}
}

func TestLeaveMidGameForfeits(t *testing.T) {
	rt := newTestRuntime(time.Hour, time.Hour)
	readyRoom(t, rt, "p2", "p3")
	if err := rt.Start("host"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := rt.Leave("p2"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.phase != PhaseFinished || rt.state.Loser != "p2" {
		t.Fatalf("expected p2 to forfeit by leaving, got phase=%s loser=%q", rt.phase, rt.state.Loser)
	}
	if rt.findPlayerLocked("p2") != nil {
		t.Fatalf("p2 should have been removed from the roster")
	}
}

func TestHostHandOffOnLeave(t *testing.T) {
	rt := newTestRuntime(time.Hour, time.Hour)
	readyRoom(t, rt, "p2")

	if err := rt.Leave("host"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	p := rt.findPlayerLocked("p2")
	if p == nil || !p.IsHost {
		t.Fatalf("expected host role to pass to p2")
	}
}

func TestSubscribeDeliversPrivateViews(t *testing.T) {
	rt := newTestRuntime(time.Hour, time.Hour)
	readyRoom(t, rt, "p2")

	if _, err := rt.Subscribe("ghost"); !errors.Is(err, appErr.ErrNotInRoom) {
		t.Fatalf("expected ErrNotInRoom, got %v", err)
	}

	hostCh, err := rt.Subscribe("host")
	if err != nil {
		t.Fatalf("subscribe host failed: %v", err)
	}
	p2Ch, err := rt.Subscribe("p2")
	if err != nil {
		t.Fatalf("subscribe p2 failed: %v", err)
	}
	waitFor(t, hostCh, EventRoomUpdate)
	waitFor(t, p2Ch, EventRoomUpdate)

	if err := rt.Start("host"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	hostView := waitFor(t, hostCh, EventGameStarted).Data.(GameView)
	p2View := waitFor(t, p2Ch, EventGameStarted).Data.(GameView)

	if len(hostView.YourHand) != 26 || len(p2View.YourHand) != 26 {
		t.Fatalf("expected 26 cards each, got %d and %d", len(hostView.YourHand), len(p2View.YourHand))
	}
	for _, c := range hostView.YourHand {
		for _, other := range p2View.YourHand {
			if c.Equal(other) {
				t.Fatalf("card %s of %s appears in both private views", c.Rank, c.Suit)
			}
		}
	}
	if hostView.PlayerCardCounts["p2"] != 26 {
		t.Fatalf("expected card counts for other players, got %v", hostView.PlayerCardCounts)
	}
}

func TestResubscribeSurvivesStaleUnsubscribe(t *testing.T) {
	rt := newTestRuntime(time.Hour, time.Hour)
	readyRoom(t, rt, "p2")

	stale, err := rt.Subscribe("p2")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	fresh, err := rt.Subscribe("p2")
	if err != nil {
		t.Fatalf("resubscribe failed: %v", err)
	}

	// The replaced connection tears itself down; the fresh subscription
	// must survive it.
	rt.Unsubscribe("p2", stale)

	rt.SendToUser("p2", "pong", nil)
	waitFor(t, fresh, "pong")

	rt.mu.Lock()
	connected := rt.findPlayerLocked("p2").Connected
	_, subscribed := rt.subscribers["p2"]
	rt.mu.Unlock()
	if !connected || !subscribed {
		t.Fatalf("stale unsubscribe dropped the live connection: connected=%v subscribed=%v", connected, subscribed)
	}

	// Matching the live channel still disconnects normally.
	rt.Unsubscribe("p2", fresh)
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-fresh:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("live channel not closed by its own unsubscribe")
		}
	}
}

func TestRestartRequiresTwoPlayers(t *testing.T) {
	rt := newTestRuntime(time.Hour, time.Hour)
	readyRoom(t, rt, "p2")
	if err := rt.Start("host"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	// Leaving mid-game forfeits and shrinks the roster to one seat.
	if err := rt.Leave("p2"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if err := rt.Restart("host"); !errors.Is(err, appErr.ErrInsufficientPlayers) {
		t.Fatalf("expected ErrInsufficientPlayers, got %v", err)
	}
}

func TestUnsubscribeKeepsSeat(t *testing.T) {
	rt := newTestRuntime(time.Hour, time.Hour)
	readyRoom(t, rt, "p2")

	ch, err := rt.Subscribe("p2")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	rt.Unsubscribe("p2", ch)

	if _, ok := <-ch; ok {
		// Drain until closed; the channel must eventually close.
		for range ch {
		}
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	p := rt.findPlayerLocked("p2")
	if p == nil {
		t.Fatalf("seat should survive a disconnect")
	}
	if p.Connected {
		t.Fatalf("connection flag should drop on unsubscribe")
	}
}
