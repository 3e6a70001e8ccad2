package game

import (
	appErr "bhabhi-service/pkg/errors"
)

// requestThreshold is the hand size at or below which a player may be asked
// to give their cards away.
const requestThreshold = 3

// RequestOutcome reports how a card request response played out.
type RequestOutcome struct {
	Accepted      string
	RequesterID   string
	TargetID      string
	CardCount     int
	TrickResolved bool
	GameOver      bool
}

// ApplyRequest registers a pending card request. Requests are not gated to
// the requester's turn; they resolve atomically when the target responds,
// independent of any trick in progress.
func ApplyRequest(g *GameState, requesterID, targetID string) error {
	if g.Status != StatusPlaying {
		return appErr.ErrRoomNotPlaying
	}
	if requesterID == targetID {
		return appErr.ErrTargetNotEligible
	}
	if g.isFinished(requesterID) {
		return appErr.ErrAlreadyFinished
	}
	if g.isFinished(targetID) {
		return appErr.ErrAlreadyFinished
	}
	if len(g.Hands[requesterID]) <= requestThreshold {
		return appErr.ErrTargetNotEligible
	}
	target := g.Hands[targetID]
	if len(target) == 0 || len(target) > requestThreshold {
		return appErr.ErrTargetNotEligible
	}
	if _, pending := g.PendingRequests[targetID]; pending {
		return appErr.ErrRequestPending
	}
	g.PendingRequests[targetID] = requesterID
	return nil
}

// ApplyResponse resolves a pending request. Accepting transfers the target's
// whole hand to the requester and marks the target escaped; declining is a
// no-op beyond clearing the request. Once a target has escaped, any further
// response against them fails with ErrAlreadyFinished.
func ApplyResponse(g *GameState, targetID, requesterID string, accept bool) (*RequestOutcome, error) {
	if g.Status != StatusPlaying {
		return nil, appErr.ErrRoomNotPlaying
	}
	if g.isFinished(targetID) {
		return nil, appErr.ErrAlreadyFinished
	}
	pending, ok := g.PendingRequests[targetID]
	if !ok || pending != requesterID {
		return nil, appErr.ErrNoSuchRequest
	}
	delete(g.PendingRequests, targetID)

	outcome := &RequestOutcome{
		RequesterID: requesterID,
		TargetID:    targetID,
	}
	if !accept {
		return outcome, nil
	}
	if g.isFinished(requesterID) {
		// Requester escaped while the request sat unanswered.
		return nil, appErr.ErrNoSuchRequest
	}

	hand := g.Hands[targetID]
	outcome.Accepted = "accepted"
	outcome.CardCount = len(hand)
	g.Hands[requesterID] = append(g.Hands[requesterID], hand...)
	g.Hands[targetID] = nil
	g.markFinished(targetID)
	if g.checkGameOver() {
		outcome.GameOver = true
		return outcome, nil
	}
	// The escape may have been the last contribution the trick was waiting
	// on; leaving it open would hand the next player a second play.
	if resolveIfComplete(g) != nil {
		outcome.TrickResolved = true
		outcome.GameOver = g.Status == StatusFinished
	}
	return outcome, nil
}

// ApplyForfeit ends the game immediately: the forfeiting player takes the
// loss and every other active player escapes with their current rank.
func ApplyForfeit(g *GameState, playerID string) error {
	if g.Status != StatusPlaying {
		return appErr.ErrRoomNotPlaying
	}
	if g.isFinished(playerID) {
		return appErr.ErrAlreadyFinished
	}
	for _, pid := range g.ActivePlayers() {
		if pid != playerID {
			g.markFinished(pid)
		}
	}
	g.Loser = playerID
	g.Status = StatusFinished
	return nil
}

// ApplyWatch binds an escaped player to exactly one active player's hand.
// The choice is permanent for the rest of the game.
func ApplyWatch(g *GameState, spectatorID, targetID string) error {
	if g.Status != StatusPlaying {
		return appErr.ErrRoomNotPlaying
	}
	if !g.isFinished(spectatorID) {
		return appErr.ErrNotASpectator
	}
	if _, ok := g.Watchers[spectatorID]; ok {
		return appErr.ErrAlreadyWatching
	}
	if g.isFinished(targetID) || spectatorID == targetID {
		return appErr.ErrTargetNotEligible
	}
	g.Watchers[spectatorID] = targetID
	return nil
}
