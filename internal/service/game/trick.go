package game

import (
	appErr "bhabhi-service/pkg/errors"
)

// PlayOutcome reports what a validated play did to the trick.
type PlayOutcome struct {
	TrickResolved bool
	Result        *TrickResult
	GameOver      bool
}

// ApplyPlay validates and applies one card play. Validation happens before
// any mutation: on error the state is untouched.
func ApplyPlay(g *GameState, playerID string, card Card) (*PlayOutcome, error) {
	if g.Status != StatusPlaying {
		return nil, appErr.ErrRoomNotPlaying
	}
	if g.isFinished(playerID) {
		return nil, appErr.ErrAlreadyFinished
	}
	if g.CurrentPlayerID() != playerID {
		return nil, appErr.ErrNotYourTurn
	}
	hand := g.Hands[playerID]
	if !holdsCard(hand, card) {
		return nil, appErr.ErrCardNotInHand
	}

	leading := len(g.CurrentTrick) == 0
	if leading {
		if g.FirstTrick && holdsCard(hand, aceOfSpades) && !card.Equal(aceOfSpades) {
			return nil, appErr.ErrMustLeadAceOfSpades
		}
	} else {
		if hasSuit(hand, g.LeadSuit) && card.Suit != g.LeadSuit {
			return nil, appErr.ErrMustFollowSuit
		}
	}

	// A new play clears the previous trick's display state.
	g.CompletedTrick = nil
	g.LastTrickResult = nil

	g.Hands[playerID], _ = removeCard(hand, card)
	if leading {
		g.LeadSuit = card.Suit
	}
	g.CurrentTrick = append(g.CurrentTrick, TrickCard{PlayerID: playerID, Card: card})

	outcome := &PlayOutcome{}
	if trickComplete(g, card) {
		outcome.TrickResolved = true
		outcome.Result = resolveTrick(g)
		outcome.GameOver = g.Status == StatusFinished
	} else {
		g.advanceFrom(g.CurrentIndex)
	}
	return outcome, nil
}

// trickComplete is true once every active player has played, or as soon as
// suit is broken. The first trick never short-circuits on a break.
func trickComplete(g *GameState, lastCard Card) bool {
	if !g.FirstTrick && lastCard.Suit != g.LeadSuit {
		return true
	}
	return len(g.CurrentTrick) >= len(g.ActivePlayers())
}

// resolveIfComplete finishes the trick once every remaining active player
// has contributed a card. That condition can become true without a play when
// a request escape removes a player mid-trick. Returns nil while the trick
// is still open.
func resolveIfComplete(g *GameState) *TrickResult {
	if len(g.CurrentTrick) == 0 {
		return nil
	}
	played := make(map[string]bool, len(g.CurrentTrick))
	for _, tc := range g.CurrentTrick {
		played[tc.PlayerID] = true
	}
	for _, pid := range g.ActivePlayers() {
		if !played[pid] {
			return nil
		}
	}
	return resolveTrick(g)
}

// resolveTrick adjudicates the completed trick: waste on an uncontested (or
// first) trick, pickup by the highest lead-suit card otherwise. It then runs
// the escape check and either ends the game or hands the lead over.
func resolveTrick(g *GameState) *TrickResult {
	completed := append([]TrickCard(nil), g.CurrentTrick...)
	leadSuit := g.LeadSuit
	powerID := highestOfSuit(completed, leadSuit)
	if powerID != "" && g.isFinished(powerID) {
		// The nominal winner escaped mid-trick by request; the pickup falls
		// to the strongest lead-suit card still held by an active player.
		powerID = highestActiveOfSuit(g, completed, leadSuit)
	}

	tochooBy := ""
	for _, tc := range completed {
		if tc.Card.Suit != leadSuit {
			tochooBy = tc.PlayerID
			break
		}
	}

	result := &TrickResult{
		PowerPlayer: powerID,
		Trick:       completed,
		LeadSuit:    leadSuit,
	}

	if g.FirstTrick || tochooBy == "" || powerID == "" {
		result.Type = TrickDiscarded
		for _, tc := range completed {
			g.WastePile = append(g.WastePile, tc.Card)
		}
	} else {
		result.Type = TrickPickup
		result.TochooBy = tochooBy
		result.CardCount = len(completed)
		for _, tc := range completed {
			g.Hands[powerID] = append(g.Hands[powerID], tc.Card)
		}
		g.TochooSuits[powerID] = appendSuitOnce(g.TochooSuits[powerID], leadSuit)
	}

	g.CompletedTrick = completed
	g.LastTrickResult = result
	g.CurrentTrick = nil
	g.LeadSuit = ""
	g.FirstTrick = false
	g.TrickNumber++

	// Escape check: anyone whose hand emptied this trick is out. The picker
	// cannot be empty, so this only fires on the waste path.
	for _, pid := range g.ActivePlayers() {
		if len(g.Hands[pid]) == 0 {
			g.markFinished(pid)
		}
	}

	if g.checkGameOver() {
		return result
	}
	g.setLeader(powerID)
	return result
}

// highestOfSuit returns who played the strongest card of suit. Ranks
// strictly order cards within a suit, so there are no ties.
func highestOfSuit(trick []TrickCard, suit Suit) string {
	best := ""
	bestValue := -1
	for _, tc := range trick {
		if tc.Card.Suit == suit && tc.Card.Value > bestValue {
			bestValue = tc.Card.Value
			best = tc.PlayerID
		}
	}
	return best
}

// highestActiveOfSuit is highestOfSuit restricted to cards played by
// still-active players.
func highestActiveOfSuit(g *GameState, trick []TrickCard, suit Suit) string {
	best := ""
	bestValue := -1
	for _, tc := range trick {
		if g.isFinished(tc.PlayerID) {
			continue
		}
		if tc.Card.Suit == suit && tc.Card.Value > bestValue {
			bestValue = tc.Card.Value
			best = tc.PlayerID
		}
	}
	return best
}

func appendSuitOnce(suits []Suit, suit Suit) []Suit {
	for _, s := range suits {
		if s == suit {
			return suits
		}
	}
	return append(suits, suit)
}
