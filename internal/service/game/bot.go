package game

// Policy picks a legal card for a player's turn. Policies are stateless so
// the same instance can serve every room.
type Policy interface {
	ChooseCard(g *GameState, playerID string) Card
}

// GreedyPolicy is the baseline policy: follow the lead suit with the
// highest card held, otherwise play the highest card overall. Turn-expiry
// auto-play uses this same policy, so a timed-out human and a bot behave
// identically.
type GreedyPolicy struct{}

func (GreedyPolicy) ChooseCard(g *GameState, playerID string) Card {
	hand := g.Hands[playerID]
	if len(g.CurrentTrick) == 0 && g.FirstTrick && holdsCard(hand, aceOfSpades) {
		return aceOfSpades
	}
	if g.LeadSuit != "" {
		if best, ok := highestInSuit(hand, g.LeadSuit); ok {
			return best
		}
	}
	best := hand[0]
	for _, c := range hand[1:] {
		if c.Value > best.Value {
			best = c
		}
	}
	return best
}

// CautiousPolicy is a stronger tier: it ducks under the current high card,
// avoids leading suits it has been forced to pick up, and sheds short suits
// when it cannot follow.
type CautiousPolicy struct{}

func (CautiousPolicy) ChooseCard(g *GameState, playerID string) Card {
	hand := g.Hands[playerID]
	if len(g.CurrentTrick) == 0 {
		return chooseLead(g, playerID, hand)
	}

	suitCards := cardsOfSuit(hand, g.LeadSuit)
	if len(suitCards) == 0 {
		return chooseDiscard(hand)
	}
	if g.FirstTrick {
		// First trick always goes to waste, so dump the biggest card.
		return maxByValue(suitCards)
	}

	highestPlayed := 0
	brokenTrick := false
	for _, tc := range g.CurrentTrick {
		if tc.Card.Suit == g.LeadSuit && tc.Card.Value > highestPlayed {
			highestPlayed = tc.Card.Value
		}
		if tc.Card.Suit != g.LeadSuit {
			brokenTrick = true
		}
	}

	var winning, losing []Card
	for _, c := range suitCards {
		if c.Value > highestPlayed {
			winning = append(winning, c)
		} else {
			losing = append(losing, c)
		}
	}

	if len(losing) > 0 {
		// Stay under the current high card. With a break on the table this
		// also dodges the pickup.
		return maxByValue(losing)
	}
	if brokenTrick {
		// Forced to win the pickup; minimize the damage next lead.
		return minByValue(winning)
	}
	// Power is coming our way regardless; keep the low lead for later.
	return minByValue(suitCards)
}

func chooseLead(g *GameState, playerID string, hand []Card) Card {
	if g.FirstTrick && holdsCard(hand, aceOfSpades) {
		return aceOfSpades
	}

	counts := make(map[Suit]int)
	for _, c := range hand {
		counts[c.Suit]++
	}

	burned := make(map[Suit]bool)
	for _, s := range g.TochooSuits[playerID] {
		burned[s] = true
	}

	var safe []Suit
	for s := range counts {
		if !burned[s] {
			safe = append(safe, s)
		}
	}

	var lead Suit
	if len(safe) > 0 {
		// Prefer a suit held in moderate depth: long enough to keep leading,
		// short enough that someone else is likely void.
		lead = pickSuit(safe, counts, func(n int) bool { return n >= 2 && n <= 5 })
	} else {
		// Every suit has burned us; lead the shortest to cap the pickup.
		for s := range counts {
			if lead == "" || counts[s] < counts[lead] {
				lead = s
			}
		}
	}
	return minByValue(cardsOfSuit(hand, lead))
}

// pickSuit returns the candidate with the most cards among those whose count
// passes the filter, falling back to the longest candidate outright.
func pickSuit(candidates []Suit, counts map[Suit]int, filter func(int) bool) Suit {
	var best Suit
	for _, s := range candidates {
		if !filter(counts[s]) {
			continue
		}
		if best == "" || counts[s] > counts[best] {
			best = s
		}
	}
	if best != "" {
		return best
	}
	for _, s := range candidates {
		if best == "" || counts[s] > counts[best] {
			best = s
		}
	}
	return best
}

// chooseDiscard picks the tochoo card: the highest card from the shortest
// suit held, clearing weak suits while shedding dangerous ranks.
func chooseDiscard(hand []Card) Card {
	counts := make(map[Suit]int)
	for _, c := range hand {
		counts[c.Suit]++
	}
	for width := 1; width <= 2; width++ {
		var pool []Card
		for _, c := range hand {
			if counts[c.Suit] == width {
				pool = append(pool, c)
			}
		}
		if len(pool) > 0 {
			return maxByValue(pool)
		}
	}
	return maxByValue(hand)
}

func cardsOfSuit(hand []Card, suit Suit) []Card {
	var out []Card
	for _, c := range hand {
		if c.Suit == suit {
			out = append(out, c)
		}
	}
	return out
}

func highestInSuit(hand []Card, suit Suit) (Card, bool) {
	cards := cardsOfSuit(hand, suit)
	if len(cards) == 0 {
		return Card{}, false
	}
	return maxByValue(cards), true
}

func maxByValue(cards []Card) Card {
	best := cards[0]
	for _, c := range cards[1:] {
		if c.Value > best.Value {
			best = c
		}
	}
	return best
}

func minByValue(cards []Card) Card {
	best := cards[0]
	for _, c := range cards[1:] {
		if c.Value < best.Value {
			best = c
		}
	}
	return best
}
