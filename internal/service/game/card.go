package game

import (
	mrand "math/rand"
)

type Suit string

const (
	Spades   Suit = "spades"
	Hearts   Suit = "hearts"
	Clubs    Suit = "clubs"
	Diamonds Suit = "diamonds"
)

var suits = []Suit{Hearts, Diamonds, Clubs, Spades}

var ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

// Card is an immutable value. Value gives the total order within a suit:
// 2=2 ... 10=10, J=11, Q=12, K=13, A=14.
type Card struct {
	Suit  Suit   `json:"suit"`
	Rank  string `json:"rank"`
	Value int    `json:"value"`
}

func (c Card) Equal(other Card) bool {
	return c.Suit == other.Suit && c.Rank == other.Rank
}

var aceOfSpades = Card{Suit: Spades, Rank: "A", Value: 14}

// NewDeck returns a shuffled 52-card deck.
func NewDeck() []Card {
	deck := make([]Card, 0, 52)
	for _, suit := range suits {
		for i, rank := range ranks {
			deck = append(deck, Card{Suit: suit, Rank: rank, Value: i + 2})
		}
	}
	mrand.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// Deal distributes the deck round-robin. With a remainder the earliest
// players receive one card more.
func Deal(deck []Card, numPlayers int) [][]Card {
	hands := make([][]Card, numPlayers)
	for i, card := range deck {
		hands[i%numPlayers] = append(hands[i%numPlayers], card)
	}
	return hands
}

// NormalizeCard validates a client-supplied suit/rank pair and fills in the
// server-side value, ignoring whatever value the client claimed.
func NormalizeCard(c Card) (Card, bool) {
	validSuit := false
	for _, s := range suits {
		if c.Suit == s {
			validSuit = true
			break
		}
	}
	if !validSuit {
		return Card{}, false
	}
	for i, r := range ranks {
		if c.Rank == r {
			return Card{Suit: c.Suit, Rank: c.Rank, Value: i + 2}, true
		}
	}
	return Card{}, false
}

func hasSuit(hand []Card, suit Suit) bool {
	for _, c := range hand {
		if c.Suit == suit {
			return true
		}
	}
	return false
}

func removeCard(hand []Card, card Card) ([]Card, bool) {
	for i, c := range hand {
		if c.Equal(card) {
			out := make([]Card, 0, len(hand)-1)
			out = append(out, hand[:i]...)
			out = append(out, hand[i+1:]...)
			return out, true
		}
	}
	return hand, false
}

func holdsCard(hand []Card, card Card) bool {
	for _, c := range hand {
		if c.Equal(card) {
			return true
		}
	}
	return false
}
