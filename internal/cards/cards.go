package cards

import (
	"errors"
	"math/rand"
	"strings"
)

type Rank byte

type Suit byte

const (
	Two   Rank = '2'
	Three Rank = '3'
	Four  Rank = '4'
	Five  Rank = '5'
	Six   Rank = '6'
	Seven Rank = '7'
	Eight Rank = '8'
	Nine  Rank = '9'
	Ten   Rank = 'T'
	Jack  Rank = 'J'
	Queen Rank = 'Q'
	King  Rank = 'K'
	Ace   Rank = 'A'
)

const (
	Hearts   Suit = 'H'
	Diamonds Suit = 'D'
	Clubs    Suit = 'C'
	Spades   Suit = 'S'
)

// HiddenValue is the raw snapshot value of the dealer's face-down card.
const HiddenValue = "**"

var (
	Ranks = []Rank{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}
	Suits = []Suit{Hearts, Diamonds, Clubs, Spades}
)

var ErrMalformedCard = errors.New("malformed_card")

// Card is a rank/suit pair. Scraped suits are not always reliable, so a Card may
// carry a suit outside Suits; Valid reports whether both parts are known.
type Card struct {
	Rank Rank
	Suit Suit
}

// Hidden stands in for the dealer downcard. It only ever lands in the discard pile.
var Hidden = Card{Rank: '*', Suit: '*'}

func (c Card) String() string {
	return string([]byte{byte(c.Rank), byte(c.Suit)})
}

func (c Card) IsHidden() bool {
	return c == Hidden
}

func (c Card) Valid() bool {
	return c.Rank.Valid() && c.Suit.Valid()
}

func (r Rank) Valid() bool {
	for _, v := range Ranks {
		if v == r {
			return true
		}
	}
	return false
}

func (s Suit) Valid() bool {
	switch s {
	case Hearts, Diamonds, Clubs, Spades:
		return true
	default:
		return false
	}
}

// Parse reads the compact display form ("TH", "AS"). "10H" is accepted as "TH"
// and "**" yields Hidden.
func Parse(v string) (Card, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == HiddenValue {
		return Hidden, nil
	}
	if strings.HasPrefix(v, "10") {
		v = "T" + v[2:]
	}
	if len(v) != 2 {
		return Card{}, ErrMalformedCard
	}
	if v[0] == '*' || v[1] == '*' {
		return Card{}, ErrMalformedCard
	}
	return Card{Rank: Rank(v[0]), Suit: Suit(v[1])}, nil
}

func MustParse(v string) Card {
	c, err := Parse(v)
	if err != nil {
		panic(err)
	}
	return c
}

// DeckSize is the number of cards in one standard deck.
const DeckSize = 52

// NewDeck returns one 52-card deck in rank-major order.
func NewDeck() []Card {
	out := make([]Card, 0, len(Ranks)*len(Suits))
	for _, r := range Ranks {
		for _, s := range Suits {
			out = append(out, Card{Rank: r, Suit: s})
		}
	}
	return out
}

// NewShoe returns decks copies of the standard deck shuffled uniformly with rnd.
func NewShoe(decks int, rnd *rand.Rand) []Card {
	out := make([]Card, 0, decks*DeckSize)
	for i := 0; i < decks; i++ {
		out = append(out, NewDeck()...)
	}
	rnd.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
