package shoe

import (
	"errors"
	"fmt"
	"math/rand"

	"shoe-tracker/internal/cards"
)

const (
	NameOne = "Shoe 1"
	NameTwo = "Shoe 2"

	DefaultDecks = 8
)

var ErrConservation = errors.New("pile_conservation")

// Shoe holds the tracked piles of one physical shoe.
//
// Undealt and Dealt partition the Decks*52 physical cards. CurrentRound mirrors
// the cards of the round in progress, which are still counted in Undealt until
// the round is finalized, as are downcards that were never revealed. Discarded
// records the dealt cards in discard-rack order and may carry Hidden
// placeholders for those downcards.
type Shoe struct {
	Name  string
	Decks int

	Undealt          cards.Pile
	Dealt            cards.Pile
	CurrentRound     cards.Pile
	Discarded        cards.Pile
	NextShuffleStack cards.Pile
}

func New(name string, decks int, rnd *rand.Rand) *Shoe {
	s := &Shoe{Name: name, Decks: decks}
	s.ResetUndealt(cards.NewShoe(decks, rnd))
	return s
}

// ResetUndealt installs a new undealt order and clears every other pile.
func (s *Shoe) ResetUndealt(undealt []cards.Card) {
	s.Undealt.Replace(undealt)
	s.Dealt = nil
	s.CurrentRound = nil
	s.Discarded = nil
	s.NextShuffleStack = nil
}

// Size is the physical card count of the shoe.
func (s *Shoe) Size() int {
	return s.Decks * cards.DeckSize
}

// Other returns the name of the paired shoe.
func Other(name string) string {
	if name == NameOne {
		return NameTwo
	}
	return NameOne
}

func IsKnown(name string) bool {
	return name == NameOne || name == NameTwo
}

// CheckInvariants verifies card conservation and that no Hidden placeholder
// sits in a pile that represents physical cards.
func (s *Shoe) CheckInvariants() error {
	if got := s.Undealt.Len() + s.Dealt.Len(); got != s.Size() {
		return fmt.Errorf("%w: shoe %q holds %d undealt+dealt cards, want %d", ErrConservation, s.Name, got, s.Size())
	}
	for _, p := range []struct {
		name string
		pile cards.Pile
	}{
		{"undealt", s.Undealt},
		{"dealt", s.Dealt},
		{"current_round", s.CurrentRound},
	} {
		if n := p.pile.CountHidden(); n > 0 {
			return fmt.Errorf("%w: shoe %q has %d hidden cards in %s", ErrConservation, s.Name, n, p.name)
		}
	}
	return nil
}

// ShuffleStack is the input for the next shuffle: undealt followed by the discard
// rack, reversed. Hidden placeholders are dropped since they stand for cards
// already present in the stack.
func (s *Shoe) ShuffleStack() cards.Pile {
	stack := make(cards.Pile, 0, s.Undealt.Len()+s.Discarded.Len())
	stack = append(stack, s.Undealt...)
	for _, c := range s.Discarded {
		if c.IsHidden() {
			continue
		}
		stack = append(stack, c)
	}
	return stack.Reversed()
}

// Reconcile makes stack hold exactly decks*52 cards. A stack of the right size
// is returned unchanged. Surplus cards, those beyond the composition of decks
// standard decks, are dropped from the back; missing cards are appended in
// deck order.
func Reconcile(stack cards.Pile, decks int) (out cards.Pile, added, removed int) {
	want := decks * cards.DeckSize
	if stack.Len() == want {
		return stack, 0, 0
	}
	limit := make(map[cards.Card]int, cards.DeckSize)
	for _, c := range cards.NewDeck() {
		limit[c] = decks
	}
	have := make(map[cards.Card]int, cards.DeckSize)
	for _, c := range stack {
		have[c]++
	}

	if surplus := stack.Len() - want; surplus > 0 {
		drop := make([]bool, stack.Len())
		for i := stack.Len() - 1; i >= 0 && removed < surplus; i-- {
			c := stack[i]
			if have[c] > limit[c] {
				have[c]--
				drop[i] = true
				removed++
			}
		}
		out = make(cards.Pile, 0, want)
		for i, c := range stack {
			if !drop[i] {
				out = append(out, c)
			}
		}
		return out, 0, removed
	}

	out = append(make(cards.Pile, 0, want), stack...)
	for _, c := range cards.NewDeck() {
		for have[c] < limit[c] && out.Len() < want {
			out = append(out, c)
			have[c]++
			added++
		}
	}
	return out, added, 0
}

func (s *Shoe) Clone() *Shoe {
	out := *s
	out.Undealt = s.Undealt.Clone()
	out.Dealt = s.Dealt.Clone()
	out.CurrentRound = s.CurrentRound.Clone()
	out.Discarded = s.Discarded.Clone()
	out.NextShuffleStack = s.NextShuffleStack.Clone()
	return &out
}
