// Package counting keeps Hi-Lo and Wong Halves running counts over the cards
// revealed from one shoe.
package counting

import (
	"strconv"

	"shoe-tracker/internal/cards"
)

// MinDecksRemaining bounds the true count divisor.
const MinDecksRemaining = 0.5

// System assigns each rank a tag in half-count units so fractional systems stay exact.
type System struct {
	Name  string
	halfs map[cards.Rank]int
}

var HiLo = System{
	Name: "hi_lo",
	halfs: map[cards.Rank]int{
		cards.Two: 2, cards.Three: 2, cards.Four: 2, cards.Five: 2, cards.Six: 2,
		cards.Seven: 0, cards.Eight: 0, cards.Nine: 0,
		cards.Ten: -2, cards.Jack: -2, cards.Queen: -2, cards.King: -2, cards.Ace: -2,
	},
}

var WongHalves = System{
	Name: "wong_halves",
	halfs: map[cards.Rank]int{
		cards.Two: 1, cards.Three: 2, cards.Four: 2, cards.Five: 3, cards.Six: 2,
		cards.Seven: 1, cards.Eight: 0, cards.Nine: -1,
		cards.Ten: -2, cards.Jack: -2, cards.Queen: -2, cards.King: -2, cards.Ace: -2,
	},
}

// Value is the tag of r in whole counts.
func (s System) Value(r cards.Rank) float64 {
	return float64(s.halfs[r]) / 2
}

// Counter tracks both systems at once. A card counts once per sighting key:
// the round it was seen in, its display string and its ordinal among equal
// cards of that batch. Re-submitting the same round listing is a no-op.
type Counter struct {
	decksTotal int
	seen       map[string]struct{}
	halfs      map[string]int
	aces       int
}

func New(decksTotal int) *Counter {
	c := &Counter{decksTotal: decksTotal}
	c.Reset()
	return c
}

// Process counts cards as one anonymous batch.
func (c *Counter) Process(cs []cards.Card) int {
	return c.Observe("", cs)
}

// Observe counts the cards of round roundID that were not already seen and
// returns how many were new. Hidden placeholders are ignored.
func (c *Counter) Observe(roundID string, cs []cards.Card) int {
	ordinals := make(map[cards.Card]int, len(cs))
	added := 0
	for _, card := range cs {
		if card.IsHidden() {
			continue
		}
		ordinals[card]++
		key := roundID + "/" + card.String() + "/" + strconv.Itoa(ordinals[card])
		if _, ok := c.seen[key]; ok {
			continue
		}
		c.seen[key] = struct{}{}
		for _, sys := range []System{HiLo, WongHalves} {
			c.halfs[sys.Name] += sys.halfs[card.Rank]
		}
		if card.Rank == cards.Ace {
			c.aces++
		}
		added++
	}
	return added
}

func (c *Counter) Running(sys System) float64 {
	return float64(c.halfs[sys.Name]) / 2
}

func (c *Counter) Seen() int {
	return len(c.seen)
}

// DecksRemaining is floored at MinDecksRemaining.
func (c *Counter) DecksRemaining() float64 {
	left := float64(c.decksTotal*52-len(c.seen)) / 52
	if left < MinDecksRemaining {
		return MinDecksRemaining
	}
	return left
}

func (c *Counter) TrueCount(sys System) float64 {
	return c.Running(sys) / c.DecksRemaining()
}

func (c *Counter) AcesSeen() int {
	return c.aces
}

func (c *Counter) AcesRemaining() int {
	left := c.decksTotal*4 - c.aces
	if left < 0 {
		return 0
	}
	return left
}

// Reset clears every count. Call it only when the shoe's undealt pile is replaced.
func (c *Counter) Reset() {
	c.seen = make(map[string]struct{})
	c.halfs = make(map[string]int, 2)
	c.aces = 0
}

// Snapshot is a read-only view of the counter for status surfaces.
type Snapshot struct {
	HiLoRunning       float64 `json:"hi_lo_running"`
	HiLoTrue          float64 `json:"hi_lo_true"`
	WongHalvesRunning float64 `json:"wong_halves_running"`
	WongHalvesTrue    float64 `json:"wong_halves_true"`
	DecksRemaining    float64 `json:"decks_remaining"`
	CardsSeen         int     `json:"cards_seen"`
	AcesSeen          int     `json:"aces_seen"`
	AcesRemaining     int     `json:"aces_remaining"`
}

func (c *Counter) Snapshot() Snapshot {
	return Snapshot{
		HiLoRunning:       c.Running(HiLo),
		HiLoTrue:          c.TrueCount(HiLo),
		WongHalvesRunning: c.Running(WongHalves),
		WongHalvesTrue:    c.TrueCount(WongHalves),
		DecksRemaining:    c.DecksRemaining(),
		CardsSeen:         c.Seen(),
		AcesSeen:          c.AcesSeen(),
		AcesRemaining:     c.AcesRemaining(),
	}
}
