package round

import (
	"sort"
	"strconv"

	"shoe-tracker/internal/cards"
)

const (
	firstSeat = 0
	lastSeat  = 6
)

// DiscardBlock orders a finished round's cards the way they reach the discard
// rack: seats are picked up from seat 6 down to seat 0 and the dealer last. Each
// hand yields its extra cards newest first, then its second card, then its first.
// The whole list is reversed once, so the dealer's first card leads the block.
//
// The dealer's unrevealed downcard is kept as cards.Hidden in the second-card
// slot; hidden values anywhere else are skipped.
func DiscardBlock(dealer Hand, seats map[string]Hand) cards.Pile {
	var out cards.Pile
	for seat := lastSeat; seat >= firstSeat; seat-- {
		h, ok := seats[strconv.Itoa(seat)]
		if !ok {
			continue
		}
		out = append(out, handPickup(h, false)...)
	}
	out = append(out, handPickup(dealer, true)...)
	return out.Reversed()
}

// handPickup takes the first two cards by position in the hand and orders
// only the extras by t, newest first. Player hands drop hidden entries before
// positions are taken.
func handPickup(h Hand, dealer bool) cards.Pile {
	entries := make([]Entry, 0, len(h.Cards))
	for _, e := range h.Cards {
		if !dealer && e.Value == cards.HiddenValue {
			continue
		}
		entries = append(entries, e)
	}

	var out cards.Pile
	if len(entries) > 2 {
		extras := append([]Entry(nil), entries[2:]...)
		sort.SliceStable(extras, func(i, j int) bool { return extras[i].T > extras[j].T })
		for _, e := range extras {
			if c, ok := visible(e); ok {
				out = append(out, c)
			}
		}
	}
	if len(entries) > 1 {
		if c, ok := visible(entries[1]); ok {
			out = append(out, c)
		} else if dealer && entries[1].Value == cards.HiddenValue {
			out = append(out, cards.Hidden)
		}
	}
	if len(entries) > 0 {
		if c, ok := visible(entries[0]); ok {
			out = append(out, c)
		}
	}
	return out
}

func visible(e Entry) (cards.Card, bool) {
	c, err := cards.Parse(e.Value)
	if err != nil || c.IsHidden() {
		return cards.Card{}, false
	}
	return c, true
}
