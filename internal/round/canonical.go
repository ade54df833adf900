package round

import (
	"sort"

	"shoe-tracker/internal/cards"
)

// Canonical returns the cards visible in the snapshot in physical deal order:
// a stable sort by timestamp over dealer cards followed by seat cards in seat
// key order. Hidden downcards and unparseable values are left out; the second
// return value counts the unparseable ones.
func (s Snapshot) Canonical() ([]cards.Card, int) {
	type timed struct {
		card cards.Card
		t    int64
	}
	var all []timed
	bad := 0
	add := func(h Hand) {
		for _, e := range h.Cards {
			if e.Value == cards.HiddenValue {
				continue
			}
			c, err := cards.Parse(e.Value)
			if err != nil {
				bad++
				continue
			}
			if c.IsHidden() {
				continue
			}
			all = append(all, timed{card: c, t: e.T})
		}
	}
	add(s.Dealer)
	for _, k := range s.SeatKeys() {
		add(s.Seats[k])
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].t < all[j].t })

	out := make([]cards.Card, len(all))
	for i, tc := range all {
		out[i] = tc.card
	}
	return out, bad
}
