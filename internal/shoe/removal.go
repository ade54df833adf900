package shoe

import "shoe-tracker/internal/cards"

// Removal describes how an observed card was taken out of the undealt pile.
type Removal int

const (
	RemovedFront Removal = iota
	RemovedExactSwap
	RemovedRankSwap
	RemovedDesync
	RemovedNothing
)

func (r Removal) String() string {
	switch r {
	case RemovedFront:
		return "front"
	case RemovedExactSwap:
		return "exact_swap"
	case RemovedRankSwap:
		return "rank_swap"
	case RemovedDesync:
		return "desync"
	default:
		return "none"
	}
}

// Take removes the physical card that best matches observed from the head of
// undealt. The only reordering allowed is a single swap of the match into the
// front position before it is popped.
func Take(undealt *cards.Pile, observed cards.Card) (cards.Card, Removal) {
	p := *undealt
	if len(p) == 0 {
		return cards.Card{}, RemovedNothing
	}
	if p[0] == observed {
		c, _ := undealt.PopFront()
		return c, RemovedFront
	}
	for i := 1; i < len(p); i++ {
		if p[i] == observed {
			p[0], p[i] = p[i], p[0]
			c, _ := undealt.PopFront()
			return c, RemovedExactSwap
		}
	}
	for i := 0; i < len(p); i++ {
		if p[i].Rank == observed.Rank {
			p[0], p[i] = p[i], p[0]
			c, _ := undealt.PopFront()
			return c, RemovedRankSwap
		}
	}
	c, _ := undealt.PopFront()
	return c, RemovedDesync
}
