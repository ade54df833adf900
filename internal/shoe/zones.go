package shoe

import "shoe-tracker/internal/cards"

// Zone summarises the rank mix of one contiguous slice of the undealt pile.
type Zone struct {
	Index   int     `json:"index"`
	Total   int     `json:"total"`
	LowPct  float64 `json:"low_pct"`
	MidPct  float64 `json:"mid_pct"`
	HighPct float64 `json:"high_pct"`
}

// Zones splits p into n equal zones from the top; the last zone takes the remainder.
func Zones(p cards.Pile, n int) []Zone {
	if n < 1 {
		n = 1
	}
	size := len(p) / n
	out := make([]Zone, 0, n)
	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if i == n-1 {
			end = len(p)
		}
		z := Zone{Index: i + 1}
		if start >= end {
			out = append(out, z)
			continue
		}
		var low, mid, high int
		for _, c := range p[start:end] {
			switch Band(c.Rank) {
			case BandLow:
				low++
			case BandMid:
				mid++
			case BandHigh:
				high++
			}
		}
		z.Total = end - start
		z.LowPct = pct(low, z.Total)
		z.MidPct = pct(mid, z.Total)
		z.HighPct = pct(high, z.Total)
		out = append(out, z)
	}
	return out
}

type RankBand int

const (
	BandUnknown RankBand = iota
	BandLow
	BandMid
	BandHigh
)

func Band(r cards.Rank) RankBand {
	switch r {
	case cards.Two, cards.Three, cards.Four, cards.Five, cards.Six:
		return BandLow
	case cards.Seven, cards.Eight, cards.Nine:
		return BandMid
	case cards.Ten, cards.Jack, cards.Queen, cards.King, cards.Ace:
		return BandHigh
	default:
		return BandUnknown
	}
}

func pct(n, total int) float64 {
	return float64(n) / float64(total) * 100
}
