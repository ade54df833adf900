package shuffle

import "math/rand"

// SplitHalf cuts l so the first half holds ceil(n/2) elements.
func SplitHalf[T any](l []T) ([]T, []T) {
	mid := (len(l) + 1) / 2
	return l[:mid], l[mid:]
}

// SplitIntoChunks returns exactly k chunks of size ceil(len(l)/k). Trailing
// chunks are empty when there are not enough elements to reach them.
func SplitIntoChunks[T any](l []T, k int) [][]T {
	if k < 1 {
		k = 1
	}
	out := make([][]T, k)
	if len(l) == 0 {
		return out
	}
	size := (len(l) + k - 1) / k
	for j := 0; j < k; j++ {
		start := j * size
		if start >= len(l) {
			break
		}
		end := min(start+size, len(l))
		out[j] = l[start:end]
	}
	return out
}

// Riffle interleaves x and y in clumps, starting with x. Clumps hold 1-3
// cards, or 2-4 with probability imperfection. Once a side runs out the rest
// of the other side follows unchanged.
func Riffle[T any](x, y []T, rnd *rand.Rand, imperfection float64) []T {
	out := make([]T, 0, len(x)+len(y))
	i, j := 0, 0
	fromX := true
	for i < len(x) && j < len(y) {
		n := clumpSize(rnd, imperfection)
		if fromX {
			end := min(i+n, len(x))
			out = append(out, x[i:end]...)
			i = end
		} else {
			end := min(j+n, len(y))
			out = append(out, y[j:end]...)
			j = end
		}
		fromX = !fromX
	}
	out = append(out, x[i:]...)
	return append(out, y[j:]...)
}

func clumpSize(rnd *rand.Rand, imperfection float64) int {
	if rnd.Float64() < imperfection {
		return 2 + rnd.Intn(3)
	}
	return 1 + rnd.Intn(3)
}

// HinduStrip pulls packets of size packet off the top and stacks them, so the
// last packet taken ends up on top. A packet size below 1 selects
// max(1, len(l)/7).
func HinduStrip[T any](l []T, packet int) []T {
	if packet < 1 {
		packet = max(1, len(l)/7)
	}
	var packets [][]T
	for start := 0; start < len(l); start += packet {
		end := min(start+packet, len(l))
		packets = append(packets, l[start:end])
	}
	out := make([]T, 0, len(l))
	for k := len(packets) - 1; k >= 0; k-- {
		out = append(out, packets[k]...)
	}
	return out
}
