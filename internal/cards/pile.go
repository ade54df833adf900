package cards

// Pile is an ordered run of cards. Index 0 is the top.
type Pile []Card

func (p Pile) Len() int {
	return len(p)
}

func (p Pile) Front() (Card, bool) {
	if len(p) == 0 {
		return Card{}, false
	}
	return p[0], true
}

func (p *Pile) PushFront(cs ...Card) {
	if len(cs) == 0 {
		return
	}
	out := make(Pile, 0, len(cs)+len(*p))
	out = append(out, cs...)
	*p = append(out, *p...)
}

func (p *Pile) PushBack(cs ...Card) {
	*p = append(*p, cs...)
}

func (p *Pile) PopFront() (Card, bool) {
	if len(*p) == 0 {
		return Card{}, false
	}
	c := (*p)[0]
	*p = (*p)[1:]
	return c, true
}

func (p *Pile) Replace(cs []Card) {
	*p = append(Pile(nil), cs...)
}

func (p Pile) Clone() Pile {
	if p == nil {
		return nil
	}
	return append(Pile(nil), p...)
}

// Reversed returns a reversed copy.
func (p Pile) Reversed() Pile {
	out := make(Pile, len(p))
	for i, c := range p {
		out[len(p)-1-i] = c
	}
	return out
}

func (p Pile) Strings() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.String()
	}
	return out
}

// CountHidden reports how many Hidden placeholders the pile holds.
func (p Pile) CountHidden() int {
	n := 0
	for _, c := range p {
		if c.IsHidden() {
			n++
		}
	}
	return n
}

// ParsePile converts stored display strings back into a pile. Entries that do not
// parse are skipped and counted.
func ParsePile(vals []string) (Pile, int) {
	out := make(Pile, 0, len(vals))
	skipped := 0
	for _, v := range vals {
		c, err := Parse(v)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, c)
	}
	return out, skipped
}
