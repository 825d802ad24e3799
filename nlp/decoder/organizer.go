package decoder

import (
	"slices"
	"sort"
	"strconv"
	"strings"
)

type Status byte

const (
	ACCEPTED Status = iota
	REPLACED
	REJECTED
)

func (s Status) String() string {
	switch s {
	case ACCEPTED:
		return "accepted"
	case REPLACED:
		return "replaced"
	case REJECTED:
		return "rejected"
	default:
		return "unknown"
	}
}

// Organizer collects the hypotheses of one node and recombines those an
// n-gram model of the given order cannot tell apart.
type Organizer struct {
	order      int
	survivors  []*Hypothesis
	recombined []*Hypothesis
	byKey      map[string][]*Hypothesis
	byRoot     map[int][]*Hypothesis
}

func NewOrganizer(order int) *Organizer {
	return &Organizer{order: order, byKey: make(map[string][]*Hypothesis)}
}

// recombination key: target root plus the whole sequence when it is
// shorter than the order, else the first and last order-1 words
func (o *Organizer) key(h *Hypothesis) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(h.TgtRoot))
	write := func(sep byte, words []int) {
		b.WriteByte(sep)
		for _, w := range words {
			b.WriteString(strconv.Itoa(w))
			b.WriteByte(',')
		}
	}
	bound := o.order - 1
	if len(h.Words) < o.order {
		write('=', h.Words)
	} else {
		write('<', h.Words[:bound])
		write('>', h.Words[len(h.Words)-bound:])
	}
	return b.String()
}

// Add submits h. Equivalent survivors with a higher score reject it, lower
// ones are demoted and the first of them is returned as old; equal scores
// keep h as a sibling.
func (o *Organizer) Add(h *Hypothesis) (status Status, old *Hypothesis) {
	key := o.key(h)
	equivalents := o.byKey[key]
	for _, e := range equivalents {
		if e == h || e.Score > h.Score {
			return REJECTED, nil
		}
	}
	if len(equivalents) == 0 || equivalents[0].Score == h.Score {
		o.survivors = append(o.survivors, h)
		o.byKey[key] = append(equivalents, h)
		return ACCEPTED, nil
	}
	old = equivalents[0]
	slot := slices.Index(o.survivors, old)
	o.survivors[slot] = h
	for _, e := range equivalents[1:] {
		i := slices.Index(o.survivors, e)
		o.survivors = slices.Delete(o.survivors, i, i+1)
	}
	o.recombined = append(o.recombined, equivalents...)
	o.byKey[key] = []*Hypothesis{h}
	return REPLACED, old
}

// SortAndGroup orders survivors best first, earlier created first among
// equal scores, and indexes them by target root.
func (o *Organizer) SortAndGroup() {
	sort.SliceStable(o.survivors, func(i, j int) bool {
		a, b := o.survivors[i], o.survivors[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.seq < b.seq
	})
	o.byRoot = make(map[int][]*Hypothesis)
	for _, h := range o.survivors {
		o.byRoot[h.TgtRoot] = append(o.byRoot[h.TgtRoot], h)
	}
}

// All returns the survivors; sorted once SortAndGroup ran
func (o *Organizer) All() []*Hypothesis {
	return o.survivors
}

func (o *Organizer) ByRoot(root int) []*Hypothesis {
	return o.byRoot[root]
}

// Recombined returns the demoted hypotheses, kept for provenance
func (o *Organizer) Recombined() []*Hypothesis {
	return o.recombined
}

func (o *Organizer) Len() int {
	return len(o.survivors)
}
