package decoder

import (
	"strconv"
	"strings"

	"github.com/lixiaoqing/t2t/nlp/types"
)

// Entry is one n-best item
type Entry struct {
	Translation string    `json:"translation"`
	Features    []float64 `json:"features"`
	Score       float64   `json:"score"`
}

type Result struct {
	Tree *types.Tree
	// root hypotheses scored as complete sentences, best first
	Hypotheses []*Hypothesis

	decoder    *Decoder
	organizers []*Organizer
}

func (r *Result) Best() *Hypothesis {
	if len(r.Hypotheses) == 0 {
		return nil
	}
	return r.Hypotheses[0]
}

// Organizer returns the hypotheses kept at node
func (r *Result) Organizer(node *types.Node) *Organizer {
	return r.organizers[node.ID]
}

// Translation renders the best hypothesis without null words
func (r *Result) Translation() string {
	best := r.Best()
	if best == nil {
		return ""
	}
	return r.decoder.Render(best.Words, true)
}

// NBest returns up to n entries, fewer when fewer hypotheses survived
func (r *Result) NBest(n int) []Entry {
	n = min(n, len(r.Hypotheses))
	entries := make([]Entry, n)
	for i, h := range r.Hypotheses[:n] {
		entries[i] = Entry{
			Translation: r.decoder.Render(h.Words, false),
			Features:    h.Features(),
			Score:       h.Score,
		}
	}
	return entries
}

func (d *Decoder) Render(words []int, dropNull bool) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if dropNull && w == d.null {
			continue
		}
		parts = append(parts, d.word(w))
	}
	return strings.Join(parts, " ")
}

// word tolerates target ids a rule table carries but the vocabulary lacks
func (d *Decoder) word(id int) string {
	if id >= 0 && id < d.Tgt.Len() {
		return d.Tgt.WordOf(id)
	}
	return "<" + strconv.Itoa(id) + ">"
}
