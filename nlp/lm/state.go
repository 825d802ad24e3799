package lm

import "slices"

// State summarizes a scored sequence for later concatenation. Left holds
// the first Order-1 words, whose scores were computed with in-sequence
// context only; Right holds the last Order-1 words, the context of
// whatever follows.
type State struct {
	Left  []int
	Right []int
	Len   int
}

func (s State) Equal(other State) bool {
	return s.Len == other.Len && slices.Equal(s.Left, other.Left) && slices.Equal(s.Right, other.Right)
}

// RuleScore accumulates the log probability added by building a sequence
// out of terminals and already scored sequences. Interior n-grams of a
// spliced sequence are never rescored; only its provisional leading words
// are corrected for the context now known to their left.
type RuleScore struct {
	model   *NGram
	context []int
	left    []int
	length  int
	total   float64
}

func NewRuleScore(model *NGram) *RuleScore {
	return &RuleScore{model: model}
}

func (r *RuleScore) horizon() int {
	return r.model.Order - 1
}

func (r *RuleScore) push(w int) {
	r.context = append(r.context, w)
	if h := r.horizon(); len(r.context) > h {
		r.context = r.context[len(r.context)-h:]
	}
}

// BeginSentence sets the context to the sentence start marker
func (r *RuleScore) BeginSentence() {
	r.context = r.context[:0]
	r.push(r.model.ID(BOS))
}

// Terminal appends one model word id
func (r *RuleScore) Terminal(w int) {
	r.total += r.model.LogProb(r.context, w)
	if r.length < r.horizon() {
		r.left = append(r.left, w)
	}
	r.length++
	r.push(w)
}

// NonTerminal splices a sequence summarized by s
func (r *RuleScore) NonTerminal(s State) {
	for i, w := range s.Left {
		history := s.Left[:i]
		if len(r.context) > 0 {
			joined := append(slices.Clone(r.context), history...)
			r.total += r.model.LogProb(joined, w) - r.model.LogProb(history, w)
		}
		if r.length+i < r.horizon() {
			r.left = append(r.left, w)
		}
	}
	r.length += s.Len
	for _, w := range s.Right {
		r.push(w)
	}
}

// Finish returns the log probability accumulated so far and the state of
// the built sequence.
func (r *RuleScore) Finish() (float64, State) {
	return r.total, State{
		Left:  slices.Clone(r.left),
		Right: slices.Clone(r.context),
		Len:   r.length,
	}
}
