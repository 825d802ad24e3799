package lm

import (
	"github.com/lixiaoqing/t2t/util"
)

// Scorer adapts a model to the decoder's target vocabulary. Target ids the
// model does not know resolve to UNK.
type Scorer struct {
	model *NGram
	remap []int
	eos   int
}

// NewScorer registers every model word in the target vocabulary and
// records the mapping between the two id spaces.
func NewScorer(model *NGram, tgt *util.Vocab) *Scorer {
	s := &Scorer{model: model}
	for id := 0; id < model.Vocab.Len(); id++ {
		tgtID := tgt.IDOf(model.Vocab.WordOf(id))
		for len(s.remap) <= tgtID {
			s.remap = append(s.remap, 0)
		}
		s.remap[tgtID] = id
	}
	s.eos = model.ID(EOS)
	return s
}

func (s *Scorer) Order() int {
	return s.model.Order
}

func (s *Scorer) ModelID(tgtID int) int {
	if tgtID < 0 || tgtID >= len(s.remap) {
		return 0
	}
	return s.remap[tgtID]
}

// Builder is a RuleScore taking target vocabulary ids
type Builder struct {
	*RuleScore
	scorer *Scorer
}

func (s *Scorer) Begin() *Builder {
	return &Builder{RuleScore: NewRuleScore(s.model), scorer: s}
}

func (b *Builder) Terminal(tgtID int) {
	b.RuleScore.Terminal(b.scorer.ModelID(tgtID))
}

// Final scores a complete translation summarized by state between the
// sentence boundary markers.
func (s *Scorer) Final(state State) float64 {
	r := NewRuleScore(s.model)
	r.BeginSentence()
	r.NonTerminal(state)
	r.Terminal(s.eos)
	total, _ := r.Finish()
	return total
}
