package decoder

import (
	"fmt"

	"github.com/lixiaoqing/t2t/nlp/grammar"
	"github.com/lixiaoqing/t2t/nlp/lm"
	"github.com/lixiaoqing/t2t/nlp/types"
)

type Kind byte

const (
	OOV Kind = iota
	RULE
	GLUE
)

func (k Kind) String() string {
	switch k {
	case OOV:
		return "OOV"
	case RULE:
		return "RULE"
	case GLUE:
		return "GLUE"
	default:
		return "UNKNOWN"
	}
}

// Hypothesis is a partial translation of the subtree at Node. It is never
// modified once built; parents refer to it through Slots without owning it.
type Hypothesis struct {
	TgtRoot int
	Words   []int
	Score   float64
	Trans   []float64
	LM      float64
	RuleNum int
	State   lm.State

	Kind Kind
	// source fragment and rule group of a RULE hypothesis
	Source   *grammar.TrieNode
	Group    *grammar.RuleGroup
	RuleRank int
	// candidate lists of the nonterminals, in target order for rules and
	// source order for glue, and the rank chosen in each
	Slots [][]*Hypothesis
	Ranks []int

	Node *types.Node
	seq  int
}

func (h *Hypothesis) Rule() *grammar.Rule {
	if h.Group == nil {
		return nil
	}
	return h.Group.Rules[h.RuleRank]
}

// Children returns the chosen hypothesis of every slot
func (h *Hypothesis) Children() []*Hypothesis {
	children := make([]*Hypothesis, len(h.Slots))
	for i, slot := range h.Slots {
		children[i] = slot[h.Ranks[i]]
	}
	return children
}

// Features lays out the feature values as translation probabilities,
// LM log probability, target length, rule count.
func (h *Hypothesis) Features() []float64 {
	features := make([]float64, 0, len(h.Trans)+3)
	features = append(features, h.Trans...)
	return append(features, h.LM, float64(len(h.Words)), float64(h.RuleNum))
}

// Seq is the creation order of h among the hypotheses of its node
func (h *Hypothesis) Seq() int {
	return h.seq
}

func (h *Hypothesis) String() string {
	return fmt.Sprintf("%v %v %v:%.4f", h.Kind, h.Node.Info(), h.Words, h.Score)
}
