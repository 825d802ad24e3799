package grammar

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// alignment of a terminal target leaf
	TERMINAL = -1

	// default number of translation probabilities per rule
	PROB_NUM = 6
)

// Rule is the target side of a synchronous rule: an ordered sequence of
// target leaves, each a word or a nonterminal aligned to a nonterminal
// position of the source fragment's frontier.
type Rule struct {
	TgtRoot  int
	Leaves   []int
	Aligned  []int
	WordNum  int
	Probs    []float64
	Score    float64
	Composed bool
	Lexical  bool

	// SrcToTgt[i] lists the target positions aligned to source leaf i;
	// nil unless alignments were loaded
	SrcToTgt [][]int
}

func (r *Rule) IsTerminal(i int) bool {
	return r.Aligned[i] == TERMINAL
}

// Nonterminals counts the target leaves that are substituted by child translations
func (r *Rule) Nonterminals() int {
	var n int
	for _, pos := range r.Aligned {
		if pos != TERMINAL {
			n++
		}
	}
	return n
}

// Signature is the flattened sequence of (label, source position) pairs of
// the rule's nonterminals in target order. Rules sharing a signature can be
// combined with the same child hypothesis lists.
func (r *Rule) Signature() []int {
	sig := make([]int, 0, 2*len(r.Leaves))
	for i, pos := range r.Aligned {
		if pos == TERMINAL {
			continue
		}
		sig = append(sig, r.Leaves[i], pos)
	}
	return sig
}

// Alignment renders SrcToTgt as "src-tgt" pairs in source order, empty
// when no alignment was loaded
func (r *Rule) Alignment() string {
	var pairs []string
	for s, targets := range r.SrcToTgt {
		for _, t := range targets {
			pairs = append(pairs, strconv.Itoa(s)+"-"+strconv.Itoa(t))
		}
	}
	return strings.Join(pairs, " ")
}

func (r *Rule) String() string {
	return fmt.Sprintf("%d -> %v %v : %.4f", r.TgtRoot, r.Leaves, r.Aligned, r.Score)
}

func signatureKey(sig []int) string {
	var b strings.Builder
	for i, v := range sig {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

// RuleGroup holds rules of one trie node sharing a nonterminal signature,
// best first.
type RuleGroup struct {
	Signature []int
	Rules     []*Rule
}

func (g *RuleGroup) Best() *Rule {
	return g.Rules[0]
}

func (g *RuleGroup) Len() int {
	return len(g.Rules)
}
