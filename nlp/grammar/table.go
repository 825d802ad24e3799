package grammar

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

const (
	// pattern component of a frontier leaf that is not expanded at a level
	PASS_THROUGH = "~"
	// separator of the per-leaf components of a level pattern
	LEVEL_SEPARATOR = "|||"
)

var ErrFeatureArity = errors.New("number of rule probabilities does not match the translation weights")

// Edge leads from a trie node to the node matching one more level of the
// source fragment. Parts holds the pattern component of each frontier
// leaf, nil for a pass-through leaf.
type Edge struct {
	Pattern string
	Parts   [][]string
	Node    *TrieNode
}

type TrieNode struct {
	ID     int
	Rules  []*Rule
	Groups []*RuleGroup

	edges      []*Edge
	children   map[string]*TrieNode
	groupIndex map[string]*RuleGroup
}

func (n *TrieNode) Edges() []*Edge {
	return n.edges
}

func (n *TrieNode) Child(pattern string) *TrieNode {
	return n.children[pattern]
}

func (n *TrieNode) HasRules() bool {
	return len(n.Groups) > 0
}

// Group returns the rule group with the given nonterminal signature, or nil
func (n *TrieNode) Group(signature []int) *RuleGroup {
	return n.groupIndex[signatureKey(signature)]
}

// Table is the rule index: a trie over source fragments read level by
// level, top down. It is built once and read concurrently afterwards.
type Table struct {
	Root *TrieNode

	// maximal number of rules kept per source fragment, 0 = all
	Limit int
	// translation feature weights, one per rule probability
	Weights []float64

	nodes   []*TrieNode
	parents []int
	levels  []string
	numRule int
}

func NewTable(weights []float64, limit int) *Table {
	t := &Table{Limit: limit, Weights: weights}
	t.Root = t.newNode(-1, "")
	return t
}

func (t *Table) newNode(parent int, level string) *TrieNode {
	n := &TrieNode{
		ID:         len(t.nodes),
		children:   make(map[string]*TrieNode),
		groupIndex: make(map[string]*RuleGroup),
	}
	t.nodes = append(t.nodes, n)
	t.parents = append(t.parents, parent)
	t.levels = append(t.levels, level)
	return n
}

// Add scores rule with the table weights and files it under the source
// fragment given as level patterns, root label first. Finalize must be
// called once all rules are added.
func (t *Table) Add(levels []string, rule *Rule) error {
	if len(levels) == 0 {
		return errors.New("rule has an empty source side")
	}
	if len(rule.Leaves) != len(rule.Aligned) {
		return fmt.Errorf("rule has %d target leaves but %d alignments", len(rule.Leaves), len(rule.Aligned))
	}
	if len(rule.Probs) != len(t.Weights) {
		return fmt.Errorf("%w: rule has %d, weights have %d", ErrFeatureArity, len(rule.Probs), len(t.Weights))
	}
	rule.WordNum = 0
	for _, pos := range rule.Aligned {
		if pos == TERMINAL {
			rule.WordNum++
		}
	}
	rule.Score = 0
	for i, w := range t.Weights {
		rule.Score += w * rule.Probs[i]
	}

	current := t.Root
	for _, level := range levels {
		next, exists := current.children[level]
		if !exists {
			next = t.newNode(current.ID, level)
			current.children[level] = next
			current.edges = append(current.edges, newEdge(level, next))
		}
		current = next
	}
	if t.Limit <= 0 || len(current.Rules) < t.Limit {
		current.Rules = append(current.Rules, rule)
		t.numRule++
		return nil
	}
	worst := 0
	for i, r := range current.Rules {
		if r.Score < current.Rules[worst].Score {
			worst = i
		}
	}
	if current.Rules[worst].Score < rule.Score {
		current.Rules[worst] = rule
	}
	return nil
}

func newEdge(pattern string, node *TrieNode) *Edge {
	comps := strings.Split(pattern, LEVEL_SEPARATOR)
	parts := make([][]string, len(comps))
	for i, comp := range comps {
		comp = strings.TrimSpace(comp)
		if comp == PASS_THROUGH {
			continue
		}
		parts[i] = strings.Fields(comp)
	}
	return &Edge{Pattern: pattern, Parts: parts, Node: node}
}

// Finalize groups the rules of every node by nonterminal signature and
// sorts groups and edges so that iteration order is reproducible.
func (t *Table) Finalize() {
	for _, n := range t.nodes {
		sort.Slice(n.edges, func(i, j int) bool { return n.edges[i].Pattern < n.edges[j].Pattern })
		n.Groups = n.Groups[:0]
		n.groupIndex = make(map[string]*RuleGroup)
		for _, r := range n.Rules {
			sig := r.Signature()
			key := signatureKey(sig)
			group, exists := n.groupIndex[key]
			if !exists {
				group = &RuleGroup{Signature: sig}
				n.groupIndex[key] = group
				n.Groups = append(n.Groups, group)
			}
			group.Rules = append(group.Rules, r)
		}
		for _, group := range n.Groups {
			sort.SliceStable(group.Rules, func(i, j int) bool { return group.Rules[i].Score > group.Rules[j].Score })
		}
		sort.Slice(n.Groups, func(i, j int) bool { return slices.Compare(n.Groups[i].Signature, n.Groups[j].Signature) < 0 })
	}
}

// Lookup follows the given level patterns from the root
func (t *Table) Lookup(levels ...string) *TrieNode {
	current := t.Root
	for _, level := range levels {
		if current = current.Child(level); current == nil {
			return nil
		}
	}
	return current
}

// SourceLevels rebuilds the level patterns leading to n, root label first
func (t *Table) SourceLevels(n *TrieNode) []string {
	var levels []string
	for id := n.ID; t.parents[id] >= 0; id = t.parents[id] {
		levels = append(levels, t.levels[id])
	}
	slices.Reverse(levels)
	return levels
}

// NumNodes counts trie nodes including the root
func (t *Table) NumNodes() int {
	return len(t.nodes)
}

func (t *Table) NumRules() int {
	return t.numRule
}
