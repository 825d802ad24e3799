package grammar

import (
	"github.com/lixiaoqing/t2t/nlp/types"
)

// Match binds a trie node to a source fragment rooted at Root. Frontier
// lists the fragment's leaves left to right; their positions are the
// alignment targets of the node's rules.
type Match struct {
	Node     *TrieNode
	Root     *types.Node
	Frontier []*types.Node
}

// Unary reports whether the match covers the root label alone
func (m Match) Unary() bool {
	return len(m.Frontier) == 1 && m.Frontier[0] == m.Root
}

// Nonterminals returns the frontier leaves that are not words; rule
// alignments index this list.
func (m Match) Nonterminals() []*types.Node {
	var nts []*types.Node
	for _, leaf := range m.Frontier {
		if !leaf.IsWord() {
			nts = append(nts, leaf)
		}
	}
	return nts
}

// Match returns every trie node whose source fragment matches the subtree
// at node, unary match first, then breadth first by fragment depth.
func (t *Table) Match(node *types.Node) []Match {
	first := t.Root.Child(node.Label)
	if first == nil {
		return nil
	}
	matches := []Match{{Node: first, Root: node, Frontier: []*types.Node{node}}}
	for level := matches; len(level) > 0; {
		var next []Match
		for _, m := range level {
			for _, edge := range m.Node.Edges() {
				if frontier, ok := expand(m.Frontier, edge.Parts); ok {
					next = append(next, Match{Node: edge.Node, Root: node, Frontier: frontier})
				}
			}
		}
		matches = append(matches, next...)
		level = next
	}
	return matches
}

// expand replaces every frontier leaf whose component lists its children
// labels by those children. A leaf that is a word can only pass through.
func expand(frontier []*types.Node, parts [][]string) ([]*types.Node, bool) {
	if len(parts) != len(frontier) {
		return nil, false
	}
	var result []*types.Node
	for i, leaf := range frontier {
		labels := parts[i]
		if labels == nil {
			result = append(result, leaf)
			continue
		}
		if len(labels) != len(leaf.Children) {
			return nil, false
		}
		for j, child := range leaf.Children {
			if child.Label != labels[j] {
				return nil, false
			}
		}
		result = append(result, leaf.Children...)
	}
	return result, true
}
