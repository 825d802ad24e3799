package grammar

import (
	"testing"

	"github.com/lixiaoqing/t2t/nlp/format/bracket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkRule(root int, leaves, aligned []int, probs ...float64) *Rule {
	return &Rule{TgtRoot: root, Leaves: leaves, Aligned: aligned, Probs: probs}
}

func TestAddScoresAndCounts(t *testing.T) {
	table := NewTable([]float64{1, 0.5}, 0)
	r := mkRule(1, []int{7, 2, 8}, []int{TERMINAL, 0, TERMINAL}, -1, -2)
	require.NoError(t, table.Add([]string{"NP", "DT NN"}, r))
	table.Finalize()

	assert.Equal(t, 2, r.WordNum)
	assert.InDelta(t, -2.0, r.Score, 1e-9)
	assert.Equal(t, []int{2, 0}, r.Signature())
	assert.Equal(t, 1, r.Nonterminals())
	assert.Equal(t, 3, table.NumNodes())
	assert.Equal(t, 1, table.NumRules())

	node := table.Lookup("NP", "DT NN")
	require.NotNil(t, node)
	assert.Equal(t, []string{"NP", "DT NN"}, table.SourceLevels(node))
	assert.Same(t, r, node.Group([]int{2, 0}).Best())
	assert.False(t, table.Lookup("NP").HasRules(), "routing node")
	assert.Nil(t, table.Lookup("VP"))
}

func TestAddErrors(t *testing.T) {
	table := NewTable([]float64{1, 1}, 0)
	err := table.Add([]string{"NP"}, mkRule(1, []int{1}, []int{TERMINAL}, -1))
	assert.ErrorIs(t, err, ErrFeatureArity)

	err = table.Add([]string{"NP"}, mkRule(1, []int{1, 2}, []int{TERMINAL}, -1, -1))
	assert.Error(t, err)

	err = table.Add(nil, mkRule(1, []int{1}, []int{TERMINAL}, -1, -1))
	assert.Error(t, err)
}

func TestAddKeepsTopRules(t *testing.T) {
	table := NewTable([]float64{1}, 2)
	for _, p := range []float64{-3, -1, -2, -5} {
		require.NoError(t, table.Add([]string{"NN", "cat"}, mkRule(1, []int{int(-p)}, []int{TERMINAL}, p)))
	}
	table.Finalize()

	node := table.Lookup("NN", "cat")
	var scores []float64
	for _, g := range node.Groups {
		for _, r := range g.Rules {
			scores = append(scores, r.Score)
		}
	}
	assert.ElementsMatch(t, []float64{-1, -2}, scores)
}

func TestFinalizeGroupsBySignature(t *testing.T) {
	table := NewTable([]float64{1}, 0)
	levels := []string{"NP", "DT NN"}
	a := mkRule(1, []int{5, 3}, []int{0, 1}, -2)
	b := mkRule(1, []int{9, 5, 3}, []int{TERMINAL, 0, 1}, -1)
	c := mkRule(1, []int{3, 5}, []int{1, 0}, -0.5)
	d := mkRule(1, []int{5, 3}, []int{0, 1}, -2)
	for _, r := range []*Rule{a, b, c, d} {
		require.NoError(t, table.Add(levels, r))
	}
	table.Finalize()

	node := table.Lookup(levels...)
	require.Len(t, node.Groups, 2)
	assert.Equal(t, []int{3, 1, 5, 0}, node.Groups[0].Signature)
	assert.Equal(t, []int{5, 0, 3, 1}, node.Groups[1].Signature)
	// descending, equal scores keep insertion order
	assert.Equal(t, []*Rule{b, a, d}, node.Groups[1].Rules)
}

func TestMatch(t *testing.T) {
	table := NewTable([]float64{1}, 0)
	add := func(levels ...string) {
		require.NoError(t, table.Add(levels, mkRule(1, []int{1}, []int{TERMINAL}, -1)))
	}
	add("NP")
	add("NP", "DT NN")
	add("NP", "DT NN", "the ||| ~")
	add("NP", "DT NN", "~ ||| cat")
	add("NP", "DT NN", "the ||| cat")
	add("NP", "DT JJ")
	add("NP", "DT NN", "~")
	add("NN", "cat")
	table.Finalize()

	dtnn := table.Root.Child("NP").Child("DT NN")
	require.NotNil(t, dtnn)
	assert.Same(t, dtnn, table.Lookup("NP", "DT NN"))
	var patterns []string
	for _, edge := range dtnn.Edges() {
		patterns = append(patterns, edge.Pattern)
	}
	assert.Equal(t, []string{"the ||| cat", "the ||| ~", "~", "~ ||| cat"}, patterns)
	assert.Equal(t, [][]string{{"the"}, nil}, dtnn.Edges()[1].Parts)
	assert.Nil(t, table.Root.Child("VP"))

	tree, err := bracket.Parse("( NP ( DT the ) ( NN cat ) )")
	require.NoError(t, err)

	matches := table.Match(tree.Root)
	var got [][]string
	for _, m := range matches {
		var labels []string
		for _, leaf := range m.Frontier {
			labels = append(labels, leaf.Label)
		}
		got = append(got, labels)
		assert.Same(t, tree.Root, m.Root)
	}
	assert.Equal(t, [][]string{
		{"NP"},
		{"DT", "NN"},
		{"the", "cat"},
		{"the", "NN"},
		{"DT", "cat"},
	}, got)
	assert.True(t, matches[0].Unary())
	assert.False(t, matches[1].Unary())

	pos := tree.Root.Children[1]
	posMatches := table.Match(pos)
	require.Len(t, posMatches, 2)
	assert.Equal(t, "cat", posMatches[1].Frontier[0].Label)

	assert.Empty(t, table.Match(tree.Root.Children[0]), "DT has no root edge")
}

func TestMatchNonterminals(t *testing.T) {
	table := NewTable([]float64{1}, 0)
	require.NoError(t, table.Add([]string{"NP", "DT NN", "the ||| ~"}, mkRule(1, []int{1}, []int{TERMINAL}, -1)))
	table.Finalize()

	tree, err := bracket.Parse("( NP ( DT the ) ( NN cat ) )")
	require.NoError(t, err)
	matches := table.Match(tree.Root)
	require.Len(t, matches, 3)
	nts := matches[2].Nonterminals()
	require.Len(t, nts, 1)
	assert.Equal(t, "NN", nts[0].Label)
}
