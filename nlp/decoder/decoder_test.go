package decoder

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/lixiaoqing/t2t/nlp/format/bracket"
	"github.com/lixiaoqing/t2t/nlp/grammar"
	"github.com/lixiaoqing/t2t/nlp/lm"
	"github.com/lixiaoqing/t2t/nlp/types"
	"github.com/lixiaoqing/t2t/util"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	tgt     *util.Vocab
	model   *lm.NGram
	table   *grammar.Table
	weights Weights
}

func bigram() *lm.NGram {
	m := lm.NewNGram(2)
	m.Add([]string{lm.UNK}, -5, 0)
	m.Add([]string{lm.BOS}, -99, -0.5)
	m.Add([]string{lm.EOS}, -1, 0)
	m.Add([]string{"the"}, -1, -0.2)
	m.Add([]string{"cat"}, -1, -0.3)
	m.Add([]string{"sleeps"}, -1.5, -0.1)
	m.Add([]string{lm.BOS, "the"}, -0.1, 0)
	m.Add([]string{"the", "cat"}, -0.1, 0)
	m.Add([]string{"cat", "sleeps"}, -0.3, 0)
	m.Add([]string{"cat", lm.EOS}, -0.2, 0)
	m.Add([]string{"sleeps", lm.EOS}, -0.1, 0)
	m.Add([]string{lm.BOS, "cat"}, -3, 0)
	return m
}

func newFixture(model *lm.NGram) *fixture {
	weights := Weights{Trans: []float64{1}, LM: 1, Len: 0.5, Rule: -0.1}
	return &fixture{
		tgt:     util.NewVocab(16),
		model:   model,
		table:   grammar.NewTable(weights.Trans, 0),
		weights: weights,
	}
}

// rule adds a rule whose target leaves are given as strings
func (f *fixture) rule(t *testing.T, levels []string, root string, leaves []string, aligned []int, probs ...float64) {
	ids := make([]int, len(leaves))
	for i, leaf := range leaves {
		ids[i] = f.tgt.IDOf(leaf)
	}
	r := &grammar.Rule{TgtRoot: f.tgt.IDOf(root), Leaves: ids, Aligned: aligned, Probs: probs}
	require.NoError(t, f.table.Add(levels, r))
}

func (f *fixture) decoder(t *testing.T, conf Config) *Decoder {
	f.table.Finalize()
	d, err := New(conf, f.weights, f.table, lm.NewScorer(f.model, f.tgt), f.tgt, nil)
	require.NoError(t, err)
	return d
}

func decode(t *testing.T, d *Decoder, line string) *Result {
	tree, err := bracket.Parse(line)
	require.NoError(t, err)
	result, err := d.Decode(context.Background(), tree)
	require.NoError(t, err)
	return result
}

const T = grammar.TERMINAL

func catFixture(t *testing.T) *fixture {
	f := newFixture(bigram())
	f.rule(t, []string{"NN", "cat"}, "NN", []string{"cat"}, []int{T}, -0.1)
	f.rule(t, []string{"NP", "NN"}, "NP", []string{"the", "NN"}, []int{T, 0}, -0.2)
	return f
}

func TestEndToEnd(t *testing.T) {
	result := decode(t, catFixture(t).decoder(t, Config{}), "( NP ( NN cat ) )")
	assert.Equal(t, "the cat", result.Translation())

	fallback := decode(t, newFixture(bigram()).decoder(t, Config{}), "( NP ( NN cat ) )")
	assert.Equal(t, "cat", fallback.Translation())
	assert.Greater(t, result.Best().Score, fallback.Best().Score)
	assert.Equal(t, GLUE, fallback.Best().Kind)
	assert.Equal(t, OOV, fallback.Best().Children()[0].Kind)
}

func TestOOVPassThrough(t *testing.T) {
	f := newFixture(bigram())
	d := f.decoder(t, Config{})
	result := decode(t, d, "( IP ( NN xyzzy ) ( VV sleeps ) )")
	assert.Equal(t, "xyzzy sleeps", result.Translation())
	_, known := f.tgt.Lookup("xyzzy")
	assert.True(t, known)

	oov := result.Organizer(result.Tree.Root.Children[0]).All()
	require.Len(t, oov, 1)
	assert.Equal(t, []float64{PSEUDO_ZERO}, oov[0].Trans)
	assert.Equal(t, d.oov, oov[0].TgtRoot)
}

func TestNullWordsDropped(t *testing.T) {
	f := newFixture(bigram())
	f.rule(t, []string{"PU", "."}, "PU", []string{DEFAULT_NULL_WORD}, []int{T}, -0.1)
	result := decode(t, f.decoder(t, Config{NBest: 5}), "( IP ( NN cat ) ( PU . ) )")
	assert.Equal(t, "cat", result.Translation())
	assert.Equal(t, "cat NULL", result.NBest(5)[0].Translation)
}

// every score equals the weighted feature sum, and a rule hypothesis adds
// its own terms to its children's scores
func TestScoreReconstruction(t *testing.T) {
	f := catFixture(t)
	f.rule(t, []string{"VP", "VV"}, "VP", []string{"sleeps"}, []int{T}, -0.3)
	f.rule(t, []string{"IP", "NP VP"}, "IP", []string{"NP", "VP"}, []int{0, 1}, -0.4)
	f.rule(t, []string{"IP"}, "S", []string{"IP"}, []int{0}, -0.05)
	d := f.decoder(t, Config{BeamSize: 10})
	result := decode(t, d, "( IP ( NP ( NN cat ) ) ( VP ( VV sleeps ) ) )")
	assert.Equal(t, "the cat sleeps", result.Translation())

	var check func(h *Hypothesis)
	check = func(h *Hypothesis) {
		assert.InDelta(t, d.Weights.Dot(h.Features()), h.Score, 1e-9, "%v", h)
		children := h.Children()
		if h.Kind == RULE {
			rule := h.Rule()
			want := rule.Score + d.Weights.Len*float64(rule.WordNum) + d.Weights.Rule
			lm := h.LM
			for _, child := range children {
				want += child.Score
				lm -= child.LM
			}
			assert.InDelta(t, want+d.Weights.LM*lm, h.Score, 1e-9, "%v", h)
		}
		for _, child := range children {
			check(child)
		}
	}
	for _, node := range result.Tree.Nodes {
		if org := result.Organizer(node); org != nil {
			for _, h := range org.All() {
				check(h)
			}
		}
	}
	for _, h := range result.Hypotheses {
		check(h)
	}

	kinds := map[int]bool{}
	for _, h := range result.Organizer(result.Tree.Root).All() {
		kinds[h.TgtRoot] = true
	}
	s, _ := f.tgt.Lookup("S")
	assert.True(t, kinds[s], "unary extension")
}

func TestDeterminism(t *testing.T) {
	f := catFixture(t)
	f.rule(t, []string{"VP", "VV"}, "VP", []string{"sleeps"}, []int{T}, -0.3)
	f.rule(t, []string{"VP", "VV"}, "VP", []string{"sleeps", "NULL"}, []int{T, T}, -0.3)
	f.rule(t, []string{"IP", "NP VP"}, "IP", []string{"NP", "VP"}, []int{0, 1}, -0.4)
	f.rule(t, []string{"IP", "NP VP"}, "IP", []string{"VP", "NP"}, []int{1, 0}, -0.4)
	line := "( IP ( NP ( NN cat ) ( NN dog ) ( NN cat ) ) ( VP ( VV sleeps ) ( NP ( NN cat ) ) ) )"

	run := func(threads int) []Entry {
		d := f.decoder(t, Config{BeamSize: 4, NBest: 20, SpanThreads: threads})
		return decode(t, d, line).NBest(20)
	}
	want := run(1)
	require.NotEmpty(t, want)
	for i := 0; i < 5; i++ {
		assert.Equal(t, want, run(1))
		assert.Equal(t, want, run(4))
	}
}

func TestNBestClamped(t *testing.T) {
	result := decode(t, catFixture(t).decoder(t, Config{}), "( NP ( NN cat ) )")
	entries := result.NBest(50)
	assert.Len(t, entries, len(result.Hypotheses))
	assert.Equal(t, "the cat", entries[0].Translation)
	assert.Len(t, entries[0].Features, 4)
	assert.Empty(t, result.NBest(0))
}

func TestDerivation(t *testing.T) {
	result := decode(t, catFixture(t).decoder(t, Config{}), "( NP ( NN cat ) )")
	assert.Equal(t, []string{
		"NN\ncat\n@@@\nNN\ncat \n-1 \n",
		"NP\nNN\n@@@\nNP\nthe NN \n-1 0 \n",
	}, result.Derivation())

	fallback := decode(t, newFixture(bigram()).decoder(t, Config{}), "( NP ( NN cat ) )")
	assert.Equal(t, []string{"OOV => cat\n", "GLUE => NN \n"}, fallback.Derivation())
}

func TestDecodeCancelled(t *testing.T) {
	d := catFixture(t).decoder(t, Config{})
	tree, err := bracket.Parse("( NP ( NN cat ) )")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Decode(ctx, tree)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = d.Decode(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrEmptyTree)
}

func TestNewArity(t *testing.T) {
	f := catFixture(t)
	f.table.Finalize()
	_, err := New(Config{}, Weights{Trans: []float64{1, 1}}, f.table, lm.NewScorer(f.model, f.tgt), f.tgt, nil)
	assert.ErrorIs(t, err, grammar.ErrFeatureArity)
}

// with additive scores and a beam covering the grid, cube pruning finds
// exactly the brute force cross product
func TestCubeMatchesBruteForce(t *testing.T) {
	unigram := map[string]float64{"a1": -1, "a2": -1.5, "a3": -0.2, "b1": -0.7, "b2": -2, "s1": -0.3, "s2": -0.9}
	model := lm.NewNGram(5)
	for w, p := range unigram {
		model.Add([]string{w}, p, 0)
	}
	aProbs := map[string]float64{"a1": -0.5, "a2": -0.1, "a3": -1.2}
	bProbs := map[string]float64{"b1": -0.4, "b2": -0.3}
	sProbs := map[string]float64{"s1": -0.6, "s2": -0.25}

	for _, beam := range []int{12, 5} {
		f := newFixture(model)
		for w, p := range aProbs {
			f.rule(t, []string{"A", "a"}, "A", []string{w}, []int{T}, p)
		}
		for w, p := range bProbs {
			f.rule(t, []string{"B", "b"}, "B", []string{w}, []int{T}, p)
		}
		for w, p := range sProbs {
			f.rule(t, []string{"S", "A B"}, "S", []string{"A", w, "B"}, []int{0, T, 1}, p)
		}
		d := f.decoder(t, Config{BeamSize: beam})
		result := decode(t, d, "( S ( A a ) ( B b ) )")

		var want []float64
		for a, pa := range aProbs {
			for b, pb := range bProbs {
				for s, ps := range sProbs {
					features := []float64{pa + pb + ps, unigram[a] + unigram[s] + unigram[b], 3, 3}
					want = append(want, f.weights.Dot(features))
				}
			}
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(want)))
		want = want[:beam]

		var got []float64
		for _, h := range result.Organizer(result.Tree.Root).All() {
			got = append(got, h.Score)
		}
		assert.InDeltaSlice(t, want, got, 1e-9, fmt.Sprintf("beam %d", beam))
	}
}

func TestCacheKey(t *testing.T) {
	f := catFixture(t)
	d := f.decoder(t, Config{ModelDigest: "a"})
	same := f.decoder(t, Config{ModelDigest: "a", SpanThreads: 4})
	assert.Equal(t, d.CacheKey("( NN cat )"), same.CacheKey("( NN cat )"), "thread counts do not change output")
	assert.NotEqual(t, d.CacheKey("( NN cat )"), d.CacheKey("( NN dog )"))

	for _, conf := range []Config{{ModelDigest: "b"}, {ModelDigest: "a", BeamSize: 7}} {
		other := f.decoder(t, conf)
		assert.NotEqual(t, d.CacheKey("( NN cat )"), other.CacheKey("( NN cat )"))
	}
}

// sleepsFixture has a VP rule rooted at vpRoot and a rule S -> NP VP
func sleepsFixture(t *testing.T, vpRoot string) *fixture {
	f := newFixture(bigram())
	f.rule(t, []string{"VP", "VV", "sleeps"}, vpRoot, []string{"sleeps"}, []int{T}, -0.1)
	f.rule(t, []string{"S", "NP VP"}, "S", []string{"NP", "VP"}, []int{0, 1}, -0.1)
	return f
}

func TestSlotFallsBackToGlue(t *testing.T) {
	d := sleepsFixture(t, "VP").decoder(t, Config{})
	result := decode(t, d, "( S ( NP ( NN cat ) ( NN cat ) ) ( VP ( VV sleeps ) ) )")
	best := result.Best()
	require.NotNil(t, best)
	assert.Equal(t, RULE, best.Kind)
	assert.Equal(t, "cat cat sleeps", result.Translation())

	children := best.Children()
	require.Len(t, children, 2)
	assert.Equal(t, GLUE, children[0].Kind)
	assert.Equal(t, d.glue, children[0].TgtRoot)
	assert.Equal(t, RULE, children[1].Kind)
}

func TestUnusableGroupFallsBackToGlue(t *testing.T) {
	d := sleepsFixture(t, "X").decoder(t, Config{})
	result := decode(t, d, "( S ( NP ( NN cat ) ) ( VP ( VV sleeps ) ) )")
	best := result.Best()
	require.NotNil(t, best)
	assert.Equal(t, "cat sleeps", result.Translation())
	assert.Equal(t, GLUE, best.Kind)
	for _, h := range result.Hypotheses {
		assert.NotEqual(t, RULE, h.Kind, "the S rule has no VP hypothesis to use")
	}
}

func TestPOSWithOnlyUnaryMatchIsOOV(t *testing.T) {
	f := newFixture(bigram())
	f.rule(t, []string{"NN"}, "NP", []string{"the", "NN"}, []int{T, 0}, -0.1)
	result := decode(t, f.decoder(t, Config{}), "( NN cat )")

	require.Len(t, result.Hypotheses, 1)
	assert.Equal(t, OOV, result.Best().Kind)
	assert.Equal(t, "cat", result.Translation())
	assert.Len(t, result.Organizer(result.Tree.Root).All(), 1, "unary rules are not applied to OOV hypotheses")
}

func TestDerivationAlignment(t *testing.T) {
	f := newFixture(bigram())
	r := &grammar.Rule{
		TgtRoot:  f.tgt.IDOf("NN"),
		Leaves:   []int{f.tgt.IDOf("cat")},
		Aligned:  []int{T},
		Probs:    []float64{-0.1},
		Lexical:  true,
		SrcToTgt: [][]int{{0}},
	}
	require.NoError(t, f.table.Add([]string{"NN", "cat"}, r))
	d := f.decoder(t, Config{})

	applied := rulesApplied.WithLabelValues("false", "true")
	before := testutil.ToFloat64(applied)
	result := decode(t, d, "( NN cat )")
	assert.Equal(t, []string{"NN\ncat\n@@@\nNN\ncat \n-1 \n0-0\n"}, result.Derivation())
	assert.Equal(t, before+1, testutil.ToFloat64(applied))
}
