package ruletable

import (
	"bytes"
	"testing"

	"github.com/lixiaoqing/t2t/nlp/grammar"
	"github.com/lixiaoqing/t2t/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() (*util.Vocab, []Record) {
	src := util.NewVocab(4)
	np, dtnn, nn, cat := src.IDOf("NP"), src.IDOf("DT NN"), src.IDOf("NN"), src.IDOf("cat")
	return src, []Record{
		{Levels: []int{np, dtnn}, Rule: &grammar.Rule{
			TgtRoot: 3, Leaves: []int{4, 5}, Aligned: []int{grammar.TERMINAL, 1},
			Probs: []float64{-1, -2}, Composed: true,
			SrcToTgt: [][]int{{0}, {1}},
		}},
		{Levels: []int{nn, cat}, Rule: &grammar.Rule{
			TgtRoot: 5, Leaves: []int{6}, Aligned: []int{grammar.TERMINAL},
			Probs: []float64{-0.5, -0.5}, Lexical: true,
		}},
	}
}

func TestWriteRead(t *testing.T) {
	for _, alignment := range []bool{false, true} {
		src, records := fixture()
		opts := Options{NumProbs: 2, Alignment: alignment}
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, records, opts))

		table, err := Read(&buf, src, []float64{1, 1}, opts)
		require.NoError(t, err)
		assert.Equal(t, 2, table.NumRules())

		node := table.Lookup("NP", "DT NN")
		require.NotNil(t, node)
		rule := node.Group([]int{5, 1}).Best()
		assert.Equal(t, 3, rule.TgtRoot)
		assert.Equal(t, []int{4, 5}, rule.Leaves)
		assert.True(t, rule.Composed)
		assert.False(t, rule.Lexical)
		assert.InDelta(t, -3.0, rule.Score, 1e-9)
		assert.Equal(t, 1, rule.WordNum)
		if alignment {
			assert.Equal(t, [][]int{{0}, {1}}, rule.SrcToTgt)
			assert.Equal(t, "0-0 1-1", rule.Alignment())
		} else {
			assert.Nil(t, rule.SrcToTgt)
			assert.Empty(t, rule.Alignment())
		}

		lexical := table.Lookup("NN", "cat").Group(nil).Best()
		assert.True(t, lexical.Lexical)
	}
}

func TestReadErrors(t *testing.T) {
	src, records := fixture()
	opts := Options{NumProbs: 2}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records, opts))
	data := buf.Bytes()

	_, err := Read(bytes.NewReader(data[:len(data)-3]), src, []float64{1, 1}, opts)
	assert.ErrorContains(t, err, "record 1")

	_, err = Read(bytes.NewReader(data), src, []float64{1, 1, 1}, Options{NumProbs: 3})
	assert.Error(t, err)

	_, err = Read(bytes.NewReader(data), src, []float64{1}, Options{NumProbs: 2})
	assert.ErrorIs(t, err, grammar.ErrFeatureArity)

	_, err = Read(bytes.NewReader(data), util.NewVocab(0), []float64{1, 1}, opts)
	assert.ErrorContains(t, err, "not in vocabulary")
}

func TestReadEmpty(t *testing.T) {
	table, err := Read(bytes.NewReader(nil), util.NewVocab(0), []float64{1}, Options{})
	require.NoError(t, err)
	assert.Zero(t, table.NumRules())
}
