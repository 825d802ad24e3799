package util

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVocabIDOfAssignsFreshIDs(t *testing.T) {
	v := NewVocab(4)
	assert.Equal(t, 0, v.IDOf("the"))
	assert.Equal(t, 1, v.IDOf("cat"))
	assert.Equal(t, 0, v.IDOf("the"))
	assert.Equal(t, "cat", v.WordOf(1))
	assert.Equal(t, 2, v.Len())

	_, exists := v.Lookup("dog")
	assert.False(t, exists)
}

func TestVocabWordOfPanicsOnUnknown(t *testing.T) {
	v := NewVocab(1)
	assert.Panics(t, func() { v.WordOf(3) })
	assert.Panics(t, func() { v.WordOf(-1) })
}

func TestVocabConcurrentIDOf(t *testing.T) {
	v := NewVocab(0)
	words := []string{"a", "b", "c", "d", "e"}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, w := range words {
				v.IDOf(w)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, len(words), v.Len())
	for _, w := range words {
		id, exists := v.Lookup(w)
		require.True(t, exists)
		assert.Equal(t, w, v.WordOf(id))
	}
}

func TestReadVocab(t *testing.T) {
	input := "cat ||| 1\nthe ||| 0\n\n||| ||| 2\n"
	v, err := ReadVocab(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, v.Len())
	assert.Equal(t, "the", v.WordOf(0))
	assert.Equal(t, "cat", v.WordOf(1))
	assert.Equal(t, "|||", v.WordOf(2))

	var buf bytes.Buffer
	require.NoError(t, v.Write(&buf))
	again, err := ReadVocab(&buf)
	require.NoError(t, err)
	assert.Equal(t, v.Index, again.Index)
}

func TestReadVocabErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no separator", "cat 1\n"},
		{"bad id", "cat ||| x\n"},
		{"gap", "cat ||| 0\ndog ||| 2\n"},
		{"duplicate id", "cat ||| 0\ndog ||| 0\n"},
		{"duplicate word", "cat ||| 0\ncat ||| 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadVocab(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}
