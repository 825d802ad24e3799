// Package lm scores target sequences with a backoff n-gram model and
// exposes the boundary-state protocol used to score translations
// incrementally as they are assembled bottom up.
package lm

import (
	"encoding/binary"

	"github.com/lixiaoqing/t2t/util"
)

const (
	UNK = "<unk>"
	BOS = "<s>"
	EOS = "</s>"

	// log10 probability of an unknown word when the model has no <unk>
	DEFAULT_UNK_PROB = -100.0
)

type entry struct {
	prob, backoff float64
}

// NGram is a backoff model over its own word ids; UNK is always id 0.
// Probabilities are log10 as in ARPA files.
type NGram struct {
	Order int
	Vocab *util.Vocab

	entries map[string]entry
	unk     float64
}

func NewNGram(order int) *NGram {
	m := &NGram{
		Order:   order,
		Vocab:   util.NewVocab(1024),
		entries: make(map[string]entry),
		unk:     DEFAULT_UNK_PROB,
	}
	m.Vocab.IDOf(UNK)
	return m
}

func key(ids []int) string {
	buf := make([]byte, 0, 4*len(ids))
	for _, id := range ids {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(id))
	}
	return string(buf)
}

// Add stores an n-gram given oldest word first
func (m *NGram) Add(words []string, prob, backoff float64) {
	ids := make([]int, len(words))
	for i, w := range words {
		ids[i] = m.Vocab.IDOf(w)
	}
	m.entries[key(ids)] = entry{prob, backoff}
	if len(ids) == 1 && ids[0] == 0 {
		m.unk = prob
	}
}

func (m *NGram) ID(word string) int {
	if id, exists := m.Vocab.Lookup(word); exists {
		return id
	}
	return 0
}

// LogProb returns log10 p(w | history), history oldest first. Only the
// last Order-1 history words are used.
func (m *NGram) LogProb(history []int, w int) float64 {
	if len(history) > m.Order-1 {
		history = history[len(history)-(m.Order-1):]
	}
	ids := make([]int, 0, len(history)+1)
	var backoff float64
	for start := 0; start <= len(history); start++ {
		ids = append(append(ids[:0], history[start:]...), w)
		if e, exists := m.entries[key(ids)]; exists {
			return backoff + e.prob
		}
		if e, exists := m.entries[key(history[start:])]; exists && start < len(history) {
			backoff += e.backoff
		}
	}
	return backoff + m.unk
}

func (m *NGram) Len() int {
	return len(m.entries)
}
