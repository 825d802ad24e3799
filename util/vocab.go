package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const VOCAB_SEPARATOR = " ||| "

// Vocab is a string enumeration shared by every sentence of a run.
// IDOf assigns fresh ids to unseen words, so it is guarded for concurrent use.
type Vocab struct {
	mu    sync.RWMutex
	Enum  map[string]int
	Index []string
}

func NewVocab(capacity int) *Vocab {
	return &Vocab{
		Enum:  make(map[string]int, capacity),
		Index: make([]string, 0, capacity),
	}
}

// IDOf returns the id of word, adding it when it has not been seen.
func (v *Vocab) IDOf(word string) int {
	v.mu.RLock()
	id, exists := v.Enum[word]
	v.mu.RUnlock()
	if exists {
		return id
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if id, exists = v.Enum[word]; exists {
		return id
	}
	id = len(v.Index)
	v.Enum[word] = id
	v.Index = append(v.Index, word)
	return id
}

func (v *Vocab) Lookup(word string) (int, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	id, exists := v.Enum[word]
	return id, exists
}

func (v *Vocab) WordOf(id int) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if id < 0 {
		panic("Negative index requested")
	}
	if len(v.Index) <= id {
		panic("Unknown index requested: " + fmt.Sprintf("%v of %v", id, len(v.Index)))
	}
	return v.Index[id]
}

func (v *Vocab) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.Index)
}

// ReadVocab reads "word ||| id" lines. Ids must be dense and start at 0,
// lines may come in any order.
func ReadVocab(reader io.Reader) (*Vocab, error) {
	var (
		words   = make(map[int]string)
		maxID   = -1
		lineNum int
	)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 {
			continue
		}
		sep := strings.LastIndex(line, VOCAB_SEPARATOR)
		if sep < 0 {
			return nil, errors.Errorf("vocab line %d: missing %q separator", lineNum, strings.TrimSpace(VOCAB_SEPARATOR))
		}
		word := line[:sep]
		id, err := strconv.Atoi(strings.TrimSpace(line[sep+len(VOCAB_SEPARATOR):]))
		if err != nil {
			return nil, errors.Wrapf(err, "vocab line %d", lineNum)
		}
		if id < 0 {
			return nil, errors.Errorf("vocab line %d: negative id %d", lineNum, id)
		}
		if prev, exists := words[id]; exists {
			return nil, errors.Errorf("vocab line %d: id %d already assigned to %q", lineNum, id, prev)
		}
		words[id] = word
		if id > maxID {
			maxID = id
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading vocab")
	}
	v := NewVocab(maxID + 1)
	for id := 0; id <= maxID; id++ {
		word, exists := words[id]
		if !exists {
			return nil, errors.Errorf("vocab: id %d is missing, ids must be dense", id)
		}
		if _, dup := v.Enum[word]; dup {
			return nil, errors.Errorf("vocab: word %q listed twice", word)
		}
		v.Enum[word] = id
		v.Index = append(v.Index, word)
	}
	return v, nil
}

func ReadVocabFile(filename string) (*Vocab, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "opening vocab file")
	}
	defer file.Close()
	return ReadVocab(file)
}

// Write writes the vocabulary in the format read by ReadVocab.
func (v *Vocab) Write(writer io.Writer) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	w := bufio.NewWriter(writer)
	for id, word := range v.Index {
		if _, err := fmt.Fprintf(w, "%s%s%d\n", word, VOCAB_SEPARATOR, id); err != nil {
			return err
		}
	}
	return w.Flush()
}
