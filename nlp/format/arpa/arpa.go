// Package arpa reads backoff n-gram models in the ARPA text format.
package arpa

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/lixiaoqing/t2t/nlp/lm"

	"github.com/pkg/errors"
)

const (
	DATA_HEADER = "\\data\\"
	END_MARKER  = "\\end\\"
)

// Read parses an ARPA model. The declared n-gram counts must match the
// entries found.
func Read(reader io.Reader) (*lm.NGram, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var (
		counts  = make(map[int]int)
		found   = make(map[int]int)
		order   int
		current = -1
		model   *lm.NGram
		lineNum int
		ended   bool
	)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case current < 0:
			if line != DATA_HEADER {
				continue
			}
			current = 0
		case line == END_MARKER:
			ended = true
		case strings.HasPrefix(line, "ngram "):
			var n, count int
			if _, err := fmt.Sscanf(line, "ngram %d=%d", &n, &count); err != nil || n < 1 {
				return nil, errors.Errorf("line %d: malformed count %q", lineNum, line)
			}
			counts[n] = count
			if n > order {
				order = n
			}
		case strings.HasPrefix(line, "\\") && strings.HasSuffix(line, "-grams:"):
			n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(line, "\\"), "-grams:"))
			if err != nil || n < 1 || n > order {
				return nil, errors.Errorf("line %d: unexpected section %q", lineNum, line)
			}
			if model == nil {
				model = lm.NewNGram(order)
			}
			current = n
		default:
			if current == 0 {
				return nil, errors.Errorf("line %d: unexpected %q in header", lineNum, line)
			}
			fields := strings.Fields(line)
			if len(fields) != current+1 && len(fields) != current+2 {
				return nil, errors.Errorf("line %d: expected %d words in %d-gram entry", lineNum, current, current)
			}
			prob, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: probability", lineNum)
			}
			var backoff float64
			if len(fields) == current+2 {
				if backoff, err = strconv.ParseFloat(fields[current+1], 64); err != nil {
					return nil, errors.Wrapf(err, "line %d: backoff", lineNum)
				}
			}
			model.Add(fields[1:current+1], prob, backoff)
			found[current]++
		}
		if ended {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading language model")
	}
	if model == nil {
		return nil, errors.New("language model has no n-gram sections")
	}
	if !ended {
		return nil, errors.Errorf("language model is missing %s", END_MARKER)
	}
	for n := 1; n <= order; n++ {
		if counts[n] != found[n] {
			return nil, errors.Errorf("language model declares %d %d-grams but has %d", counts[n], n, found[n])
		}
	}
	return model, nil
}

func ReadFile(filename string, logger *slog.Logger) (*lm.NGram, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "opening language model")
	}
	defer file.Close()
	model, err := Read(file)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("loaded language model", "file", filename, "order", model.Order, "ngrams", model.Len(), "words", model.Vocab.Len())
	return model, nil
}
