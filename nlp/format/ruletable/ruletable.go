// Package ruletable reads and writes the little-endian binary rule table.
//
// Each record is
//
//	int16 n, n x int32 source level ids (source vocabulary)
//	int32 target root
//	int16 m, m x int32 target leaves, m x int32 alignments
//	F x float64 probabilities
//	int16 composed, int16 lexical
//	[int16 c, c x int32 (source, target) alignment positions]
//
// The alignment block is present only in tables written with alignments.
package ruletable

import (
	"bufio"
	"encoding/binary"
	"io"
	"log/slog"
	"os"

	"github.com/lixiaoqing/t2t/nlp/grammar"
	"github.com/lixiaoqing/t2t/util"

	"github.com/pkg/errors"
)

var byteOrder = binary.LittleEndian

type Options struct {
	// number of probabilities per rule, grammar.PROB_NUM when 0
	NumProbs int
	// maximal rules kept per source fragment, 0 = all
	Limit int
	// records carry an alignment block
	Alignment bool
}

func (o Options) numProbs() int {
	if o.NumProbs <= 0 {
		return grammar.PROB_NUM
	}
	return o.NumProbs
}

type recordReader struct {
	r   io.Reader
	err error
}

func (rr *recordReader) read(data any) {
	if rr.err == nil {
		rr.err = binary.Read(rr.r, byteOrder, data)
	}
}

func (rr *recordReader) ints(n int16) []int {
	if rr.err != nil {
		return nil
	}
	if n < 0 {
		rr.err = errors.Errorf("negative length %d", n)
		return nil
	}
	raw := make([]int32, n)
	rr.read(raw)
	ints := make([]int, n)
	for i, v := range raw {
		ints[i] = int(v)
	}
	return ints
}

// Read loads every record of reader into a new table scored with weights.
// Level ids are resolved through the source vocabulary.
func Read(reader io.Reader, src *util.Vocab, weights []float64, opts Options) (*grammar.Table, error) {
	table := grammar.NewTable(weights, opts.Limit)
	rr := &recordReader{r: bufio.NewReader(reader)}
	for record := 0; ; record++ {
		var srcLen int16
		if err := binary.Read(rr.r, byteOrder, &srcLen); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "rule table record %d", record)
		}
		levelIDs := rr.ints(srcLen)
		rule := &grammar.Rule{}
		var root int32
		rr.read(&root)
		var tgtLen int16
		rr.read(&tgtLen)
		rule.TgtRoot = int(root)
		rule.Leaves = rr.ints(tgtLen)
		rule.Aligned = rr.ints(tgtLen)
		rule.Probs = make([]float64, opts.numProbs())
		rr.read(rule.Probs)
		var composed, lexical int16
		rr.read(&composed)
		rr.read(&lexical)
		rule.Composed, rule.Lexical = composed != 0, lexical != 0
		if opts.Alignment {
			var count int16
			rr.read(&count)
			positions := rr.ints(count)
			for i := 0; i+1 < len(positions); i += 2 {
				s, t := positions[i], positions[i+1]
				if s < 0 {
					rr.err = errors.Errorf("negative source alignment position %d", s)
					break
				}
				for len(rule.SrcToTgt) <= s {
					rule.SrcToTgt = append(rule.SrcToTgt, nil)
				}
				rule.SrcToTgt[s] = append(rule.SrcToTgt[s], t)
			}
		}
		if rr.err != nil {
			if rr.err == io.EOF {
				rr.err = io.ErrUnexpectedEOF
			}
			return nil, errors.Wrapf(rr.err, "rule table record %d", record)
		}
		levels := make([]string, len(levelIDs))
		for i, id := range levelIDs {
			if id < 0 || id >= src.Len() {
				return nil, errors.Errorf("rule table record %d: source level id %d not in vocabulary", record, id)
			}
			levels[i] = src.WordOf(id)
		}
		if err := table.Add(levels, rule); err != nil {
			return nil, errors.Wrapf(err, "rule table record %d", record)
		}
	}
	table.Finalize()
	return table, nil
}

func ReadFile(filename string, src *util.Vocab, weights []float64, opts Options, logger *slog.Logger) (*grammar.Table, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "opening rule table")
	}
	defer file.Close()
	table, err := Read(file, src, weights, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("loaded rule table", "file", filename, "rules", table.NumRules(), "nodes", table.NumNodes())
	return table, nil
}

// Record is one rule as stored on disk
type Record struct {
	Levels []int
	Rule   *grammar.Rule
}

// Write encodes records; alignments are written when opts.Alignment is set.
// The number of probabilities per rule is taken from the rules themselves.
func Write(writer io.Writer, records []Record, opts Options) error {
	bw := bufio.NewWriter(writer)
	for i, rec := range records {
		if err := writeRecord(bw, rec, opts); err != nil {
			return errors.Wrapf(err, "writing rule table record %d", i)
		}
	}
	return bw.Flush()
}

func toInt32(ints []int) []int32 {
	out := make([]int32, len(ints))
	for i, v := range ints {
		out[i] = int32(v)
	}
	return out
}

func boolInt16(b bool) int16 {
	if b {
		return 1
	}
	return 0
}

func writeRecord(w io.Writer, rec Record, opts Options) error {
	rule := rec.Rule
	if len(rule.Leaves) != len(rule.Aligned) {
		return errors.Errorf("%d target leaves but %d alignments", len(rule.Leaves), len(rule.Aligned))
	}
	var pairs []int
	for s, targets := range rule.SrcToTgt {
		for _, t := range targets {
			pairs = append(pairs, s, t)
		}
	}
	fields := []any{
		int16(len(rec.Levels)), toInt32(rec.Levels),
		int32(rule.TgtRoot),
		int16(len(rule.Leaves)), toInt32(rule.Leaves), toInt32(rule.Aligned),
		rule.Probs,
		boolInt16(rule.Composed), boolInt16(rule.Lexical),
	}
	if opts.Alignment {
		fields = append(fields, int16(len(pairs)), toInt32(pairs))
	}
	for _, field := range fields {
		if err := binary.Write(w, byteOrder, field); err != nil {
			return err
		}
	}
	return nil
}
