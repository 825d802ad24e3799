// Package conf reads decoder configuration files: the sectioned config.ini
// format, one "[SECTION]" line followed by its value and a "[weight]" block
// of "name value" lines, or the same settings as YAML.
package conf

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Conf holds the non-comment lines of a file
type Conf struct {
	Values []string
}

func Read(reader io.Reader) (*Conf, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(data), "\n")
	retval := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) > 0 && line[0] != '#' {
			retval = append(retval, line)
		}
	}
	return &Conf{retval}, nil
}

type Weights struct {
	Trans   []float64 `yaml:"trans" validate:"min=1"`
	LM      float64   `yaml:"lm"`
	Len     float64   `yaml:"len"`
	RuleNum float64   `yaml:"rule-num"`
}

type Config struct {
	InputFile     string `yaml:"input-file"`
	OutputFile    string `yaml:"output-file"`
	NBestFile     string `yaml:"nbest-file"`
	SrcVocabFile  string `yaml:"src-vocab-file" validate:"required"`
	TgtVocabFile  string `yaml:"tgt-vocab-file" validate:"required"`
	RuleTableFile string `yaml:"rule-table-file" validate:"required"`
	LMFile        string `yaml:"lm-file" validate:"required"`

	BeamSize      int  `yaml:"beam-size" validate:"gte=1"`
	SenThreads    int  `yaml:"sen-thread-num" validate:"gte=1"`
	SpanThreads   int  `yaml:"span-thread-num" validate:"gte=1"`
	NBest         int  `yaml:"nbest-num" validate:"gte=1"`
	RuleLimit     int  `yaml:"rule-num-limit" validate:"gte=0"`
	NumProbs      int  `yaml:"prob-num" validate:"gte=1"`
	PrintNBest    bool `yaml:"print-nbest"`
	DumpRule      bool `yaml:"dump-rule"`
	LoadAlignment bool `yaml:"load-alignment"`

	Weights Weights `yaml:"weight"`
}

func Default() *Config {
	return &Config{
		BeamSize:    100,
		SenThreads:  1,
		SpanThreads: 1,
		NBest:       1,
		RuleLimit:   100,
		NumProbs:    6,
	}
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if len(c.Weights.Trans) != c.NumProbs {
		return errors.Errorf("invalid configuration: %d translation weights for %d rule probabilities", len(c.Weights.Trans), c.NumProbs)
	}
	return nil
}

// ParseINI reads the sectioned format over the defaults
func ParseINI(reader io.Reader) (*Config, error) {
	conf, err := Read(reader)
	if err != nil {
		return nil, errors.Wrap(err, "reading configuration")
	}
	c := Default()
	texts := map[string]*string{
		"[input-file]":      &c.InputFile,
		"[output-file]":     &c.OutputFile,
		"[nbest-file]":      &c.NBestFile,
		"[src-vocab-file]":  &c.SrcVocabFile,
		"[tgt-vocab-file]":  &c.TgtVocabFile,
		"[rule-table-file]": &c.RuleTableFile,
		"[lm-file]":         &c.LMFile,
	}
	ints := map[string]*int{
		"[BEAM-SIZE]":       &c.BeamSize,
		"[SEN-THREAD-NUM]":  &c.SenThreads,
		"[SPAN-THREAD-NUM]": &c.SpanThreads,
		"[NBEST-NUM]":       &c.NBest,
		"[RULE-NUM-LIMIT]":  &c.RuleLimit,
		"[PROB-NUM]":        &c.NumProbs,
	}
	bools := map[string]*bool{
		"[PRINT-NBEST]":    &c.PrintNBest,
		"[DUMP-RULE]":      &c.DumpRule,
		"[LOAD-ALIGNMENT]": &c.LoadAlignment,
	}
	lines := conf.Values
	for i := 0; i < len(lines); i++ {
		section := lines[i]
		if section == "[weight]" {
			for i+1 < len(lines) && !strings.HasPrefix(lines[i+1], "[") {
				i++
				if err := c.Weights.parse(lines[i]); err != nil {
					return nil, err
				}
			}
			continue
		}
		if !strings.HasPrefix(section, "[") {
			continue
		}
		if i+1 >= len(lines) {
			return nil, errors.Errorf("section %s has no value", section)
		}
		value := lines[i+1]
		switch {
		case texts[section] != nil:
			*texts[section] = value
		case ints[section] != nil:
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.Wrapf(err, "section %s", section)
			}
			*ints[section] = n
		case bools[section] != nil:
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.Wrapf(err, "section %s", section)
			}
			*bools[section] = n != 0
		default:
			continue
		}
		i++
	}
	return c, nil
}

func (w *Weights) parse(line string) error {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return errors.Errorf("weight line %q is not \"name value\"", line)
	}
	value, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return errors.Wrapf(err, "weight %s", fields[0])
	}
	switch name := fields[0]; {
	case strings.Contains(name, "trans"):
		w.Trans = append(w.Trans, value)
	case name == "lm":
		w.LM = value
	case name == "len":
		w.Len = value
	case name == "rule-num":
		w.RuleNum = value
	}
	return nil
}

// ParseYAML reads the YAML format over the defaults
func ParseYAML(reader io.Reader) (*Config, error) {
	c := Default()
	if err := yaml.NewDecoder(reader).Decode(c); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decoding configuration")
	}
	return c, nil
}

// ReadFile picks the format by extension and validates the result
func ReadFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "opening configuration")
	}
	var c *Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		c, err = ParseYAML(bytes.NewReader(data))
	default:
		c, err = ParseINI(bytes.NewReader(data))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	return c, c.Validate()
}
