package decoder

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	// log probability of a translation feature an OOV word never had
	PSEUDO_ZERO = -99.0

	DEFAULT_GLUE_LABEL = "X-X-X"
	DEFAULT_OOV_LABEL  = "NN"
	DEFAULT_NULL_WORD  = "NULL"
)

type Weights struct {
	Trans []float64
	LM    float64
	Len   float64
	Rule  float64
}

// Dot scores a feature vector laid out as Hypothesis.Features
func (w Weights) Dot(features []float64) float64 {
	var score float64
	for i, t := range w.Trans {
		score += t * features[i]
	}
	n := len(w.Trans)
	return score + w.LM*features[n] + w.Len*features[n+1] + w.Rule*features[n+2]
}

type Config struct {
	BeamSize    int
	NBest       int
	SpanThreads int
	GlueLabel   string
	OOVLabel    string
	NullWord    string

	// digest of the model files, folded into the fingerprint
	ModelDigest string
}

func DefaultConfig() Config {
	return Config{
		BeamSize:    100,
		NBest:       1,
		SpanThreads: 1,
		GlueLabel:   DEFAULT_GLUE_LABEL,
		OOVLabel:    DEFAULT_OOV_LABEL,
		NullWord:    DEFAULT_NULL_WORD,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BeamSize <= 0 {
		c.BeamSize = def.BeamSize
	}
	if c.NBest <= 0 {
		c.NBest = def.NBest
	}
	if c.SpanThreads <= 0 {
		c.SpanThreads = def.SpanThreads
	}
	if c.GlueLabel == "" {
		c.GlueLabel = def.GlueLabel
	}
	if c.OOVLabel == "" {
		c.OOVLabel = def.OOVLabel
	}
	if c.NullWord == "" {
		c.NullWord = def.NullWord
	}
	return c
}

// Fingerprint identifies every setting that changes decoder output;
// thread counts do not.
func (d *Decoder) Fingerprint() uuid.UUID {
	c := d.Config
	settings := fmt.Sprintf("%s|%d|%d|%s|%s|%s|%v|%v|%v|%v|%d|%d|%d",
		c.ModelDigest, c.BeamSize, c.NBest, c.GlueLabel, c.OOVLabel, c.NullWord,
		d.Weights.Trans, d.Weights.LM, d.Weights.Len, d.Weights.Rule,
		d.Table.NumRules(), d.Table.NumNodes(), d.LM.Order())
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(settings))
}

// CacheKey names the translation of one input line under this decoder
func (d *Decoder) CacheKey(line string) string {
	return uuid.NewSHA1(d.fingerprint, []byte(line)).String()
}
