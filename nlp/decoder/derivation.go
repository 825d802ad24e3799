package decoder

import (
	"strconv"
	"strings"
)

// Derivation lists the rules applied by the best hypothesis, children
// before parents. OOV and glue steps are one line each; a rule shows its
// source levels, "@@@", then its target root, leaves and alignments.
func (r *Result) Derivation() []string {
	best := r.Best()
	if best == nil {
		return nil
	}
	var rules []string
	r.decoder.dump(&rules, best)
	return rules
}

// countRules records the kind of every rule in the derivation of h
func countRules(h *Hypothesis) {
	for _, child := range h.Children() {
		countRules(child)
	}
	if rule := h.Rule(); rule != nil {
		rulesApplied.WithLabelValues(strconv.FormatBool(rule.Composed), strconv.FormatBool(rule.Lexical)).Inc()
	}
}

func (d *Decoder) dump(rules *[]string, h *Hypothesis) {
	var b strings.Builder
	children := h.Children()
	for _, child := range children {
		d.dump(rules, child)
	}
	switch h.Kind {
	case OOV:
		b.WriteString("OOV => " + d.word(h.Words[0]) + "\n")
	case GLUE:
		b.WriteString("GLUE => ")
		for _, child := range children {
			b.WriteString(d.word(child.TgtRoot) + " ")
		}
		b.WriteString("\n")
	default:
		for _, level := range d.Table.SourceLevels(h.Source) {
			b.WriteString(level + "\n")
		}
		b.WriteString("@@@\n")
		rule := h.Rule()
		b.WriteString(d.word(rule.TgtRoot) + "\n")
		for _, leaf := range rule.Leaves {
			b.WriteString(d.word(leaf) + " ")
		}
		b.WriteString("\n")
		for _, pos := range rule.Aligned {
			b.WriteString(strconv.Itoa(pos) + " ")
		}
		b.WriteString("\n")
		if rule.SrcToTgt != nil {
			b.WriteString(rule.Alignment() + "\n")
		}
	}
	*rules = append(*rules, b.String())
}
