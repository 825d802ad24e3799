package decoder

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/lixiaoqing/t2t/nlp/grammar"
	"github.com/lixiaoqing/t2t/nlp/lm"
	"github.com/lixiaoqing/t2t/nlp/types"
	"github.com/lixiaoqing/t2t/util"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Decoder translates parse trees. It is safe for concurrent use; the rule
// table and the model are only read, the target vocabulary grows with
// every unseen source word.
type Decoder struct {
	Config  Config
	Weights Weights
	Table   *grammar.Table
	LM      *lm.Scorer
	Tgt     *util.Vocab
	Log     *slog.Logger

	glue, oov, null int
	fingerprint     uuid.UUID
}

func New(conf Config, weights Weights, table *grammar.Table, scorer *lm.Scorer, tgt *util.Vocab, logger *slog.Logger) (*Decoder, error) {
	if len(weights.Trans) != len(table.Weights) {
		return nil, errors.Wrapf(grammar.ErrFeatureArity, "decoder has %d translation weights, rule table %d", len(weights.Trans), len(table.Weights))
	}
	if logger == nil {
		logger = slog.Default()
	}
	conf = conf.withDefaults()
	d := &Decoder{
		Config:  conf,
		Weights: weights,
		Table:   table,
		LM:      scorer,
		Tgt:     tgt,
		Log:     logger,
		glue:    tgt.IDOf(conf.GlueLabel),
		oov:     tgt.IDOf(conf.OOVLabel),
		null:    tgt.IDOf(conf.NullWord),
	}
	d.fingerprint = d.Fingerprint()
	return d, nil
}

type sentence struct {
	d          *Decoder
	tree       *types.Tree
	organizers []*Organizer
}

// Decode fills the organizer of every node bottom up, one span width at a
// time, then rescores the root hypotheses as complete sentences.
func (d *Decoder) Decode(ctx context.Context, tree *types.Tree) (*Result, error) {
	if tree == nil || tree.Len() == 0 {
		return nil, types.ErrEmptyTree
	}
	ctx, span := tracer.Start(ctx, "decoder.Decode",
		trace.WithAttributes(
			attribute.Int("sentence.length", tree.Len()),
			attribute.Int("decoder.beam", d.Config.BeamSize),
		),
	)
	defer span.End()
	start := time.Now()

	s := &sentence{d: d, tree: tree, organizers: make([]*Organizer, len(tree.Nodes))}
	length := tree.Len()
	for width := 0; width < length; width++ {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		var g errgroup.Group
		g.SetLimit(d.Config.SpanThreads)
		for l := 0; l+width < length; l++ {
			nodes := tree.NodesAt(l, l+width)
			if len(nodes) == 0 {
				continue
			}
			g.Go(func() error {
				for _, node := range nodes {
					s.decodeNode(node)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	result := &Result{Tree: tree, decoder: d, organizers: s.organizers}
	for _, h := range s.organizers[tree.Root.ID].All() {
		final := d.LM.Final(h.State)
		f := *h
		f.LM += final
		f.Score += d.Weights.LM * final
		result.Hypotheses = append(result.Hypotheses, &f)
	}
	sortHypotheses(result.Hypotheses)

	elapsed := time.Since(start)
	sentencesTotal.Inc()
	decodeDuration.Observe(elapsed.Seconds())
	if best := result.Best(); best != nil {
		countRules(best)
		span.SetAttributes(attribute.Float64("decoder.best_score", best.Score))
	}
	d.Log.Debug("decoded sentence", "words", length, "nodes", len(tree.Nodes), "hypotheses", len(result.Hypotheses), "elapsed", elapsed)
	return result, nil
}

func sortHypotheses(hyps []*Hypothesis) {
	sort.SliceStable(hyps, func(i, j int) bool {
		if hyps[i].Score != hyps[j].Score {
			return hyps[i].Score > hyps[j].Score
		}
		return hyps[i].seq < hyps[j].seq
	})
}

type nodeDecoder struct {
	s    *sentence
	node *types.Node
	org  *Organizer
	seq  int
}

func (s *sentence) decodeNode(node *types.Node) {
	if node.IsWord() {
		return
	}
	n := &nodeDecoder{s: s, node: node, org: NewOrganizer(s.d.LM.Order())}
	matches := s.d.Table.Match(node)
	if node.Kind == types.POS && len(matches) <= 1 {
		n.add(n.oov())
	} else {
		c := n.newCube(matches)
		if c.agenda.Len() == 0 {
			if node.Kind == types.POS {
				n.add(n.oov())
			} else {
				c.seedGlue()
			}
		}
		c.run(s.d.Config.BeamSize)
		if len(matches) > 0 && matches[0].Node.HasRules() {
			n.extendUnary(matches[0].Node)
		}
	}
	n.org.SortAndGroup()
	s.organizers[node.ID] = n.org
}

func (n *nodeDecoder) next() int {
	n.seq++
	return n.seq - 1
}

func (n *nodeDecoder) add(h *Hypothesis) Status {
	status, _ := n.org.Add(h)
	organizerOutcomes.WithLabelValues(status.String()).Inc()
	return status
}

// oov passes the word under a pre-terminal through untranslated
func (n *nodeDecoder) oov() *Hypothesis {
	d := n.s.d
	fallbacksTotal.WithLabelValues("oov").Inc()
	word := d.Tgt.IDOf(n.node.Children[0].Label)
	h := &Hypothesis{
		Kind:    OOV,
		TgtRoot: d.oov,
		Words:   []int{word},
		Trans:   make([]float64, len(d.Weights.Trans)),
		RuleNum: 1,
		Node:    n.node,
		seq:     n.next(),
	}
	for i, w := range d.Weights.Trans {
		h.Trans[i] = PSEUDO_ZERO
		h.Score += w * PSEUDO_ZERO
	}
	b := d.LM.Begin()
	b.Terminal(word)
	h.LM, h.State = b.Finish()
	h.Score += d.Weights.LM*h.LM + d.Weights.Len + d.Weights.Rule
	return h
}

func (h *Hypothesis) absorb(child *Hypothesis) {
	h.Words = append(h.Words, child.Words...)
	for i, p := range child.Trans {
		h.Trans[i] += p
	}
	h.LM += child.LM
	h.RuleNum += child.RuleNum
	h.Score += child.Score
}

// applyRule builds the hypothesis of rule rank in group with the chosen
// child of every slot substituted for its nonterminal.
func (n *nodeDecoder) applyRule(source *grammar.TrieNode, group *grammar.RuleGroup, rank int, slots [][]*Hypothesis, ranks []int) *Hypothesis {
	d := n.s.d
	rule := group.Rules[rank]
	h := &Hypothesis{
		Kind:     RULE,
		TgtRoot:  rule.TgtRoot,
		Trans:    slices.Clone(rule.Probs),
		Source:   source,
		Group:    group,
		RuleRank: rank,
		Slots:    slots,
		Ranks:    ranks,
		Node:     n.node,
		seq:      n.next(),
	}
	b := d.LM.Begin()
	var nt int
	for i, leaf := range rule.Leaves {
		if rule.IsTerminal(i) {
			h.Words = append(h.Words, leaf)
			b.Terminal(leaf)
			continue
		}
		child := slots[nt][ranks[nt]]
		nt++
		h.absorb(child)
		b.NonTerminal(child.State)
	}
	delta, state := b.Finish()
	h.State = state
	h.LM += delta
	h.RuleNum++
	h.Score += rule.Score + d.Weights.LM*delta + d.Weights.Len*float64(rule.WordNum) + d.Weights.Rule
	return h
}

// glue concatenates the chosen children in source order
func (n *nodeDecoder) glue(slots [][]*Hypothesis, ranks []int) *Hypothesis {
	d := n.s.d
	h := &Hypothesis{
		Kind:    GLUE,
		TgtRoot: d.glue,
		Trans:   make([]float64, len(d.Weights.Trans)),
		Slots:   slots,
		Ranks:   ranks,
		Node:    n.node,
		seq:     n.next(),
	}
	b := d.LM.Begin()
	for i, slot := range slots {
		child := slot[ranks[i]]
		h.absorb(child)
		b.NonTerminal(child.State)
	}
	delta, state := b.Finish()
	h.State = state
	h.LM += delta
	h.RuleNum++
	h.Score += d.Weights.LM*delta + d.Weights.Rule
	return h
}

// extendUnary wraps every non-glue survivor in each unary rule rewriting
// its target root. The wrapped hypotheses are submitted directly.
func (n *nodeDecoder) extendUnary(source *grammar.TrieNode) {
	for _, h := range slices.Clone(n.org.All()) {
		if h.Kind == GLUE {
			continue
		}
		group := source.Group([]int{h.TgtRoot, 0})
		if group == nil {
			continue
		}
		slots := [][]*Hypothesis{{h}}
		ranks := []int{0}
		for rank := range group.Rules {
			n.add(n.applyRule(source, group, rank, slots, ranks))
		}
	}
}
