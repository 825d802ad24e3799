package decoder

import (
	"slices"
	"strconv"
	"strings"

	"github.com/lixiaoqing/t2t/alg/search"
	"github.com/lixiaoqing/t2t/nlp/grammar"
	"github.com/lixiaoqing/t2t/nlp/types"
)

// cubeGroup is one dimension set of the search grid: the rules of a group
// (none for glue) against the candidate lists of its nonterminals.
type cubeGroup struct {
	source *grammar.TrieNode
	group  *grammar.RuleGroup
	slots  [][]*Hypothesis
}

type cubeItem struct {
	hyp   *Hypothesis
	group int
}

func (c cubeItem) Score() float64 {
	return c.hyp.Score
}

func (c cubeItem) String() string {
	return c.hyp.String()
}

// cube explores the grid of (rule rank, child ranks) coordinates of every
// group from the best corner outwards.
type cube struct {
	n      *nodeDecoder
	groups []cubeGroup
	agenda *search.Agenda[cubeItem]
	seen   map[string]bool
}

// newCube seeds one corner per usable rule group of the non-unary matches
func (n *nodeDecoder) newCube(matches []grammar.Match) *cube {
	c := &cube{
		n:      n,
		agenda: search.NewAgenda[cubeItem](n.s.d.Config.BeamSize),
		seen:   make(map[string]bool),
	}
	for i, m := range matches {
		if i == 0 || !m.Node.HasRules() {
			continue
		}
		nonterminals := m.Nonterminals()
		for _, group := range m.Node.Groups {
			slots, ok := n.slots(group.Best(), nonterminals)
			if !ok {
				continue
			}
			c.groups = append(c.groups, cubeGroup{source: m.Node, group: group, slots: slots})
			c.push(len(c.groups)-1, 0, make([]int, len(slots)))
		}
	}
	return c
}

// slots looks up, for every nonterminal of rule in target order, the
// hypotheses of the aligned frontier node bearing its label, falling back
// to glue hypotheses.
func (n *nodeDecoder) slots(rule *grammar.Rule, nonterminals []*types.Node) ([][]*Hypothesis, bool) {
	var slots [][]*Hypothesis
	for i, pos := range rule.Aligned {
		if pos == grammar.TERMINAL {
			continue
		}
		if pos < 0 || pos >= len(nonterminals) {
			return nil, false
		}
		org := n.s.organizers[nonterminals[pos].ID]
		if org == nil {
			return nil, false
		}
		list := org.ByRoot(rule.Leaves[i])
		if len(list) == 0 {
			list = org.ByRoot(n.s.d.glue)
		}
		if len(list) == 0 {
			return nil, false
		}
		slots = append(slots, list)
	}
	return slots, true
}

// seedGlue adds the corner concatenating the best hypothesis of every child
func (c *cube) seedGlue() {
	var slots [][]*Hypothesis
	for _, child := range c.n.node.Children {
		if org := c.n.s.organizers[child.ID]; org != nil && org.Len() > 0 {
			slots = append(slots, org.All())
		}
	}
	fallbacksTotal.WithLabelValues("glue").Inc()
	c.groups = append(c.groups, cubeGroup{slots: slots})
	c.push(len(c.groups)-1, 0, make([]int, len(slots)))
}

func seenKey(group, rank int, ranks []int) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(group))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(rank))
	for _, r := range ranks {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(r))
	}
	return b.String()
}

// push materializes a coordinate unless it was queued before
func (c *cube) push(group, rank int, ranks []int) {
	key := seenKey(group, rank, ranks)
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	g := c.groups[group]
	var h *Hypothesis
	if g.group == nil {
		h = c.n.glue(g.slots, ranks)
	} else {
		h = c.n.applyRule(g.source, g.group, rank, g.slots, ranks)
	}
	c.agenda.Push(cubeItem{hyp: h, group: group})
}

// run pops at most k hypotheses into the organizer, queueing the
// neighbours of each whatever its fate.
func (c *cube) run(k int) {
	defer c.agenda.Clear()
	for pops := 0; pops < k; pops++ {
		item, ok := c.agenda.Pop()
		if !ok {
			return
		}
		cubePopsTotal.Inc()
		h := item.hyp
		for i := range h.Ranks {
			if h.Ranks[i]+1 < len(h.Slots[i]) {
				ranks := slices.Clone(h.Ranks)
				ranks[i]++
				c.push(item.group, h.RuleRank, ranks)
			}
		}
		if h.Group != nil && h.RuleRank+1 < h.Group.Len() {
			c.push(item.group, h.RuleRank+1, h.Ranks)
		}
		c.n.add(h)
	}
	if top, ok := c.agenda.Peek(); ok {
		c.n.s.d.Log.Debug("beam full", "node", c.n.node.Info(), "pending", c.agenda.Len(), "best-pending", top.Score())
	}
}
