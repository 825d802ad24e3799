package types

import (
	"errors"
	"fmt"
	"strings"
)

type NodeKind byte

const (
	WORD NodeKind = iota
	POS
	CONSTITUENT
)

func (k NodeKind) String() string {
	switch k {
	case WORD:
		return "WORD"
	case POS:
		return "POS"
	case CONSTITUENT:
		return "CONSTITUENT"
	default:
		return "UNKNOWN"
	}
}

var ErrEmptyTree = errors.New("empty tree")

// Span is an inclusive range of word indices
type Span struct {
	L, R int
}

func (s Span) Width() int {
	return s.R - s.L
}

func (s Span) String() string {
	return fmt.Sprintf("(%d,%d)", s.L, s.R)
}

type Node struct {
	ID       int
	Label    string
	Span     Span
	Kind     NodeKind
	Parent   *Node
	Children []*Node
}

func (n *Node) IsWord() bool {
	return len(n.Children) == 0
}

// Info identifies the node in derivation dumps, e.g. NP(0,3)
func (n *Node) Info() string {
	return n.Label + n.Span.String()
}

func (n *Node) String() string {
	if n.IsWord() {
		return n.Label
	}
	parts := make([]string, len(n.Children))
	for i, child := range n.Children {
		parts[i] = child.String()
	}
	return fmt.Sprintf("( %s %s )", n.Label, strings.Join(parts, " "))
}

// Tree is a parsed source sentence. Nodes are numbered in post-order,
// so a node's ID is always greater than the IDs of its descendants.
type Tree struct {
	Root  *Node
	Words []string
	Nodes []*Node

	atSpan map[Span][]*Node
}

// NewTree numbers the nodes under root and computes their spans and kinds.
// Word leaves are the children-less nodes, numbered left to right.
func NewTree(root *Node) (*Tree, error) {
	if root == nil {
		return nil, ErrEmptyTree
	}
	t := &Tree{Root: root, atSpan: make(map[Span][]*Node)}
	if err := t.build(root, nil); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) build(node, parent *Node) error {
	node.Parent = parent
	if node.IsWord() {
		if parent == nil {
			return errors.New("tree: root cannot be a bare word")
		}
		node.Span = Span{len(t.Words), len(t.Words)}
		node.Kind = WORD
		t.Words = append(t.Words, node.Label)
	} else {
		node.Span = Span{-1, -1}
		for _, child := range node.Children {
			if err := t.build(child, node); err != nil {
				return err
			}
			if node.Span.L < 0 {
				node.Span.L = child.Span.L
			}
			node.Span.R = child.Span.R
		}
		switch {
		case node.Span.Width() == 0 && len(node.Children) == 1 && node.Children[0].IsWord():
			node.Kind = POS
		default:
			node.Kind = CONSTITUENT
			for _, child := range node.Children {
				if child.IsWord() {
					return fmt.Errorf("tree: word %q under %q must sit under a pre-terminal", child.Label, node.Label)
				}
			}
		}
	}
	node.ID = len(t.Nodes)
	t.Nodes = append(t.Nodes, node)
	t.atSpan[node.Span] = append(t.atSpan[node.Span], node)
	return nil
}

func (t *Tree) Len() int {
	return len(t.Words)
}

// NodesAt returns the nodes covering exactly [l,r], descendants first.
func (t *Tree) NodesAt(l, r int) []*Node {
	return t.atSpan[Span{l, r}]
}

func (t *Tree) String() string {
	if t.Root == nil {
		return ""
	}
	return t.Root.String()
}
