// Package bracket reads whitespace tokenized constituency trees such as
//
//	( IP ( NP ( NN cat ) ) ( VP ( VV sleeps ) ) )
//
// Parentheses may appear as words: ( PU ( ) and ( PU ) ) are pre-terminals
// over the words "(" and ")". The root label may be omitted: ( ( IP ... ) ).
package bracket

import (
	"bufio"
	"io"
	"strings"

	"github.com/lixiaoqing/t2t/nlp/types"

	"github.com/pkg/errors"
)

const (
	OPEN  = "("
	CLOSE = ")"
)

type parser struct {
	toks []string
	pos  int
}

func (p *parser) peek(offset int) (string, bool) {
	if p.pos+offset < len(p.toks) {
		return p.toks[p.pos+offset], true
	}
	return "", false
}

func (p *parser) expect(tok string) error {
	cur, ok := p.peek(0)
	if !ok {
		return errors.Errorf("expected %q at token %d, got end of input", tok, p.pos)
	}
	if cur != tok {
		return errors.Errorf("expected %q at token %d, got %q", tok, p.pos, cur)
	}
	p.pos++
	return nil
}

func (p *parser) node() (*types.Node, error) {
	if err := p.expect(OPEN); err != nil {
		return nil, err
	}
	node := &types.Node{}
	first, ok := p.peek(0)
	if !ok {
		return nil, errors.New("unexpected end of input after '('")
	}
	// "( (" followed by a label opens a child of an unlabeled node
	if next, _ := p.peek(1); !(first == OPEN && next != CLOSE) {
		node.Label = first
		p.pos++
	}
	// a single token closed right away is the word under a pre-terminal
	if word, ok := p.peek(0); ok {
		if next, _ := p.peek(1); next == CLOSE {
			p.pos += 2
			node.Children = []*types.Node{{Label: word}}
			return node, nil
		}
	}
	for {
		cur, ok := p.peek(0)
		if !ok {
			return nil, errors.Errorf("unterminated node %q", node.Label)
		}
		if cur == CLOSE {
			p.pos++
			break
		}
		if cur != OPEN {
			return nil, errors.Errorf("unexpected word %q at token %d inside %q, words must sit under a pre-terminal", cur, p.pos, node.Label)
		}
		child, err := p.node()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	if len(node.Children) == 0 {
		return nil, errors.Errorf("node %q has no children", node.Label)
	}
	return node, nil
}

// Parse builds a tree from a single bracketed line.
func Parse(line string) (*types.Tree, error) {
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return nil, types.ErrEmptyTree
	}
	p := &parser{toks: toks}
	root, err := p.node()
	if err != nil {
		return nil, errors.Wrap(err, "parsing tree")
	}
	if p.pos != len(toks) {
		return nil, errors.Errorf("parsing tree: trailing tokens after root at token %d", p.pos)
	}
	return types.NewTree(root)
}

// ReadLines reads one tree per line; lines are returned trimmed and unparsed
// so that a malformed tree only affects its own sentence.
func ReadLines(reader io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading trees")
	}
	return lines, nil
}
