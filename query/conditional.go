package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDirective is returned by Parse when a conditional block is
// unbalanced or a directive line is invalid.
var ErrMalformedDirective = errors.New("malformed conditional directive")

// Template is a parsed query template: plain SQL text interleaved with
// resolved conditional blocks. Immutable and safe for concurrent Render.
type Template struct {
	nodes       []node
	conditional bool
}

// Conditional reports whether the template contains at least one
// #if block.
func (t *Template) Conditional() bool {
	return t.conditional
}

// Render evaluates every conditional block against params and returns the
// SQL text that survives. Directive lines are stripped; exactly one branch
// body (or none) is kept per block.
func (t *Template) Render(params Params) string {
	var lines []string
	for _, n := range t.nodes {
		n.render(params, &lines)
	}
	return strings.Join(lines, "\n")
}

type node interface {
	render(params Params, out *[]string)
}

// textNode holds consecutive non-directive lines verbatim.
type textNode []string

func (t textNode) render(_ Params, out *[]string) {
	*out = append(*out, t...)
}

type condBranch struct {
	param string
	body  []node
}

// condNode is one #if/#elif/#else/#endif construct. The first branch
// whose parameter is present and truthy wins; otherwise the else body.
type condNode struct {
	branches []condBranch
	elseBody []node
	hasElse  bool
}

func (c *condNode) render(params Params, out *[]string) {
	for _, br := range c.branches {
		if v, ok := params[br.param]; ok && Truthy(v) {
			for _, n := range br.body {
				n.render(params, out)
			}
			return
		}
	}
	if c.hasElse {
		for _, n := range c.elseBody {
			n.render(params, out)
		}
	}
}

type directiveKind int

const (
	directiveNone directiveKind = iota
	directiveIf
	directiveElif
	directiveElse
	directiveEndif
)

// classifyDirective inspects one line. Directive keywords are matched
// case-insensitively; the parameter name is taken as-is.
func classifyDirective(line string) (directiveKind, string, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return directiveNone, "", nil
	}

	keyword := trimmed
	arg := ""
	if i := strings.IndexAny(trimmed, " \t"); i >= 0 {
		keyword = trimmed[:i]
		arg = strings.TrimSpace(trimmed[i+1:])
	}

	switch strings.ToLower(keyword) {
	case "#if":
		if arg == "" {
			return directiveNone, "", fmt.Errorf("%w: #if without a parameter name", ErrMalformedDirective)
		}
		return directiveIf, arg, nil
	case "#elif":
		if arg == "" {
			return directiveNone, "", fmt.Errorf("%w: #elif without a parameter name", ErrMalformedDirective)
		}
		return directiveElif, arg, nil
	case "#else":
		return directiveElse, "", nil
	case "#endif":
		return directiveEndif, "", nil
	}
	// Anything else starting with # is ordinary SQL text (e.g. a comment).
	return directiveNone, "", nil
}

// Parse splits text into lines and builds the block tree for every
// #if/#elif/#else/#endif construct. Blocks nest; an unbalanced construct
// fails with ErrMalformedDirective and the offending line number.
func Parse(text string) (*Template, error) {
	p := &parser{lines: strings.Split(text, "\n")}
	nodes, term, err := p.parseNodes()
	if err != nil {
		return nil, err
	}
	if term != directiveNone {
		return nil, fmt.Errorf("%w: %s without matching #if at line %d",
			ErrMalformedDirective, directiveName(term), p.pos+1)
	}
	return &Template{nodes: nodes, conditional: p.sawIf}, nil
}

type parser struct {
	lines []string
	pos   int
	sawIf bool
}

// parseNodes consumes lines until EOF or a directive that terminates the
// current body (#elif, #else, #endif), which is returned to the caller.
func (p *parser) parseNodes() ([]node, directiveKind, error) {
	var nodes []node
	var text textNode

	flush := func() {
		if len(text) > 0 {
			nodes = append(nodes, text)
			text = nil
		}
	}

	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		kind, arg, err := classifyDirective(line)
		if err != nil {
			return nil, directiveNone, fmt.Errorf("%w at line %d", err, p.pos+1)
		}

		switch kind {
		case directiveNone:
			text = append(text, line)
			p.pos++
		case directiveIf:
			flush()
			p.pos++
			cond, err := p.parseCond(arg)
			if err != nil {
				return nil, directiveNone, err
			}
			nodes = append(nodes, cond)
		default:
			flush()
			return nodes, kind, nil
		}
	}
	flush()
	return nodes, directiveNone, nil
}

// parseCond parses the branches of one construct, positioned just past
// its #if line.
func (p *parser) parseCond(param string) (*condNode, error) {
	p.sawIf = true
	cond := &condNode{}
	ifLine := p.pos // for the missing-#endif message

	for {
		body, term, err := p.parseNodes()
		if err != nil {
			return nil, err
		}

		switch {
		case param != "":
			cond.branches = append(cond.branches, condBranch{param: param, body: body})
		default:
			cond.elseBody = body
		}

		switch term {
		case directiveEndif:
			p.pos++
			return cond, nil
		case directiveElif:
			if cond.hasElse {
				return nil, fmt.Errorf("%w: #elif after #else at line %d", ErrMalformedDirective, p.pos+1)
			}
			_, arg, _ := classifyDirective(p.lines[p.pos])
			param = arg
			p.pos++
		case directiveElse:
			if cond.hasElse {
				return nil, fmt.Errorf("%w: duplicate #else at line %d", ErrMalformedDirective, p.pos+1)
			}
			cond.hasElse = true
			param = ""
			p.pos++
		default:
			return nil, fmt.Errorf("%w: #if at line %d has no #endif", ErrMalformedDirective, ifLine)
		}
	}
}

func directiveName(k directiveKind) string {
	switch k {
	case directiveIf:
		return "#if"
	case directiveElif:
		return "#elif"
	case directiveElse:
		return "#else"
	case directiveEndif:
		return "#endif"
	}
	return "#?"
}
