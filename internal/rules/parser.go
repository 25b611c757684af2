package rules

// Recursive descent parser with one level per precedence tier:
// || > && > == != > < <= > >= > + - > * / % > unary > postfix.

type parser struct {
	toks []token
	i    int
}

// Program is a compiled rule expression, safe for concurrent evaluation.
type Program struct {
	root   node
	source string
}

// Source returns the original rule text the program was compiled from.
func (p *Program) Source() string { return p.source }

// Compile parses an expression into an evaluable program.
func Compile(src string) (*Program, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, &SyntaxError{Pos: p.cur().pos, Msg: "unexpected trailing input"}
	}
	return &Program{root: root, source: src}, nil
}

func (p *parser) cur() token { return p.toks[p.i] }

func (p *parser) acceptOp(ops ...string) (string, bool) {
	t := p.cur()
	if t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.i++
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("||")
		if !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{at: left.pos(), op: op, left: left, right: right}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("&&")
		if !ok {
			return left, nil
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{at: left.pos(), op: op, left: left, right: right}
	}
}

func (p *parser) parseEquality() (node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("==", "!=")
		if !ok {
			return left, nil
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{at: left.pos(), op: op, left: left, right: right}
	}
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("<", "<=", ">", ">=")
		if !ok {
			return left, nil
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{at: left.pos(), op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{at: left.pos(), op: op, left: left, right: right}
	}
}

func (p *parser) parseFactor() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("*", "/", "%")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{at: left.pos(), op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if op, ok := p.acceptOp("!", "-"); ok {
		at := p.toks[p.i-1].pos
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{at: at, op: op, x: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("."); ok {
			t := p.cur()
			if t.kind != tokIdent {
				return nil, &SyntaxError{Pos: t.pos, Msg: "expected field name after '.'"}
			}
			p.i++
			x = &fieldNode{at: x.pos(), x: x, name: t.text}
			continue
		}
		if _, ok := p.acceptOp("("); ok {
			var args []node
			if _, closed := p.acceptOp(")"); !closed {
				for {
					arg, err := p.parseOr()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if _, more := p.acceptOp(","); more {
						continue
					}
					if _, closed := p.acceptOp(")"); closed {
						break
					}
					return nil, &SyntaxError{Pos: p.cur().pos, Msg: "expected ',' or ')' in argument list"}
				}
			}
			x = &callNode{at: x.pos(), fn: x, args: args}
			continue
		}
		return x, nil
	}
}

func (p *parser) parsePrimary() (node, error) {
	t := p.cur()
	switch t.kind {
	case tokNumber:
		p.i++
		return &literalNode{at: t.pos, value: t.num}, nil
	case tokString:
		p.i++
		return &literalNode{at: t.pos, value: t.text}, nil
	case tokTrue:
		p.i++
		return &literalNode{at: t.pos, value: true}, nil
	case tokFalse:
		p.i++
		return &literalNode{at: t.pos, value: false}, nil
	case tokNil:
		p.i++
		return &literalNode{at: t.pos, value: nil}, nil
	case tokIdent:
		p.i++
		return &identNode{at: t.pos, name: t.text}, nil
	case tokOp:
		if t.text == "(" {
			p.i++
			x, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if _, ok := p.acceptOp(")"); !ok {
				return nil, &SyntaxError{Pos: p.cur().pos, Msg: "expected ')'"}
			}
			return x, nil
		}
	}
	return nil, &SyntaxError{Pos: t.pos, Msg: "expected expression"}
}
