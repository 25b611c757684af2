package rules

// Expression AST. Rules are small boolean expressions, so the node set is
// deliberately minimal: literals, identifier lookups, field access on maps,
// calls, and unary/binary operators.

type node interface {
	pos() int
}

type literalNode struct {
	at    int
	value any // float64, string, bool, or nil
}

type identNode struct {
	at   int
	name string
}

type fieldNode struct {
	at   int
	x    node
	name string
}

type callNode struct {
	at   int
	fn   node
	args []node
}

type unaryNode struct {
	at int
	op string // "!" or "-"
	x  node
}

type binaryNode struct {
	at    int
	op    string
	left  node
	right node
}

func (n *literalNode) pos() int { return n.at }
func (n *identNode) pos() int   { return n.at }
func (n *fieldNode) pos() int   { return n.at }
func (n *callNode) pos() int    { return n.at }
func (n *unaryNode) pos() int   { return n.at }
func (n *binaryNode) pos() int  { return n.at }
