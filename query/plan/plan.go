package plan

import (
	"fmt"
	"strings"

	"github.com/wkalt/teeql/query/types"
)

/*
The plan module is responsible for converting raw query AST into a tree of "plan
nodes". The plan nodes mirror the structure of the executor nodes in most
respects, but are a bit more amenable to generic manipulation without invoking
the executor's dependencies on the storage system.

Every plan node carries its output schema, resolved at bind time. Binding is
where unknown columns, unknown functions, bad table function arguments and
zero-column tee inputs are rejected, so that no file is opened for a query that
cannot run.
*/

////////////////////////////////////////////////////////////////////////////////

// NodeType is the type of a plan node.
type NodeType int

const (
	// Values is a node that emits literal rows.
	Values NodeType = iota
	// Range is a node that emits a sequence of integers.
	Range
	// ReadCSV is a node that scans delimited files.
	ReadCSV
	// Project is a node that evaluates a select list.
	Project
	// Filter is a node that drops rows failing a predicate.
	Filter
	// Limit is a limit node.
	Limit
	// Offset is an offset node.
	Offset
	// Tee is a node that copies its input to a file.
	Tee
)

// String returns a string representation of the node type.
func (n NodeType) String() string {
	switch n {
	case Values:
		return "values"
	case Range:
		return "range"
	case ReadCSV:
		return "read_csv"
	case Project:
		return "project"
	case Filter:
		return "filter"
	case Limit:
		return "limit"
	case Offset:
		return "offset"
	case Tee:
		return "tee"
	default:
		panic("unknown")
	}
}

// RangeArgs are the bounds of a range node. Stop is exclusive.
type RangeArgs struct {
	Start int64
	Stop  int64
	Step  int64
}

// TeeArgs configure the side output of a tee node.
type TeeArgs struct {
	Path      string
	Delimiter rune
	Header    bool
}

// ReadCSVArgs configure a read_csv node. Paths are the expanded files, in
// scan order.
type ReadCSVArgs struct {
	Pattern   string
	Paths     []string
	Delimiter rune
}

// Node represents a plan node.
type Node struct {
	Type     NodeType
	Schema   types.Schema
	Children []*Node

	Rows      [][]types.Value
	Exprs     []*Expr
	Predicate *Expr

	Range   *RangeArgs
	Tee     *TeeArgs
	ReadCSV *ReadCSVArgs

	Offset *int64
	Limit  *int64
}

// traverse a plan tree, executing pre and post-order transformations.
func traverse(n *Node, pre func(n *Node), post func(n *Node)) {
	if pre != nil {
		pre(n)
	}
	for _, c := range n.Children {
		traverse(c, pre, post)
	}
	if post != nil {
		post(n)
	}
}

// Find returns all nodes of the given type in the tree, in pre-order.
func (n *Node) Find(t NodeType) []*Node {
	var result []*Node
	traverse(n, func(n *Node) {
		if n.Type == t {
			result = append(result, n)
		}
	}, nil)
	return result
}

// String returns a string representation of the node.
func (n Node) String() string {
	var args []string
	switch n.Type {
	case Values:
		args = append(args, fmt.Sprintf("%d", len(n.Rows)))
	case Range:
		args = append(args, fmt.Sprintf("%d %d %d", n.Range.Start, n.Range.Stop, n.Range.Step))
	case ReadCSV:
		args = append(args, n.ReadCSV.Pattern)
	case Project:
		for _, e := range n.Exprs {
			args = append(args, e.String())
		}
	case Filter:
		args = append(args, n.Predicate.String())
	case Limit:
		args = append(args, fmt.Sprintf("%d", *n.Limit))
	case Offset:
		args = append(args, fmt.Sprintf("%d", *n.Offset))
	case Tee:
		args = append(args, n.Tee.Path)
	}
	children := make([]string, len(n.Children))
	for i, c := range n.Children {
		children[i] = c.String()
	}
	argsTerm := ""
	if len(args) > 0 {
		argsTerm = fmt.Sprintf(" (%s)", strings.Join(args, " "))
	}
	childrenTerm := ""
	if len(children) > 0 {
		childrenTerm = " " + strings.Join(children, " ")
	}
	return fmt.Sprintf("[%s%s%s]", n.Type, argsTerm, childrenTerm)
}
