package store

import (
	"fmt"

	"github.com/cuemby/veyradb/pkg/dberr"
	"github.com/cuemby/veyradb/pkg/types"
)

// PropertyAccessor decodes a record body and returns the value of a named
// property. The binary body dictionary format is an external collaborator
// (§1 of the spec this engine implements); callers register their own
// accessor rather than this package understanding the encoding.
type PropertyAccessor func(body []byte, property string) (any, error)

// Node is one node of a JSON query tree: ["AND", n1, n2, ...],
// ["=", [".", "prop"], value], ["MATCH", "indexName", "text"], etc. It is
// the decoded form of a query submitted as JSON, e.g.
// ["AND", ["=", [".", "type"], "post"], [">", [".", "views"], 100]].
type Node []any

// Query is a compiled query tree bound to a key store and a property
// accessor, ready to Run.
type Query struct {
	ks       *KeyStore
	node     Node
	accessor PropertyAccessor
}

// CompileQuery parses and binds a JSON query tree. Property access nodes
// are evaluated against each candidate row's body via accessor; everything
// else (AND/OR/comparisons) is evaluated over those results. The body
// dictionary format itself is opaque to this package, so property
// extraction can't be pushed into the SQL layer without a registered
// driver-level scalar function the pack's pure-Go driver doesn't expose at
// the database/sql level — filtering therefore happens in Go after a row
// pass, trading some throughput for staying off driver internals.
func (ks *KeyStore) CompileQuery(tree Node, accessor PropertyAccessor) (*Query, *dberr.Error) {
	if len(tree) == 0 {
		return nil, dberr.New(dberr.InvalidParameter, "empty query tree")
	}
	return &Query{ks: ks, node: tree, accessor: accessor}, nil
}

// Run executes the query, returning matching records in key order.
func (q *Query) Run() ([]types.Record, *dberr.Error) {
	enum, derr := q.ks.EnumerateKeys(nil, nil, EnumerateOptions{})
	if derr != nil {
		return nil, derr
	}
	defer enum.Close()

	var results []types.Record
	for enum.Next() {
		rec := enum.Record()
		ok, err := q.eval(q.node, rec)
		if err != nil {
			return nil, dberr.Wrap(dberr.Unexpected, err, "evaluating query node")
		}
		if truthy(ok) {
			results = append(results, rec)
		}
	}
	if err := enum.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (q *Query) eval(n Node, rec types.Record) (any, error) {
	if len(n) == 0 {
		return nil, dberr.New(dberr.InvalidParameter, "empty node")
	}
	op, _ := n[0].(string)
	switch op {
	case "AND":
		for _, sub := range n[1:] {
			node, ok := sub.(Node)
			if !ok {
				return nil, fmt.Errorf("AND operand is not a node")
			}
			v, err := q.eval(node, rec)
			if err != nil {
				return nil, err
			}
			if !truthy(v) {
				return false, nil
			}
		}
		return true, nil

	case "OR":
		for _, sub := range n[1:] {
			node, ok := sub.(Node)
			if !ok {
				return nil, fmt.Errorf("OR operand is not a node")
			}
			v, err := q.eval(node, rec)
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				return true, nil
			}
		}
		return false, nil

	case "=", "<", "<=", ">", ">=":
		if len(n) != 3 {
			return nil, fmt.Errorf("%s requires exactly 2 operands", op)
		}
		left, err := q.resolve(n[1], rec)
		if err != nil {
			return nil, err
		}
		right, err := q.resolve(n[2], rec)
		if err != nil {
			return nil, err
		}
		return compare(op, left, right), nil

	case ".":
		if len(n) != 2 {
			return nil, fmt.Errorf(". requires exactly 1 property name")
		}
		prop, _ := n[1].(string)
		if q.accessor == nil {
			return nil, fmt.Errorf("no property accessor registered")
		}
		return q.accessor(rec.Body, prop)

	case "MATCH":
		// Full-text matching is handled by a dedicated FTS virtual table
		// (index.go); a bare MATCH node inside a general query tree has no
		// sequential-scan fallback and is unsupported.
		return nil, dberr.New(dberr.Unimplemented, "MATCH is not supported inside a general query tree")

	default:
		return nil, fmt.Errorf("unknown query operator %q", op)
	}
}

// resolve evaluates an operand that may be a literal value or a nested Node
// (typically a property access).
func (q *Query) resolve(operand any, rec types.Record) (any, error) {
	if node, ok := operand.(Node); ok {
		return q.eval(node, rec)
	}
	return operand, nil
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func compare(op string, left, right any) bool {
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if lok && rok {
		switch op {
		case "=":
			return lf == rf
		case "<":
			return lf < rf
		case "<=":
			return lf <= rf
		case ">":
			return lf > rf
		case ">=":
			return lf >= rf
		}
	}
	ls, lsok := left.(string)
	rs, rsok := right.(string)
	if lsok && rsok {
		switch op {
		case "=":
			return ls == rs
		case "<":
			return ls < rs
		case "<=":
			return ls <= rs
		case ">":
			return ls > rs
		case ">=":
			return ls >= rs
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
