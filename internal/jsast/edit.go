package jsast

import (
	"bytes"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// Position tells Output where a synthesized statement goes.
type Position int

const (
	// PositionInline places the statement in the injected block in
	// insertion order. Import declarations are not order-sensitive.
	PositionInline Position = iota
	// PositionTop places the statement ahead of every inline injection.
	// Used for require calls that later code depends on at runtime.
	PositionTop
)

func (p Position) String() string {
	if p == PositionTop {
		return "top"
	}
	return "inline"
}

// Statement is a synthesized top-level statement.
type Statement struct {
	Text     string
	Position Position
}

type edit struct {
	start, end uint32
	text       string
}

type inserted struct {
	stmt  Statement
	group int
	seq   int
}

func (u *Unit) replace(n *sitter.Node, text string) {
	k := keyOf(n)
	if u.removed[k] {
		return
	}
	u.removed[k] = true
	u.edits = append(u.edits, edit{start: n.StartByte(), end: n.EndByte(), text: text})
}

// Insert queues a statement for the top of the unit. Statements are ordered
// by position, then group, then insertion order.
func (u *Unit) Insert(stmt Statement, group int) {
	u.inserted = append(u.inserted, inserted{stmt: stmt, group: group, seq: u.seq})
	u.seq++
}

// Inserted returns the queued statements in output order.
func (u *Unit) Inserted() []Statement {
	sorted := make([]inserted, len(u.inserted))
	copy(sorted, u.inserted)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.stmt.Position != b.stmt.Position {
			return a.stmt.Position > b.stmt.Position
		}
		if a.group != b.group {
			return a.group < b.group
		}
		return a.seq < b.seq
	})
	out := make([]Statement, len(sorted))
	for i, ins := range sorted {
		out[i] = ins.stmt
	}
	return out
}

// Modified reports whether Output would differ from the original source.
func (u *Unit) Modified() bool {
	return len(u.edits) > 0 || len(u.inserted) > 0
}

// Output renders the unit with all edits applied and queued statements placed
// after the hashbang line and directive prologue.
func (u *Unit) Output() []byte {
	if !u.Modified() {
		return u.src
	}

	edits := make([]edit, 0, len(u.edits)+1)
	if stmts := u.Inserted(); len(stmts) > 0 {
		at := u.insertionPoint()
		var buf bytes.Buffer
		if at > 0 {
			buf.WriteByte('\n')
		}
		for i, s := range stmts {
			if i > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(s.Text)
		}
		if at == 0 {
			buf.WriteByte('\n')
		}
		edits = append(edits, edit{start: at, end: at, text: buf.String()})
	}
	edits = append(edits, u.edits...)
	sort.SliceStable(edits, func(i, j int) bool {
		return edits[i].start < edits[j].start
	})

	var out bytes.Buffer
	var cursor uint32
	for _, e := range edits {
		if e.start < cursor {
			continue
		}
		out.Write(u.src[cursor:e.start])
		out.WriteString(e.text)
		cursor = e.end
	}
	out.Write(u.src[cursor:])
	return out.Bytes()
}

// insertionPoint returns the byte offset after the hashbang line and any
// "use strict"-style directives.
func (u *Unit) insertionPoint() uint32 {
	var at uint32
	for _, c := range namedChildren(u.root) {
		switch {
		case c.Type() == "hash_bang_line":
			at = c.EndByte()
		case isDirective(c):
			at = c.EndByte()
		default:
			return at
		}
	}
	return at
}

func isDirective(n *sitter.Node) bool {
	if n.Type() != "expression_statement" {
		return false
	}
	kids := namedChildren(n)
	return len(kids) == 1 && kids[0].Type() == "string"
}
