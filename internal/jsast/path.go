package jsast

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Path is a node in the context of a traversal: its parent path, the
// innermost scope enclosing it, and its index among the parent's named
// children (comments excluded).
type Path struct {
	Node   *sitter.Node
	Parent *Path
	Scope  *Scope
	Index  int

	unit *Unit
}

// Unit returns the compilation unit the path belongs to.
func (p *Path) Unit() *Unit {
	return p.unit
}

// Type returns the node type.
func (p *Path) Type() string {
	return p.Node.Type()
}

// Text returns the source text of the node.
func (p *Path) Text() string {
	return p.unit.Text(p.Node)
}

// Is reports whether the node has one of the given types.
func (p *Path) Is(types ...string) bool {
	if p == nil {
		return false
	}
	t := p.Node.Type()
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

// Field returns the path of the child stored under a grammar field, or nil.
func (p *Path) Field(name string) *Path {
	c := p.Node.ChildByFieldName(name)
	if c == nil {
		return nil
	}
	return p.unit.pathFor(c, p, -1)
}

// Children returns the paths of the node's named children, comments excluded.
func (p *Path) Children() []*Path {
	kids := namedChildren(p.Node)
	out := make([]*Path, len(kids))
	for i, c := range kids {
		out[i] = p.unit.pathFor(c, p, i)
	}
	return out
}

// HasToken reports whether one of the node's anonymous children is tok, as
// in the "const" of a for-of head or the "in" of a binary expression.
func (p *Path) HasToken(tok string) bool {
	for i := 0; i < int(p.Node.ChildCount()); i++ {
		c := p.Node.Child(i)
		if c != nil && !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}

// Unparen strips enclosing parenthesized expressions.
func (p *Path) Unparen() *Path {
	for p != nil && p.Type() == "parenthesized_expression" {
		kids := p.Children()
		if len(kids) != 1 {
			return p
		}
		p = kids[0]
	}
	return p
}

// Same reports whether p and o denote the same node.
func (p *Path) Same(o *Path) bool {
	if p == nil || o == nil {
		return false
	}
	return keyOf(p.Node) == keyOf(o.Node)
}

// Line returns the 1-based line of the node start.
func (p *Path) Line() int {
	return int(p.Node.StartPoint().Row) + 1
}

// Col returns the 1-based column of the node start.
func (p *Path) Col() int {
	return int(p.Node.StartPoint().Column) + 1
}

// Replace rewrites the node's source range with text. The node counts as
// removed from the tree afterwards and its subtree is not traversed.
func (p *Path) Replace(text string) {
	p.unit.replace(p.Node, text)
}

// Remove deletes the node's source range.
func (p *Path) Remove() {
	p.unit.replace(p.Node, "")
}

// Removed reports whether the node, or any ancestor on the path, was replaced
// or removed.
func (p *Path) Removed() bool {
	for q := p; q != nil; q = q.Parent {
		if p.unit.removed[keyOf(q.Node)] {
			return true
		}
	}
	return false
}

// Walk visits every named node of the unit depth-first in source order. fn
// returning false skips the node's children, as does replacing or removing
// the node during the callback.
func (u *Unit) Walk(fn func(p *Path) bool) {
	u.walk(u.Root(), fn)
}

func (u *Unit) walk(p *Path, fn func(p *Path) bool) {
	if !fn(p) || u.removed[keyOf(p.Node)] {
		return
	}
	count := int(p.Node.NamedChildCount())
	index := 0
	for i := 0; i < count; i++ {
		c := p.Node.NamedChild(i)
		if c == nil {
			continue
		}
		cp := u.pathFor(c, p, index)
		if c.Type() != "comment" {
			index++
		}
		u.walk(cp, fn)
	}
}
