package catalog

import (
	"fmt"

	"github.com/orneryd/huginn/pkg/pattern"
)

// Term produces a concrete property value from a binding. Terms appear in
// action templates and in violation offender, message, and detail fields.
type Term interface {
	Resolve(b *pattern.Binding) any
}

// Lit is a literal value.
type Lit struct {
	Value any
}

func (l Lit) Resolve(*pattern.Binding) any { return l.Value }

// Ref reads a bound variable's property. With an empty Property it yields
// the bound node's or edge's ID, or an aggregate value of that name.
type Ref struct {
	Var      string
	Property string
}

func (r Ref) Resolve(b *pattern.Binding) any {
	v, ok := b.Resolve(r.Var, r.Property)
	if !ok {
		return nil
	}
	return v
}

// Text formats resolved arguments into a string.
type Text struct {
	Format string
	Args   []Term
}

func (t Text) Resolve(b *pattern.Binding) any {
	args := make([]any, len(t.Args))
	for i, arg := range t.Args {
		args[i] = arg.Resolve(b)
	}
	return fmt.Sprintf(t.Format, args...)
}

// When picks Then or Else based on a comparison against a bound property.
type When struct {
	Var      string
	Property string
	Op       pattern.Op
	Value    any
	Then     Term
	Else     Term
}

func (w When) Resolve(b *pattern.Binding) any {
	got, ok := b.Resolve(w.Var, w.Property)
	if ok && pattern.Compare(got, w.Op, w.Value) {
		return w.Then.Resolve(b)
	}
	if w.Else == nil {
		return nil
	}
	return w.Else.Resolve(b)
}
