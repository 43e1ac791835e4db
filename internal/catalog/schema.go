package catalog

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnknownAttribute is returned by AttrIndex when a name isn't part of
// the schema.
var ErrUnknownAttribute = errors.New("catalog: unknown attribute")

// TableSchema is an ordered list of attributes bound to a table name.
type TableSchema struct {
	Name   string
	Attrs  []Attribute
	IsTemp bool
}

// AttrIndex returns the position of name within Attrs, or an error.
func (s *TableSchema) AttrIndex(name string) (int, error) {
	for i, a := range s.Attrs {
		if a.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, s.Name, name)
}

// AttrNames returns the attribute names in declaration order.
func (s *TableSchema) AttrNames() []string {
	names := make([]string, len(s.Attrs))
	for i, a := range s.Attrs {
		names[i] = a.Name
	}
	return names
}

// Print renders the schema the way the host CLI displays it before a join.
func (s *TableSchema) Print(w io.Writer) {
	suffix := ""
	if s.IsTemp {
		suffix = "(Temp)"
	}
	fmt.Fprintf(w, "table name : %s%s\n", s.Name, suffix)
	for _, a := range s.Attrs {
		fmt.Fprintln(w, a.String())
	}
}

// SharedAttribute returns the name of the single attribute present in both
// schemas, used as the equi-join key. Join operators only support exactly
// one shared attribute between their two inputs.
func SharedAttribute(left, right *TableSchema) (string, error) {
	for _, l := range left.Attrs {
		for _, r := range right.Attrs {
			if l.Name == r.Name {
				return l.Name, nil
			}
		}
	}
	return "", fmt.Errorf("catalog: no shared attribute between %q and %q", left.Name, right.Name)
}

// ResultSchema concatenates left's attributes with right's, dropping
// right's copy of the join key, and names the result table "T".
func ResultSchema(left, right *TableSchema) (*TableSchema, error) {
	joinKey, err := SharedAttribute(left, right)
	if err != nil {
		return nil, err
	}
	attrs := make([]Attribute, 0, len(left.Attrs)+len(right.Attrs))
	attrs = append(attrs, left.Attrs...)
	for _, a := range right.Attrs {
		if a.Name == joinKey {
			continue
		}
		attrs = append(attrs, a)
	}
	return &TableSchema{Name: "T", Attrs: attrs, IsTemp: true}, nil
}

// EncodeTuple joins attribute values with single spaces, the on-disk tuple
// encoding this core uses.
func EncodeTuple(values []string) string {
	return strings.Join(values, " ")
}

// DecodeTuple splits a stored tuple back into its attribute values.
func DecodeTuple(tuple string) []string {
	if tuple == "" {
		return nil
	}
	return strings.Fields(tuple)
}
