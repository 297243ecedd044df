// Package query holds the predicate tree used to describe searches over the
// relational schema, independent of how they are executed.
//
// Predicates are plain values. Builders in the domain packages compose them
// with AllOf/AnyOf and attach them to a Plan, which the repositories compile
// to SQL.
package query

import "strings"

// Predicate is one node of a WHERE clause tree.
type Predicate interface {
	predicate()
}

// Eq matches rows whose column equals Value.
type Eq struct {
	Column string
	Value  interface{}
}

// In matches rows whose column is one of Values. An empty In matches nothing.
type In struct {
	Column string
	Values []interface{}
}

// Ge matches rows whose column is greater than or equal to Value.
type Ge struct {
	Column string
	Value  interface{}
}

// Le matches rows whose column is less than or equal to Value.
type Le struct {
	Column string
	Value  interface{}
}

// ILike is a case-insensitive pattern match. Pattern is passed through as-is.
type ILike struct {
	Column  string
	Pattern string
}

// IsNull matches rows whose column is NULL (or NOT NULL when Not is set).
type IsNull struct {
	Column string
	Not    bool
}

// And is a conjunction. An empty And matches everything.
type And []Predicate

// Or is a disjunction. An empty Or matches nothing.
type Or []Predicate

func (Eq) predicate()     {}
func (In) predicate()     {}
func (Ge) predicate()     {}
func (Le) predicate()     {}
func (ILike) predicate()  {}
func (IsNull) predicate() {}
func (And) predicate()    {}
func (Or) predicate()     {}

// Equals builds an Eq predicate.
func Equals(column string, value interface{}) Predicate {
	return Eq{Column: column, Value: value}
}

// InStrings builds an In predicate over string values.
func InStrings(column string, values []string) Predicate {
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return In{Column: column, Values: vals}
}

// InInts builds an In predicate over integer values.
func InInts(column string, values []int) Predicate {
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return In{Column: column, Values: vals}
}

// StartsWith builds a case-insensitive prefix match, escaping LIKE wildcards in value.
func StartsWith(column, value string) Predicate {
	return ILike{Column: column, Pattern: escapeLike(value) + "%"}
}

// AllOf conjoins the non-nil predicates. It returns nil when none are left
// and the single predicate itself when only one is.
func AllOf(preds ...Predicate) Predicate {
	out := compact(preds)
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return And(out)
}

// AnyOf disjoins the non-nil predicates. It returns nil when none are left,
// meaning "no constraint", not "match nothing".
func AnyOf(preds ...Predicate) Predicate {
	out := compact(preds)
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return Or(out)
}

func compact(preds []Predicate) []Predicate {
	out := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p == nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
