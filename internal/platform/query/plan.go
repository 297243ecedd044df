package query

import "fmt"

// Join attaches another table to a plan under an alias. On is a condition
// over already known aliases, e.g. "c.concept_id = al.coded_allergen".
type Join struct {
	Table string
	Alias string
	On    string
	Left  bool
}

// On formats an equality join condition between two qualified columns.
func On(left, right string) string {
	return fmt.Sprintf("%s = %s", left, right)
}

// Plan describes a search over one root table: the joins it needs, the
// predicates that constrain it and a stable ordering. A Plan is built for a
// single search call and is not shared.
type Plan struct {
	Table string
	Alias string
	Key   string

	joins []Join
	where []Predicate
	order []string
}

// New creates a plan rooted at table under alias. key is the primary key
// column of the root and is used for counting and as the final tie-breaker
// in ordering.
func New(table, alias, key string) *Plan {
	return &Plan{Table: table, Alias: alias, Key: key}
}

// Col qualifies a root column with the root alias.
func (p *Plan) Col(column string) string {
	return p.Alias + "." + column
}

// HasAlias reports whether alias is already bound in the plan.
func (p *Plan) HasAlias(alias string) bool {
	if alias == p.Alias {
		return true
	}
	for _, j := range p.joins {
		if j.Alias == alias {
			return true
		}
	}
	return false
}

// Join adds j unless its alias is already bound, and returns the alias.
// Callers reach the same association through the same alias, so a join path
// is established at most once per plan.
func (p *Plan) Join(j Join) string {
	if p.HasAlias(j.Alias) {
		return j.Alias
	}
	p.joins = append(p.joins, j)
	return j.Alias
}

// Where adds a constraint. A nil predicate leaves the plan unchanged.
func (p *Plan) Where(pred Predicate) {
	if pred == nil {
		return
	}
	p.where = append(p.where, pred)
}

// OrderBy sets the ordering columns. The root key is always appended as the
// last ordering column so that pages are stable.
func (p *Plan) OrderBy(columns ...string) {
	p.order = append([]string(nil), columns...)
}

// Joins returns the joins in the order they were added.
func (p *Plan) Joins() []Join {
	return append([]Join(nil), p.joins...)
}

// Predicates returns the top-level constraints.
func (p *Plan) Predicates() []Predicate {
	return append([]Predicate(nil), p.where...)
}

// Constrained reports whether any predicate has been attached.
func (p *Plan) Constrained() bool {
	return len(p.where) > 0
}

// Ordering returns the ordering columns followed by the root key.
func (p *Plan) Ordering() []string {
	key := p.Col(p.Key)
	out := make([]string, 0, len(p.order)+1)
	for _, c := range p.order {
		if c == key {
			continue
		}
		out = append(out, c)
	}
	return append(out, key)
}
