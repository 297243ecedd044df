package query

import (
	"fmt"
	"strings"
)

// Compile renders the data query for plan. cols is the select list and must
// contain every ordering column. A limit <= 0 returns all rows.
func Compile(p *Plan, cols string, limit, offset int) (string, []interface{}) {
	c := &compiler{}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT DISTINCT %s FROM %s %s", cols, p.Table, p.Alias)
	c.writeJoins(&b, p)
	c.writeWhere(&b, p)
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(p.Ordering(), ", "))
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %s OFFSET %s", c.arg(limit), c.arg(offset))
	}
	return b.String(), c.args
}

// CompileCount renders the query that counts distinct root rows matched by plan.
func CompileCount(p *Plan) (string, []interface{}) {
	c := &compiler{}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT COUNT(DISTINCT %s) FROM %s %s", p.Col(p.Key), p.Table, p.Alias)
	c.writeJoins(&b, p)
	c.writeWhere(&b, p)
	return b.String(), c.args
}

// Where renders a single predicate with placeholders starting at $1.
func Where(pred Predicate) (string, []interface{}) {
	c := &compiler{}
	return c.predicate(pred), c.args
}

type compiler struct {
	args []interface{}
}

func (c *compiler) arg(v interface{}) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", len(c.args))
}

func (c *compiler) writeJoins(b *strings.Builder, p *Plan) {
	for _, j := range p.joins {
		kind := "JOIN"
		if j.Left {
			kind = "LEFT JOIN"
		}
		fmt.Fprintf(b, " %s %s %s ON %s", kind, j.Table, j.Alias, j.On)
	}
}

func (c *compiler) writeWhere(b *strings.Builder, p *Plan) {
	if len(p.where) == 0 {
		return
	}
	b.WriteString(" WHERE ")
	b.WriteString(c.predicate(And(p.where)))
}

func (c *compiler) predicate(pred Predicate) string {
	switch v := pred.(type) {
	case nil:
		return "TRUE"
	case Eq:
		if v.Value == nil {
			return v.Column + " IS NULL"
		}
		return fmt.Sprintf("%s = %s", v.Column, c.arg(v.Value))
	case In:
		if len(v.Values) == 0 {
			return "FALSE"
		}
		ph := make([]string, len(v.Values))
		for i, val := range v.Values {
			ph[i] = c.arg(val)
		}
		return fmt.Sprintf("%s IN (%s)", v.Column, strings.Join(ph, ", "))
	case Ge:
		return fmt.Sprintf("%s >= %s", v.Column, c.arg(v.Value))
	case Le:
		return fmt.Sprintf("%s <= %s", v.Column, c.arg(v.Value))
	case ILike:
		return fmt.Sprintf("%s ILIKE %s", v.Column, c.arg(v.Pattern))
	case IsNull:
		if v.Not {
			return v.Column + " IS NOT NULL"
		}
		return v.Column + " IS NULL"
	case And:
		return c.group(v, " AND ", "TRUE")
	case Or:
		return c.group(v, " OR ", "FALSE")
	default:
		panic(fmt.Sprintf("query: unsupported predicate %T", pred))
	}
}

func (c *compiler) group(preds []Predicate, sep, empty string) string {
	if len(preds) == 0 {
		return empty
	}
	if len(preds) == 1 {
		return c.predicate(preds[0])
	}
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = c.predicate(p)
	}
	return "(" + strings.Join(parts, sep) + ")"
}
