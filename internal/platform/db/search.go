package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/ehr/fhirbridge/internal/platform/query"
)

// SearchIDs runs plan and returns one page of root keys in plan order
// together with the total number of matches.
func SearchIDs(ctx context.Context, q Querier, p *query.Plan, limit, offset int) ([]int, int, error) {
	countSQL, countArgs := query.CompileCount(p)
	var total int
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", p.Table, err)
	}
	if total == 0 || offset >= total {
		return nil, total, nil
	}

	sql, args := query.Compile(p, strings.Join(p.Ordering(), ", "), limit, offset)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search %s: %w", p.Table, err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", p.Table, err)
		}
		id, ok := asInt(vals[len(vals)-1])
		if !ok {
			return nil, 0, fmt.Errorf("scan %s: unexpected key type %T", p.Table, vals[len(vals)-1])
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate %s: %w", p.Table, err)
	}
	return ids, total, nil
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

// Ordered returns the values of byID in the order of ids, skipping ids
// that have no value.
func Ordered[T any](ids []int, byID map[int]T) []T {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out
}
