package concept

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/fhirbridge/internal/platform/db"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

type conceptRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &conceptRepoPG{pool: pool}
}

func (r *conceptRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *conceptRepoPG) GetByUUID(ctx context.Context, uuid string) (*Concept, error) {
	return r.getOne(ctx, `SELECT concept_id FROM concept WHERE uuid = $1`, uuid)
}

func (r *conceptRepoPG) GetByMapping(ctx context.Context, system, code string) (*Concept, error) {
	return r.getOne(ctx, `
		SELECT cm.concept_id FROM concept_reference_map cm
		JOIN concept_reference_term crt ON crt.concept_reference_term_id = cm.concept_reference_term_id
		JOIN concept_reference_source crs ON crs.concept_source_id = crt.concept_source_id
		WHERE crs.uri = $1 AND crt.code = $2
		ORDER BY cm.concept_id LIMIT 1`, system, code)
}

func (r *conceptRepoPG) getOne(ctx context.Context, sql string, args ...interface{}) (*Concept, error) {
	var id int
	if err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fhir.ErrNotFound
		}
		return nil, fmt.Errorf("find concept: %w", err)
	}
	found, err := r.GetByIDs(ctx, []int{id})
	if err != nil {
		return nil, err
	}
	c, ok := found[id]
	if !ok {
		return nil, fhir.ErrNotFound
	}
	return c, nil
}

// GetByIDs loads concepts with their mappings in two queries.
func (r *conceptRepoPG) GetByIDs(ctx context.Context, ids []int) (map[int]*Concept, error) {
	out := make(map[int]*Concept, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT concept_id, uuid, name FROM concept WHERE concept_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query concepts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c Concept
		if err := rows.Scan(&c.ConceptID, &c.UUID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}
		out[c.ConceptID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mrows, err := r.conn(ctx).Query(ctx, `
		SELECT cm.concept_id, crs.uri, crs.name, crt.code
		FROM concept_reference_map cm
		JOIN concept_reference_term crt ON crt.concept_reference_term_id = cm.concept_reference_term_id
		JOIN concept_reference_source crs ON crs.concept_source_id = crt.concept_source_id
		WHERE cm.concept_id = ANY($1)
		ORDER BY cm.concept_map_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("query concept mappings: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var id int
		var m Mapping
		if err := mrows.Scan(&id, &m.SourceURI, &m.SourceName, &m.Code); err != nil {
			return nil, fmt.Errorf("scan concept mapping: %w", err)
		}
		if c, ok := out[id]; ok {
			c.Mappings = append(c.Mappings, m)
		}
	}
	return out, mrows.Err()
}
