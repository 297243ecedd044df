package relatedperson

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/platform/db"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/query"
)

type relationshipRepoPG struct {
	pool    *pgxpool.Pool
	persons person.Repository
}

func NewRepoPG(pool *pgxpool.Pool, persons person.Repository) Repository {
	return &relationshipRepoPG{pool: pool, persons: persons}
}

func (r *relationshipRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *relationshipRepoPG) GetByUUID(ctx context.Context, uuid string) (*Relationship, error) {
	var id int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT relationship_id FROM relationship WHERE uuid = $1 AND voided = false`, uuid).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fhir.ErrNotFound
		}
		return nil, fmt.Errorf("find relationship: %w", err)
	}
	found, err := r.getByIDs(ctx, []int{id})
	if err != nil {
		return nil, err
	}
	rel, ok := found[id]
	if !ok {
		return nil, fhir.ErrNotFound
	}
	return rel, nil
}

func (r *relationshipRepoPG) Create(ctx context.Context, rel *Relationship) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO relationship (uuid, person_a, person_b, relationship_type, start_date, end_date, creator)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING relationship_id, date_created`,
		rel.UUID, rel.PersonA.PersonID, rel.PersonB.PersonID, nullable(rel.RelationshipType),
		rel.StartDate, rel.EndDate, nullable(rel.Creator),
	).Scan(&rel.RelationshipID, &rel.DateCreated)
	if err != nil {
		return fmt.Errorf("insert relationship: %w", err)
	}
	return nil
}

func (r *relationshipRepoPG) Update(ctx context.Context, rel *Relationship) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE relationship SET person_a = $2, person_b = $3, relationship_type = $4,
			start_date = $5, end_date = $6, changed_by = $7, date_changed = NOW()
		WHERE relationship_id = $1 AND voided = false`,
		rel.RelationshipID, rel.PersonA.PersonID, rel.PersonB.PersonID, nullable(rel.RelationshipType),
		rel.StartDate, rel.EndDate, nullable(rel.ChangedBy))
	if err != nil {
		return fmt.Errorf("update relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fhir.ErrNotFound
	}
	return nil
}

func (r *relationshipRepoPG) Search(ctx context.Context, p *query.Plan, limit, offset int) ([]*Relationship, int, error) {
	ids, total, err := db.SearchIDs(ctx, r.conn(ctx), p, limit, offset)
	if err != nil || len(ids) == 0 {
		return nil, total, err
	}
	byID, err := r.getByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	return db.Ordered(ids, byID), total, nil
}

// getByIDs loads relationships and both of their persons.
func (r *relationshipRepoPG) getByIDs(ctx context.Context, ids []int) (map[int]*Relationship, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT relationship_id, uuid, person_a, person_b, COALESCE(relationship_type, ''),
			start_date, end_date, voided,
			COALESCE(creator, ''), date_created, COALESCE(changed_by, ''), date_changed
		FROM relationship WHERE relationship_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	out := make(map[int]*Relationship, len(ids))
	personA := map[int]int{}
	personB := map[int]int{}
	var personIDs []int
	for rows.Next() {
		var rel Relationship
		var a, b int
		if err := rows.Scan(&rel.RelationshipID, &rel.UUID, &a, &b, &rel.RelationshipType,
			&rel.StartDate, &rel.EndDate, &rel.Voided,
			&rel.Creator, &rel.DateCreated, &rel.ChangedBy, &rel.DateChanged); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		out[rel.RelationshipID] = &rel
		personA[rel.RelationshipID], personB[rel.RelationshipID] = a, b
		personIDs = append(personIDs, a, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	persons, err := r.persons.GetByIDs(ctx, personIDs)
	if err != nil {
		return nil, err
	}
	for id, rel := range out {
		rel.PersonA = persons[personA[id]]
		rel.PersonB = persons[personB[id]]
	}
	return out, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
