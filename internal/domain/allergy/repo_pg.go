package allergy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/fhirbridge/internal/domain/concept"
	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/platform/db"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/query"
)

type allergyRepoPG struct {
	pool     *pgxpool.Pool
	concepts concept.Repository
	persons  person.Repository
}

func NewRepoPG(pool *pgxpool.Pool, concepts concept.Repository, persons person.Repository) Repository {
	return &allergyRepoPG{pool: pool, concepts: concepts, persons: persons}
}

func (r *allergyRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *allergyRepoPG) GetByUUID(ctx context.Context, id string) (*Allergy, error) {
	var allergyID int
	err := r.conn(ctx).QueryRow(ctx, `SELECT allergy_id FROM allergy WHERE uuid = $1`, id).Scan(&allergyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fhir.ErrNotFound
		}
		return nil, fmt.Errorf("find allergy: %w", err)
	}
	found, err := r.getByIDs(ctx, []int{allergyID})
	if err != nil {
		return nil, err
	}
	a, ok := found[allergyID]
	if !ok {
		return nil, fhir.ErrNotFound
	}
	return a, nil
}

func (r *allergyRepoPG) Create(ctx context.Context, a *Allergy) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO allergy (uuid, patient_id, allergen_type, coded_allergen, non_coded_allergen,
				severity_concept_id, comments, voided, creator)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING allergy_id, date_created`,
			a.UUID, a.Patient.PersonID, string(a.Allergen.Type), conceptID(a.Allergen.CodedAllergen),
			nullable(a.Allergen.NonCodedAllergen), conceptID(a.Severity), nullable(a.Comment),
			a.Voided, nullable(a.Creator),
		).Scan(&a.AllergyID, &a.DateCreated)
		if err != nil {
			return fmt.Errorf("insert allergy: %w", err)
		}
		return r.insertReactions(ctx, a)
	})
}

func (r *allergyRepoPG) Update(ctx context.Context, a *Allergy) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		tag, err := r.conn(ctx).Exec(ctx, `
			UPDATE allergy SET patient_id = $2, allergen_type = $3, coded_allergen = $4,
				non_coded_allergen = $5, severity_concept_id = $6, comments = $7, voided = $8,
				changed_by = $9, date_changed = NOW()
			WHERE allergy_id = $1`,
			a.AllergyID, a.Patient.PersonID, string(a.Allergen.Type), conceptID(a.Allergen.CodedAllergen),
			nullable(a.Allergen.NonCodedAllergen), conceptID(a.Severity), nullable(a.Comment),
			a.Voided, nullable(a.ChangedBy))
		if err != nil {
			return fmt.Errorf("update allergy: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fhir.ErrNotFound
		}
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM allergy_reaction WHERE allergy_id = $1`, a.AllergyID); err != nil {
			return fmt.Errorf("clear allergy reactions: %w", err)
		}
		return r.insertReactions(ctx, a)
	})
}

func (r *allergyRepoPG) insertReactions(ctx context.Context, a *Allergy) error {
	for i := range a.Reactions {
		re := &a.Reactions[i]
		if re.UUID == "" {
			re.UUID = uuid.New().String()
		}
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO allergy_reaction (uuid, allergy_id, reaction_concept_id, reaction_non_coded)
			VALUES ($1, $2, $3, $4)`,
			re.UUID, a.AllergyID, conceptID(re.Reaction), nullable(re.NonCodedReaction))
		if err != nil {
			return fmt.Errorf("insert allergy reaction: %w", err)
		}
	}
	return nil
}

func (r *allergyRepoPG) Search(ctx context.Context, p *query.Plan, limit, offset int) ([]*Allergy, int, error) {
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

type allergyRefs struct {
	patient  int
	allergen *int
	severity *int
}

// getByIDs loads allergies with their reactions, concepts and patients.
func (r *allergyRepoPG) getByIDs(ctx context.Context, ids []int) (map[int]*Allergy, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT allergy_id, uuid, patient_id, allergen_type, coded_allergen,
			COALESCE(non_coded_allergen, ''), severity_concept_id, COALESCE(comments, ''), voided,
			COALESCE(creator, ''), date_created, COALESCE(changed_by, ''), date_changed
		FROM allergy WHERE allergy_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query allergies: %w", err)
	}
	defer rows.Close()

	out := make(map[int]*Allergy, len(ids))
	refs := map[int]allergyRefs{}
	var conceptIDs, personIDs []int
	for rows.Next() {
		var a Allergy
		var ref allergyRefs
		var allergenType string
		if err := rows.Scan(&a.AllergyID, &a.UUID, &ref.patient, &allergenType, &ref.allergen,
			&a.Allergen.NonCodedAllergen, &ref.severity, &a.Comment, &a.Voided,
			&a.Creator, &a.DateCreated, &a.ChangedBy, &a.DateChanged); err != nil {
			return nil, fmt.Errorf("scan allergy: %w", err)
		}
		a.Allergen.Type = AllergenType(allergenType)
		out[a.AllergyID] = &a
		refs[a.AllergyID] = ref
		personIDs = append(personIDs, ref.patient)
		for _, c := range []*int{ref.allergen, ref.severity} {
			if c != nil {
				conceptIDs = append(conceptIDs, *c)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reactionConcepts, err := r.loadReactions(ctx, ids, out)
	if err != nil {
		return nil, err
	}
	conceptIDs = append(conceptIDs, reactionConcepts...)

	concepts, err := r.concepts.GetByIDs(ctx, conceptIDs)
	if err != nil {
		return nil, err
	}
	persons, err := r.persons.GetByIDs(ctx, personIDs)
	if err != nil {
		return nil, err
	}
	for id, a := range out {
		ref := refs[id]
		a.Patient = persons[ref.patient]
		if ref.allergen != nil {
			a.Allergen.CodedAllergen = concepts[*ref.allergen]
		}
		if ref.severity != nil {
			a.Severity = concepts[*ref.severity]
		}
		for i := range a.Reactions {
			if a.Reactions[i].Reaction != nil {
				a.Reactions[i].Reaction = concepts[a.Reactions[i].Reaction.ConceptID]
			}
		}
	}
	return out, nil
}

// loadReactions attaches reactions carrying concept id placeholders and
// returns the concept ids they reference.
func (r *allergyRepoPG) loadReactions(ctx context.Context, ids []int, out map[int]*Allergy) ([]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT allergy_id, uuid, reaction_concept_id, COALESCE(reaction_non_coded, '')
		FROM allergy_reaction WHERE allergy_id = ANY($1)
		ORDER BY allergy_reaction_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("query allergy reactions: %w", err)
	}
	defer rows.Close()
	var conceptIDs []int
	for rows.Next() {
		var allergyID int
		var conceptRef *int
		var re Reaction
		if err := rows.Scan(&allergyID, &re.UUID, &conceptRef, &re.NonCodedReaction); err != nil {
			return nil, fmt.Errorf("scan allergy reaction: %w", err)
		}
		if conceptRef != nil {
			re.Reaction = &concept.Concept{ConceptID: *conceptRef}
			conceptIDs = append(conceptIDs, *conceptRef)
		}
		if a, ok := out[allergyID]; ok {
			a.Reactions = append(a.Reactions, re)
		}
	}
	return conceptIDs, rows.Err()
}

func conceptID(c *concept.Concept) *int {
	if c == nil || c.ConceptID == 0 {
		return nil
	}
	return &c.ConceptID
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
