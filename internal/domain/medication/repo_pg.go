package medication

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/fhirbridge/internal/domain/concept"
	"github.com/ehr/fhirbridge/internal/platform/db"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/query"
)

type drugRepoPG struct {
	pool     *pgxpool.Pool
	concepts concept.Repository
}

func NewRepoPG(pool *pgxpool.Pool, concepts concept.Repository) Repository {
	return &drugRepoPG{pool: pool, concepts: concepts}
}

func (r *drugRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *drugRepoPG) GetByUUID(ctx context.Context, id string) (*Drug, error) {
	var drugID int
	err := r.conn(ctx).QueryRow(ctx, `SELECT drug_id FROM drug WHERE uuid = $1`, id).Scan(&drugID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fhir.ErrNotFound
		}
		return nil, fmt.Errorf("find drug: %w", err)
	}
	found, err := r.getByIDs(ctx, []int{drugID})
	if err != nil {
		return nil, err
	}
	d, ok := found[drugID]
	if !ok {
		return nil, fhir.ErrNotFound
	}
	return d, nil
}

func (r *drugRepoPG) Create(ctx context.Context, d *Drug) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO drug (uuid, name, concept_id, dosage_form, strength, retired, creator)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING drug_id, date_created`,
			d.UUID, nullable(d.Name), conceptID(d.Concept), conceptID(d.DosageForm),
			nullable(d.Strength), d.Retired, nullable(d.Creator),
		).Scan(&d.DrugID, &d.DateCreated)
		if err != nil {
			return fmt.Errorf("insert drug: %w", err)
		}
		return r.insertIngredients(ctx, d)
	})
}

func (r *drugRepoPG) Update(ctx context.Context, d *Drug) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		tag, err := r.conn(ctx).Exec(ctx, `
			UPDATE drug SET name = $2, concept_id = $3, dosage_form = $4, strength = $5, retired = $6,
				changed_by = $7, date_changed = NOW()
			WHERE drug_id = $1`,
			d.DrugID, nullable(d.Name), conceptID(d.Concept), conceptID(d.DosageForm),
			nullable(d.Strength), d.Retired, nullable(d.ChangedBy))
		if err != nil {
			return fmt.Errorf("update drug: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fhir.ErrNotFound
		}
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM drug_ingredient WHERE drug_id = $1`, d.DrugID); err != nil {
			return fmt.Errorf("clear drug ingredients: %w", err)
		}
		return r.insertIngredients(ctx, d)
	})
}

func (r *drugRepoPG) insertIngredients(ctx context.Context, d *Drug) error {
	for i := range d.Ingredients {
		in := &d.Ingredients[i]
		if in.UUID == "" {
			in.UUID = uuid.New().String()
		}
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO drug_ingredient (uuid, drug_id, ingredient_id, strength) VALUES ($1, $2, $3, $4)`,
			in.UUID, d.DrugID, in.Ingredient.ConceptID, nullable(in.Strength))
		if err != nil {
			return fmt.Errorf("insert drug ingredient: %w", err)
		}
	}
	return nil
}

func (r *drugRepoPG) Search(ctx context.Context, p *query.Plan, limit, offset int) ([]*Drug, int, error) {
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

type drugRefs struct {
	concept    *int
	dosageForm *int
}

// getByIDs loads drugs with their ingredients and concepts.
func (r *drugRepoPG) getByIDs(ctx context.Context, ids []int) (map[int]*Drug, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT drug_id, uuid, COALESCE(name, ''), concept_id, dosage_form, COALESCE(strength, ''), retired,
			COALESCE(creator, ''), date_created, COALESCE(changed_by, ''), date_changed
		FROM drug WHERE drug_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query drugs: %w", err)
	}
	defer rows.Close()

	out := make(map[int]*Drug, len(ids))
	refs := map[int]drugRefs{}
	var conceptIDs []int
	for rows.Next() {
		var d Drug
		var ref drugRefs
		if err := rows.Scan(&d.DrugID, &d.UUID, &d.Name, &ref.concept, &ref.dosageForm, &d.Strength, &d.Retired,
			&d.Creator, &d.DateCreated, &d.ChangedBy, &d.DateChanged); err != nil {
			return nil, fmt.Errorf("scan drug: %w", err)
		}
		out[d.DrugID] = &d
		refs[d.DrugID] = ref
		for _, c := range []*int{ref.concept, ref.dosageForm} {
			if c != nil {
				conceptIDs = append(conceptIDs, *c)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ingredientConcepts, err := r.loadIngredients(ctx, ids, out)
	if err != nil {
		return nil, err
	}
	conceptIDs = append(conceptIDs, ingredientConcepts...)

	concepts, err := r.concepts.GetByIDs(ctx, conceptIDs)
	if err != nil {
		return nil, err
	}
	for id, d := range out {
		ref := refs[id]
		if ref.concept != nil {
			d.Concept = concepts[*ref.concept]
		}
		if ref.dosageForm != nil {
			d.DosageForm = concepts[*ref.dosageForm]
		}
		for i := range d.Ingredients {
			d.Ingredients[i].Ingredient = concepts[d.Ingredients[i].Ingredient.ConceptID]
		}
	}
	return out, nil
}

// loadIngredients attaches ingredients carrying concept id placeholders and
// returns the concept ids they reference.
func (r *drugRepoPG) loadIngredients(ctx context.Context, ids []int, out map[int]*Drug) ([]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT drug_id, uuid, ingredient_id, COALESCE(strength, '')
		FROM drug_ingredient WHERE drug_id = ANY($1)
		ORDER BY uuid`, ids)
	if err != nil {
		return nil, fmt.Errorf("query drug ingredients: %w", err)
	}
	defer rows.Close()
	var conceptIDs []int
	for rows.Next() {
		var drugID, ingredientID int
		var in Ingredient
		if err := rows.Scan(&drugID, &in.UUID, &ingredientID, &in.Strength); err != nil {
			return nil, fmt.Errorf("scan drug ingredient: %w", err)
		}
		in.Ingredient = &concept.Concept{ConceptID: ingredientID}
		conceptIDs = append(conceptIDs, ingredientID)
		if d, ok := out[drugID]; ok {
			d.Ingredients = append(d.Ingredients, in)
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
