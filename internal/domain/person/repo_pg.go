package person

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/fhirbridge/internal/platform/db"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/query"
)

type personRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &personRepoPG{pool: pool}
}

func (r *personRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *personRepoPG) GetByUUID(ctx context.Context, uuid string) (*Person, error) {
	var id int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT person_id FROM person WHERE uuid = $1 AND voided = false`, uuid).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fhir.ErrNotFound
		}
		return nil, fmt.Errorf("find person: %w", err)
	}
	found, err := r.GetByIDs(ctx, []int{id})
	if err != nil {
		return nil, err
	}
	p, ok := found[id]
	if !ok {
		return nil, fhir.ErrNotFound
	}
	return p, nil
}

func (r *personRepoPG) Search(ctx context.Context, p *query.Plan, limit, offset int) ([]*Person, int, error) {
	ids, total, err := db.SearchIDs(ctx, r.conn(ctx), p, limit, offset)
	if err != nil || len(ids) == 0 {
		return nil, total, err
	}
	byID, err := r.GetByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	return db.Ordered(ids, byID), total, nil
}

// GetByIDs loads persons with their non-voided names, addresses and
// telephone numbers.
func (r *personRepoPG) GetByIDs(ctx context.Context, ids []int) (map[int]*Person, error) {
	out := make(map[int]*Person, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT person_id, uuid, COALESCE(gender, ''), birthdate, voided,
			COALESCE(creator, ''), date_created, COALESCE(changed_by, ''), date_changed,
			EXISTS(SELECT 1 FROM patient pt WHERE pt.patient_id = person.person_id AND pt.voided = false)
		FROM person WHERE person_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.PersonID, &p.UUID, &p.Gender, &p.Birthdate, &p.Voided,
			&p.Creator, &p.DateCreated, &p.ChangedBy, &p.DateChanged, &p.IsPatient); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out[p.PersonID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadNames(ctx, ids, out); err != nil {
		return nil, err
	}
	if err := r.loadAddresses(ctx, ids, out); err != nil {
		return nil, err
	}
	if err := r.loadTelecoms(ctx, ids, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *personRepoPG) loadNames(ctx context.Context, ids []int, out map[int]*Person) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT person_id, uuid, preferred, COALESCE(prefix, ''), COALESCE(given_name, ''),
			COALESCE(middle_name, ''), COALESCE(family_name, ''), COALESCE(suffix, '')
		FROM person_name WHERE person_id = ANY($1) AND voided = false
		ORDER BY person_name_id`, ids)
	if err != nil {
		return fmt.Errorf("query person names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var n Name
		if err := rows.Scan(&id, &n.UUID, &n.Preferred, &n.Prefix, &n.GivenName,
			&n.MiddleName, &n.FamilyName, &n.Suffix); err != nil {
			return fmt.Errorf("scan person name: %w", err)
		}
		if p, ok := out[id]; ok {
			p.Names = append(p.Names, n)
		}
	}
	return rows.Err()
}

func (r *personRepoPG) loadAddresses(ctx context.Context, ids []int, out map[int]*Person) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT person_id, uuid, preferred, COALESCE(address1, ''), COALESCE(address2, ''),
			COALESCE(city_village, ''), COALESCE(state_province, ''),
			COALESCE(country, ''), COALESCE(postal_code, '')
		FROM person_address WHERE person_id = ANY($1) AND voided = false
		ORDER BY person_address_id`, ids)
	if err != nil {
		return fmt.Errorf("query person addresses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var a Address
		if err := rows.Scan(&id, &a.UUID, &a.Preferred, &a.Address1, &a.Address2,
			&a.CityVillage, &a.StateProvince, &a.Country, &a.PostalCode); err != nil {
			return fmt.Errorf("scan person address: %w", err)
		}
		if p, ok := out[id]; ok {
			p.Addresses = append(p.Addresses, a)
		}
	}
	return rows.Err()
}

func (r *personRepoPG) loadTelecoms(ctx context.Context, ids []int, out map[int]*Person) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT pa.person_id, pa.uuid, pa.value
		FROM person_attribute pa
		JOIN person_attribute_type pat ON pat.person_attribute_type_id = pa.person_attribute_type_id
		WHERE pa.person_id = ANY($1) AND pa.voided = false AND pat.uuid = $2
		ORDER BY pa.person_attribute_id`, ids, TelephoneAttributeType)
	if err != nil {
		return fmt.Errorf("query person telecoms: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var tc Telecom
		if err := rows.Scan(&id, &tc.UUID, &tc.Value); err != nil {
			return fmt.Errorf("scan person telecom: %w", err)
		}
		if p, ok := out[id]; ok {
			p.Telecoms = append(p.Telecoms, tc)
		}
	}
	return rows.Err()
}
