package encounter

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/platform/db"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/query"
)

type encounterRepoPG struct {
	pool    *pgxpool.Pool
	persons person.Repository
}

func NewRepoPG(pool *pgxpool.Pool, persons person.Repository) Repository {
	return &encounterRepoPG{pool: pool, persons: persons}
}

func (r *encounterRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *encounterRepoPG) GetByUUID(ctx context.Context, id string) (*Encounter, error) {
	var encounterID int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT encounter_id FROM encounter WHERE uuid = $1 AND voided = false`, id).Scan(&encounterID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fhir.ErrNotFound
		}
		return nil, fmt.Errorf("find encounter: %w", err)
	}
	found, err := r.getByIDs(ctx, []int{encounterID})
	if err != nil {
		return nil, err
	}
	e, ok := found[encounterID]
	if !ok {
		return nil, fhir.ErrNotFound
	}
	return e, nil
}

func (r *encounterRepoPG) Create(ctx context.Context, e *Encounter) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO encounter (uuid, patient_id, location_id, encounter_datetime, creator)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING encounter_id, date_created`,
			e.UUID, e.Patient.PersonID, locationID(e.Location), e.EncounterDatetime, nullable(e.Creator),
		).Scan(&e.EncounterID, &e.DateCreated)
		if err != nil {
			return fmt.Errorf("insert encounter: %w", err)
		}
		return r.insertParticipants(ctx, e)
	})
}

func (r *encounterRepoPG) Update(ctx context.Context, e *Encounter) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		tag, err := r.conn(ctx).Exec(ctx, `
			UPDATE encounter SET patient_id = $2, location_id = $3, encounter_datetime = $4,
				changed_by = $5, date_changed = NOW()
			WHERE encounter_id = $1 AND voided = false`,
			e.EncounterID, e.Patient.PersonID, locationID(e.Location), e.EncounterDatetime, nullable(e.ChangedBy))
		if err != nil {
			return fmt.Errorf("update encounter: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fhir.ErrNotFound
		}
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM encounter_provider WHERE encounter_id = $1`, e.EncounterID); err != nil {
			return fmt.Errorf("clear encounter providers: %w", err)
		}
		return r.insertParticipants(ctx, e)
	})
}

func (r *encounterRepoPG) insertParticipants(ctx context.Context, e *Encounter) error {
	for i := range e.Participants {
		p := &e.Participants[i]
		if p.UUID == "" {
			p.UUID = uuid.New().String()
		}
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO encounter_provider (uuid, encounter_id, provider_id) VALUES ($1, $2, $3)`,
			p.UUID, e.EncounterID, p.Provider.ProviderID)
		if err != nil {
			return fmt.Errorf("insert encounter provider: %w", err)
		}
	}
	return nil
}

func (r *encounterRepoPG) Search(ctx context.Context, p *query.Plan, limit, offset int) ([]*Encounter, int, error) {
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

func (r *encounterRepoPG) GetLocation(ctx context.Context, id string) (*Location, error) {
	var l Location
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT location_id, uuid, name FROM location WHERE uuid = $1`, id).Scan(&l.LocationID, &l.UUID, &l.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fhir.ErrNotFound
		}
		return nil, fmt.Errorf("find location: %w", err)
	}
	return &l, nil
}

func (r *encounterRepoPG) GetProvider(ctx context.Context, id string) (*Provider, error) {
	var p Provider
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT provider_id, uuid, COALESCE(name, ''), COALESCE(identifier, '')
		FROM provider WHERE uuid = $1`, id).Scan(&p.ProviderID, &p.UUID, &p.Name, &p.Identifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fhir.ErrNotFound
		}
		return nil, fmt.Errorf("find provider: %w", err)
	}
	return &p, nil
}

// getByIDs loads encounters with their location, participants and patient.
func (r *encounterRepoPG) getByIDs(ctx context.Context, ids []int) (map[int]*Encounter, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT e.encounter_id, e.uuid, e.patient_id, e.encounter_datetime, e.voided,
			l.location_id, l.uuid, l.name,
			COALESCE(e.creator, ''), e.date_created, COALESCE(e.changed_by, ''), e.date_changed
		FROM encounter e
		LEFT JOIN location l ON l.location_id = e.location_id
		WHERE e.encounter_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query encounters: %w", err)
	}
	defer rows.Close()

	out := make(map[int]*Encounter, len(ids))
	patients := map[int]int{}
	var patientIDs []int
	for rows.Next() {
		var (
			e         Encounter
			patientID int
			locID     *int
			locUUID   *string
			locName   *string
		)
		if err := rows.Scan(&e.EncounterID, &e.UUID, &patientID, &e.EncounterDatetime, &e.Voided,
			&locID, &locUUID, &locName,
			&e.Creator, &e.DateCreated, &e.ChangedBy, &e.DateChanged); err != nil {
			return nil, fmt.Errorf("scan encounter: %w", err)
		}
		if locID != nil {
			e.Location = &Location{LocationID: *locID, UUID: deref(locUUID), Name: deref(locName)}
		}
		out[e.EncounterID] = &e
		patients[e.EncounterID] = patientID
		patientIDs = append(patientIDs, patientID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadParticipants(ctx, ids, out); err != nil {
		return nil, err
	}
	persons, err := r.persons.GetByIDs(ctx, patientIDs)
	if err != nil {
		return nil, err
	}
	for id, e := range out {
		e.Patient = persons[patients[id]]
	}
	return out, nil
}

func (r *encounterRepoPG) loadParticipants(ctx context.Context, ids []int, into map[int]*Encounter) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT ep.encounter_id, ep.uuid, p.provider_id, p.uuid, COALESCE(p.name, ''), COALESCE(p.identifier, '')
		FROM encounter_provider ep
		JOIN provider p ON p.provider_id = ep.provider_id
		WHERE ep.encounter_id = ANY($1) AND ep.voided = false
		ORDER BY ep.encounter_provider_id`, ids)
	if err != nil {
		return fmt.Errorf("query encounter providers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			encounterID int
			part        Participant
			prov        Provider
		)
		if err := rows.Scan(&encounterID, &part.UUID, &prov.ProviderID, &prov.UUID, &prov.Name, &prov.Identifier); err != nil {
			return fmt.Errorf("scan encounter provider: %w", err)
		}
		part.Provider = &prov
		if e, ok := into[encounterID]; ok {
			e.Participants = append(e.Participants, part)
		}
	}
	return rows.Err()
}

func locationID(l *Location) *int {
	if l == nil {
		return nil
	}
	return &l.LocationID
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
