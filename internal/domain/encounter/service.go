package encounter

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

type Service struct {
	repo    Repository
	persons person.Repository
	tr      Translator
}

func NewService(repo Repository, persons person.Repository) *Service {
	return &Service{repo: repo, persons: persons}
}

func (s *Service) GetByUUID(ctx context.Context, id string) (*fhir.Encounter, error) {
	e, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.tr.ToFHIR(e), nil
}

// History returns the provenance of the encounter, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]*fhir.Provenance, error) {
	e, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	return Provenances(e), nil
}

func (s *Service) Save(ctx context.Context, r *fhir.Encounter) (*fhir.Encounter, error) {
	if err := fhir.Validate(r); err != nil {
		return nil, err
	}
	e := s.tr.ToInternal(nil, r)
	if e.UUID == "" {
		e.UUID = uuid.New().String()
	}
	if err := s.resolve(ctx, e); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	return s.GetByUUID(ctx, e.UUID)
}

func (s *Service) Update(ctx context.Context, r *fhir.Encounter, id string) (*fhir.Encounter, error) {
	if r.ID == "" {
		return nil, fhir.ErrMissingID
	}
	if r.ID != id {
		return nil, fhir.ErrIDMismatch
	}
	if err := fhir.Validate(r); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	e := s.tr.ToInternal(existing, r)
	if err := s.resolve(ctx, e); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return s.GetByUUID(ctx, id)
}

func (s *Service) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*fhir.Encounter, int, error) {
	plan := BuildPlan(params)
	zerolog.Ctx(ctx).Debug().Int("joins", len(plan.Joins())).Int("predicates", len(plan.Predicates())).Msg("encounter search plan built")

	found, total, err := s.repo.Search(ctx, plan, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*fhir.Encounter, 0, len(found))
	for _, e := range found {
		out = append(out, s.tr.ToFHIR(e))
	}
	return out, total, nil
}

// resolve replaces the patient, location and provider references of e with
// stored records.
func (s *Service) resolve(ctx context.Context, e *Encounter) error {
	if e.EncounterDatetime.IsZero() {
		return &fhir.ValidationError{Err: errors.New("period.start is required")}
	}
	if e.Patient == nil {
		return &fhir.ValidationError{Err: errors.New("subject reference is required")}
	}
	if e.Patient.PersonID == 0 {
		p, err := s.persons.GetByUUID(ctx, e.Patient.UUID)
		if err != nil {
			return unknown("patient", e.Patient.UUID, err)
		}
		e.Patient = p
	}
	if e.Location != nil && e.Location.LocationID == 0 {
		l, err := s.repo.GetLocation(ctx, e.Location.UUID)
		if err != nil {
			return unknown("location", e.Location.UUID, err)
		}
		e.Location = l
	}
	for i := range e.Participants {
		p := &e.Participants[i]
		if p.Provider.ProviderID != 0 {
			continue
		}
		prov, err := s.repo.GetProvider(ctx, p.Provider.UUID)
		if err != nil {
			return unknown("practitioner", p.Provider.UUID, err)
		}
		p.Provider = prov
	}
	return nil
}

func unknown(kind, id string, err error) error {
	if errors.Is(err, fhir.ErrNotFound) {
		return &fhir.ValidationError{Err: fmt.Errorf("unknown %s %s", kind, id)}
	}
	return err
}
