package relatedperson

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

// Service serves RelatedPerson resources backed by relationships.
type Service struct {
	repo    Repository
	persons person.Repository
	tr      Translator
}

func NewService(repo Repository, persons person.Repository) *Service {
	return &Service{repo: repo, persons: persons}
}

func (s *Service) GetByUUID(ctx context.Context, id string) (*fhir.RelatedPerson, error) {
	rel, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.tr.ToFHIR(rel), nil
}

func (s *Service) Save(ctx context.Context, rp *fhir.RelatedPerson) (*fhir.RelatedPerson, error) {
	if err := fhir.Validate(rp); err != nil {
		return nil, err
	}
	rel := s.tr.ToInternal(nil, rp)
	if rel.UUID == "" {
		rel.UUID = uuid.New().String()
	}
	if err := s.resolvePersons(ctx, rel); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rel); err != nil {
		return nil, err
	}
	return s.GetByUUID(ctx, rel.UUID)
}

func (s *Service) Update(ctx context.Context, rp *fhir.RelatedPerson, id string) (*fhir.RelatedPerson, error) {
	if rp.ID == "" {
		return nil, fhir.ErrMissingID
	}
	if rp.ID != id {
		return nil, fhir.ErrIDMismatch
	}
	if err := fhir.Validate(rp); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	rel := s.tr.ToInternal(existing, rp)
	if err := s.resolvePersons(ctx, rel); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, rel); err != nil {
		return nil, err
	}
	return s.GetByUUID(ctx, id)
}

func (s *Service) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*fhir.RelatedPerson, int, error) {
	plan := BuildPlan(params)
	zerolog.Ctx(ctx).Debug().Int("joins", len(plan.Joins())).Int("predicates", len(plan.Predicates())).Msg("related person search plan built")

	rels, total, err := s.repo.Search(ctx, plan, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*fhir.RelatedPerson, 0, len(rels))
	for _, rel := range rels {
		out = append(out, s.tr.ToFHIR(rel))
	}
	return out, total, nil
}

// resolvePersons replaces the person references of rel with stored persons.
func (s *Service) resolvePersons(ctx context.Context, rel *Relationship) error {
	if rel.PersonA == nil {
		return &fhir.ValidationError{Err: errors.New("identifier must name the related person as Person/<id>")}
	}
	if rel.PersonB == nil {
		return &fhir.ValidationError{Err: errors.New("patient reference is required")}
	}
	a, err := s.lookup(ctx, rel.PersonA)
	if err != nil {
		return err
	}
	b, err := s.lookup(ctx, rel.PersonB)
	if err != nil {
		return err
	}
	rel.PersonA, rel.PersonB = a, b
	return nil
}

func (s *Service) lookup(ctx context.Context, ref *person.Person) (*person.Person, error) {
	if ref.PersonID != 0 {
		return ref, nil
	}
	p, err := s.persons.GetByUUID(ctx, ref.UUID)
	if errors.Is(err, fhir.ErrNotFound) {
		return nil, &fhir.ValidationError{Err: fmt.Errorf("unknown person %s", ref.UUID)}
	}
	return p, err
}
