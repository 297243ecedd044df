package medication

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/fhirbridge/internal/domain/concept"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

// Service serves Medication resources backed by drugs.
type Service struct {
	repo     Repository
	concepts concept.Repository
	tr       Translator
}

func NewService(repo Repository, concepts concept.Repository) *Service {
	return &Service{repo: repo, concepts: concepts}
}

func (s *Service) GetByUUID(ctx context.Context, id string) (*fhir.Medication, error) {
	d, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.tr.ToFHIR(d), nil
}

func (s *Service) Save(ctx context.Context, r *fhir.Medication) (*fhir.Medication, error) {
	if err := fhir.Validate(r); err != nil {
		return nil, err
	}
	d := s.tr.ToInternal(nil, r)
	if d.UUID == "" {
		d.UUID = uuid.New().String()
	}
	if err := s.resolve(ctx, d); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	return s.GetByUUID(ctx, d.UUID)
}

func (s *Service) Update(ctx context.Context, r *fhir.Medication, id string) (*fhir.Medication, error) {
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
	d := s.tr.ToInternal(existing, r)
	if err := s.resolve(ctx, d); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}
	return s.GetByUUID(ctx, id)
}

func (s *Service) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*fhir.Medication, int, error) {
	plan := BuildPlan(params)
	zerolog.Ctx(ctx).Debug().Int("joins", len(plan.Joins())).Int("predicates", len(plan.Predicates())).Msg("medication search plan built")

	drugs, total, err := s.repo.Search(ctx, plan, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*fhir.Medication, 0, len(drugs))
	for _, d := range drugs {
		out = append(out, s.tr.ToFHIR(d))
	}
	return out, total, nil
}

// resolve replaces the concept references of d with stored concepts.
func (s *Service) resolve(ctx context.Context, d *Drug) error {
	if d.Concept == nil {
		return &fhir.ValidationError{Err: errors.New("medication code is required")}
	}
	var err error
	if d.Concept, err = concept.Resolve(ctx, s.concepts, d.Concept); err != nil {
		return err
	}
	if d.DosageForm, err = concept.Resolve(ctx, s.concepts, d.DosageForm); err != nil {
		return err
	}
	for i := range d.Ingredients {
		if d.Ingredients[i].Ingredient, err = concept.Resolve(ctx, s.concepts, d.Ingredients[i].Ingredient); err != nil {
			return err
		}
	}
	return nil
}
