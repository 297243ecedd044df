package allergy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/fhirbridge/internal/domain/concept"
	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/property"
)

// Service serves AllergyIntolerance resources. Severity aliases are read
// from the property store on every call.
type Service struct {
	repo     Repository
	concepts concept.Repository
	persons  person.Repository
	props    property.Store
}

func NewService(repo Repository, concepts concept.Repository, persons person.Repository, props property.Store) *Service {
	return &Service{repo: repo, concepts: concepts, persons: persons, props: props}
}

func (s *Service) translator(ctx context.Context) (Translator, error) {
	aliases, err := ResolveSeverityAliases(ctx, s.props)
	if err != nil {
		return Translator{}, err
	}
	return Translator{Severities: aliases}, nil
}

func (s *Service) GetByUUID(ctx context.Context, id string) (*fhir.AllergyIntolerance, error) {
	tr, err := s.translator(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	return tr.ToFHIR(a), nil
}

func (s *Service) Save(ctx context.Context, r *fhir.AllergyIntolerance) (*fhir.AllergyIntolerance, error) {
	if err := fhir.Validate(r); err != nil {
		return nil, err
	}
	tr, err := s.translator(ctx)
	if err != nil {
		return nil, err
	}
	a := tr.ToInternal(nil, r)
	if a.UUID == "" {
		a.UUID = uuid.New().String()
	}
	if err := s.resolve(ctx, a); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	saved, err := s.repo.GetByUUID(ctx, a.UUID)
	if err != nil {
		return nil, err
	}
	return tr.ToFHIR(saved), nil
}

func (s *Service) Update(ctx context.Context, r *fhir.AllergyIntolerance, id string) (*fhir.AllergyIntolerance, error) {
	if r.ID == "" {
		return nil, fhir.ErrMissingID
	}
	if r.ID != id {
		return nil, fhir.ErrIDMismatch
	}
	if err := fhir.Validate(r); err != nil {
		return nil, err
	}
	tr, err := s.translator(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	a := tr.ToInternal(existing, r)
	if err := s.resolve(ctx, a); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	saved, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	return tr.ToFHIR(saved), nil
}

func (s *Service) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*fhir.AllergyIntolerance, int, error) {
	tr, err := s.translator(ctx)
	if err != nil {
		return nil, 0, err
	}
	plan := BuildPlan(params, tr.Severities)
	zerolog.Ctx(ctx).Debug().Int("joins", len(plan.Joins())).Int("predicates", len(plan.Predicates())).Msg("allergy search plan built")

	allergies, total, err := s.repo.Search(ctx, plan, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*fhir.AllergyIntolerance, 0, len(allergies))
	for _, a := range allergies {
		out = append(out, tr.ToFHIR(a))
	}
	return out, total, nil
}

// resolve replaces the patient and concept references of a with stored
// records.
func (s *Service) resolve(ctx context.Context, a *Allergy) error {
	if a.Patient == nil {
		return &fhir.ValidationError{Err: errors.New("patient reference is required")}
	}
	if a.Patient.PersonID == 0 {
		p, err := s.persons.GetByUUID(ctx, a.Patient.UUID)
		if errors.Is(err, fhir.ErrNotFound) {
			return &fhir.ValidationError{Err: fmt.Errorf("unknown patient %s", a.Patient.UUID)}
		}
		if err != nil {
			return err
		}
		a.Patient = p
	}
	if a.Allergen.CodedAllergen == nil && a.Allergen.NonCodedAllergen == "" {
		return &fhir.ValidationError{Err: errors.New("allergen code is required")}
	}

	var err error
	if a.Allergen.CodedAllergen, err = concept.Resolve(ctx, s.concepts, a.Allergen.CodedAllergen); err != nil {
		return err
	}
	if a.Severity, err = concept.Resolve(ctx, s.concepts, a.Severity); err != nil {
		return err
	}
	for i := range a.Reactions {
		if a.Reactions[i].Reaction, err = concept.Resolve(ctx, s.concepts, a.Reactions[i].Reaction); err != nil {
			return err
		}
	}
	return nil
}
