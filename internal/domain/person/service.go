package person

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

// Service serves Person resources from stored persons.
type Service struct {
	repo Repository
	tr   Translator
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByUUID(ctx context.Context, uuid string) (*fhir.Person, error) {
	p, err := s.repo.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	return s.tr.ToFHIR(p), nil
}

func (s *Service) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*fhir.Person, int, error) {
	plan := BuildPlan(params)
	zerolog.Ctx(ctx).Debug().Int("joins", len(plan.Joins())).Int("predicates", len(plan.Predicates())).Msg("person search plan built")

	persons, total, err := s.repo.Search(ctx, plan, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*fhir.Person, 0, len(persons))
	for _, p := range persons {
		out = append(out, s.tr.ToFHIR(p))
	}
	return out, total, nil
}
