package allergy

import (
	"context"

	"github.com/ehr/fhirbridge/internal/platform/query"
)

type Repository interface {
	GetByUUID(ctx context.Context, uuid string) (*Allergy, error)
	Create(ctx context.Context, a *Allergy) error
	Update(ctx context.Context, a *Allergy) error
	Search(ctx context.Context, p *query.Plan, limit, offset int) ([]*Allergy, int, error)
}
