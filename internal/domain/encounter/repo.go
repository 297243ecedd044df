package encounter

import (
	"context"

	"github.com/ehr/fhirbridge/internal/platform/query"
)

type Repository interface {
	GetByUUID(ctx context.Context, uuid string) (*Encounter, error)
	Create(ctx context.Context, e *Encounter) error
	Update(ctx context.Context, e *Encounter) error
	Search(ctx context.Context, p *query.Plan, limit, offset int) ([]*Encounter, int, error)

	GetLocation(ctx context.Context, uuid string) (*Location, error)
	GetProvider(ctx context.Context, uuid string) (*Provider, error)
}
