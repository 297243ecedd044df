package medication

import (
	"context"

	"github.com/ehr/fhirbridge/internal/platform/query"
)

type Repository interface {
	GetByUUID(ctx context.Context, uuid string) (*Drug, error)
	Create(ctx context.Context, d *Drug) error
	Update(ctx context.Context, d *Drug) error
	Search(ctx context.Context, p *query.Plan, limit, offset int) ([]*Drug, int, error)
}
