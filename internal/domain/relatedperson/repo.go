package relatedperson

import (
	"context"

	"github.com/ehr/fhirbridge/internal/platform/query"
)

type Repository interface {
	GetByUUID(ctx context.Context, uuid string) (*Relationship, error)
	Create(ctx context.Context, r *Relationship) error
	Update(ctx context.Context, r *Relationship) error
	Search(ctx context.Context, p *query.Plan, limit, offset int) ([]*Relationship, int, error)
}
