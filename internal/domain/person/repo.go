package person

import (
	"context"

	"github.com/ehr/fhirbridge/internal/platform/query"
)

type Repository interface {
	GetByUUID(ctx context.Context, uuid string) (*Person, error)
	GetByIDs(ctx context.Context, ids []int) (map[int]*Person, error)
	Search(ctx context.Context, p *query.Plan, limit, offset int) ([]*Person, int, error)
}
