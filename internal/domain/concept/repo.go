package concept

import (
	"context"
	"errors"
	"fmt"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

// Repository looks up concepts by their identities.
type Repository interface {
	GetByUUID(ctx context.Context, uuid string) (*Concept, error)
	GetByMapping(ctx context.Context, system, code string) (*Concept, error)
	GetByIDs(ctx context.Context, ids []int) (map[int]*Concept, error)
}

// Resolve replaces a translated concept reference with the stored concept
// it names, trying the UUID first and then each mapping. A reference that
// names no stored concept is a validation error.
func Resolve(ctx context.Context, repo Repository, ref *Concept) (*Concept, error) {
	if ref == nil || ref.ConceptID != 0 {
		return ref, nil
	}
	if ref.UUID != "" {
		c, err := repo.GetByUUID(ctx, ref.UUID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, fhir.ErrNotFound) {
			return nil, err
		}
	}
	for _, m := range ref.Mappings {
		c, err := repo.GetByMapping(ctx, m.SourceURI, m.Code)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, fhir.ErrNotFound) {
			return nil, err
		}
	}
	return nil, &fhir.ValidationError{Err: fmt.Errorf("unknown concept %s", describe(ref))}
}

func describe(c *Concept) string {
	if c.UUID != "" {
		return c.UUID
	}
	if len(c.Mappings) > 0 {
		return c.Mappings[0].SourceURI + "|" + c.Mappings[0].Code
	}
	return c.Name
}
