package fhir

import (
	"time"

	"github.com/ehr/fhirbridge/pkg/pagination"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string            `json:"resourceType"`
	Type         string            `json:"type"`
	Total        *int              `json:"total,omitempty"`
	Timestamp    *time.Time        `json:"timestamp,omitempty"`
	Link         []pagination.Link `json:"link,omitempty"`
	Entry        []BundleEntry     `json:"entry,omitempty"`
}

type BundleEntry struct {
	FullURL  string        `json:"fullUrl,omitempty"`
	Resource Resource      `json:"resource,omitempty"`
	Search   *BundleSearch `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// NewSearchBundle wraps one page of matches into a searchset Bundle.
// Entries keep the order of resources.
func NewSearchBundle[R Resource](resources []R, total int, links []pagination.Link) *Bundle {
	now := time.Now().UTC()
	entries := make([]BundleEntry, len(resources))
	for i, r := range resources {
		entries[i] = BundleEntry{
			FullURL:  FormatReference(r.ResourceName(), r.ResourceID()),
			Resource: r,
			Search:   &BundleSearch{Mode: "match"},
		}
	}
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        &total,
		Timestamp:    &now,
		Link:         links,
		Entry:        entries,
	}
}

// NewHistoryBundle wraps history entries into a history Bundle.
func NewHistoryBundle[R Resource](resources []R) *Bundle {
	now := time.Now().UTC()
	total := len(resources)
	entries := make([]BundleEntry, len(resources))
	for i, r := range resources {
		entries[i] = BundleEntry{
			FullURL:  FormatReference(r.ResourceName(), r.ResourceID()),
			Resource: r,
		}
	}
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "history",
		Total:        &total,
		Timestamp:    &now,
		Entry:        entries,
	}
}
