package relatedperson

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/query"
)

const (
	relationshipUUID = "c3a0f9c5-7d2b-4e55-9f41-1f7c9e0b5a11"
	testPersonAUUID      = "61b38324-e2fd-4feb-95b7-9e9a2a4400df"
	personBUUID      = "5c521595-4e12-46b0-8248-b8f2d3697766"
)

// =========== Mock Repositories ===========

type mockPersonRepo struct {
	persons map[string]*person.Person
}

func newMockPersonRepo(ps ...*person.Person) *mockPersonRepo {
	m := &mockPersonRepo{persons: map[string]*person.Person{}}
	for _, p := range ps {
		m.persons[p.UUID] = p
	}
	return m
}

func (m *mockPersonRepo) GetByUUID(_ context.Context, uuid string) (*person.Person, error) {
	if p, ok := m.persons[uuid]; ok {
		return p, nil
	}
	return nil, fhir.ErrNotFound
}

func (m *mockPersonRepo) GetByIDs(_ context.Context, ids []int) (map[int]*person.Person, error) {
	out := map[int]*person.Person{}
	for _, p := range m.persons {
		for _, id := range ids {
			if p.PersonID == id {
				out[id] = p
			}
		}
	}
	return out, nil
}

func (m *mockPersonRepo) Search(_ context.Context, _ *query.Plan, _, _ int) ([]*person.Person, int, error) {
	return nil, 0, nil
}

type mockRelationshipRepo struct {
	store    map[string]*Relationship
	nextID   int
	lastPlan *query.Plan
}

func newMockRelationshipRepo() *mockRelationshipRepo {
	return &mockRelationshipRepo{store: map[string]*Relationship{}, nextID: 1}
}

func (m *mockRelationshipRepo) GetByUUID(_ context.Context, uuid string) (*Relationship, error) {
	r, ok := m.store[uuid]
	if !ok {
		return nil, fhir.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRelationshipRepo) Create(_ context.Context, r *Relationship) error {
	r.RelationshipID = m.nextID
	r.DateCreated = time.Now()
	m.nextID++
	m.store[r.UUID] = r
	return nil
}

func (m *mockRelationshipRepo) Update(_ context.Context, r *Relationship) error {
	if _, ok := m.store[r.UUID]; !ok {
		return fhir.ErrNotFound
	}
	now := time.Now()
	r.DateChanged = &now
	m.store[r.UUID] = r
	return nil
}

func (m *mockRelationshipRepo) Search(_ context.Context, p *query.Plan, _, _ int) ([]*Relationship, int, error) {
	m.lastPlan = p
	var out []*Relationship
	for _, r := range m.store {
		out = append(out, r)
	}
	return out, len(out), nil
}

func personA() *person.Person {
	return &person.Person{
		PersonID:  10,
		UUID:      testPersonAUUID,
		Gender:    "M",
		Names:     []person.Name{{UUID: "n-a", GivenName: "Adam", FamilyName: "Doe"}},
		Addresses: []person.Address{{UUID: "addr-a", CityVillage: "Kampala"}},
	}
}

func personB() *person.Person {
	return &person.Person{
		PersonID: 20,
		UUID:     personBUUID,
		Gender:   "F",
		Names:    []person.Name{{UUID: "n-b", GivenName: "Eve", FamilyName: "Doe"}},
	}
}

func relationship() *Relationship {
	return &Relationship{
		RelationshipID:   1,
		UUID:             relationshipUUID,
		PersonA:          personA(),
		PersonB:          personB(),
		RelationshipType: "Parent",
	}
}

func date(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func newTestService() (*Service, *mockRelationshipRepo) {
	repo := newMockRelationshipRepo()
	return NewService(repo, newMockPersonRepo(personA(), personB())), repo
}

// =========== Translator ===========

func TestTranslator_Nil(t *testing.T) {
	if (Translator{}).ToFHIR(nil) != nil {
		t.Error("expected nil RelatedPerson for nil relationship")
	}
}

func TestTranslator_Active(t *testing.T) {
	tests := []struct {
		name       string
		start, end *time.Time
		want       bool
	}{
		{"no dates", nil, nil, true},
		{"start only", date("2020-01-01"), nil, true},
		{"start and end", date("2020-01-01"), date("2021-01-01"), false},
		{"end only", nil, date("2021-01-01"), true},
	}
	for _, tt := range tests {
		r := relationship()
		r.StartDate, r.EndDate = tt.start, tt.end
		got := Translator{}.ToFHIR(r)
		if got.Active == nil || *got.Active != tt.want {
			t.Errorf("%s: expected active=%v, got %v", tt.name, tt.want, got.Active)
		}
	}
}

func TestTranslator_ToFHIR(t *testing.T) {
	got := Translator{}.ToFHIR(relationship())

	if got.ID != relationshipUUID {
		t.Errorf("expected id %s, got %s", relationshipUUID, got.ID)
	}
	if len(got.Identifier) != 1 || got.Identifier[0].System != "RelatedPerson" || got.Identifier[0].Value != "Person/"+testPersonAUUID {
		t.Errorf("unexpected identifier: %+v", got.Identifier)
	}
	if got.Gender != "male" {
		t.Errorf("expected gender of person A, got %s", got.Gender)
	}
	if len(got.Name) != 1 || got.Name[0].Given[0] != "Adam" || got.Name[0].Family != "Doe" {
		t.Errorf("expected person A name, got %+v", got.Name)
	}
	if len(got.Address) != 1 || got.Address[0].ID != "addr-a" || got.Address[0].City != "Kampala" {
		t.Errorf("expected person A address, got %+v", got.Address)
	}
	if got.Patient == nil || got.Patient.Reference != "Patient/"+personBUUID || got.Patient.Display != "Eve Doe" {
		t.Errorf("unexpected patient reference: %+v", got.Patient)
	}
	if len(got.Relationship) != 1 || got.Relationship[0].Text != "Parent" {
		t.Errorf("unexpected relationship: %+v", got.Relationship)
	}
	if got.Period != nil {
		t.Error("expected no period without dates")
	}
}

func TestTranslator_MissingGenderStaysAbsent(t *testing.T) {
	r := relationship()
	r.PersonA.Gender = ""
	if got := (Translator{}).ToFHIR(r); got.Gender != "" {
		t.Errorf("expected no gender, got %s", got.Gender)
	}
}

func TestTranslator_RoundTrip(t *testing.T) {
	r := relationship()
	r.StartDate, r.EndDate = date("2020-01-01"), date("2021-01-01")
	tr := Translator{}
	got := tr.ToInternal(nil, tr.ToFHIR(r))

	if got.UUID != relationshipUUID || got.RelationshipType != "Parent" {
		t.Errorf("unexpected round trip: %+v", got)
	}
	if got.PersonA == nil || got.PersonA.UUID != testPersonAUUID || got.PersonA.Gender != "M" {
		t.Errorf("expected person A reference, got %+v", got.PersonA)
	}
	if got.PersonB == nil || got.PersonB.UUID != personBUUID {
		t.Errorf("expected person B reference, got %+v", got.PersonB)
	}
	if got.Active() {
		t.Error("expected status-affecting dates preserved")
	}
}

// =========== Search Plan ===========

func TestBuildPlan_AllAbsent(t *testing.T) {
	p := BuildPlan(SearchParams{})
	if len(p.Joins()) != 0 || len(p.Predicates()) != 1 {
		t.Errorf("expected only the voided constraint, got %d joins %d predicates", len(p.Joins()), len(p.Predicates()))
	}
}

func TestBuildPlan_PatientChain(t *testing.T) {
	params, err := ParseSearchParams(url.Values{"patient.given": {"Ev"}, "gender": {"male"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := BuildPlan(params)
	sql, _ := query.Compile(p, "r.relationship_id", 0, 0)
	for _, want := range []string{"JOIN person pat", "JOIN person_name pat_pn", "pat_pn.given_name ILIKE", "JOIN person rp", "rp.gender ="} {
		if !strings.Contains(sql, want) {
			t.Errorf("expected %q in %s", want, sql)
		}
	}
}

func TestParseSearchParams_UnknownChain(t *testing.T) {
	if _, err := ParseSearchParams(url.Values{"patient.birthdate": {"2000"}}); err == nil {
		t.Error("expected error for unsupported chain")
	}
}

// =========== Service ===========

func newResource() *fhir.RelatedPerson {
	return &fhir.RelatedPerson{
		ResourceType: "RelatedPerson",
		Identifier:   []fhir.Identifier{{System: "RelatedPerson", Value: "Person/" + testPersonAUUID}},
		Patient:      &fhir.Reference{Reference: "Patient/" + personBUUID},
		Relationship: []fhir.CodeableConcept{{Text: "Sibling"}},
		Period:       &fhir.Period{Start: date("2020-01-01")},
	}
}

func TestService_Save(t *testing.T) {
	svc, repo := newTestService()
	got, err := svc.Save(context.Background(), newResource())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID == "" {
		t.Fatal("expected generated id")
	}
	stored := repo.store[got.ID]
	if stored.PersonA.PersonID != 10 || stored.PersonB.PersonID != 20 {
		t.Errorf("expected persons resolved, got %d/%d", stored.PersonA.PersonID, stored.PersonB.PersonID)
	}
	if got.Active == nil || !*got.Active || got.Gender != "male" {
		t.Errorf("unexpected saved resource: %+v", got)
	}
}

func TestService_Save_UnknownPerson(t *testing.T) {
	svc, _ := newTestService()
	rp := newResource()
	rp.Patient = &fhir.Reference{Reference: "Patient/nobody"}
	_, err := svc.Save(context.Background(), rp)
	var verr *fhir.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestService_Save_MissingPatient(t *testing.T) {
	svc, _ := newTestService()
	rp := newResource()
	rp.Patient = nil
	_, err := svc.Save(context.Background(), rp)
	var verr *fhir.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestService_Update(t *testing.T) {
	svc, _ := newTestService()
	created, err := svc.Save(context.Background(), newResource())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	update := newResource()
	update.ID = created.ID
	update.Period = &fhir.Period{Start: date("2020-01-01"), End: date("2022-01-01")}
	got, err := svc.Update(context.Background(), update, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Active == nil || *got.Active {
		t.Error("expected relationship with both dates to be inactive")
	}
}

func TestService_Update_Errors(t *testing.T) {
	svc, _ := newTestService()
	rp := newResource()

	if _, err := svc.Update(context.Background(), rp, relationshipUUID); !errors.Is(err, fhir.ErrMissingID) {
		t.Errorf("expected ErrMissingID, got %v", err)
	}
	rp.ID = "other"
	if _, err := svc.Update(context.Background(), rp, relationshipUUID); !errors.Is(err, fhir.ErrIDMismatch) {
		t.Errorf("expected ErrIDMismatch, got %v", err)
	}
	rp.ID = relationshipUUID
	if _, err := svc.Update(context.Background(), rp, relationshipUUID); !errors.Is(err, fhir.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Search(t *testing.T) {
	svc, repo := newTestService()
	if _, err := svc.Save(context.Background(), newResource()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, total, err := svc.Search(context.Background(), SearchParams{Name: []string{"Ad"}}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(got) != 1 {
		t.Errorf("expected 1 result, got %d", total)
	}
	if !repo.lastPlan.HasAlias("rp_pn") {
		t.Error("expected name search to join person A names")
	}
}
