package encounter

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/platform/db"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/internal/platform/query"
)

const (
	encounterUUID = "e403fafb-e5e4-42d0-9d11-4f52e89d148c"
	patientUUID   = "5c521595-4e12-46b0-8248-b8f2d3697766"
	locationUUID  = "8d6c993e-c2cc-11de-8d13-0010c6dffd0f"
	providerUUID  = "f9badd80-ab76-11e2-9e96-0800200c9a66"
)

// =========== Mock Repositories ===========

type mockPersonRepo struct {
	persons map[string]*person.Person
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

type mockEncounterRepo struct {
	store     map[string]*Encounter
	locations map[string]*Location
	providers map[string]*Provider
	nextID    int
	lastPlan  *query.Plan
}

func newMockEncounterRepo() *mockEncounterRepo {
	return &mockEncounterRepo{
		store:     map[string]*Encounter{},
		locations: map[string]*Location{locationUUID: {LocationID: 3, UUID: locationUUID, Name: "Outpatient Clinic"}},
		providers: map[string]*Provider{providerUUID: {ProviderID: 7, UUID: providerUUID, Name: "Super User", Identifier: "admin"}},
		nextID:    1,
	}
}

func (m *mockEncounterRepo) GetByUUID(_ context.Context, uuid string) (*Encounter, error) {
	e, ok := m.store[uuid]
	if !ok {
		return nil, fhir.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockEncounterRepo) Create(_ context.Context, e *Encounter) error {
	e.EncounterID = m.nextID
	e.DateCreated = time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	e.Creator = "admin"
	m.nextID++
	m.store[e.UUID] = e
	return nil
}

func (m *mockEncounterRepo) Update(_ context.Context, e *Encounter) error {
	if _, ok := m.store[e.UUID]; !ok {
		return fhir.ErrNotFound
	}
	changed := e.DateCreated.Add(time.Hour)
	e.DateChanged = &changed
	e.ChangedBy = "clerk"
	m.store[e.UUID] = e
	return nil
}

func (m *mockEncounterRepo) Search(_ context.Context, p *query.Plan, _, _ int) ([]*Encounter, int, error) {
	m.lastPlan = p
	var out []*Encounter
	for _, e := range m.store {
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *mockEncounterRepo) GetLocation(_ context.Context, uuid string) (*Location, error) {
	if l, ok := m.locations[uuid]; ok {
		return l, nil
	}
	return nil, fhir.ErrNotFound
}

func (m *mockEncounterRepo) GetProvider(_ context.Context, uuid string) (*Provider, error) {
	if p, ok := m.providers[uuid]; ok {
		return p, nil
	}
	return nil, fhir.ErrNotFound
}

func patient() *person.Person {
	return &person.Person{
		PersonID: 20,
		UUID:     patientUUID,
		Names:    []person.Name{{UUID: "n-1", GivenName: "Eve", FamilyName: "Doe"}},
	}
}

func encounter() *Encounter {
	return &Encounter{
		EncounterID:       1,
		UUID:              encounterUUID,
		Patient:           patient(),
		Location:          &Location{LocationID: 3, UUID: locationUUID, Name: "Outpatient Clinic"},
		Participants:      []Participant{{UUID: "ep-1", Provider: &Provider{ProviderID: 7, UUID: providerUUID, Name: "Super User"}}},
		EncounterDatetime: time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
		Audit:             db.Audit{Creator: "admin", DateCreated: time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)},
	}
}

func newTestService() (*Service, *mockEncounterRepo) {
	repo := newMockEncounterRepo()
	persons := &mockPersonRepo{persons: map[string]*person.Person{patientUUID: patient()}}
	return NewService(repo, persons), repo
}

// =========== Translator ===========

func TestTranslator_ToFHIR(t *testing.T) {
	got := Translator{}.ToFHIR(encounter())

	if got.ID != encounterUUID || got.Status != "unknown" {
		t.Errorf("unexpected encounter: %+v", got)
	}
	if got.Subject == nil || got.Subject.Reference != "Patient/"+patientUUID || got.Subject.Display != "Eve Doe" {
		t.Errorf("unexpected subject: %+v", got.Subject)
	}
	if len(got.Location) != 1 || got.Location[0].Location.Reference != "Location/"+locationUUID {
		t.Errorf("unexpected location: %+v", got.Location)
	}
	if len(got.Participant) != 1 || got.Participant[0].Individual.Reference != "Practitioner/"+providerUUID {
		t.Errorf("unexpected participants: %+v", got.Participant)
	}
	if got.Period == nil || !got.Period.Start.Equal(time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected period: %+v", got.Period)
	}
	if len(got.Contained) != 1 {
		t.Errorf("expected creation provenance only, got %d", len(got.Contained))
	}
}

func TestTranslator_RoundTripKeepsStoredReferences(t *testing.T) {
	existing := encounter()
	tr := Translator{}
	got := tr.ToInternal(existing, tr.ToFHIR(existing))

	if got.Patient != existing.Patient || got.Location != existing.Location {
		t.Error("expected unchanged references to keep stored records")
	}
	if len(got.Participants) != 1 || got.Participants[0].UUID != "ep-1" {
		t.Errorf("expected stored participant kept, got %+v", got.Participants)
	}
}

func TestTranslator_ToInternalReplacesReferences(t *testing.T) {
	r := Translator{}.ToFHIR(encounter())
	r.Subject = &fhir.Reference{Reference: "Patient/other"}
	r.Participant = []fhir.EncounterParticipant{{Individual: &fhir.Reference{Reference: "Practitioner/p2"}}}

	got := Translator{}.ToInternal(encounter(), r)
	if got.Patient.UUID != "other" || got.Patient.PersonID != 0 {
		t.Errorf("expected unresolved patient reference, got %+v", got.Patient)
	}
	if len(got.Participants) != 1 || got.Participants[0].Provider.UUID != "p2" || got.Participants[0].UUID != "" {
		t.Errorf("expected new participant, got %+v", got.Participants)
	}
}

func TestTranslator_Nil(t *testing.T) {
	if (Translator{}).ToFHIR(nil) != nil {
		t.Error("expected nil Encounter for nil record")
	}
	if got := Provenances(nil); got != nil {
		t.Errorf("expected no provenance for nil record, got %+v", got)
	}
	if got := Provenances(&Encounter{UUID: "e1"}); got != nil {
		t.Errorf("expected no provenance without a creation date, got %+v", got)
	}
	existing := encounter()
	if got := (Translator{}).ToInternal(existing, nil); got != existing {
		t.Error("expected nil resource to keep existing record")
	}
}

func TestProvenances(t *testing.T) {
	e := encounter()
	if got := Provenances(&Encounter{UUID: "x"}); got != nil {
		t.Errorf("expected no provenance without audit data, got %v", got)
	}

	changed := e.DateCreated.Add(time.Hour)
	e.DateChanged = &changed
	e.ChangedBy = "clerk"
	got := Provenances(e)
	if len(got) != 2 {
		t.Fatalf("expected 2 provenance entries, got %d", len(got))
	}
	if got[0].Activity.Coding[0].Code != "CREATE" || got[1].Activity.Coding[0].Code != "UPDATE" {
		t.Errorf("unexpected activities: %s, %s", got[0].Activity.Coding[0].Code, got[1].Activity.Coding[0].Code)
	}
	if got[0].Agent[0].Who.Display != "admin" || got[1].Agent[0].Who.Display != "clerk" {
		t.Errorf("unexpected agents: %+v %+v", got[0].Agent, got[1].Agent)
	}
	if got[0].Target[0].Reference != "Encounter/"+encounterUUID {
		t.Errorf("unexpected target: %+v", got[0].Target)
	}
	if again := Provenances(e); again[0].ID != got[0].ID || again[1].ID != got[1].ID {
		t.Error("expected stable provenance ids")
	}
	if got[0].ID == got[1].ID {
		t.Error("expected distinct provenance ids")
	}
}

// =========== Search Plan ===========

func TestBuildPlan_AllAbsent(t *testing.T) {
	p := BuildPlan(SearchParams{})
	if len(p.Joins()) != 0 || len(p.Predicates()) != 1 {
		t.Errorf("expected only the voided constraint, got %d joins %d predicates", len(p.Joins()), len(p.Predicates()))
	}
}

func TestBuildPlan_DateRange(t *testing.T) {
	params, err := ParseSearchParams(url.Values{"date": {"ge2024-01-01", "le2024-01-31"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sql, args := query.Compile(BuildPlan(params), "e.encounter_id", 0, 0)
	if !strings.Contains(sql, "e.encounter_datetime >=") || !strings.Contains(sql, "e.encounter_datetime <=") {
		t.Errorf("expected both date bounds in %s", sql)
	}
	if len(args) != 3 {
		t.Errorf("expected voided flag and two bounds, got %v", args)
	}
}

func TestBuildPlan_ParticipantChain(t *testing.T) {
	params, err := ParseSearchParams(url.Values{"participant.given": {"Sup"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sql, _ := query.Compile(BuildPlan(params), "e.encounter_id", 0, 0)
	for _, want := range []string{"JOIN encounter_provider ep", "JOIN provider pr", "JOIN person_name pr_pn", "pr_pn.given_name ILIKE"} {
		if !strings.Contains(sql, want) {
			t.Errorf("expected %q in %s", want, sql)
		}
	}
}

func TestBuildPlan_RepeatedParticipantsJoinSeparately(t *testing.T) {
	params, err := ParseSearchParams(url.Values{"participant": {providerUUID, "c2299800-cca9-11e0-9572-0800200c9a66"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sql, args := query.Compile(BuildPlan(params), "e.encounter_id", 0, 0)
	for _, want := range []string{"JOIN encounter_provider ep ", "JOIN encounter_provider ep_1 ", "pr.uuid IN", "pr_1.uuid IN"} {
		if !strings.Contains(sql, want) {
			t.Errorf("expected %q in %s", want, sql)
		}
	}
	if len(args) != 3 {
		t.Errorf("expected voided flag and two provider uuids, got %v", args)
	}
}

func TestBuildPlan_PatientAliasesSubject(t *testing.T) {
	params, err := ParseSearchParams(url.Values{"patient": {patientUUID}, "subject.family": {"Doe"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(params.Subject) != 2 {
		t.Fatalf("expected both subject constraints, got %d", len(params.Subject))
	}
	p := BuildPlan(params)
	if !p.HasAlias("pat") || !p.HasAlias("pat_pn") {
		t.Error("expected patient joins")
	}
	for _, j := range p.Joins() {
		if j.Alias == "loc" || j.Alias == "pr" {
			t.Errorf("unexpected join %s", j.Alias)
		}
	}
}

func TestBuildPlan_LocationChain(t *testing.T) {
	params, err := ParseSearchParams(url.Values{"location.address-city": {"Kam"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sql, _ := query.Compile(BuildPlan(params), "e.encounter_id", 0, 0)
	if !strings.Contains(sql, "JOIN location loc") || !strings.Contains(sql, "loc.city_village ILIKE") {
		t.Errorf("unexpected location search: %s", sql)
	}
}

func TestParseSearchParams_Errors(t *testing.T) {
	for _, q := range []url.Values{
		{"date": {"ap2024-01-01"}},
		{"participant.telecom": {"1"}},
	} {
		if _, err := ParseSearchParams(q); err == nil {
			t.Errorf("expected error for %v", q)
		}
	}
}

// =========== Service ===========

func newResource() *fhir.Encounter {
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	return &fhir.Encounter{
		ResourceType: "Encounter",
		Subject:      &fhir.Reference{Reference: "Patient/" + patientUUID},
		Period:       &fhir.Period{Start: &start},
		Location:     []fhir.EncounterLocation{{Location: &fhir.Reference{Reference: "Location/" + locationUUID}}},
		Participant:  []fhir.EncounterParticipant{{Individual: &fhir.Reference{Reference: "Practitioner/" + providerUUID}}},
	}
}

func TestService_Save(t *testing.T) {
	svc, repo := newTestService()
	got, err := svc.Save(context.Background(), newResource())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := repo.store[got.ID]
	if stored.Patient.PersonID != 20 || stored.Location.LocationID != 3 || stored.Participants[0].Provider.ProviderID != 7 {
		t.Errorf("expected references resolved, got %+v", stored)
	}
	if got.Location[0].Location.Display != "Outpatient Clinic" {
		t.Errorf("expected location display, got %+v", got.Location[0].Location)
	}
}

func TestService_Save_ValidationErrors(t *testing.T) {
	svc, _ := newTestService()
	tests := map[string]func(r *fhir.Encounter){
		"no start":          func(r *fhir.Encounter) { r.Period = nil },
		"unknown patient":   func(r *fhir.Encounter) { r.Subject.Reference = "Patient/nobody" },
		"unknown location":  func(r *fhir.Encounter) { r.Location[0].Location.Reference = "Location/nowhere" },
		"unknown performer": func(r *fhir.Encounter) { r.Participant[0].Individual.Reference = "Practitioner/nobody" },
	}
	for name, mutate := range tests {
		r := newResource()
		mutate(r)
		_, err := svc.Save(context.Background(), r)
		var verr *fhir.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: expected ValidationError, got %v", name, err)
		}
	}
}

func TestService_UpdateAndHistory(t *testing.T) {
	svc, _ := newTestService()
	created, err := svc.Save(context.Background(), newResource())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	update := newResource()
	update.ID = created.ID
	update.Participant = nil
	got, err := svc.Update(context.Background(), update, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Participant) != 1 {
		t.Error("expected absent participant list to keep stored participants")
	}

	history, err := svc.History(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected create and update provenance, got %d", len(history))
	}
}

func TestService_Update_Errors(t *testing.T) {
	svc, _ := newTestService()
	r := newResource()

	if _, err := svc.Update(context.Background(), r, encounterUUID); !errors.Is(err, fhir.ErrMissingID) {
		t.Errorf("expected ErrMissingID, got %v", err)
	}
	r.ID = "other"
	if _, err := svc.Update(context.Background(), r, encounterUUID); !errors.Is(err, fhir.ErrIDMismatch) {
		t.Errorf("expected ErrIDMismatch, got %v", err)
	}
	r.ID = encounterUUID
	if _, err := svc.Update(context.Background(), r, encounterUUID); !errors.Is(err, fhir.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.History(context.Background(), encounterUUID); !errors.Is(err, fhir.ErrNotFound) {
		t.Errorf("expected ErrNotFound for history, got %v", err)
	}
}

func TestService_Search(t *testing.T) {
	svc, repo := newTestService()
	if _, err := svc.Save(context.Background(), newResource()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	params, _ := ParseSearchParams(url.Values{"participant": {providerUUID}})
	got, total, err := svc.Search(context.Background(), params, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(got) != 1 {
		t.Errorf("expected 1 result, got %d", total)
	}
	if !repo.lastPlan.HasAlias("ep") || !repo.lastPlan.HasAlias("pr") {
		t.Error("expected participant search to join providers")
	}
}
