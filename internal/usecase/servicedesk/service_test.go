package servicedesk

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"repairdesk/internal/domain/incident"
	"repairdesk/internal/errs"
	"repairdesk/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "repairdesk/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "repairdesk/internal/infrastructure/persistence/sqlite/uow"
	"repairdesk/internal/ports"
)

var testStart = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type mapCatalog map[string]string

func (c mapCatalog) ParentCode(_ context.Context, code string) (string, bool, error) {
	parent, ok := c[code]
	return parent, ok, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []ports.ChangeRequestResolved
	err    error
}

func (n *recordingNotifier) ChangeRequestResolved(_ context.Context, event ports.ChangeRequestResolved) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

type recordingMetrics struct {
	mu          sync.Mutex
	transitions []string
	resolved    []string
	verified    []bool
	conflicts   map[string]int
	autosaves   int
	autosaveErr int
}

func (m *recordingMetrics) StatusTransition(from string, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from+"->"+to)
}

func (m *recordingMetrics) ChangeRequestResolved(kind string, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, kind+":"+outcome)
}

func (m *recordingMetrics) RecurrenceVerified(approved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verified = append(m.verified, approved)
}

func (m *recordingMetrics) Conflict(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts[operation]++
}

func (m *recordingMetrics) AutosaveRun(failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autosaves++
	if failed {
		m.autosaveErr++
	}
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	clock    *testClock
	cache    *testCache
	notifier *recordingNotifier
	metrics  *recordingMetrics
}

func setupService(t *testing.T) *fixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "servicedesk.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	f := &fixture{
		db:       db,
		clock:    &testClock{now: testStart},
		cache:    &testCache{data: make(map[string]string)},
		notifier: &recordingNotifier{},
		metrics:  &recordingMetrics{conflicts: make(map[string]int)},
	}

	var seq atomic.Int64
	svc, err := NewService(Dependencies{
		Incidents:      sqliterepo.NewIncidentRepository(db),
		Diagnostics:    sqliterepo.NewDiagnosticRepository(db),
		PartsRequests:  sqliterepo.NewPartsRequestRepository(db),
		ChangeRequests: sqliterepo.NewChangeRequestRepository(db),
		Verifications:  sqliterepo.NewRecurrenceVerificationRepository(db),
		Photos:         sqliterepo.NewPhotoRepository(db),
		ChangeLog:      sqliterepo.NewChangeLogRepository(db),
		UnitOfWork:     sqliteuow.NewUnitOfWork(db),
		Cache:          f.cache,
		Catalog:        mapCatalog{"A-100": "A-100P"},
		Notifier:       f.notifier,
		Metrics:        f.metrics,
	},
		WithClock(f.clock.Now),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
	)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	f.svc = svc
	return f
}

// benchIncident registers an incident and brings it to in_diagnosis.
func (f *fixture) benchIncident(t *testing.T, customerID string) incident.Incident {
	t.Helper()

	ctx := context.Background()
	created, err := f.svc.CreateIncident(ctx, CreateIncidentInput{
		CustomerID:         customerID,
		ProductID:          "lavadora-x1",
		ProblemDescription: "No centrifuga",
		Actor:              "front-desk",
	})
	if err != nil {
		t.Fatalf("CreateIncident() error = %v", err)
	}
	if _, err := f.svc.AdmitIncident(ctx, TransitionInput{IncidentID: created.ID, Actor: "front-desk"}); err != nil {
		t.Fatalf("AdmitIncident() error = %v", err)
	}
	benched, err := f.svc.StartDiagnosis(ctx, TransitionInput{IncidentID: created.ID, Actor: "tech-1"})
	if err != nil {
		t.Fatalf("StartDiagnosis() error = %v", err)
	}
	return benched
}

func diagnosis(resolution string) incident.DiagnosticInput {
	return incident.DiagnosticInput{
		TechnicianID: "tech-1",
		Faults:       []string{"rodamiento gastado"},
		Causes:       []string{"desgaste"},
		Resolution:   resolution,
	}
}

func TestNewServiceRequiresRepositories(t *testing.T) {
	if _, err := NewService(Dependencies{}); err == nil {
		t.Fatalf("NewService(empty) error = nil, want error")
	}
}

func TestServiceRejectsNilContext(t *testing.T) {
	f := setupService(t)
	if _, err := f.svc.GetIncident(nil, "x"); !errors.Is(err, errContextRequired) {
		t.Fatalf("GetIncident(nil) error = %v, want context is required", err)
	}
}

func TestIncidentLifecycleToDelivery(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	inc := f.benchIncident(t, "cust-1")
	if inc.Code != "INC-000001" || inc.Status != incident.StatusInDiagnosis || inc.Version != 3 {
		t.Fatalf("benched incident = %+v", inc)
	}

	outcome, err := f.svc.RunDiagnosticDecision(ctx, DiagnosticDecisionInput{IncidentID: inc.ID, Diagnostic: diagnosis("repaired")})
	if err != nil {
		t.Fatalf("RunDiagnosticDecision() error = %v", err)
	}
	if outcome.Incident.Status != incident.StatusRepaired || outcome.ChangeRequest != nil || outcome.PartsRequest != nil {
		t.Fatalf("RunDiagnosticDecision() outcome = %+v", outcome)
	}
	if outcome.Diagnostic.State != incident.DiagnosticFinal || outcome.Diagnostic.Version != 1 {
		t.Fatalf("diagnostic = %+v, want final v1", outcome.Diagnostic)
	}

	if _, err := f.svc.ScheduleDelivery(ctx, ScheduleDeliveryInput{IncidentID: inc.ID, Actor: "front-desk", Shipment: true}); !errs.IsValidation(err) {
		t.Fatalf("ScheduleDelivery(shipment without address) error = %v, want validation", err)
	}
	if _, err := f.svc.ScheduleDelivery(ctx, ScheduleDeliveryInput{IncidentID: inc.ID, Actor: "front-desk"}); err != nil {
		t.Fatalf("ScheduleDelivery() error = %v", err)
	}

	f.clock.Advance(time.Hour)
	delivered, err := f.svc.MarkDelivered(ctx, TransitionInput{IncidentID: inc.ID, Actor: "front-desk"})
	if err != nil {
		t.Fatalf("MarkDelivered() error = %v", err)
	}
	if delivered.Status != incident.StatusDelivered || delivered.DeliveredAt == nil || !delivered.DeliveredAt.Equal(testStart.Add(time.Hour)) {
		t.Fatalf("MarkDelivered() = %+v", delivered)
	}

	if _, err := f.svc.RejectIncident(ctx, RejectIncidentInput{IncidentID: inc.ID, Actor: "boss", Reason: "tarde"}); !errs.IsValidation(err) {
		t.Fatalf("RejectIncident(delivered) error = %v, want validation", err)
	}

	status, ok, err := f.svc.CachedStatus(ctx, inc.ID)
	if err != nil || !ok || status != incident.StatusDelivered {
		t.Fatalf("CachedStatus() = %s, %v, %v", status, ok, err)
	}

	want := []string{
		"registered->pending_diagnosis",
		"pending_diagnosis->in_diagnosis",
		"in_diagnosis->repaired",
		"repaired->pending_delivery",
		"pending_delivery->delivered",
	}
	if fmt.Sprint(f.metrics.transitions) != fmt.Sprint(want) {
		t.Fatalf("transitions = %v, want %v", f.metrics.transitions, want)
	}
}

func TestTransitionsOutsideTableAreRejected(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.CreateIncident(ctx, CreateIncidentInput{CustomerID: "cust-1", ProblemDescription: "ruido"})
	if err != nil {
		t.Fatalf("CreateIncident() error = %v", err)
	}
	if _, err := f.svc.StartDiagnosis(ctx, TransitionInput{IncidentID: created.ID}); !errs.IsValidation(err) {
		t.Fatalf("StartDiagnosis(registered) error = %v, want validation", err)
	}
	if _, err := f.svc.MarkDelivered(ctx, TransitionInput{IncidentID: created.ID}); !errs.IsValidation(err) {
		t.Fatalf("MarkDelivered(registered) error = %v, want validation", err)
	}
	if _, err := f.svc.AdmitIncident(ctx, TransitionInput{IncidentID: "missing"}); !errs.IsNotFound(err) {
		t.Fatalf("AdmitIncident(missing) error = %v, want not found", err)
	}

	got, err := f.svc.GetIncident(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetIncident() error = %v", err)
	}
	if got.Status != incident.StatusRegistered || got.Version != 1 {
		t.Fatalf("incident after rejected moves = %+v", got)
	}
}

func TestCreateIncidentValidation(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateIncidentInput
		field string
	}{
		{name: "customer", input: CreateIncidentInput{ProblemDescription: "x"}, field: "customer_id"},
		{name: "problem", input: CreateIncidentInput{CustomerID: "c"}, field: "problem_description"},
		{name: "channel", input: CreateIncidentInput{CustomerID: "c", ProblemDescription: "x", EntryChannel: "fax"}, field: "entry_channel"},
		{name: "logistics address", input: CreateIncidentInput{CustomerID: "c", ProblemDescription: "x", EntryChannel: "logistics"}, field: "delivery_address_id"},
	}
	for _, c := range cases {
		_, err := f.svc.CreateIncident(ctx, c.input)
		if got := errs.ValidationField(err); got != c.field {
			t.Fatalf("%s: CreateIncident() field = %q (err %v), want %q", c.name, got, err, c.field)
		}
	}
}

func TestRejectIncidentRecordsReason(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	inc := f.benchIncident(t, "cust-1")

	if _, err := f.svc.RejectIncident(ctx, RejectIncidentInput{IncidentID: inc.ID, Actor: "boss"}); errs.ValidationField(err) != "reason" {
		t.Fatalf("RejectIncident(no reason) error = %v, want reason validation", err)
	}
	rejected, err := f.svc.RejectIncident(ctx, RejectIncidentInput{IncidentID: inc.ID, Actor: "boss", Reason: "sin reparación posible"})
	if err != nil {
		t.Fatalf("RejectIncident() error = %v", err)
	}
	if rejected.Status != incident.StatusRejected {
		t.Fatalf("RejectIncident() status = %s", rejected.Status)
	}
	if rejected.ObservationLog != "[2024-01-15 10:00] boss: Rechazado: sin reparación posible" {
		t.Fatalf("ObservationLog = %q", rejected.ObservationLog)
	}
}

func TestStaleExpectedVersionIsConflict(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	inc := f.benchIncident(t, "cust-1")

	_, err := f.svc.RunDiagnosticDecision(ctx, DiagnosticDecisionInput{
		IncidentID:      inc.ID,
		Diagnostic:      diagnosis("repaired"),
		ExpectedVersion: inc.Version - 1,
	})
	if !errs.IsConflict(err) {
		t.Fatalf("RunDiagnosticDecision(stale) error = %v, want conflict", err)
	}
	if f.metrics.conflicts["diagnostic_decision"] != 1 {
		t.Fatalf("conflicts = %v", f.metrics.conflicts)
	}

	outcome, err := f.svc.RunDiagnosticDecision(ctx, DiagnosticDecisionInput{
		IncidentID:      inc.ID,
		Diagnostic:      diagnosis("repaired"),
		ExpectedVersion: inc.Version,
	})
	if err != nil {
		t.Fatalf("RunDiagnosticDecision(current version) error = %v", err)
	}
	if outcome.Incident.Version != inc.Version+1 {
		t.Fatalf("version = %d, want %d", outcome.Incident.Version, inc.Version+1)
	}
}

func TestAddPhotosAndObservations(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	inc := f.benchIncident(t, "cust-1")

	photos, err := f.svc.AddPhotos(ctx, AddPhotosInput{
		IncidentID: inc.ID,
		UploadedBy: "front-desk",
		Photos:     []PhotoInput{{Kind: "intake", Ref: "a.jpg"}, {Kind: "intake", Ref: "b.jpg"}},
	})
	if err != nil || len(photos) != 2 {
		t.Fatalf("AddPhotos() = %d, %v", len(photos), err)
	}
	if _, err := f.svc.AddPhotos(ctx, AddPhotosInput{IncidentID: inc.ID, UploadedBy: "x", Photos: []PhotoInput{{Kind: "selfie", Ref: "c.jpg"}}}); !errs.IsValidation(err) {
		t.Fatalf("AddPhotos(bad kind) error = %v, want validation", err)
	}
	if _, err := f.svc.AddPhotos(ctx, AddPhotosInput{IncidentID: "missing", UploadedBy: "x", Photos: []PhotoInput{{Kind: "intake", Ref: "c.jpg"}}}); !errs.IsNotFound(err) {
		t.Fatalf("AddPhotos(missing incident) error = %v, want not found", err)
	}

	first, err := f.svc.AppendObservation(ctx, AppendObservationInput{IncidentID: inc.ID, User: "Ana", Message: "Cliente avisado"})
	if err != nil {
		t.Fatalf("AppendObservation() error = %v", err)
	}
	f.clock.Advance(2 * time.Minute)
	second, err := f.svc.AppendObservation(ctx, AppendObservationInput{IncidentID: inc.ID, User: "Luis", Message: "Pieza pedida"})
	if err != nil {
		t.Fatalf("AppendObservation() error = %v", err)
	}
	want := "[2024-01-15 10:00] Ana: Cliente avisado\n[2024-01-15 10:02] Luis: Pieza pedida"
	if second.ObservationLog != want || second.Version != first.Version+1 {
		t.Fatalf("ObservationLog = %q version %d", second.ObservationLog, second.Version)
	}
}
