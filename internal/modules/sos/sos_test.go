// README: SOS service tests (escalation atomicity, alert lifecycle).
package sos

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"roadaid/internal/modules/directory"
	"roadaid/internal/modules/notification"
	"roadaid/internal/modules/request"
	"roadaid/internal/types"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusActive, StatusResolved, true},
		{StatusActive, StatusFalseAlarm, true},
		{StatusResolved, StatusActive, false},
		{StatusResolved, StatusFalseAlarm, false},
		{StatusFalseAlarm, StatusActive, false},
		{StatusFalseAlarm, StatusResolved, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCreateEmergency(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()

	req, alert, err := svc.CreateEmergency(ctx, CreateEmergencyCommand{
		UserID:    "u1",
		VehicleID: "v1",
		Location:  types.Point{Lat: 12.9, Lng: 77.6},
	})
	if err != nil {
		t.Fatalf("create emergency: %v", err)
	}
	if req.RequestType != "emergency" || !req.IsEmergency || req.Status != request.StatusPending {
		t.Errorf("unexpected request: %+v", req)
	}
	if req.Description != "Emergency assistance needed" {
		t.Errorf("description = %q, want default", req.Description)
	}
	if alert.AlertType != AlertBreakdown {
		t.Errorf("alert type = %s, want breakdown default", alert.AlertType)
	}
	if alert.Status != StatusActive {
		t.Errorf("alert status = %s, want active", alert.Status)
	}
	if alert.RequestID == nil || *alert.RequestID != req.ID {
		t.Error("alert not linked to the emergency request")
	}
	if env.store.notes[req.ID].Title != "EMERGENCY ASSISTANCE REQUESTED" {
		t.Errorf("unexpected notification: %+v", env.store.notes[req.ID])
	}
	if _, ok := env.index.points[req.ID]; !ok {
		t.Error("expected emergency request in pending geo index")
	}
	if len(env.notifier.pushed) != 1 {
		t.Errorf("expected 1 push, got %d", len(env.notifier.pushed))
	}
}

// TestCreateEmergencyRollback forces the transactional write to fail and
// verifies that neither the request nor the alert persists.
func TestCreateEmergencyRollback(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()

	env.store.txErr = errors.New("notification insert failed")
	_, _, err := svc.CreateEmergency(ctx, CreateEmergencyCommand{
		UserID:    "u1",
		VehicleID: "v1",
		Location:  types.Point{Lat: 12.9, Lng: 77.6},
	})
	if err == nil {
		t.Fatal("expected escalation to fail")
	}
	if len(env.store.requests) != 0 {
		t.Errorf("request persisted despite rollback: %d rows", len(env.store.requests))
	}
	if len(env.store.alerts) != 0 {
		t.Errorf("alert persisted despite rollback: %d rows", len(env.store.alerts))
	}
	if len(env.index.points) != 0 {
		t.Error("geo index touched despite rollback")
	}
	if len(env.notifier.pushed) != 0 {
		t.Error("push sent despite rollback")
	}
}

func TestCreateEmergencyValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  CreateEmergencyCommand
		want error
	}{
		{"missing user", CreateEmergencyCommand{VehicleID: "v1", Location: types.Point{Lat: 1, Lng: 1}}, ErrValidation},
		{"bad location", CreateEmergencyCommand{UserID: "u1", VehicleID: "v1", Location: types.Point{Lat: 91, Lng: 0}}, ErrValidation},
		{"bad alert type", CreateEmergencyCommand{UserID: "u1", VehicleID: "v1", Location: types.Point{Lat: 1, Lng: 1}, AlertType: "flood"}, ErrValidation},
		{"unknown user", CreateEmergencyCommand{UserID: "nobody", VehicleID: "v1", Location: types.Point{Lat: 1, Lng: 1}}, ErrNotFound},
		{"foreign vehicle", CreateEmergencyCommand{UserID: "u2", VehicleID: "v1", Location: types.Point{Lat: 1, Lng: 1}}, ErrForbidden},
	}
	for _, tc := range cases {
		if _, _, err := svc.CreateEmergency(ctx, tc.cmd); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestResolveOnlyFromActive(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()

	alert := env.seedAlert(t, StatusActive)
	resolved, err := svc.Resolve(ctx, alert.ID, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != StatusResolved {
		t.Errorf("status = %s, want resolved", resolved.Status)
	}
	if resolved.ResolvedAt == nil {
		t.Error("expected resolved_at to default to now")
	}

	if _, err := svc.Resolve(ctx, alert.ID, nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second resolve: got %v, want ErrInvalidState", err)
	}

	falseAlarm := env.seedAlert(t, StatusFalseAlarm)
	if _, err := svc.Resolve(ctx, falseAlarm.ID, nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("resolve false_alarm: got %v, want ErrInvalidState", err)
	}
}

func TestUpdateStatusRejectsActiveTarget(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()

	alert := env.seedAlert(t, StatusActive)
	if _, err := svc.UpdateStatus(ctx, alert.ID, StatusActive, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

// Contact and authority updates are deliberately not gated on alert status.
func TestMutatorsNotStatusGated(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()

	alert := env.seedAlert(t, StatusResolved)
	updated, err := svc.MarkAuthoritiesNotified(ctx, alert.ID)
	if err != nil {
		t.Fatalf("mark authorities: %v", err)
	}
	if !updated.NotifiedAuthorities {
		t.Error("expected notified_authorities true")
	}

	updated, err = svc.UpdateNotifiedContacts(ctx, alert.ID, []string{"+911234567890"})
	if err != nil {
		t.Fatalf("update contacts: %v", err)
	}
	if len(updated.NotifiedContacts) != 1 {
		t.Errorf("contacts = %v, want one entry", updated.NotifiedContacts)
	}
}

func TestDeleteRefusedWhileActive(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()

	active := env.seedAlert(t, StatusActive)
	if err := svc.Delete(ctx, active.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("delete active: got %v, want ErrInvalidState", err)
	}

	resolved := env.seedAlert(t, StatusResolved)
	if err := svc.Delete(ctx, resolved.ID); err != nil {
		t.Fatalf("delete resolved: %v", err)
	}
	if _, err := svc.Get(ctx, resolved.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get deleted: got %v, want ErrNotFound", err)
	}
}

func TestActiveCount(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()

	env.seedAlert(t, StatusActive)
	env.seedAlert(t, StatusActive)
	env.seedAlert(t, StatusResolved)

	n, err := svc.ActiveCount(ctx)
	if err != nil {
		t.Fatalf("active count: %v", err)
	}
	if n != 2 {
		t.Errorf("active count = %d, want 2", n)
	}
}

type testEnv struct {
	store    *memStore
	index    *memIndex
	notifier *captureNotifier
}

func newTestService(t *testing.T) (*Service, *testEnv) {
	t.Helper()
	env := &testEnv{
		store:    newMemStore(),
		index:    newMemIndex(),
		notifier: &captureNotifier{},
	}
	users := fakeUsers{"u1": {}, "u2": {}}
	vehicles := fakeVehicles{"v1": {OwnerID: "u1"}}
	svc := NewService(env.store, users, vehicles, env.notifier, env.index)
	return svc, env
}

func (e *testEnv) seedAlert(t *testing.T, status Status) *Alert {
	t.Helper()
	a := &Alert{
		ID:        types.NewID(),
		UserID:    "u1",
		VehicleID: "v1",
		Location:  types.Point{Lat: 12.9, Lng: 77.6},
		AlertType: AlertBreakdown,
		Status:    status,
	}
	if err := e.store.Create(context.Background(), a); err != nil {
		t.Fatalf("seed alert: %v", err)
	}
	return a
}

// memStore mimics the SQL store; txErr simulates a failure inside the
// escalation transaction, in which case nothing persists.
type memStore struct {
	mu       sync.Mutex
	requests map[types.ID]request.Request
	alerts   map[types.ID]Alert
	notes    map[types.ID]notification.Notification // keyed by request id
	txErr    error
}

func newMemStore() *memStore {
	return &memStore{
		requests: make(map[types.ID]request.Request),
		alerts:   make(map[types.ID]Alert),
		notes:    make(map[types.ID]notification.Notification),
	}
}

func (s *memStore) CreateEmergency(_ context.Context, req *request.Request, alert *Alert, note *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txErr != nil {
		return s.txErr
	}
	s.requests[req.ID] = *req
	s.alerts[alert.ID] = *alert
	s.notes[req.ID] = *note
	return nil
}

func (s *memStore) Create(_ context.Context, alert *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = *alert
	return nil
}

func (s *memStore) Get(_ context.Context, id types.ID) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := a
	return &cp, nil
}

func (s *memStore) ListAll(_ context.Context) ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Alert
	for _, a := range s.alerts {
		out = append(out, a)
	}
	return out, nil
}

func (s *memStore) ListByUser(_ context.Context, userID types.ID) ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Alert
	for _, a := range s.alerts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) ActiveCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.alerts {
		if a.Status == StatusActive {
			n++
		}
	}
	return n, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, resolvedAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	a.ResolvedAt = resolvedAt
	s.alerts[id] = a
	return true, nil
}

func (s *memStore) SetAuthoritiesNotified(_ context.Context, id types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return ErrNotFound
	}
	a.NotifiedAuthorities = true
	s.alerts[id] = a
	return nil
}

func (s *memStore) SetNotifiedContacts(_ context.Context, id types.ID, contacts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return ErrNotFound
	}
	a.NotifiedContacts = contacts
	s.alerts[id] = a
	return nil
}

func (s *memStore) Delete(_ context.Context, id types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[id]; !ok {
		return ErrNotFound
	}
	delete(s.alerts, id)
	return nil
}

type memIndex struct {
	mu     sync.Mutex
	points map[types.ID]types.Point
}

func newMemIndex() *memIndex {
	return &memIndex{points: make(map[types.ID]types.Point)}
}

func (i *memIndex) Add(_ context.Context, id types.ID, p types.Point) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.points[id] = p
	return nil
}

type fakeUsers map[types.ID]directory.User

func (f fakeUsers) GetUser(_ context.Context, id types.ID) (*directory.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	u.ID = id
	return &u, nil
}

type fakeVehicles map[types.ID]directory.Vehicle

func (f fakeVehicles) GetVehicle(_ context.Context, id types.ID) (*directory.Vehicle, error) {
	v, ok := f[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	v.ID = id
	return &v, nil
}

type captureNotifier struct {
	mu       sync.Mutex
	notified []notification.Notification
	pushed   []notification.Notification
}

func (n *captureNotifier) Notify(_ context.Context, note notification.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, note)
}

func (n *captureNotifier) Push(_ context.Context, note notification.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushed = append(n.pushed, note)
}
