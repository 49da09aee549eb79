// README: Emergency escalation: atomic request+alert+notification creation
// and SOS alert lifecycle.
package sos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"roadaid/internal/modules/directory"
	"roadaid/internal/modules/notification"
	"roadaid/internal/modules/request"
	"roadaid/internal/types"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("alert state conflict")
)

// Store is the persistence boundary for SOS alerts. CreateEmergency must
// persist the request, the alert and the urgent notification as one unit:
// a failure at any of the three writes leaves none of them behind.
type Store interface {
	CreateEmergency(ctx context.Context, req *request.Request, alert *Alert, note *notification.Notification) error
	Create(ctx context.Context, alert *Alert) error
	Get(ctx context.Context, id types.ID) (*Alert, error)
	ListAll(ctx context.Context) ([]Alert, error)
	ListByUser(ctx context.Context, userID types.ID) ([]Alert, error)
	ActiveCount(ctx context.Context) (int, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, resolvedAt *time.Time) (bool, error)
	SetAuthoritiesNotified(ctx context.Context, id types.ID) error
	SetNotifiedContacts(ctx context.Context, id types.ID, contacts []string) error
	Delete(ctx context.Context, id types.ID) error
}

type UserDirectory interface {
	GetUser(ctx context.Context, id types.ID) (*directory.User, error)
}

type VehicleDirectory interface {
	GetVehicle(ctx context.Context, id types.ID) (*directory.Vehicle, error)
}

// Notifier covers both best-effort dispatch (Notify) and push-only delivery
// (Push) for the emergency path, whose notification row is written inside the
// escalation transaction.
type Notifier interface {
	Notify(ctx context.Context, n notification.Notification)
	Push(ctx context.Context, n notification.Notification)
}

type PendingIndex interface {
	Add(ctx context.Context, id types.ID, p types.Point) error
}

type Service struct {
	store    Store
	users    UserDirectory
	vehicles VehicleDirectory
	notifier Notifier
	index    PendingIndex
}

func NewService(store Store, users UserDirectory, vehicles VehicleDirectory, notifier Notifier, index PendingIndex) *Service {
	return &Service{store: store, users: users, vehicles: vehicles, notifier: notifier, index: index}
}

type CreateEmergencyCommand struct {
	UserID      types.ID
	VehicleID   types.ID
	Location    types.Point
	Address     string
	AlertType   AlertType
	Description string
}

// CreateEmergency bypasses the normal create-then-assign flow: it verifies
// the requester and vehicle, then persists the emergency request, its SOS
// alert and the urgent notification in a single transaction. An emergency
// alert without its notification is an unacceptable partial state, so unlike
// every other path the notification write here can roll the whole unit back.
func (s *Service) CreateEmergency(ctx context.Context, cmd CreateEmergencyCommand) (*request.Request, *Alert, error) {
	if cmd.UserID == "" || cmd.VehicleID == "" {
		return nil, nil, fmt.Errorf("%w: user_id and vehicle_id are required", ErrValidation)
	}
	if !cmd.Location.Valid() {
		return nil, nil, fmt.Errorf("%w: location out of bounds", ErrValidation)
	}
	alertType := cmd.AlertType
	if alertType == "" {
		alertType = AlertBreakdown
	}
	if !ValidAlertType(alertType) {
		return nil, nil, fmt.Errorf("%w: unknown alert_type %q", ErrValidation, cmd.AlertType)
	}
	if err := s.verifyOwnership(ctx, cmd.UserID, cmd.VehicleID); err != nil {
		return nil, nil, err
	}

	description := cmd.Description
	if description == "" {
		description = "Emergency assistance needed"
	}

	now := time.Now()
	req := &request.Request{
		ID:          types.NewID(),
		UserID:      cmd.UserID,
		VehicleID:   cmd.VehicleID,
		RequestType: "emergency",
		Description: description,
		Location:    cmd.Location,
		Address:     cmd.Address,
		Status:      request.StatusPending,
		IsEmergency: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	alert := &Alert{
		ID:                  types.NewID(),
		UserID:              cmd.UserID,
		VehicleID:           cmd.VehicleID,
		RequestID:           &req.ID,
		Location:            cmd.Location,
		Address:             cmd.Address,
		AlertType:           alertType,
		Status:              StatusActive,
		NotifiedContacts:    []string{},
		NotifiedAuthorities: false,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	note := &notification.Notification{
		ID:                types.NewID(),
		UserID:            cmd.UserID,
		Title:             "EMERGENCY ASSISTANCE REQUESTED",
		Message:           "Your emergency request has been received. Help is on the way.",
		Type:              notification.TypeEmergency,
		RelatedEntityType: "request",
		RelatedEntityID:   req.ID,
		CreatedAt:         now,
	}

	if err := s.store.CreateEmergency(ctx, req, alert, note); err != nil {
		return nil, nil, err
	}

	// Post-commit side channels, both best-effort.
	if s.index != nil {
		if err := s.index.Add(ctx, req.ID, req.Location); err != nil {
			logrus.WithField("request_id", req.ID).WithError(err).Warn("pending geo index add failed")
		}
	}
	if s.notifier != nil {
		s.notifier.Push(ctx, *note)
	}
	return req, alert, nil
}

// Create records a standalone SOS alert outside the emergency-request flow.
func (s *Service) Create(ctx context.Context, cmd CreateEmergencyCommand) (*Alert, error) {
	if cmd.UserID == "" || cmd.VehicleID == "" {
		return nil, fmt.Errorf("%w: user_id and vehicle_id are required", ErrValidation)
	}
	if !cmd.Location.Valid() {
		return nil, fmt.Errorf("%w: location out of bounds", ErrValidation)
	}
	if !ValidAlertType(cmd.AlertType) {
		return nil, fmt.Errorf("%w: unknown alert_type %q", ErrValidation, cmd.AlertType)
	}
	if err := s.verifyOwnership(ctx, cmd.UserID, cmd.VehicleID); err != nil {
		return nil, err
	}

	now := time.Now()
	alert := &Alert{
		ID:               types.NewID(),
		UserID:           cmd.UserID,
		VehicleID:        cmd.VehicleID,
		Location:         cmd.Location,
		Address:          cmd.Address,
		AlertType:        cmd.AlertType,
		Status:           StatusActive,
		NotifiedContacts: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Create(ctx, alert); err != nil {
		return nil, err
	}
	s.notify(ctx, notification.Notification{
		UserID:            alert.UserID,
		Title:             "SOS Alert Created",
		Message:           fmt.Sprintf("Your %s alert has been created and is being processed.", alert.AlertType),
		Type:              notification.TypeEmergency,
		RelatedEntityType: "sos_alert",
		RelatedEntityID:   alert.ID,
	})
	return alert, nil
}

// UpdateStatus moves an alert out of active; resolved stamps resolved_at
// (defaulting to now).
func (s *Service) UpdateStatus(ctx context.Context, id types.ID, to Status, resolvedAt *time.Time) (*Alert, error) {
	if to != StatusResolved && to != StatusFalseAlarm {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	alert, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(alert.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, alert.Status, to)
	}

	var stamp *time.Time
	if to == StatusResolved {
		if resolvedAt != nil {
			stamp = resolvedAt
		} else {
			now := time.Now()
			stamp = &now
		}
	}
	ok, err := s.store.UpdateStatus(ctx, id, alert.Status, to, stamp)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	alert.Status = to
	alert.ResolvedAt = stamp

	if to == StatusResolved {
		s.notify(ctx, notification.Notification{
			UserID:            alert.UserID,
			Title:             "SOS Alert Resolved",
			Message:           fmt.Sprintf("Your %s alert has been resolved.", alert.AlertType),
			Type:              notification.TypeEmergency,
			RelatedEntityType: "sos_alert",
			RelatedEntityID:   alert.ID,
		})
	}
	return alert, nil
}

// Resolve is the common case of UpdateStatus.
func (s *Service) Resolve(ctx context.Context, id types.ID, resolvedAt *time.Time) (*Alert, error) {
	return s.UpdateStatus(ctx, id, StatusResolved, resolvedAt)
}

// MarkAuthoritiesNotified is not gated on alert status: authority
// notification can lag resolution.
func (s *Service) MarkAuthoritiesNotified(ctx context.Context, id types.ID) (*Alert, error) {
	if err := s.store.SetAuthoritiesNotified(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// UpdateNotifiedContacts is likewise not gated on alert status.
func (s *Service) UpdateNotifiedContacts(ctx context.Context, id types.ID, contacts []string) (*Alert, error) {
	if contacts == nil {
		contacts = []string{}
	}
	if err := s.store.SetNotifiedContacts(ctx, id, contacts); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Alert, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListAll(ctx context.Context) ([]Alert, error) {
	return s.store.ListAll(ctx)
}

func (s *Service) ListByUser(ctx context.Context, userID types.ID) ([]Alert, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil, err
	}
	return s.store.ListByUser(ctx, userID)
}

func (s *Service) ActiveCount(ctx context.Context) (int, error) {
	return s.store.ActiveCount(ctx)
}

// Delete refuses to remove an active alert.
func (s *Service) Delete(ctx context.Context, id types.ID) error {
	alert, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if alert.Status == StatusActive {
		return fmt.Errorf("%w: cannot delete an active SOS alert", ErrInvalidState)
	}
	return s.store.Delete(ctx, id)
}

func (s *Service) verifyOwnership(ctx context.Context, userID, vehicleID types.ID) error {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return err
	}
	vehicle, err := s.vehicles.GetVehicle(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return fmt.Errorf("vehicle %s: %w", vehicleID, ErrNotFound)
		}
		return err
	}
	if vehicle.OwnerID != userID {
		return fmt.Errorf("vehicle does not belong to this user: %w", ErrForbidden)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, n notification.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, n)
	}
}
