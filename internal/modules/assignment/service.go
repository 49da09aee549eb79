// README: Assignment manager: binds a provider/mechanic to a request and
// drives the linked request/assignment lifecycle.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"roadaid/internal/geo"
	"roadaid/internal/modules/directory"
	"roadaid/internal/modules/notification"
	"roadaid/internal/modules/request"
	"roadaid/internal/types"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("request already has a service assignment")
)

// Store is the persistence boundary for assignments. Create, UpdateStatus and
// Delete each run their paired request write in the same transaction as the
// assignment write, so a reader never observes the pair disagreeing. Create
// must surface a uniqueness violation on request_id as ErrConflict: the
// service-level existence check is only a pre-filter, the DB constraint is
// the enforcement under concurrency.
type Store interface {
	Create(ctx context.Context, a *Assignment) error
	Get(ctx context.Context, id types.ID) (*Assignment, error)
	GetByRequest(ctx context.Context, requestID types.ID) (*Assignment, error)
	ListAll(ctx context.Context) ([]Assignment, error)
	ListByProvider(ctx context.Context, providerID types.ID) ([]Assignment, error)
	ListByMechanic(ctx context.Context, mechanicID types.ID) ([]Assignment, error)
	ListByStatus(ctx context.Context, status Status) ([]Assignment, error)
	UpdateStatus(ctx context.Context, a *Assignment, from Status, cascade request.Status) (bool, error)
	SetMechanic(ctx context.Context, id, mechanicID types.ID) error
	SetETA(ctx context.Context, id types.ID, eta time.Time) error
	Delete(ctx context.Context, id, requestID types.ID) error
}

type RequestReader interface {
	Get(ctx context.Context, id types.ID) (*request.Request, error)
}

type ProviderDirectory interface {
	GetProvider(ctx context.Context, id types.ID) (*directory.Provider, error)
}

type MechanicDirectory interface {
	GetMechanic(ctx context.Context, id types.ID) (*directory.Mechanic, error)
}

// PendingIndex mirrors the request module's advisory geo index: an accepted
// request leaves it, a deleted assignment puts the request back.
type PendingIndex interface {
	Add(ctx context.Context, id types.ID, p types.Point) error
	Remove(ctx context.Context, id types.ID) error
}

// TravelEstimator predicts driving time and distance from provider to
// customer; used to default the ETA when the caller omits one.
type TravelEstimator interface {
	Estimate(ctx context.Context, origin, dest types.Point) (time.Duration, float64, error)
}

type Notifier interface {
	Notify(ctx context.Context, n notification.Notification)
}

type Service struct {
	store     Store
	requests  RequestReader
	providers ProviderDirectory
	mechanics MechanicDirectory
	index     PendingIndex
	eta       TravelEstimator
	notifier  Notifier
}

func NewService(store Store, requests RequestReader, providers ProviderDirectory, mechanics MechanicDirectory, index PendingIndex, eta TravelEstimator, notifier Notifier) *Service {
	return &Service{
		store:     store,
		requests:  requests,
		providers: providers,
		mechanics: mechanics,
		index:     index,
		eta:       eta,
		notifier:  notifier,
	}
}

type CreateCommand struct {
	RequestID             types.ID
	ProviderID            types.ID
	MechanicID            *types.ID
	EstimatedArrival      *time.Time
	EstimatedDurationMins *int
	DistanceKm            *float64
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Assignment, error) {
	if cmd.RequestID == "" || cmd.ProviderID == "" {
		return nil, fmt.Errorf("%w: request_id and provider_id are required", ErrValidation)
	}
	req, err := s.requests.Get(ctx, cmd.RequestID)
	if err != nil {
		if errors.Is(err, request.ErrNotFound) {
			return nil, fmt.Errorf("request %s: %w", cmd.RequestID, ErrNotFound)
		}
		return nil, err
	}
	if req.Status != request.StatusPending {
		return nil, fmt.Errorf("%w: request is %s, expected pending", ErrInvalidState, req.Status)
	}
	provider, err := s.providers.GetProvider(ctx, cmd.ProviderID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("provider %s: %w", cmd.ProviderID, ErrNotFound)
		}
		return nil, err
	}
	if cmd.MechanicID != nil {
		mech, err := s.mechanics.GetMechanic(ctx, *cmd.MechanicID)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				return nil, fmt.Errorf("mechanic %s: %w", *cmd.MechanicID, ErrNotFound)
			}
			return nil, err
		}
		if !mech.BelongsTo(cmd.ProviderID) {
			return nil, fmt.Errorf("%w: mechanic does not belong to this service provider", ErrValidation)
		}
	}

	// Pre-filter only; the unique constraint on request_id decides races.
	if _, err := s.store.GetByRequest(ctx, cmd.RequestID); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	a := &Assignment{
		ID:                       types.NewID(),
		RequestID:                cmd.RequestID,
		ProviderID:               cmd.ProviderID,
		MechanicID:               cmd.MechanicID,
		AssignedAt:               now,
		EstimatedArrivalTime:     cmd.EstimatedArrival,
		Status:                   StatusAssigned,
		EstimatedServiceDuration: cmd.EstimatedDurationMins,
		DistanceToCustomerKm:     cmd.DistanceKm,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	s.fillEstimates(ctx, a, provider, req)

	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}
	s.indexRemove(ctx, req.ID)
	s.notify(ctx, notification.Notification{
		UserID:            req.UserID,
		Title:             "Service Provider Assigned",
		Message:           fmt.Sprintf("%s has been assigned to your breakdown request.", provider.BusinessName),
		Type:              notification.TypeServiceUpdate,
		RelatedEntityType: "assignment",
		RelatedEntityID:   a.ID,
	})
	return a, nil
}

// fillEstimates defaults the ETA and the distance to the customer when the
// caller omitted them, preferring the travel estimator and falling back to
// straight-line distance.
func (s *Service) fillEstimates(ctx context.Context, a *Assignment, provider *directory.Provider, req *request.Request) {
	if a.EstimatedArrivalTime != nil && a.DistanceToCustomerKm != nil {
		return
	}
	if s.eta != nil {
		if dur, km, err := s.eta.Estimate(ctx, provider.Location, req.Location); err == nil {
			if a.EstimatedArrivalTime == nil {
				eta := a.AssignedAt.Add(dur)
				a.EstimatedArrivalTime = &eta
			}
			if a.DistanceToCustomerKm == nil {
				a.DistanceToCustomerKm = &km
			}
			return
		} else {
			logrus.WithField("assignment_id", a.ID).WithError(err).Warn("travel estimate failed")
		}
	}
	if a.DistanceToCustomerKm == nil {
		km := geo.DistanceKm(provider.Location.Lat, provider.Location.Lng, req.Location.Lat, req.Location.Lng)
		a.DistanceToCustomerKm = &km
	}
}

type UpdateStatusCommand struct {
	AssignmentID       types.ID
	Status             Status
	ActualArrival      *time.Time
	ActualDurationMins *int
}

func (s *Service) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*Assignment, error) {
	if !ValidStatus(cmd.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, cmd.Status)
	}
	a, err := s.store.Get(ctx, cmd.AssignmentID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(a.Status, cmd.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, a.Status, cmd.Status)
	}

	from := a.Status
	a.Status = cmd.Status
	a.UpdatedAt = time.Now()
	if cmd.Status == StatusArrived {
		if cmd.ActualArrival != nil {
			a.ActualArrivalTime = cmd.ActualArrival
		} else {
			now := time.Now()
			a.ActualArrivalTime = &now
		}
	} else if cmd.ActualArrival != nil {
		a.ActualArrivalTime = cmd.ActualArrival
	}
	if cmd.Status == StatusCompleted || cmd.ActualDurationMins != nil {
		a.ActualServiceDuration = cmd.ActualDurationMins
	}

	req, err := s.requests.Get(ctx, a.RequestID)
	if err != nil {
		return nil, err
	}
	cascade := cascadeStatus(cmd.Status)
	if cascade == req.Status {
		cascade = "" // already in lockstep, no request write needed
	}

	ok, err := s.store.UpdateStatus(ctx, a, from, cascade)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	if cascade != "" {
		s.notify(ctx, notification.Notification{
			UserID:            req.UserID,
			Title:             "Request Status Updated",
			Message:           fmt.Sprintf("Your breakdown request status has been updated to: %s", cascade),
			Type:              notification.TypeServiceUpdate,
			RelatedEntityType: "request",
			RelatedEntityID:   req.ID,
		})
	}
	return a, nil
}

// cascadeStatus maps an assignment status to the request status it forces,
// or "" when the request is untouched.
func cascadeStatus(s Status) request.Status {
	switch s {
	case StatusCompleted:
		return request.StatusCompleted
	case StatusCancelled:
		return request.StatusCancelled
	case StatusInProgress:
		return request.StatusInProgress
	}
	return ""
}

// ReassignMechanic swaps the mechanic on an assignment; the new mechanic must
// work for the assignment's existing provider. No status change.
func (s *Service) ReassignMechanic(ctx context.Context, id, mechanicID types.ID) (*Assignment, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	mech, err := s.mechanics.GetMechanic(ctx, mechanicID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("mechanic %s: %w", mechanicID, ErrNotFound)
		}
		return nil, err
	}
	if !mech.BelongsTo(a.ProviderID) {
		return nil, fmt.Errorf("%w: mechanic does not belong to the assigned service provider", ErrValidation)
	}
	if err := s.store.SetMechanic(ctx, id, mechanicID); err != nil {
		return nil, err
	}
	a.MechanicID = &mechanicID
	return a, nil
}

func (s *Service) UpdateETA(ctx context.Context, id types.ID, eta time.Time) (*Assignment, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetETA(ctx, id, eta); err != nil {
		return nil, err
	}
	a.EstimatedArrivalTime = &eta
	return a, nil
}

// Delete removes an assignment that never delivered service and resets the
// linked request to pending so it can be rebid. Completed assignments cannot
// be deleted.
func (s *Service) Delete(ctx context.Context, id types.ID) error {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.Status == StatusCompleted {
		return fmt.Errorf("%w: completed assignment cannot be deleted", ErrInvalidState)
	}
	if err := s.store.Delete(ctx, id, a.RequestID); err != nil {
		return err
	}
	if req, err := s.requests.Get(ctx, a.RequestID); err == nil {
		s.indexAdd(ctx, req)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Assignment, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetByRequest(ctx context.Context, requestID types.ID) (*Assignment, error) {
	return s.store.GetByRequest(ctx, requestID)
}

func (s *Service) ListAll(ctx context.Context) ([]Assignment, error) {
	return s.store.ListAll(ctx)
}

func (s *Service) ListByProvider(ctx context.Context, providerID types.ID) ([]Assignment, error) {
	return s.store.ListByProvider(ctx, providerID)
}

func (s *Service) ListByMechanic(ctx context.Context, mechanicID types.ID) ([]Assignment, error) {
	return s.store.ListByMechanic(ctx, mechanicID)
}

func (s *Service) ListByStatus(ctx context.Context, status Status) ([]Assignment, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.store.ListByStatus(ctx, status)
}

func (s *Service) notify(ctx context.Context, n notification.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, n)
	}
}

func (s *Service) indexRemove(ctx context.Context, id types.ID) {
	if s.index == nil {
		return
	}
	if err := s.index.Remove(ctx, id); err != nil {
		logrus.WithField("request_id", id).WithError(err).Warn("pending geo index remove failed")
	}
}

func (s *Service) indexAdd(ctx context.Context, req *request.Request) {
	if s.index == nil {
		return
	}
	if err := s.index.Add(ctx, req.ID, req.Location); err != nil {
		logrus.WithField("request_id", req.ID).WithError(err).Warn("pending geo index add failed")
	}
}
