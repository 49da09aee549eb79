// README: Request intake service: create, patch, cancel, nearby lookup.
package request

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"roadaid/internal/geo"
	"roadaid/internal/modules/directory"
	"roadaid/internal/modules/notification"
	"roadaid/internal/types"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("request state conflict")
)

// Store is the persistence boundary for breakdown requests. Update and
// CancelCascade are compare-and-swap guarded on the expected current status;
// a false return means a concurrent writer got there first.
type Store interface {
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id types.ID) (*Request, error)
	ListByUser(ctx context.Context, userID types.ID) ([]Request, error)
	List(ctx context.Context, status Status, limit, offset int) ([]Request, int, error)
	ListPending(ctx context.Context) ([]Request, error)
	ListPendingByIDs(ctx context.Context, ids []types.ID) ([]Request, error)
	CountPending(ctx context.Context) (int, error)
	Update(ctx context.Context, r *Request, from Status) (bool, error)
	CancelCascade(ctx context.Context, id types.ID, from Status, description string) (bool, error)
}

// PendingIndex is an advisory geo index over pending requests. Nearby is a
// bounding pre-filter only: results are re-checked against the store and the
// Haversine distance. Count and Rebuild let the service verify the index
// holds every pending request before trusting it, and repair it when not.
type PendingIndex interface {
	Add(ctx context.Context, id types.ID, p types.Point) error
	Remove(ctx context.Context, id types.ID) error
	Count(ctx context.Context) (int64, error)
	Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
	Rebuild(ctx context.Context, points map[types.ID]types.Point) error
}

type UserDirectory interface {
	GetUser(ctx context.Context, id types.ID) (*directory.User, error)
}

type VehicleDirectory interface {
	GetVehicle(ctx context.Context, id types.ID) (*directory.Vehicle, error)
}

type Notifier interface {
	Notify(ctx context.Context, n notification.Notification)
}

type Service struct {
	store    Store
	index    PendingIndex
	users    UserDirectory
	vehicles VehicleDirectory
	notifier Notifier

	// indexStale is set when an index write fails and cleared by a rebuild;
	// while set, nearby lookups scan all pending rows instead.
	indexStale atomic.Bool
}

func NewService(store Store, index PendingIndex, users UserDirectory, vehicles VehicleDirectory, notifier Notifier) *Service {
	return &Service{store: store, index: index, users: users, vehicles: vehicles, notifier: notifier}
}

type CreateCommand struct {
	UserID              types.ID
	VehicleID           types.ID
	RequestType         string
	Description         string
	Location            types.Point
	Address             string
	IsEmergency         bool
	AIDiagnosis         json.RawMessage
	SelfRepairAttempted bool
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Request, error) {
	if cmd.UserID == "" || cmd.VehicleID == "" || cmd.RequestType == "" {
		return nil, fmt.Errorf("%w: user_id, vehicle_id and request_type are required", ErrValidation)
	}
	if !cmd.Location.Valid() {
		return nil, fmt.Errorf("%w: location out of bounds", ErrValidation)
	}
	if _, err := s.users.GetUser(ctx, cmd.UserID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", cmd.UserID, ErrNotFound)
		}
		return nil, err
	}
	vehicle, err := s.vehicles.GetVehicle(ctx, cmd.VehicleID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("vehicle %s: %w", cmd.VehicleID, ErrNotFound)
		}
		return nil, err
	}
	if vehicle.OwnerID != cmd.UserID {
		return nil, fmt.Errorf("vehicle does not belong to this user: %w", ErrForbidden)
	}

	now := time.Now()
	r := &Request{
		ID:                  types.NewID(),
		UserID:              cmd.UserID,
		VehicleID:           cmd.VehicleID,
		RequestType:         cmd.RequestType,
		Description:         cmd.Description,
		Location:            cmd.Location,
		Address:             cmd.Address,
		Status:              StatusPending,
		IsEmergency:         cmd.IsEmergency,
		AIDiagnosis:         cmd.AIDiagnosis,
		SelfRepairAttempted: cmd.SelfRepairAttempted,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	s.indexAdd(ctx, r)
	s.notify(ctx, notification.Notification{
		UserID:            r.UserID,
		Title:             "Breakdown Request Created",
		Message:           fmt.Sprintf("Your %s request has been created and is awaiting assignment.", r.RequestType),
		Type:              notification.TypeServiceUpdate,
		RelatedEntityType: "request",
		RelatedEntityID:   r.ID,
	})
	return r, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Request, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID types.ID) ([]Request, error) {
	return s.store.ListByUser(ctx, userID)
}

// List returns a page of requests, newest first, optionally filtered by
// status, together with the total match count.
func (s *Service) List(ctx context.Context, status Status, limit, offset int) ([]Request, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, status, limit, offset)
}

func (s *Service) Update(ctx context.Context, id types.ID, p Patch) (*Request, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if Terminal(r.Status) {
		return nil, fmt.Errorf("%w: request is %s", ErrInvalidState, r.Status)
	}
	from := r.Status
	if p.Status != nil && *p.Status != from && !CanTransition(from, *p.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, *p.Status)
	}
	if p.Location != nil && !p.Location.Valid() {
		return nil, fmt.Errorf("%w: location out of bounds", ErrValidation)
	}

	apply(r, p)
	r.UpdatedAt = time.Now()
	ok, err := s.store.Update(ctx, r, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	if r.Status != from {
		if from == StatusPending {
			s.indexRemove(ctx, r.ID)
		}
		s.notify(ctx, notification.Notification{
			UserID:            r.UserID,
			Title:             "Request Status Updated",
			Message:           fmt.Sprintf("Your breakdown request status has been updated to: %s", r.Status),
			Type:              notification.TypeServiceUpdate,
			RelatedEntityType: "request",
			RelatedEntityID:   r.ID,
		})
	}
	return r, nil
}

// Cancel marks the request cancelled, appending the reason to the description
// as an audit trail, and cancels any live linked assignment in the same
// transaction.
func (s *Service) Cancel(ctx context.Context, id types.ID, reason string) (*Request, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if Terminal(r.Status) {
		return nil, fmt.Errorf("%w: request is %s", ErrInvalidState, r.Status)
	}
	if reason == "" {
		reason = "Not provided"
	}
	desc := r.Description + "\n\nCancellation reason: " + reason

	ok, err := s.store.CancelCascade(ctx, id, r.Status, desc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.indexRemove(ctx, id)
	s.notify(ctx, notification.Notification{
		UserID:            r.UserID,
		Title:             "Request Cancelled",
		Message:           "Your breakdown request has been cancelled.",
		Type:              notification.TypeServiceUpdate,
		RelatedEntityType: "request",
		RelatedEntityID:   id,
	})
	return s.store.Get(ctx, id)
}

// nearbyPrefilterMargin widens the advisory index query so borderline
// candidates are never dropped before the authoritative Haversine check.
const nearbyPrefilterMargin = 1.1

// NearbyPending returns pending requests within radiusKm of origin, closest
// first. The geo index, when present, narrows the candidate set; the
// Haversine filter is authoritative.
func (s *Service) NearbyPending(ctx context.Context, origin types.Point, radiusKm float64) ([]Nearby, error) {
	if !origin.Valid() {
		return nil, fmt.Errorf("%w: origin out of bounds", ErrValidation)
	}
	if radiusKm <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", ErrValidation)
	}

	pending, err := s.pendingCandidates(ctx, origin, radiusKm)
	if err != nil {
		return nil, err
	}

	matches := geo.FindWithinRadius(origin.Lat, origin.Lng, pending, radiusKm, func(r Request) (float64, float64) {
		return r.Location.Lat, r.Location.Lng
	})
	out := make([]Nearby, len(matches))
	for i, m := range matches {
		out[i] = Nearby{Request: m.Candidate, DistanceKm: m.DistanceKm}
	}
	return out, nil
}

// pendingCandidates narrows the candidate set through the geo index when the
// index verifiably holds every pending request; otherwise it scans all
// pending rows and rebuilds the index from the scan.
func (s *Service) pendingCandidates(ctx context.Context, origin types.Point, radiusKm float64) ([]Request, error) {
	if s.index == nil {
		return s.store.ListPending(ctx)
	}
	if s.indexComplete(ctx) {
		ids, err := s.index.Nearby(ctx, origin, radiusKm*nearbyPrefilterMargin)
		if err == nil {
			return s.store.ListPendingByIDs(ctx, ids)
		}
		logrus.WithError(err).Warn("pending geo index unavailable, falling back to full scan")
		return s.store.ListPending(ctx)
	}
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.rebuildIndex(ctx, pending); err != nil {
		logrus.WithError(err).Warn("pending geo index rebuild failed")
	}
	return pending, nil
}

// indexComplete reports whether the geo index can be trusted to hold every
// pending request. A failed write marks it stale until a rebuild; the
// membership count is cross-checked against SQL to catch data loss outside
// this process, such as a flushed or restarted Redis.
func (s *Service) indexComplete(ctx context.Context) bool {
	if s.indexStale.Load() {
		return false
	}
	members, err := s.index.Count(ctx)
	if err != nil {
		return false
	}
	pending, err := s.store.CountPending(ctx)
	if err != nil {
		return false
	}
	return members == int64(pending)
}

// RebuildPendingIndex repopulates the geo index from the pending rows. Called
// at startup so the first nearby lookups after a Redis restart do not pay the
// fallback scan.
func (s *Service) RebuildPendingIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return err
	}
	return s.rebuildIndex(ctx, pending)
}

func (s *Service) rebuildIndex(ctx context.Context, pending []Request) error {
	points := make(map[types.ID]types.Point, len(pending))
	for _, r := range pending {
		points[r.ID] = r.Location
	}
	if err := s.index.Rebuild(ctx, points); err != nil {
		s.indexStale.Store(true)
		return err
	}
	s.indexStale.Store(false)
	return nil
}

func (s *Service) notify(ctx context.Context, n notification.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, n)
	}
}

func (s *Service) indexAdd(ctx context.Context, r *Request) {
	if s.index == nil {
		return
	}
	if err := s.index.Add(ctx, r.ID, r.Location); err != nil {
		s.indexStale.Store(true)
		logrus.WithField("request_id", r.ID).WithError(err).Warn("pending geo index add failed")
	}
}

func (s *Service) indexRemove(ctx context.Context, id types.ID) {
	if s.index == nil {
		return
	}
	if err := s.index.Remove(ctx, id); err != nil {
		s.indexStale.Store(true)
		logrus.WithField("request_id", id).WithError(err).Warn("pending geo index remove failed")
	}
}

func apply(r *Request, p Patch) {
	if p.RequestType != nil {
		r.RequestType = *p.RequestType
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Location != nil {
		r.Location = *p.Location
	}
	if p.Address != nil {
		r.Address = *p.Address
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.IsEmergency != nil {
		r.IsEmergency = *p.IsEmergency
	}
	if p.AIDiagnosis != nil {
		r.AIDiagnosis = p.AIDiagnosis
	}
	if p.SelfRepairAttempted != nil {
		r.SelfRepairAttempted = *p.SelfRepairAttempted
	}
}
