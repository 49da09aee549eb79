// README: SOS alert store backed by PostgreSQL; the emergency escalation
// writes request, alert and notification in one transaction.
package sos

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"roadaid/internal/infra"
	"roadaid/internal/modules/notification"
	"roadaid/internal/modules/request"
	"roadaid/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const alertColumns = `
	id, user_id, vehicle_id, request_id,
	location_lat, location_lng, location_address,
	alert_type, status, notified_contacts, notified_authorities,
	resolved_at, created_at, updated_at`

// CreateEmergency runs the whole escalation as one transaction: the
// emergency request, the SOS alert and the urgent notification either all
// land or none do.
func (s *PGStore) CreateEmergency(ctx context.Context, req *request.Request, alert *Alert, note *notification.Notification) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := request.CreateIn(ctx, tx, req); err != nil {
			return err
		}
		if err := createIn(ctx, tx, alert); err != nil {
			return err
		}
		return notification.CreateIn(ctx, tx, note)
	})
}

func (s *PGStore) Create(ctx context.Context, alert *Alert) error {
	return createIn(ctx, s.db, alert)
}

func createIn(ctx context.Context, q infra.Querier, a *Alert) error {
	_, err := q.Exec(ctx, `
		INSERT INTO sos_alerts (
			id, user_id, vehicle_id, request_id,
			location_lat, location_lng, location_address,
			alert_type, status, notified_contacts, notified_authorities,
			resolved_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14
		)`,
		string(a.ID),
		string(a.UserID),
		string(a.VehicleID),
		idPtr(a.RequestID),
		a.Location.Lat, a.Location.Lng,
		a.Address,
		string(a.AlertType),
		string(a.Status),
		a.NotifiedContacts,
		a.NotifiedAuthorities,
		a.ResolvedAt,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Alert, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+alertColumns+`
		FROM sos_alerts
		WHERE id = $1`, string(id),
	)
	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *PGStore) ListAll(ctx context.Context) ([]Alert, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+alertColumns+`
		FROM sos_alerts
		ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (s *PGStore) ListByUser(ctx context.Context, userID types.ID) ([]Alert, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+alertColumns+`
		FROM sos_alerts
		WHERE user_id = $1
		ORDER BY created_at DESC`, string(userID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (s *PGStore) ActiveCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM sos_alerts
		WHERE status = 'active'`,
	).Scan(&n)
	return n, err
}

// UpdateStatus is guarded on the expected current status.
func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, resolvedAt *time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE sos_alerts
		SET status = $1, resolved_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		string(to), resolvedAt, string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) SetAuthoritiesNotified(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE sos_alerts
		SET notified_authorities = TRUE, updated_at = NOW()
		WHERE id = $1`, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) SetNotifiedContacts(ctx context.Context, id types.ID, contacts []string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE sos_alerts
		SET notified_contacts = $1, updated_at = NOW()
		WHERE id = $2`, contacts, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM sos_alerts
		WHERE id = $1`, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func scanAlert(row pgx.Row) (*Alert, error) {
	var (
		a         Alert
		requestID *string
		address   *string
	)
	err := row.Scan(
		&a.ID, &a.UserID, &a.VehicleID, &requestID,
		&a.Location.Lat, &a.Location.Lng, &address,
		&a.AlertType, &a.Status, &a.NotifiedContacts, &a.NotifiedAuthorities,
		&a.ResolvedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if requestID != nil {
		id := types.ID(*requestID)
		a.RequestID = &id
	}
	if address != nil {
		a.Address = *address
	}
	if a.NotifiedContacts == nil {
		a.NotifiedContacts = []string{}
	}
	return &a, nil
}

func scanAlerts(rows pgx.Rows) ([]Alert, error) {
	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
