// README: Assignment store backed by PostgreSQL; multi-write operations run
// inside one transaction.
package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"roadaid/internal/modules/request"
	"roadaid/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const uniqueViolation = "23505"

const assignmentColumns = `
	id, request_id, provider_id, mechanic_id, assigned_at,
	estimated_arrival_time, actual_arrival_time, status,
	estimated_service_duration, actual_service_duration,
	distance_to_customer_km, created_at, updated_at`

// Create inserts the assignment and moves its request pending → accepted in
// one transaction. The unique constraint on request_id turns a concurrent
// duplicate into ErrConflict; a request that is no longer pending turns into
// ErrInvalidState and rolls the insert back.
func (s *PGStore) Create(ctx context.Context, a *Assignment) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO service_assignments (
				id, request_id, provider_id, mechanic_id, assigned_at,
				estimated_arrival_time, actual_arrival_time, status,
				estimated_service_duration, actual_service_duration,
				distance_to_customer_km, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5,
				$6, $7, $8,
				$9, $10,
				$11, $12, $13
			)`,
			string(a.ID),
			string(a.RequestID),
			string(a.ProviderID),
			idPtr(a.MechanicID),
			a.AssignedAt,
			a.EstimatedArrivalTime,
			a.ActualArrivalTime,
			string(a.Status),
			a.EstimatedServiceDuration,
			a.ActualServiceDuration,
			a.DistanceToCustomerKm,
			a.CreatedAt,
			a.UpdatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return ErrConflict
			}
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE breakdown_requests
			SET status = 'accepted', updated_at = NOW()
			WHERE id = $1 AND status = 'pending'`,
			string(a.RequestID),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return ErrInvalidState
		}
		return nil
	})
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Assignment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+assignmentColumns+`
		FROM service_assignments
		WHERE id = $1`, string(id),
	)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *PGStore) GetByRequest(ctx context.Context, requestID types.ID) (*Assignment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+assignmentColumns+`
		FROM service_assignments
		WHERE request_id = $1`, string(requestID),
	)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *PGStore) ListAll(ctx context.Context) ([]Assignment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM service_assignments
		ORDER BY assigned_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PGStore) ListByProvider(ctx context.Context, providerID types.ID) ([]Assignment, error) {
	return s.list(ctx, `provider_id = $1`, string(providerID))
}

func (s *PGStore) ListByMechanic(ctx context.Context, mechanicID types.ID) ([]Assignment, error) {
	return s.list(ctx, `mechanic_id = $1`, string(mechanicID))
}

func (s *PGStore) ListByStatus(ctx context.Context, status Status) ([]Assignment, error) {
	return s.list(ctx, `status = $1`, string(status))
}

func (s *PGStore) list(ctx context.Context, where string, arg any) ([]Assignment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM service_assignments
		WHERE `+where+`
		ORDER BY assigned_at DESC`, arg,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// UpdateStatus writes the assignment guarded on the expected current status
// and, when cascade is non-empty, moves the parent request in the same
// transaction. The request write is guarded against terminal states as a
// backstop; the assignment CAS is what decides races.
func (s *PGStore) UpdateStatus(ctx context.Context, a *Assignment, from Status, cascade request.Status) (bool, error) {
	ok := false
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE service_assignments
			SET status = $1,
			    actual_arrival_time = $2,
			    actual_service_duration = $3,
			    updated_at = $4
			WHERE id = $5 AND status = $6`,
			string(a.Status),
			a.ActualArrivalTime,
			a.ActualServiceDuration,
			a.UpdatedAt,
			string(a.ID),
			string(from),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return nil
		}
		if cascade != "" {
			if _, err := tx.Exec(ctx, `
				UPDATE breakdown_requests
				SET status = $1, updated_at = NOW()
				WHERE id = $2 AND status NOT IN ('completed', 'cancelled')`,
				string(cascade), string(a.RequestID),
			); err != nil {
				return err
			}
		}
		ok = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *PGStore) SetMechanic(ctx context.Context, id, mechanicID types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE service_assignments
		SET mechanic_id = $1, updated_at = NOW()
		WHERE id = $2`, string(mechanicID), string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) SetETA(ctx context.Context, id types.ID, eta time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE service_assignments
		SET estimated_arrival_time = $1, updated_at = NOW()
		WHERE id = $2`, eta, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the assignment and resets the request to pending in one
// transaction so the request can be rebid.
func (s *PGStore) Delete(ctx context.Context, id, requestID types.ID) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM service_assignments
			WHERE id = $1 AND status <> 'completed'`, string(id),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			// A completion landing between the service pre-check and the
			// delete must surface as a state conflict, not a missing row.
			var status string
			err := tx.QueryRow(ctx, `
				SELECT status FROM service_assignments
				WHERE id = $1`, string(id),
			).Scan(&status)
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			return ErrInvalidState
		}
		_, err = tx.Exec(ctx, `
			UPDATE breakdown_requests
			SET status = 'pending', updated_at = NOW()
			WHERE id = $1`, string(requestID),
		)
		return err
	})
}

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var (
		a          Assignment
		mechanicID *string
	)
	err := row.Scan(
		&a.ID, &a.RequestID, &a.ProviderID, &mechanicID, &a.AssignedAt,
		&a.EstimatedArrivalTime, &a.ActualArrivalTime, &a.Status,
		&a.EstimatedServiceDuration, &a.ActualServiceDuration,
		&a.DistanceToCustomerKm, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if mechanicID != nil {
		m := types.ID(*mechanicID)
		a.MechanicID = &m
	}
	return &a, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
