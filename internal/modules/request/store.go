// README: Breakdown-request store backed by PostgreSQL.
package request

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"roadaid/internal/infra"
	"roadaid/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const requestColumns = `
	id, user_id, vehicle_id, request_type, description,
	location_lat, location_lng, location_address,
	status, is_emergency, ai_diagnosis, self_repair_attempted,
	created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, r *Request) error {
	return CreateIn(ctx, s.db, r)
}

// CreateIn inserts a request through the given querier, which may be a
// transaction (the emergency escalation path relies on this).
func CreateIn(ctx context.Context, q infra.Querier, r *Request) error {
	_, err := q.Exec(ctx, `
		INSERT INTO breakdown_requests (
			id, user_id, vehicle_id, request_type, description,
			location_lat, location_lng, location_address,
			status, is_emergency, ai_diagnosis, self_repair_attempted,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12,
			$13, $14
		)`,
		string(r.ID),
		string(r.UserID),
		string(r.VehicleID),
		r.RequestType,
		r.Description,
		r.Location.Lat, r.Location.Lng,
		r.Address,
		string(r.Status),
		r.IsEmergency,
		[]byte(r.AIDiagnosis),
		r.SelfRepairAttempted,
		r.CreatedAt,
		r.UpdatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Request, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM breakdown_requests
		WHERE id = $1`, string(id),
	)
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PGStore) ListByUser(ctx context.Context, userID types.ID) ([]Request, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM breakdown_requests
		WHERE user_id = $1
		ORDER BY created_at DESC`, string(userID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (s *PGStore) List(ctx context.Context, status Status, limit, offset int) ([]Request, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM breakdown_requests
		WHERE ($1 = '' OR status = $1)`, string(status),
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM breakdown_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, string(status), limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list, err := scanRequests(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *PGStore) ListPending(ctx context.Context) ([]Request, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM breakdown_requests
		WHERE status = 'pending'
		ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// ListPendingByIDs re-checks status in SQL so a stale geo-index entry can
// never surface a non-pending request.
func (s *PGStore) ListPendingByIDs(ctx context.Context, ids []types.ID) ([]Request, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM breakdown_requests
		WHERE status = 'pending' AND id = ANY($1)
		ORDER BY created_at`, raw,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (s *PGStore) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM breakdown_requests
		WHERE status = 'pending'`,
	).Scan(&n)
	return n, err
}

// Update writes the merged request guarded on the expected current status.
func (s *PGStore) Update(ctx context.Context, r *Request, from Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE breakdown_requests
		SET request_type = $1,
		    description = $2,
		    location_lat = $3,
		    location_lng = $4,
		    location_address = $5,
		    status = $6,
		    is_emergency = $7,
		    ai_diagnosis = $8,
		    self_repair_attempted = $9,
		    updated_at = $10
		WHERE id = $11 AND status = $12`,
		r.RequestType,
		r.Description,
		r.Location.Lat, r.Location.Lng,
		r.Address,
		string(r.Status),
		r.IsEmergency,
		[]byte(r.AIDiagnosis),
		r.SelfRepairAttempted,
		r.UpdatedAt,
		string(r.ID),
		string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CancelCascade cancels the request and any live linked assignment in one
// transaction so a reader never observes the pair disagreeing.
func (s *PGStore) CancelCascade(ctx context.Context, id types.ID, from Status, description string) (bool, error) {
	ok := false
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE breakdown_requests
			SET status = 'cancelled', description = $1, updated_at = NOW()
			WHERE id = $2 AND status = $3`,
			description, string(id), string(from),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return nil
		}
		if _, err := tx.Exec(ctx, `
			UPDATE service_assignments
			SET status = 'cancelled', updated_at = NOW()
			WHERE request_id = $1 AND status NOT IN ('completed', 'cancelled')`,
			string(id),
		); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func scanRequest(row pgx.Row) (*Request, error) {
	var (
		r       Request
		address *string
		diag    []byte
	)
	err := row.Scan(
		&r.ID, &r.UserID, &r.VehicleID, &r.RequestType, &r.Description,
		&r.Location.Lat, &r.Location.Lng, &address,
		&r.Status, &r.IsEmergency, &diag, &r.SelfRepairAttempted,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if address != nil {
		r.Address = *address
	}
	if diag != nil {
		r.AIDiagnosis = diag
	}
	return &r, nil
}

func scanRequests(rows pgx.Rows) ([]Request, error) {
	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
