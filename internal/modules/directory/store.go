// README: Directory store backed by PostgreSQL (lookup-only).
package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"roadaid/internal/types"
)

var ErrNotFound = errors.New("directory entity not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetUser(ctx context.Context, id types.ID) (*User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, email, phone_number
		FROM users
		WHERE id = $1`, string(id),
	)
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetVehicle(ctx context.Context, id types.ID) (*Vehicle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, owner_id, make, model, year, license_plate
		FROM vehicles
		WHERE id = $1`, string(id),
	)
	var v Vehicle
	err := row.Scan(&v.ID, &v.OwnerID, &v.Make, &v.Model, &v.Year, &v.LicensePlate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) GetProvider(ctx context.Context, id types.ID) (*Provider, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, business_name, provider_type, phone_number, rating, location_lat, location_lng
		FROM service_providers
		WHERE id = $1`, string(id),
	)
	var p Provider
	err := row.Scan(&p.ID, &p.BusinessName, &p.ProviderType, &p.PhoneNumber, &p.Rating, &p.Location.Lat, &p.Location.Lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetMechanic(ctx context.Context, id types.ID) (*Mechanic, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, provider_id, name
		FROM provider_mechanics
		WHERE id = $1`, string(id),
	)
	var m Mechanic
	err := row.Scan(&m.ID, &m.ProviderID, &m.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
