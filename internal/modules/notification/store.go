// README: Notification store backed by PostgreSQL.
package notification

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"roadaid/internal/infra"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, n *Notification) error {
	return CreateIn(ctx, s.db, n)
}

// CreateIn inserts a notification through the given querier, which may be a
// transaction. The emergency-escalation path uses this to couple the
// notification write to its transaction; everything else goes through Create.
func CreateIn(ctx context.Context, q infra.Querier, n *Notification) error {
	_, err := q.Exec(ctx, `
		INSERT INTO notifications (
			id, user_id, title, message, type,
			related_entity_type, related_entity_id, is_read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(n.ID),
		string(n.UserID),
		n.Title,
		n.Message,
		string(n.Type),
		n.RelatedEntityType,
		string(n.RelatedEntityID),
		n.IsRead,
		n.CreatedAt,
	)
	return err
}
