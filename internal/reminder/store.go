package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// EntityTypeAppointment is the entity type reminders attached to
// appointments carry.
const EntityTypeAppointment = "APPOINTMENT"

// DB abstracts the pgx exec interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store manages scheduled reminders tied to domain entities.
type Store struct {
	db DB
}

// NewStore creates a reminder store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Deactivate disables every active reminder attached to an entity.
// Deactivating an entity with no reminders is a no-op.
func (s *Store) Deactivate(ctx context.Context, entityID uuid.UUID, entityType string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		UPDATE reminders SET active = false, updated_at = $1
		WHERE entity_id = $2 AND entity_type = $3 AND active`,
		now, entityID, entityType)
	if err != nil {
		return fmt.Errorf("reminder: deactivate: %w", err)
	}
	return nil
}
