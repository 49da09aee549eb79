// README: Notification record created as a side effect of state changes.
package notification

import (
	"time"

	"roadaid/internal/types"
)

type Type string

const (
	TypeServiceUpdate Type = "service_update"
	TypeEmergency     Type = "emergency"
)

// Notification is write-only from this core's point of view: it is created on
// every state change and never read back.
type Notification struct {
	ID                types.ID
	UserID            types.ID
	Title             string
	Message           string
	Type              Type
	RelatedEntityType string
	RelatedEntityID   types.ID
	IsRead            bool
	CreatedAt         time.Time
}
