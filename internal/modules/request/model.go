// README: Breakdown-request aggregate and status definitions.
package request

import (
	"encoding/json"
	"time"

	"roadaid/internal/lifecycle"
	"roadaid/internal/types"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Transitions is the request state flow (diagram) as code. Forward skips are
// allowed so cascades from a skipped assignment progression stay legal;
// completed and cancelled are terminal.
var Transitions = lifecycle.New(map[Status][]Status{
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
})

func CanTransition(from, to Status) bool {
	return Transitions.CanTransition(from, to)
}

func Terminal(s Status) bool {
	return Transitions.Terminal(s)
}

type Request struct {
	ID                  types.ID
	UserID              types.ID
	VehicleID           types.ID
	RequestType         string
	Description         string
	Location            types.Point
	Address             string
	Status              Status
	IsEmergency         bool
	AIDiagnosis         json.RawMessage
	SelfRepairAttempted bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Patch carries only the fields the caller intends to change; nil means the
// field was not sent, which is distinct from an explicit zero value.
type Patch struct {
	RequestType         *string
	Description         *string
	Location            *types.Point
	Address             *string
	Status              *Status
	IsEmergency         *bool
	AIDiagnosis         json.RawMessage
	SelfRepairAttempted *bool
}

// Nearby pairs a pending request with its distance from the queried origin.
type Nearby struct {
	Request    Request
	DistanceKm float64
}
