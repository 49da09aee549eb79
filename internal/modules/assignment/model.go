// README: Service-assignment aggregate and status definitions.
package assignment

import (
	"time"

	"roadaid/internal/lifecycle"
	"roadaid/internal/types"
)

type Status string

const (
	StatusAssigned   Status = "assigned"
	StatusOnTheWay   Status = "on_the_way"
	StatusArrived    Status = "arrived"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Transitions is the assignment state flow (diagram) as code. Progression is
// linear but callers may jump forward (e.g. assigned → in_progress); moving
// backward is rejected, cancelled is reachable from every non-terminal state,
// and completed/cancelled are terminal.
var Transitions = lifecycle.New(map[Status][]Status{
	StatusAssigned:   {StatusOnTheWay, StatusArrived, StatusInProgress, StatusCompleted, StatusCancelled},
	StatusOnTheWay:   {StatusArrived, StatusInProgress, StatusCompleted, StatusCancelled},
	StatusArrived:    {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
})

func CanTransition(from, to Status) bool {
	return Transitions.CanTransition(from, to)
}

func Terminal(s Status) bool {
	return Transitions.Terminal(s)
}

// ValidStatus reports whether s is one of the six assignment statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusAssigned, StatusOnTheWay, StatusArrived, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Assignment struct {
	ID                       types.ID
	RequestID                types.ID
	ProviderID               types.ID
	MechanicID               *types.ID
	AssignedAt               time.Time
	EstimatedArrivalTime     *time.Time
	ActualArrivalTime        *time.Time
	Status                   Status
	EstimatedServiceDuration *int // minutes
	ActualServiceDuration    *int // minutes
	DistanceToCustomerKm     *float64
	CreatedAt                time.Time
	UpdatedAt                time.Time
}
