// README: SOS alert aggregate and status definitions.
package sos

import (
	"time"

	"roadaid/internal/lifecycle"
	"roadaid/internal/types"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusResolved   Status = "resolved"
	StatusFalseAlarm Status = "false_alarm"
)

var Transitions = lifecycle.New(map[Status][]Status{
	StatusActive: {StatusResolved, StatusFalseAlarm},
})

func CanTransition(from, to Status) bool {
	return Transitions.CanTransition(from, to)
}

type AlertType string

const (
	AlertAccident  AlertType = "accident"
	AlertBreakdown AlertType = "breakdown"
	AlertMedical   AlertType = "medical"
	AlertSecurity  AlertType = "security"
)

func ValidAlertType(t AlertType) bool {
	switch t {
	case AlertAccident, AlertBreakdown, AlertMedical, AlertSecurity:
		return true
	}
	return false
}

type Alert struct {
	ID                  types.ID
	UserID              types.ID
	VehicleID           types.ID
	RequestID           *types.ID // set when spawned by an emergency request
	Location            types.Point
	Address             string
	AlertType           AlertType
	Status              Status
	NotifiedContacts    []string
	NotifiedAuthorities bool
	ResolvedAt          *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
