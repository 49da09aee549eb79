// README: Wire representations of the domain aggregates.
package handlers

import (
	"encoding/json"
	"time"

	"roadaid/internal/modules/assignment"
	"roadaid/internal/modules/directory"
	"roadaid/internal/modules/request"
	"roadaid/internal/modules/sos"
	"roadaid/internal/types"
)

type requestResponse struct {
	ID                  types.ID        `json:"id"`
	UserID              types.ID        `json:"user_id"`
	VehicleID           types.ID        `json:"vehicle_id"`
	RequestType         string          `json:"request_type"`
	Description         string          `json:"description"`
	Location            types.Point     `json:"location"`
	Address             string          `json:"location_address,omitempty"`
	Status              request.Status  `json:"status"`
	IsEmergency         bool            `json:"is_emergency"`
	AIDiagnosis         json.RawMessage `json:"ai_diagnosis,omitempty"`
	SelfRepairAttempted bool            `json:"self_repair_attempted"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func toRequestResponse(r *request.Request) requestResponse {
	return requestResponse{
		ID:                  r.ID,
		UserID:              r.UserID,
		VehicleID:           r.VehicleID,
		RequestType:         r.RequestType,
		Description:         r.Description,
		Location:            r.Location,
		Address:             r.Address,
		Status:              r.Status,
		IsEmergency:         r.IsEmergency,
		AIDiagnosis:         r.AIDiagnosis,
		SelfRepairAttempted: r.SelfRepairAttempted,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func toRequestResponses(list []request.Request) []requestResponse {
	out := make([]requestResponse, len(list))
	for i := range list {
		out[i] = toRequestResponse(&list[i])
	}
	return out
}

type assignmentResponse struct {
	ID                       types.ID          `json:"id"`
	RequestID                types.ID          `json:"request_id"`
	ProviderID               types.ID          `json:"provider_id"`
	MechanicID               *types.ID         `json:"mechanic_id,omitempty"`
	AssignedAt               time.Time         `json:"assigned_at"`
	EstimatedArrivalTime     *time.Time        `json:"estimated_arrival_time,omitempty"`
	ActualArrivalTime        *time.Time        `json:"actual_arrival_time,omitempty"`
	Status                   assignment.Status `json:"status"`
	EstimatedServiceDuration *int              `json:"estimated_service_duration,omitempty"`
	ActualServiceDuration    *int              `json:"actual_service_duration,omitempty"`
	DistanceToCustomerKm     *float64          `json:"distance_to_customer_km,omitempty"`
	CreatedAt                time.Time         `json:"created_at"`
	UpdatedAt                time.Time         `json:"updated_at"`
}

func toAssignmentResponse(a *assignment.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:                       a.ID,
		RequestID:                a.RequestID,
		ProviderID:               a.ProviderID,
		MechanicID:               a.MechanicID,
		AssignedAt:               a.AssignedAt,
		EstimatedArrivalTime:     a.EstimatedArrivalTime,
		ActualArrivalTime:        a.ActualArrivalTime,
		Status:                   a.Status,
		EstimatedServiceDuration: a.EstimatedServiceDuration,
		ActualServiceDuration:    a.ActualServiceDuration,
		DistanceToCustomerKm:     a.DistanceToCustomerKm,
		CreatedAt:                a.CreatedAt,
		UpdatedAt:                a.UpdatedAt,
	}
}

func toAssignmentResponses(list []assignment.Assignment) []assignmentResponse {
	out := make([]assignmentResponse, len(list))
	for i := range list {
		out[i] = toAssignmentResponse(&list[i])
	}
	return out
}

type providerResponse struct {
	ID           types.ID    `json:"id"`
	BusinessName string      `json:"business_name"`
	ProviderType string      `json:"provider_type"`
	PhoneNumber  string      `json:"phone_number"`
	Rating       float64     `json:"rating"`
	Location     types.Point `json:"location"`
}

func toProviderResponse(p *directory.Provider) providerResponse {
	return providerResponse{
		ID:           p.ID,
		BusinessName: p.BusinessName,
		ProviderType: p.ProviderType,
		PhoneNumber:  p.PhoneNumber,
		Rating:       p.Rating,
		Location:     p.Location,
	}
}

type alertResponse struct {
	ID                  types.ID      `json:"id"`
	UserID              types.ID      `json:"user_id"`
	VehicleID           types.ID      `json:"vehicle_id"`
	RequestID           *types.ID     `json:"request_id,omitempty"`
	Location            types.Point   `json:"location"`
	Address             string        `json:"location_address,omitempty"`
	AlertType           sos.AlertType `json:"alert_type"`
	Status              sos.Status    `json:"status"`
	NotifiedContacts    []string      `json:"notified_contacts"`
	NotifiedAuthorities bool          `json:"notified_authorities"`
	ResolvedAt          *time.Time    `json:"resolved_at,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

func toAlertResponse(a *sos.Alert) alertResponse {
	return alertResponse{
		ID:                  a.ID,
		UserID:              a.UserID,
		VehicleID:           a.VehicleID,
		RequestID:           a.RequestID,
		Location:            a.Location,
		Address:             a.Address,
		AlertType:           a.AlertType,
		Status:              a.Status,
		NotifiedContacts:    a.NotifiedContacts,
		NotifiedAuthorities: a.NotifiedAuthorities,
		ResolvedAt:          a.ResolvedAt,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

func toAlertResponses(list []sos.Alert) []alertResponse {
	out := make([]alertResponse, len(list))
	for i := range list {
		out[i] = toAlertResponse(&list[i])
	}
	return out
}
