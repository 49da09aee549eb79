// README: Service-assignment handlers: create, lifecycle, listings.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"roadaid/internal/modules/assignment"
	"roadaid/internal/types"
)

type AssignmentHandler struct {
	assignments *assignment.Service
}

func NewAssignmentHandler(svc *assignment.Service) *AssignmentHandler {
	return &AssignmentHandler{assignments: svc}
}

type createAssignmentReq struct {
	RequestID                string     `json:"request_id"`
	ProviderID               string     `json:"provider_id"`
	MechanicID               *string    `json:"mechanic_id"`
	EstimatedArrivalTime     *time.Time `json:"estimated_arrival_time"`
	EstimatedServiceDuration *int       `json:"estimated_service_duration"`
	DistanceToCustomerKm     *float64   `json:"distance_to_customer_km"`
}

func (h *AssignmentHandler) Create(c *gin.Context) {
	var req createAssignmentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	var mechanicID *types.ID
	if req.MechanicID != nil {
		id := types.ID(*req.MechanicID)
		mechanicID = &id
	}
	a, err := h.assignments.Create(c.Request.Context(), assignment.CreateCommand{
		RequestID:             types.ID(req.RequestID),
		ProviderID:            types.ID(req.ProviderID),
		MechanicID:            mechanicID,
		EstimatedArrival:      req.EstimatedArrivalTime,
		EstimatedDurationMins: req.EstimatedServiceDuration,
		DistanceKm:            req.DistanceToCustomerKm,
	})
	if err != nil {
		writeAssignmentError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toAssignmentResponse(a))
}

func (h *AssignmentHandler) Get(c *gin.Context) {
	a, err := h.assignments.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeAssignmentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toAssignmentResponse(a))
}

func (h *AssignmentHandler) GetByRequest(c *gin.Context) {
	a, err := h.assignments.GetByRequest(c.Request.Context(), types.ID(c.Param("requestId")))
	if err != nil {
		writeAssignmentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toAssignmentResponse(a))
}

func (h *AssignmentHandler) ListAll(c *gin.Context) {
	list, err := h.assignments.ListAll(c.Request.Context())
	if err != nil {
		writeAssignmentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"assignments": toAssignmentResponses(list)})
}

func (h *AssignmentHandler) ListByProvider(c *gin.Context) {
	list, err := h.assignments.ListByProvider(c.Request.Context(), types.ID(c.Param("providerId")))
	if err != nil {
		writeAssignmentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"assignments": toAssignmentResponses(list)})
}

func (h *AssignmentHandler) ListByMechanic(c *gin.Context) {
	list, err := h.assignments.ListByMechanic(c.Request.Context(), types.ID(c.Param("mechanicId")))
	if err != nil {
		writeAssignmentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"assignments": toAssignmentResponses(list)})
}

func (h *AssignmentHandler) ListByStatus(c *gin.Context) {
	list, err := h.assignments.ListByStatus(c.Request.Context(), assignment.Status(c.Param("status")))
	if err != nil {
		writeAssignmentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"assignments": toAssignmentResponses(list)})
}

type updateAssignmentStatusReq struct {
	Status                string     `json:"status"`
	ActualArrivalTime     *time.Time `json:"actual_arrival_time"`
	ActualServiceDuration *int       `json:"actual_service_duration"`
}

func (h *AssignmentHandler) UpdateStatus(c *gin.Context) {
	var req updateAssignmentStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	a, err := h.assignments.UpdateStatus(c.Request.Context(), assignment.UpdateStatusCommand{
		AssignmentID:       types.ID(c.Param("id")),
		Status:             assignment.Status(req.Status),
		ActualArrival:      req.ActualArrivalTime,
		ActualDurationMins: req.ActualServiceDuration,
	})
	if err != nil {
		writeAssignmentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toAssignmentResponse(a))
}

type reassignMechanicReq struct {
	MechanicID string `json:"mechanic_id"`
}

func (h *AssignmentHandler) ReassignMechanic(c *gin.Context) {
	var req reassignMechanicReq
	if err := c.ShouldBindJSON(&req); err != nil || req.MechanicID == "" {
		writeError(c, http.StatusBadRequest, "mechanic_id is required")
		return
	}
	a, err := h.assignments.ReassignMechanic(c.Request.Context(), types.ID(c.Param("id")), types.ID(req.MechanicID))
	if err != nil {
		writeAssignmentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toAssignmentResponse(a))
}

type updateETAReq struct {
	EstimatedArrivalTime time.Time `json:"estimated_arrival_time"`
}

func (h *AssignmentHandler) UpdateETA(c *gin.Context) {
	var req updateETAReq
	if err := c.ShouldBindJSON(&req); err != nil || req.EstimatedArrivalTime.IsZero() {
		writeError(c, http.StatusBadRequest, "estimated_arrival_time is required")
		return
	}
	a, err := h.assignments.UpdateETA(c.Request.Context(), types.ID(c.Param("id")), req.EstimatedArrivalTime)
	if err != nil {
		writeAssignmentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toAssignmentResponse(a))
}

func (h *AssignmentHandler) Delete(c *gin.Context) {
	if err := h.assignments.Delete(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeAssignmentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"deleted": true})
}
