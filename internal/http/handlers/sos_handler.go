// README: SOS alert handlers, including the emergency escalation entry point.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"roadaid/internal/modules/sos"
	"roadaid/internal/types"
)

type SOSHandler struct {
	alerts *sos.Service
}

func NewSOSHandler(svc *sos.Service) *SOSHandler {
	return &SOSHandler{alerts: svc}
}

type createAlertReq struct {
	UserID      string      `json:"requester_id"`
	VehicleID   string      `json:"vehicle_id"`
	Location    types.Point `json:"location"`
	Address     string      `json:"location_address"`
	AlertType   string      `json:"alert_type"`
	Description string      `json:"description"`
}

func (req createAlertReq) command() sos.CreateEmergencyCommand {
	return sos.CreateEmergencyCommand{
		UserID:      types.ID(req.UserID),
		VehicleID:   types.ID(req.VehicleID),
		Location:    req.Location,
		Address:     req.Address,
		AlertType:   sos.AlertType(req.AlertType),
		Description: req.Description,
	}
}

// CreateEmergency escalates: one transaction produces the emergency request,
// its SOS alert and the urgent notification.
func (h *SOSHandler) CreateEmergency(c *gin.Context) {
	var req createAlertReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, alert, err := h.alerts.CreateEmergency(c.Request.Context(), req.command())
	if err != nil {
		writeSOSError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{
		"request": toRequestResponse(r),
		"alert":   toAlertResponse(alert),
	})
}

func (h *SOSHandler) Create(c *gin.Context) {
	var req createAlertReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	alert, err := h.alerts.Create(c.Request.Context(), req.command())
	if err != nil {
		writeSOSError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toAlertResponse(alert))
}

func (h *SOSHandler) Get(c *gin.Context) {
	alert, err := h.alerts.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeSOSError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toAlertResponse(alert))
}

func (h *SOSHandler) ListAll(c *gin.Context) {
	list, err := h.alerts.ListAll(c.Request.Context())
	if err != nil {
		writeSOSError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"alerts": toAlertResponses(list)})
}

func (h *SOSHandler) ListByUser(c *gin.Context) {
	list, err := h.alerts.ListByUser(c.Request.Context(), types.ID(c.Param("userId")))
	if err != nil {
		writeSOSError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"alerts": toAlertResponses(list)})
}

func (h *SOSHandler) ActiveCount(c *gin.Context) {
	n, err := h.alerts.ActiveCount(c.Request.Context())
	if err != nil {
		writeSOSError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"active": n})
}

type updateAlertStatusReq struct {
	Status     string     `json:"status"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

func (h *SOSHandler) UpdateStatus(c *gin.Context) {
	var req updateAlertStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	alert, err := h.alerts.UpdateStatus(c.Request.Context(), types.ID(c.Param("id")), sos.Status(req.Status), req.ResolvedAt)
	if err != nil {
		writeSOSError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toAlertResponse(alert))
}

func (h *SOSHandler) MarkAuthoritiesNotified(c *gin.Context) {
	alert, err := h.alerts.MarkAuthoritiesNotified(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeSOSError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toAlertResponse(alert))
}

type updateContactsReq struct {
	NotifiedContacts []string `json:"notified_contacts"`
}

func (h *SOSHandler) UpdateContacts(c *gin.Context) {
	var req updateContactsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	alert, err := h.alerts.UpdateNotifiedContacts(c.Request.Context(), types.ID(c.Param("id")), req.NotifiedContacts)
	if err != nil {
		writeSOSError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toAlertResponse(alert))
}

func (h *SOSHandler) Delete(c *gin.Context) {
	if err := h.alerts.Delete(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeSOSError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"deleted": true})
}
