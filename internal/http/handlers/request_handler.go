// README: Breakdown-request handlers: intake, patch, cancel, listings, nearby.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"roadaid/internal/modules/assignment"
	"roadaid/internal/modules/directory"
	"roadaid/internal/modules/request"
	"roadaid/internal/types"
)

// AssignmentReader resolves the linked assignment for the single-request view.
type AssignmentReader interface {
	GetByRequest(ctx context.Context, requestID types.ID) (*assignment.Assignment, error)
}

type ProviderDirectory interface {
	GetProvider(ctx context.Context, id types.ID) (*directory.Provider, error)
}

type RequestHandler struct {
	requests        *request.Service
	assignments     AssignmentReader
	providers       ProviderDirectory
	defaultRadiusKm float64
}

func NewRequestHandler(requests *request.Service, assignments AssignmentReader, providers ProviderDirectory, defaultRadiusKm float64) *RequestHandler {
	return &RequestHandler{
		requests:        requests,
		assignments:     assignments,
		providers:       providers,
		defaultRadiusKm: defaultRadiusKm,
	}
}

type createRequestReq struct {
	UserID              string          `json:"requester_id"`
	VehicleID           string          `json:"vehicle_id"`
	RequestType         string          `json:"request_type"`
	Description         string          `json:"description"`
	Location            types.Point     `json:"location"`
	Address             string          `json:"location_address"`
	IsEmergency         bool            `json:"is_emergency"`
	AIDiagnosis         json.RawMessage `json:"ai_diagnosis"`
	SelfRepairAttempted bool            `json:"self_repair_attempted"`
}

func (h *RequestHandler) Create(c *gin.Context) {
	var req createRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.requests.Create(c.Request.Context(), request.CreateCommand{
		UserID:              types.ID(req.UserID),
		VehicleID:           types.ID(req.VehicleID),
		RequestType:         req.RequestType,
		Description:         req.Description,
		Location:            req.Location,
		Address:             req.Address,
		IsEmergency:         req.IsEmergency,
		AIDiagnosis:         req.AIDiagnosis,
		SelfRepairAttempted: req.SelfRepairAttempted,
	})
	if err != nil {
		writeRequestError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toRequestResponse(r))
}

// Get returns the request together with its linked assignment and provider,
// when one exists.
func (h *RequestHandler) Get(c *gin.Context) {
	id := types.ID(c.Param("id"))
	r, err := h.requests.Get(c.Request.Context(), id)
	if err != nil {
		writeRequestError(c, err)
		return
	}

	resp := gin.H{"request": toRequestResponse(r)}
	if a, err := h.assignments.GetByRequest(c.Request.Context(), id); err == nil {
		resp["assignment"] = toAssignmentResponse(a)
		if p, err := h.providers.GetProvider(c.Request.Context(), a.ProviderID); err == nil {
			resp["provider"] = toProviderResponse(p)
		}
	} else if !errors.Is(err, assignment.ErrNotFound) {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, resp)
}

func (h *RequestHandler) ListByUser(c *gin.Context) {
	list, err := h.requests.ListByUser(c.Request.Context(), types.ID(c.Param("userId")))
	if err != nil {
		writeRequestError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"requests": toRequestResponses(list)})
}

func (h *RequestHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	status := request.Status(c.Query("status"))

	list, total, err := h.requests.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		writeRequestError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"requests": toRequestResponses(list),
		"total":    total,
	})
}

type updateRequestReq struct {
	RequestType         *string         `json:"request_type"`
	Description         *string         `json:"description"`
	Location            *types.Point    `json:"location"`
	Address             *string         `json:"location_address"`
	Status              *request.Status `json:"status"`
	IsEmergency         *bool           `json:"is_emergency"`
	AIDiagnosis         json.RawMessage `json:"ai_diagnosis"`
	SelfRepairAttempted *bool           `json:"self_repair_attempted"`
}

func (h *RequestHandler) Update(c *gin.Context) {
	var req updateRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.requests.Update(c.Request.Context(), types.ID(c.Param("id")), request.Patch{
		RequestType:         req.RequestType,
		Description:         req.Description,
		Location:            req.Location,
		Address:             req.Address,
		Status:              req.Status,
		IsEmergency:         req.IsEmergency,
		AIDiagnosis:         req.AIDiagnosis,
		SelfRepairAttempted: req.SelfRepairAttempted,
	})
	if err != nil {
		writeRequestError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRequestResponse(r))
}

type cancelRequestReq struct {
	Reason string `json:"reason"`
}

func (h *RequestHandler) Cancel(c *gin.Context) {
	// An empty or missing body is fine; the reason defaults server-side.
	var req cancelRequestReq
	_ = c.ShouldBindJSON(&req)
	r, err := h.requests.Cancel(c.Request.Context(), types.ID(c.Param("id")), req.Reason)
	if err != nil {
		writeRequestError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRequestResponse(r))
}

func (h *RequestHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("latitude"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("longitude"), 64)
	if errLat != nil || errLng != nil {
		writeError(c, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	radius := h.defaultRadiusKm
	if raw := c.Query("radius"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid radius")
			return
		}
		radius = r
	}

	nearby, err := h.requests.NearbyPending(c.Request.Context(), types.Point{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeRequestError(c, err)
		return
	}
	out := make([]gin.H, len(nearby))
	for i, n := range nearby {
		out[i] = gin.H{
			"request":     toRequestResponse(&n.Request),
			"distance_km": n.DistanceKm,
		}
	}
	writeJSON(c, http.StatusOK, gin.H{"requests": out})
}
