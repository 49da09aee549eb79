// README: HTTP-level tests for the breakdown-request surface.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"roadaid/internal/http/handlers"
	"roadaid/internal/modules/assignment"
	"roadaid/internal/modules/directory"
	"roadaid/internal/modules/request"
	"roadaid/internal/types"
)

func buildTestRouter(store *memRequestStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	users := fakeUsers{"u1": {}, "u2": {}}
	vehicles := fakeVehicles{"v1": {OwnerID: "u1"}}
	svc := request.NewService(store, nil, users, vehicles, nil)

	r := gin.New()
	h := handlers.NewRequestHandler(svc, emptyAssignments{}, fakeProviders{}, 50)
	r.POST("/breakdown-requests", h.Create)
	r.GET("/breakdown-requests/nearby", h.Nearby)
	r.GET("/breakdown-requests/:id", h.Get)
	r.PUT("/breakdown-requests/:id", h.Update)
	r.POST("/breakdown-requests/:id/cancel", h.Cancel)
	return r
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateRequest(t *testing.T) {
	r := buildTestRouter(newMemRequestStore())
	w := doRequest(r, http.MethodPost, "/breakdown-requests", map[string]any{
		"requester_id": "u1",
		"vehicle_id":   "v1",
		"request_type": "mechanical",
		"location":     map[string]float64{"latitude": 12.9, "longitude": 77.6},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "pending" || resp.ID == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCreateRequestMissingFields(t *testing.T) {
	r := buildTestRouter(newMemRequestStore())
	w := doRequest(r, http.MethodPost, "/breakdown-requests", map[string]any{
		"requester_id": "u1",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCreateRequestForeignVehicle(t *testing.T) {
	r := buildTestRouter(newMemRequestStore())
	w := doRequest(r, http.MethodPost, "/breakdown-requests", map[string]any{
		"requester_id": "u2",
		"vehicle_id":   "v1",
		"request_type": "mechanical",
		"location":     map[string]float64{"latitude": 12.9, "longitude": 77.6},
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestGetRequestNotFound(t *testing.T) {
	r := buildTestRouter(newMemRequestStore())
	w := doRequest(r, http.MethodGet, "/breakdown-requests/doesnotexist", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestUpdateCancelledRequestConflicts(t *testing.T) {
	store := newMemRequestStore()
	store.requests["r1"] = request.Request{ID: "r1", UserID: "u1", Status: request.StatusCancelled}
	r := buildTestRouter(store)

	w := doRequest(r, http.MethodPut, "/breakdown-requests/r1", map[string]any{
		"description": "x",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(r, http.MethodPost, "/breakdown-requests/r1/cancel", map[string]any{
		"reason": "again",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("cancel cancelled: expected 409, got %d", w.Code)
	}
}

func TestNearbyRequiresCoordinates(t *testing.T) {
	r := buildTestRouter(newMemRequestStore())
	w := doRequest(r, http.MethodGet, "/breakdown-requests/nearby?latitude=12.9", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

type memRequestStore struct {
	requests map[types.ID]request.Request
}

func newMemRequestStore() *memRequestStore {
	return &memRequestStore{requests: make(map[types.ID]request.Request)}
}

func (s *memRequestStore) Create(_ context.Context, r *request.Request) error {
	s.requests[r.ID] = *r
	return nil
}

func (s *memRequestStore) Get(_ context.Context, id types.ID) (*request.Request, error) {
	r, ok := s.requests[id]
	if !ok {
		return nil, request.ErrNotFound
	}
	cp := r
	return &cp, nil
}

func (s *memRequestStore) ListByUser(_ context.Context, userID types.ID) ([]request.Request, error) {
	var out []request.Request
	for _, r := range s.requests {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memRequestStore) List(_ context.Context, status request.Status, limit, offset int) ([]request.Request, int, error) {
	var out []request.Request
	for _, r := range s.requests {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func (s *memRequestStore) ListPending(_ context.Context) ([]request.Request, error) {
	var out []request.Request
	for _, r := range s.requests {
		if r.Status == request.StatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memRequestStore) ListPendingByIDs(_ context.Context, ids []types.ID) ([]request.Request, error) {
	var out []request.Request
	for _, id := range ids {
		if r, ok := s.requests[id]; ok && r.Status == request.StatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memRequestStore) CountPending(_ context.Context) (int, error) {
	n := 0
	for _, r := range s.requests {
		if r.Status == request.StatusPending {
			n++
		}
	}
	return n, nil
}

func (s *memRequestStore) Update(_ context.Context, r *request.Request, from request.Status) (bool, error) {
	cur, ok := s.requests[r.ID]
	if !ok || cur.Status != from {
		return false, nil
	}
	s.requests[r.ID] = *r
	return true, nil
}

func (s *memRequestStore) CancelCascade(_ context.Context, id types.ID, from request.Status, description string) (bool, error) {
	cur, ok := s.requests[id]
	if !ok || cur.Status != from {
		return false, nil
	}
	cur.Status = request.StatusCancelled
	cur.Description = description
	s.requests[id] = cur
	return true, nil
}

type emptyAssignments struct{}

func (emptyAssignments) GetByRequest(context.Context, types.ID) (*assignment.Assignment, error) {
	return nil, assignment.ErrNotFound
}

type fakeProviders map[types.ID]directory.Provider

func (f fakeProviders) GetProvider(_ context.Context, id types.ID) (*directory.Provider, error) {
	p, ok := f[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	p.ID = id
	return &p, nil
}

type fakeUsers map[types.ID]directory.User

func (f fakeUsers) GetUser(_ context.Context, id types.ID) (*directory.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	u.ID = id
	return &u, nil
}

type fakeVehicles map[types.ID]directory.Vehicle

func (f fakeVehicles) GetVehicle(_ context.Context, id types.ID) (*directory.Vehicle, error) {
	v, ok := f[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	v.ID = id
	return &v, nil
}
