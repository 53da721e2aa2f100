package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andresuchdata/restockplan/internal/api/middleware"
	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/andresuchdata/restockplan/internal/repository/filestore"
	"github.com/andresuchdata/restockplan/internal/service"
	"github.com/gin-gonic/gin"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	evals := []domain.ProductEvaluation{
		{Code: "X1", Type: "toys", ABC: domain.ABCA, XYZ: domain.XYZX, DSI: 20},
		{Code: "X2", Type: "books", ABC: domain.ABCC, XYZ: domain.XYZZ, DSI: 999},
	}
	if err := store.ReplaceEvaluations(ctx, "r", evals); err != nil {
		t.Fatal(err)
	}
	res := &domain.BranchResult{
		Group: domain.WarehouseGroup{Name: "north"},
		Lines: []domain.BranchRequestLine{
			{Group: "north", Code: "X1", Priority: domain.PriorityA, BoxQuantity: 1},
			{Group: "north", Code: "X2", Priority: domain.PriorityC, BoxQuantity: 1},
		},
		Capacity: domain.CapacityReport{Group: "north", Basis: domain.CapacityByCogs, MaxCapacity: 1500},
	}
	if err := store.SaveBranchResult(ctx, "r", res); err != nil {
		t.Fatal(err)
	}

	return NewRouter(&Services{Query: service.NewQueryService(store, nil, nil)}, []string{"*"})
}

type listResponse struct {
	Data  []map[string]interface{} `json:"data"`
	Count int                      `json:"count"`
	Error string                   `json:"error"`
}

func get(t *testing.T, r *gin.Engine, path string) (*httptest.ResponseRecorder, listResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)

	var body listResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestHealth(t *testing.T) {
	w, _ := get(t, testRouter(t), "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestListEvaluations(t *testing.T) {
	r := testRouter(t)

	tests := []struct {
		path  string
		count int
	}{
		{"/api/v1/evaluations", 2},
		{"/api/v1/evaluations?type=toys", 1},
		{"/api/v1/evaluations?abc=c&xyz=z", 1},
		{"/api/v1/evaluations?code=X1,X2", 2},
		{"/api/v1/evaluations?code=X2", 1},
		{"/api/v1/evaluations?type=garden", 0},
	}
	for _, tt := range tests {
		w, body := get(t, r, tt.path)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d", tt.path, w.Code)
			continue
		}
		if body.Count != tt.count {
			t.Errorf("%s: count = %d, want %d", tt.path, body.Count, tt.count)
		}
	}
}

func TestGetEvaluation(t *testing.T) {
	r := testRouter(t)
	if w, _ := get(t, r, "/api/v1/evaluations/X1"); w.Code != http.StatusOK {
		t.Errorf("X1 status = %d", w.Code)
	}
	if w, _ := get(t, r, "/api/v1/evaluations/NOPE"); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", w.Code)
	}
}

func TestBranchRoutes(t *testing.T) {
	r := testRouter(t)

	w, body := get(t, r, "/api/v1/branches")
	if w.Code != http.StatusOK || body.Count != 1 {
		t.Fatalf("branches: %d %+v", w.Code, body)
	}

	w, body = get(t, r, "/api/v1/branches/north/requests?priority=a")
	if w.Code != http.StatusOK || body.Count != 1 || body.Data[0]["code"] != "X1" {
		t.Fatalf("requests: %d %+v", w.Code, body)
	}

	if w, _ := get(t, r, "/api/v1/branches/north/requests?priority=Z"); w.Code != http.StatusBadRequest {
		t.Errorf("bad priority status = %d", w.Code)
	}
	if w, _ := get(t, r, "/api/v1/branches/ghost/requests"); w.Code != http.StatusNotFound {
		t.Errorf("unknown group status = %d", w.Code)
	}
	if w, _ := get(t, r, "/api/v1/branches/north/capacity"); w.Code != http.StatusOK {
		t.Errorf("capacity status = %d", w.Code)
	}
}

func TestRunRoutes(t *testing.T) {
	r := testRouter(t)

	w, body := get(t, r, "/api/v1/runs")
	if w.Code != http.StatusOK || body.Count != 0 {
		t.Fatalf("runs: %d %+v", w.Code, body)
	}
	if w, _ := get(t, r, "/api/v1/runs?limit=abc"); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", w.Code)
	}
	if w, _ := get(t, r, "/api/v1/runs/x"); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", w.Code)
	}
	if w, _ := get(t, r, "/api/v1/runs/1"); w.Code != http.StatusNotFound {
		t.Errorf("untracked run status = %d", w.Code)
	}
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"http://a.test, http://b.test", ""})
	if all || len(origins) != 2 {
		t.Errorf("origins = %v all = %v", origins, all)
	}
	if _, all := normalizeAllowedOrigins([]string{"*"}); !all {
		t.Error("wildcard not detected")
	}
}

func TestRecoveryReturnsJSONError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Logger(), middleware.Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body %q is not JSON: %v", w.Body.String(), err)
	}
	if body["error"] == "" {
		t.Fatalf("body = %v, want an error message", body)
	}
}
