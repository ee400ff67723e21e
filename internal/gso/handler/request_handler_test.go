package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/testutil"
)

type apiEnv struct {
	*testutil.Env
	router    *gin.Engine
	unit      *entity.Unit
	item      *entity.InventoryItem
	director  string
	head      string
	worker    string
	requestor string
	workerID  string
}

func setupAPITest(t *testing.T) *apiEnv {
	t.Helper()
	env := testutil.NewEnv(t)

	router := testutil.SetupRouter()
	RegisterRoutes(router.Group("/api/v1"), NewHandlers(env.Services, env.Hub, nil), testutil.JWTSecret)

	unit := testutil.SeedUnit(t, env.DB, "Electrical")
	worker := testutil.SeedUser(t, env.DB, "worker", "Juan", "Cruz", entity.RolePersonnel, unit.ID)
	return &apiEnv{
		Env:       env,
		router:    router,
		unit:      unit,
		item:      testutil.SeedItem(t, env.DB, unit.ID, "Wire", 5, "35.00"),
		director:  testutil.GenerateTestToken(testutil.SeedUser(t, env.DB, "director", "Maria", "Santos", entity.RoleDirector, "")),
		head:      testutil.GenerateTestToken(testutil.SeedUser(t, env.DB, "head", "Pedro", "Reyes", entity.RoleUnitHead, unit.ID)),
		worker:    testutil.GenerateTestToken(worker),
		requestor: testutil.GenerateTestToken(testutil.SeedUser(t, env.DB, "requestor", "Ana", "Lopez", entity.RoleRequestor, "")),
		workerID:  worker.ID,
	}
}

func (e *apiEnv) do(t *testing.T, method, path string, body interface{}, token string, wantStatus int) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequest(e.router, method, path, body, token)
	if w.Code != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d: %s", method, path, wantStatus, w.Code, w.Body.String())
	}
	return testutil.ParseResponse(w)
}

func (e *apiEnv) createRequest(t *testing.T) string {
	t.Helper()
	resp := e.do(t, "POST", "/api/v1/requests", map[string]interface{}{
		"unit_id":       e.unit.ID,
		"activity_name": "Fix lights",
		"description":   "Replace the hallway ballast",
	}, e.requestor, http.StatusCreated)
	data := resp["data"].(map[string]interface{})
	if data["status"] != entity.RequestStatusPending {
		t.Fatalf("Expected status Pending, got %v", data["status"])
	}
	return data["id"].(string)
}

func TestRequestAPI_Lifecycle(t *testing.T) {
	e := setupAPITest(t)
	id := e.createRequest(t)
	base := "/api/v1/requests/" + id

	e.do(t, "POST", base+"/approve", nil, e.director, http.StatusOK)
	e.do(t, "PUT", base+"/assignment", map[string]interface{}{
		"personnel_ids": []string{e.workerID},
		"materials":     []map[string]interface{}{{"item_id": e.item.ID, "quantity": 2}},
	}, e.head, http.StatusOK)
	e.do(t, "POST", base+"/start", nil, e.worker, http.StatusOK)
	e.do(t, "POST", base+"/reports", map[string]interface{}{"report_text": "Replaced ballast"}, e.worker, http.StatusCreated)
	e.do(t, "POST", base+"/submit", nil, e.worker, http.StatusOK)

	resp := e.do(t, "POST", base+"/complete", nil, e.head, http.StatusOK)
	data := resp["data"].(map[string]interface{})
	req := data["request"].(map[string]interface{})
	if req["status"] != entity.RequestStatusCompleted {
		t.Errorf("Expected status Completed, got %v", req["status"])
	}
	war, ok := data["war"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected war in response, got %v", data["war"])
	}
	if war["material_cost"] != "70" {
		t.Errorf("Expected material_cost 70, got %v", war["material_cost"])
	}

	resp = e.do(t, "GET", base+"/history", nil, e.requestor, http.StatusOK)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) < 5 {
		t.Errorf("Expected at least 5 history entries, got %d", len(items))
	}
}

func TestRequestAPI_ErrorCodes(t *testing.T) {
	e := setupAPITest(t)
	id := e.createRequest(t)
	base := "/api/v1/requests/" + id

	resp := e.do(t, "POST", base+"/start", nil, e.worker, http.StatusForbidden)
	if resp["code"] != float64(40300) {
		t.Errorf("Expected code 40300 for unassigned worker, got %v", resp["code"])
	}

	e.do(t, "PUT", base+"/assignment", map[string]interface{}{"personnel_ids": []string{e.workerID}}, e.head, http.StatusOK)
	resp = e.do(t, "POST", base+"/start", nil, e.worker, http.StatusConflict)
	if resp["code"] != float64(40900) {
		t.Errorf("Expected code 40900, got %v", resp["code"])
	}
	resp = e.do(t, "GET", base, nil, e.director, http.StatusOK)
	if status := resp["data"].(map[string]interface{})["status"]; status != entity.RequestStatusPending {
		t.Errorf("Expected status Pending, got %v", status)
	}

	resp = e.do(t, "POST", base+"/approve", nil, e.head, http.StatusForbidden)
	if resp["code"] != float64(40300) {
		t.Errorf("Expected code 40300, got %v", resp["code"])
	}

	e.do(t, "POST", base+"/approve", nil, e.director, http.StatusOK)
	resp = e.do(t, "PUT", base+"/assignment", map[string]interface{}{
		"personnel_ids": []string{e.workerID},
		"materials":     []map[string]interface{}{{"item_id": e.item.ID, "quantity": 9}},
	}, e.head, http.StatusConflict)
	if resp["code"] != float64(40910) {
		t.Errorf("Expected code 40910, got %v", resp["code"])
	}
	data := resp["data"].(map[string]interface{})
	if data["requested"] != float64(9) || data["available"] != float64(5) {
		t.Errorf("Unexpected stock details: %v", data)
	}

	resp = e.do(t, "GET", "/api/v1/requests/missing", nil, e.director, http.StatusNotFound)
	if resp["code"] != float64(40400) {
		t.Errorf("Expected code 40400, got %v", resp["code"])
	}

	resp = e.do(t, "POST", "/api/v1/requests", map[string]interface{}{"unit_id": e.unit.ID}, e.requestor, http.StatusBadRequest)
	if resp["code"] != float64(40000) {
		t.Errorf("Expected code 40000, got %v", resp["code"])
	}

	e.do(t, "GET", "/api/v1/requests", nil, "", http.StatusUnauthorized)
}

func TestRequestAPI_ListAndDashboard(t *testing.T) {
	e := setupAPITest(t)
	e.createRequest(t)
	e.createRequest(t)

	resp := e.do(t, "GET", "/api/v1/requests?page_size=1", nil, e.director, http.StatusOK)
	data := resp["data"].(map[string]interface{})
	pagination := data["pagination"].(map[string]interface{})
	if pagination["total"] != float64(2) || pagination["total_pages"] != float64(2) {
		t.Errorf("Unexpected pagination: %v", pagination)
	}
	if items := data["items"].([]interface{}); len(items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(items))
	}

	resp = e.do(t, "GET", "/api/v1/dashboard", nil, e.director, http.StatusOK)
	dash := resp["data"].(map[string]interface{})
	if dash["total"] != float64(2) {
		t.Errorf("Expected total 2, got %v", dash["total"])
	}
}

func TestRequestAPI_Attachment(t *testing.T) {
	e := setupAPITest(t)
	id := e.createRequest(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "photo.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	io.Copy(part, strings.NewReader("broken light"))
	writer.Close()

	req, _ := http.NewRequest("POST", "/api/v1/requests/"+id+"/attachment", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.requestor)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req, _ = http.NewRequest("GET", "/api/v1/requests/"+id+"/attachment", nil)
	req.Header.Set("Authorization", "Bearer "+e.requestor)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "broken light" {
		t.Errorf("Unexpected attachment body %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Unexpected content type %q", ct)
	}
}

func TestAuthAPI_LoginAndMe(t *testing.T) {
	e := setupAPITest(t)
	e.do(t, "POST", "/api/v1/users", map[string]interface{}{
		"username": "newuser", "password": "password1", "role": "requestor",
	}, e.head, http.StatusForbidden)
	e.do(t, "POST", "/api/v1/users", map[string]interface{}{
		"username": "newuser", "password": "password1", "role": "requestor", "first_name": "Rosa",
	}, e.director, http.StatusCreated)

	resp := e.do(t, "POST", "/api/v1/auth/login", map[string]interface{}{"username": "newuser", "password": "nope"}, "", http.StatusUnauthorized)
	if resp["code"] != float64(40100) {
		t.Errorf("Expected code 40100, got %v", resp["code"])
	}

	resp = e.do(t, "POST", "/api/v1/auth/login", map[string]interface{}{"username": "newuser", "password": "password1"}, "", http.StatusOK)
	token := resp["data"].(map[string]interface{})["access_token"].(string)

	resp = e.do(t, "GET", "/api/v1/auth/me", nil, token, http.StatusOK)
	me := resp["data"].(map[string]interface{})
	if me["username"] != "newuser" {
		t.Errorf("Expected username newuser, got %v", me["username"])
	}
	raw, _ := json.Marshal(me)
	if strings.Contains(string(raw), "password") {
		t.Errorf("password hash leaked: %s", raw)
	}
}
