package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jekmagalaman/gso/internal/config"
	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/repository"
	"github.com/jekmagalaman/gso/internal/gso/service"
	"github.com/jekmagalaman/gso/internal/gso/sse"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "gso-test-jwt-secret"

// SetupTestDB opens a private in-memory database with every table migrated.
// A single connection keeps the memory database alive and serializes writers.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(entity.Models()...); err != nil {
		t.Fatalf("migrate test tables: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// TestConfig returns the configuration used by test environments.
func TestConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:             JWTSecret,
			AccessTokenExpire:  time.Hour,
			RefreshTokenExpire: 24 * time.Hour,
			Issuer:             "gso-test",
		},
		Report: config.ReportConfig{
			NotedBy:          "Maria Santos",
			NotedByTitle:     "Director, GSO",
			EmploymentStatus: "Permanent",
		},
	}
}

// Env wires a database, repositories and services for a test.
type Env struct {
	DB        *gorm.DB
	Repos     *repository.Repositories
	Services  *service.Services
	Generator *FakeGenerator
	Store     *MemoryStore
	Hub       *sse.Hub
	Config    *config.Config
	T         *testing.T
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	db := SetupTestDB(t)
	repos := repository.NewRepositories(db)
	gen := &FakeGenerator{}
	store := NewMemoryStore()
	hub := sse.NewHub(nil)
	cfg := TestConfig()
	svc := service.NewServices(db, repos, cfg, service.Deps{
		Generator: gen,
		Store:     store,
		Hub:       hub,
	})
	return &Env{DB: db, Repos: repos, Services: svc, Generator: gen, Store: store, Hub: hub, Config: cfg, T: t}
}

// FakeGenerator records prompts and answers with Reply, or with a
// numbered sentence when Reply is empty.
type FakeGenerator struct {
	mu      sync.Mutex
	Reply   string
	prompts []string
}

func (g *FakeGenerator) Generate(_ context.Context, prompt string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.Reply != "" {
		return g.Reply
	}
	return fmt.Sprintf("Generated text %d.", len(g.prompts))
}

func (g *FakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *FakeGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// MemoryStore is an in-memory object store.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SeedUnit creates a unit.
func SeedUnit(t *testing.T, db *gorm.DB, name string) *entity.Unit {
	t.Helper()
	unit := &entity.Unit{ID: repository.NewID(), Name: name}
	if err := db.Create(unit).Error; err != nil {
		t.Fatalf("seed unit: %v", err)
	}
	return unit
}

// SeedDepartment creates a requesting office.
func SeedDepartment(t *testing.T, db *gorm.DB, name string) *entity.Department {
	t.Helper()
	dept := &entity.Department{ID: repository.NewID(), Name: name}
	if err := db.Create(dept).Error; err != nil {
		t.Fatalf("seed department: %v", err)
	}
	return dept
}

// SeedUser creates an active user. unitID may be empty.
func SeedUser(t *testing.T, db *gorm.DB, username, first, last string, role entity.Role, unitID string) *entity.User {
	t.Helper()
	user := &entity.User{
		ID:               repository.NewID(),
		Username:         username,
		FirstName:        first,
		LastName:         last,
		Email:            username + "@example.edu",
		Role:             role,
		EmploymentStatus: "Permanent",
		Position:         strings.ReplaceAll(string(role), "_", " "),
		IsActive:         true,
	}
	if unitID != "" {
		user.UnitID = &unitID
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedItem creates an inventory item.
func SeedItem(t *testing.T, db *gorm.DB, unitID, name string, qty int, unitCost string) *entity.InventoryItem {
	t.Helper()
	item := &entity.InventoryItem{
		ID:                repository.NewID(),
		UnitID:            unitID,
		Name:              name,
		Quantity:          qty,
		UnitOfMeasurement: "pcs",
		UnitCost:          decimal.RequireFromString(unitCost),
		IsActive:          true,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

// SeedIndicator creates an active success indicator.
func SeedIndicator(t *testing.T, db *gorm.DB, unitID, code, description string) *entity.SuccessIndicator {
	t.Helper()
	ind := &entity.SuccessIndicator{
		ID:          repository.NewID(),
		UnitID:      unitID,
		Code:        code,
		Description: description,
		IsActive:    true,
	}
	if err := db.Create(ind).Error; err != nil {
		t.Fatalf("seed indicator: %v", err)
	}
	return ind
}

// ActorOf returns the service actor of a seeded user.
func ActorOf(u *entity.User) service.Actor {
	a := service.Actor{UserID: u.ID, Name: u.FullName(), Role: u.Role}
	if u.UnitID != nil {
		a.UnitID = *u.UnitID
	}
	return a
}

// SetupRouter creates a gin test router.
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// GenerateTestToken creates a valid access token for a user.
func GenerateTestToken(u *entity.User) string {
	unitID := ""
	if u.UnitID != nil {
		unitID = *u.UnitID
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     u.ID,
		"uid":     u.ID,
		"name":    u.FullName(),
		"role":    string(u.Role),
		"unit_id": unitID,
		"iss":     "gso-test",
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
		"jti":     fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DoRequest executes a JSON request against the test router.
func DoRequest(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse decodes the response envelope.
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}
