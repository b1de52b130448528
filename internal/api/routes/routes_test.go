package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocomet/rider-service/internal/api/handlers"
	"github.com/gocomet/rider-service/internal/repository/memory"
	"github.com/gocomet/rider-service/internal/service/availability"
	"github.com/gocomet/rider-service/internal/service/onboarding"
	"github.com/gocomet/rider-service/pkg/auth"
	"github.com/gocomet/rider-service/pkg/blobstore"
	apperrors "github.com/gocomet/rider-service/pkg/errors"
	"github.com/gocomet/rider-service/pkg/logger"
	"github.com/gocomet/rider-service/pkg/websocket"
)

type testServer struct {
	router   *gin.Engine
	tokens   *auth.Tokens
	svc      *onboarding.Service
	handlers *handlers.Handlers
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewNop()
	repo := memory.NewProfileRepository()
	locations := memory.NewLocationIndex()
	hub := websocket.NewHub(log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	svc := onboarding.NewService(onboarding.Dependencies{
		Repository: repo,
		Locations:  locations,
		Blobs:      blobstore.NewMemoryStore(),
		Notifier:   hub,
		Deliveries: memory.NewDeliveryGuard(),
		Logger:     log,
	}, onboarding.Config{BlobDeleteTimeout: time.Second})
	t.Cleanup(svc.Wait)

	avail := availability.NewService(repo, locations, nil, log, availability.Config{})

	tokens, err := auth.NewTokens("test-secret", "rider-service", time.Hour)
	require.NoError(t, err)

	h := handlers.NewHandlers(svc, avail, hub, tokens, log, handlers.UploadConfig{
		MaxFileSize: 1 << 20,
		TempDir:     t.TempDir(),
	}, 1024, 1024)

	r := gin.New()
	SetupRoutes(r, h, nil, CORSConfig{AllowedOrigins: []string{"*"}})
	return &testServer{router: r, tokens: tokens, svc: svc, handlers: h}
}

func (s *testServer) token(t *testing.T, userID, role string) string {
	t.Helper()
	raw, err := s.tokens.Generate(userID, role)
	require.NoError(t, err)
	return raw
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, docType string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "scan.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg bytes"))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/rider/documents/"+docType, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// TestRoutes_Authentication tests token and role enforcement
func TestRoutes_Authentication(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
		wantCode   string
	}{
		{name: "Missing token", path: "/v1/rider/profile", wantStatus: http.StatusUnauthorized, wantCode: apperrors.CodeUnauthorized},
		{name: "Garbage token", path: "/v1/rider/profile", token: "nope", wantStatus: http.StatusUnauthorized, wantCode: apperrors.CodeUnauthorized},
		{name: "Rider on admin route", path: "/v1/admin/riders/top", token: s.token(t, "user-1", auth.RoleRider), wantStatus: http.StatusForbidden, wantCode: apperrors.CodeForbidden},
		{name: "Rider on own profile", path: "/v1/rider/profile", token: s.token(t, "user-1", auth.RoleRider), wantStatus: http.StatusOK},
		{name: "Admin on admin route", path: "/v1/admin/riders/top", token: s.token(t, "admin-1", auth.RoleAdmin), wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, httptest.NewRequest(http.MethodGet, tt.path, nil), tt.token)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, env.Success)
			assert.Equal(t, tt.wantCode, env.Code)
		})
	}
}

// TestRoutes_BankDetailsNeverSerialized tests the account number stays out of responses
func TestRoutes_BankDetailsNeverSerialized(t *testing.T) {
	s := newTestServer(t)
	rider := s.token(t, "user-1", auth.RoleRider)

	w, env := s.do(t, jsonRequest(t, http.MethodPut, "/v1/rider/profile/bank", map[string]string{
		"accountHolderName": "T Nkosi",
		"accountNumber":     "62001234567",
		"bankName":          "FNB",
		"accountType":       "cheque",
	}), rider)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, string(env.Data), "62001234567")

	w, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/v1/rider/profile", nil), rider)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "62001234567")
	assert.Contains(t, w.Body.String(), `"hasAccountNumber":true`)

	w, env = s.do(t, httptest.NewRequest(http.MethodGet, "/v1/admin/riders/user-1/bank/last4", nil), s.token(t, "admin-1", auth.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"lastFour":"4567"}`, string(env.Data))

	w, env = s.do(t, jsonRequest(t, http.MethodPut, "/v1/rider/profile/bank", map[string]string{
		"accountHolderName": "T Nkosi",
		"accountNumber":     "62001234567",
		"bankName":          "FNB",
		"accountType":       "checking",
	}), rider)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, env.Code)
}

// TestRoutes_DocumentReview tests upload, lock, review and status over HTTP
func TestRoutes_DocumentReview(t *testing.T) {
	s := newTestServer(t)
	rider := s.token(t, "user-1", auth.RoleRider)
	admin := s.token(t, "admin-1", auth.RoleAdmin)

	w, env := s.do(t, uploadRequest(t, "driversLicence", map[string]string{"number": "DL-1", "expiryDate": "2099-01-31"}), rider)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), `"status":"pending"`)

	w, env = s.do(t, uploadRequest(t, "driversLicence", nil), rider)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperrors.CodeDocumentLocked, env.Code)

	w, env = s.do(t, uploadRequest(t, "passport", nil), rider)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeNotFound, env.Code)

	w, env = s.do(t, uploadRequest(t, "idDocument", map[string]string{"expiryDate": "yesterday"}), rider)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, env.Code)

	w, env = s.do(t, jsonRequest(t, http.MethodPost, "/v1/admin/riders/user-1/documents/driversLicence/reject", map[string]string{}), admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, env.Code)

	w, _ = s.do(t, jsonRequest(t, http.MethodPost, "/v1/admin/riders/user-1/documents/driversLicence/reject", map[string]string{"reason": "glare"}), admin)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, httptest.NewRequest(http.MethodGet, "/v1/rider/documents/status", nil), rider)
	require.Equal(t, http.StatusOK, w.Code)
	var report struct {
		Documents map[string]struct {
			Status          string `json:"status"`
			RejectionReason string `json:"rejectionReason"`
			CanReupload     bool   `json:"canReupload"`
		} `json:"documents"`
		AllVerified bool `json:"allVerified"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.NotContains(t, report.Documents, "profilePhoto")
	assert.Equal(t, "rejected", report.Documents["driversLicence"].Status)
	assert.Equal(t, "glare", report.Documents["driversLicence"].RejectionReason)
	assert.True(t, report.Documents["driversLicence"].CanReupload)
	assert.False(t, report.AllVerified)

	w, _ = s.do(t, uploadRequest(t, "driversLicence", nil), rider)
	assert.Equal(t, http.StatusOK, w.Code, "Rejected documents can be uploaded again")

	w, env = s.do(t, jsonRequest(t, http.MethodPost, "/v1/admin/riders/user-1/approve", nil), admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidState, env.Code)
}

// TestRoutes_LocationAndAvailability tests a rider becoming visible to dispatch queries
func TestRoutes_LocationAndAvailability(t *testing.T) {
	s := newTestServer(t)
	rider := s.token(t, "user-1", auth.RoleRider)
	admin := s.token(t, "admin-1", auth.RoleAdmin)

	w, env := s.do(t, jsonRequest(t, http.MethodPut, "/v1/rider/location", map[string]float64{"latitude": 10, "longitude": 200}), rider)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, env.Code)

	w, _ = s.do(t, jsonRequest(t, http.MethodPut, "/v1/rider/location", map[string]float64{"latitude": 0, "longitude": 0}), rider)
	assert.Equal(t, http.StatusOK, w.Code, "Zero coordinates are a valid point")

	w, _ = s.do(t, jsonRequest(t, http.MethodPut, "/v1/rider/location", map[string]float64{"latitude": -26.2, "longitude": 28.0}), rider)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, jsonRequest(t, http.MethodPut, "/v1/rider/availability", map[string]interface{}{
		"isAvailable":  true,
		"status":       "online",
		"serviceAreas": []string{"Johannesburg", "2196"},
		"workSchedule": []interface{}{"morning", map[string]interface{}{"day": "monday", "isWorking": true, "startTime": "08:00", "endTime": "17:00"}},
	}), rider)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Not verified yet, so nobody can dispatch to them
	w, env = s.do(t, httptest.NewRequest(http.MethodGet, "/v1/admin/riders/available?lat=-26.2&lon=28.0", nil), admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0,"riders":[]}`, string(env.Data))

	w, env = s.do(t, httptest.NewRequest(http.MethodGet, "/v1/admin/riders/available?lon=28.0", nil), admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, env.Code)

	w, env = s.do(t, httptest.NewRequest(http.MethodGet, "/v1/admin/riders/area?zipCode=2196", nil), admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, env.Code)
}

// TestRoutes_RecordDelivery tests delivery outcomes and their idempotency
func TestRoutes_RecordDelivery(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin-1", auth.RoleAdmin)

	body := map[string]interface{}{"deliveryId": "d-1", "completed": true, "rating": 5, "earnings": 45.5}
	w, env := s.do(t, jsonRequest(t, http.MethodPost, "/v1/admin/riders/user-1/deliveries", body), admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Delivery recorded", env.Message)

	w, env = s.do(t, jsonRequest(t, http.MethodPost, "/v1/admin/riders/user-1/deliveries", body), admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Delivery already recorded", env.Message)

	var result onboarding.DeliveryResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.False(t, result.Applied)
	assert.Equal(t, 1, result.Stats.TotalDeliveries)
	assert.Equal(t, 100, result.Stats.CompletionRate)

	w, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/v1/admin/riders/user-1", nil), admin)
	assert.Equal(t, http.StatusOK, w.Code, "The first outcome creates the profile")

	w, env = s.do(t, jsonRequest(t, http.MethodPost, "/v1/admin/riders/user-1/deliveries", map[string]interface{}{"tip": 5}), admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, env.Code)
}

// TestRoutes_AdminLookups tests admin reads of unknown riders are 404 and store nothing
func TestRoutes_AdminLookups(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin-1", auth.RoleAdmin)

	for _, path := range []string{"/v1/admin/riders/typo-user-id", "/v1/admin/riders/typo-user-id/documents"} {
		w, env := s.do(t, httptest.NewRequest(http.MethodGet, path, nil), admin)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, apperrors.CodeNotFound, env.Code, path)
	}
	_, err := s.svc.FindProfile(context.Background(), "typo-user-id")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "Lookups must not create a profile")

	w, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/v1/rider/profile", nil), s.token(t, "user-1", auth.RoleRider))
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(t, httptest.NewRequest(http.MethodGet, "/v1/admin/riders/user-1/documents", nil), admin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "driversLicence")
}

// TestRoutes_Health tests dependency checks drive the health status
func TestRoutes_Health(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.Contains(t, w.Body.String(), `"websocket_clients":{"admin":0,"rider":0,"total":0}`)

	s.handlers.Checks = map[string]handlers.DependencyCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return assert.AnError },
	}
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"down"`)
	assert.Contains(t, w.Body.String(), `"postgres":"up"`)
}

// TestCORSMiddleware tests only configured origins receive CORS headers and preflights stop at the middleware
func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(corsMiddleware(CORSConfig{
		AllowedOrigins: []string{"https://ops.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	reached := 0
	r.GET("/ping", func(c *gin.Context) {
		reached++
		c.String(http.StatusOK, "pong")
	})

	tests := []struct {
		name       string
		method     string
		origin     string
		preflight  bool
		wantOrigin string
		wantReach  bool
	}{
		{name: "Allowed origin", method: http.MethodGet, origin: "https://ops.example.com", wantOrigin: "https://ops.example.com", wantReach: true},
		{name: "Disallowed origin", method: http.MethodGet, origin: "https://evil.example.com", wantReach: true},
		{name: "No origin", method: http.MethodGet, wantReach: true},
		{name: "Allowed preflight", method: http.MethodOptions, origin: "https://ops.example.com", preflight: true, wantOrigin: "https://ops.example.com"},
		{name: "Disallowed preflight", method: http.MethodOptions, origin: "https://evil.example.com", preflight: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = 0
			req := httptest.NewRequest(tt.method, "/ping", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantReach, reached == 1)
			if tt.preflight && tt.wantOrigin != "" {
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
			}
		})
	}
}
