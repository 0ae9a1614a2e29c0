package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-backend/api/controllers"
	"github.com/coursehub/coursehub-backend/internal/cart"
	"github.com/coursehub/coursehub-backend/internal/courses"
	"github.com/coursehub/coursehub-backend/internal/profiles"
	"github.com/coursehub/coursehub-backend/pkg/auth"
	"github.com/coursehub/coursehub-backend/pkg/config"
	"github.com/coursehub/coursehub-backend/pkg/enums"
	"github.com/coursehub/coursehub-backend/pkg/logger"
	"github.com/coursehub/coursehub-backend/pkg/pagination"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

// Embedded interfaces panic if a route reaches a method the test did not stub.
type stubProfiles struct {
	profiles.Service
	role    enums.ProfileRole
	ensured []uuid.UUID
}

func (s *stubProfiles) Ensure(_ context.Context, identity profiles.Identity) error {
	s.ensured = append(s.ensured, identity.UserID)
	return nil
}

func (s *stubProfiles) Role(context.Context, uuid.UUID) (enums.ProfileRole, error) {
	return s.role, nil
}

type stubCourses struct {
	courses.Service
}

func (stubCourses) List(context.Context, courses.ListFilters, pagination.Params) (*courses.CourseList, error) {
	return &courses.CourseList{Courses: []courses.CourseDTO{{ID: uuid.New(), Title: "Go in Practice", Price: 500}}}, nil
}

type stubCart struct {
	cart.Service
}

func (stubCart) Get(context.Context, uuid.UUID) (*cart.View, error) {
	return &cart.View{Items: []cart.ItemDTO{}, Currency: "usd"}, nil
}

type stubSecrets struct{}

func (stubSecrets) SigningSecret() string { return "whsec_test" }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", BaseURL: "http://localhost:8080", CORSOrigins: []string{"http://localhost:3000"}},
		Auth: config.AuthConfig{
			JWTSecret: "router-secret",
			Issuer:    "https://auth.example.com/auth/v1",
			Audience:  "authenticated",
		},
		Storage: config.StorageConfig{MaxImageMB: 1},
	}
}

func newTestRouter(t *testing.T, profileSvc *stubProfiles) http.Handler {
	t.Helper()
	return NewRouter(testConfig(), logger.Nop(),
		Stores{Ready: map[string]controllers.Pinger{"database": stubPinger{}}},
		Services{
			Profiles:      profileSvc,
			Courses:       stubCourses{},
			Cart:          stubCart{},
			StripeSecrets: stubSecrets{},
		},
	)
}

func bearer(t *testing.T, cfg *config.Config, userID uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.Auth, time.Now(), time.Hour, auth.AccessTokenPayload{
		UserID: userID,
		Email:  "learner@example.com",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t, &stubProfiles{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
	}
}

func TestPublicCatalogNeedsNoToken(t *testing.T) {
	router := newTestRouter(t, &stubProfiles{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("expected success envelope, got %v", body)
	}
}

func TestCartRequiresAuthentication(t *testing.T) {
	router := newTestRouter(t, &stubProfiles{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != false || body["code"] != "NOT_AUTHENTICATED" {
		t.Fatalf("unexpected error envelope %v", body)
	}
}

func TestAuthenticatedCartEnsuresProfile(t *testing.T) {
	profileSvc := &stubProfiles{role: enums.ProfileRoleUser}
	router := newTestRouter(t, profileSvc)
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", bearer(t, testConfig(), userID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(profileSvc.ensured) != 1 || profileSvc.ensured[0] != userID {
		t.Fatalf("expected profile ensured for %s, got %v", userID, profileSvc.ensured)
	}
}

func TestAdminRoutesRejectLearners(t *testing.T) {
	router := newTestRouter(t, &stubProfiles{role: enums.ProfileRoleUser})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/courses", nil)
	req.Header.Set("Authorization", bearer(t, testConfig(), uuid.New()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "UNAUTHORIZED" {
		t.Fatalf("unexpected code %v", body["code"])
	}
}

func TestAdminRoutesAdmitAdmins(t *testing.T) {
	router := newTestRouter(t, &stubProfiles{role: enums.ProfileRoleAdmin})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/courses", nil)
	req.Header.Set("Authorization", bearer(t, testConfig(), uuid.New()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStripeWebhookRejectsUnsignedPayload(t *testing.T) {
	router := newTestRouter(t, &stubProfiles{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
