package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"lead_protection_backend/internal/events"
	"lead_protection_backend/internal/leads/repository"
	"lead_protection_backend/internal/leads/service"
	"lead_protection_backend/internal/leads/transport"
	"lead_protection_backend/platform/config"
	"lead_protection_backend/platform/httpkit"
	"lead_protection_backend/platform/logger"
	"lead_protection_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ownerID   = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	otherID   = uuid.MustParse("00000000-0000-0000-0000-0000000000b2")
	adminID   = uuid.MustParse("00000000-0000-0000-0000-0000000000d4")
	startedAt = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
)

type testServer struct {
	engine *gin.Engine
	store  *repository.MemoryStore
}

// newTestServer mounts the handler behind a stub auth layer that reads the
// caller from X-Test-User and X-Test-Roles.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	svc := service.New(store, store, events.NewInMemoryBus(logger.Discard()), config.DefaultPolicy(), logger.Discard(),
		service.WithNow(func() time.Time { return startedAt }))
	h := New(svc, validator.New())

	engine := gin.New()
	api := engine.Group("/api/v1", func(c *gin.Context) {
		if raw := c.GetHeader("X-Test-User"); raw != "" {
			c.Set(httpkit.ContextUserIDKey, uuid.MustParse(raw))
			c.Set(httpkit.ContextRolesKey, []string{c.GetHeader("X-Test-Roles")})
		}
		c.Next()
	})
	h.RegisterRoutes(api.Group("/leads"))
	h.RegisterAdminRoutes(api.Group("/admin"))
	return &testServer{engine: engine, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, user uuid.UUID, role string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set("X-Test-User", user.String())
		req.Header.Set("X-Test-Roles", role)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createLead(t *testing.T) transport.LeadResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/leads", ownerID, "sales", transport.CreateLeadRequest{
		CompanyName: "Acme",
		Phone:       "06 12345678",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var lead transport.LeadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lead))
	return lead
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpkit.ErrorResponse {
	t.Helper()
	var body httpkit.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func leadETag(id uuid.UUID, version int64) string {
	return `"lead-` + id.String() + `-` + strconv.FormatInt(version, 10) + `"`
}

func TestCreateLead(t *testing.T) {
	srv := newTestServer(t)
	lead := srv.createLead(t)

	assert.Equal(t, "REGISTERED", lead.Status)
	assert.Equal(t, ownerID, lead.OwnerUserID)
	assert.Equal(t, "+31612345678", lead.Contact.Phone)
	assert.Equal(t, int64(1), lead.Version)
}

func TestCreateLeadValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/leads", ownerID, "sales", map[string]any{"email": "not-an-email"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	details, ok := body.Details.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details, "companyName")
	assert.Contains(t, details, "email")
}

func TestRequiresAuthentication(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(t, http.MethodGet, "/api/v1/leads", uuid.Nil, "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetLeadETag(t *testing.T) {
	srv := newTestServer(t)
	lead := srv.createLead(t)
	path := "/api/v1/leads/" + lead.ID.String()

	rec := srv.do(t, http.MethodGet, path, ownerID, "sales", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	assert.Equal(t, leadETag(lead.ID, lead.Version), etag)

	rec = srv.do(t, http.MethodGet, path, ownerID, "sales", nil, map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = srv.do(t, http.MethodGet, path, otherID, "sales", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ACCESS_DENIED", decodeError(t, rec).Code)
}

func TestPatchHonoursIfMatch(t *testing.T) {
	srv := newTestServer(t)
	lead := srv.createLead(t)
	path := "/api/v1/leads/" + lead.ID.String()
	city := "Utrecht"
	patch := transport.UpdateLeadRequest{City: &city}

	rec := srv.do(t, http.MethodPatch, path, ownerID, "sales", patch, map[string]string{"If-Match": leadETag(lead.ID, lead.Version)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, leadETag(lead.ID, lead.Version+1), rec.Header().Get("ETag"))

	rec = srv.do(t, http.MethodPatch, path, ownerID, "sales", patch, map[string]string{"If-Match": leadETag(lead.ID, lead.Version)})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "VERSION_CONFLICT", decodeError(t, rec).Code)

	rec = srv.do(t, http.MethodPatch, path, ownerID, "sales", patch, map[string]string{"If-Match": leadETag(uuid.New(), 2)})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestPatchInvalidTransition(t *testing.T) {
	srv := newTestServer(t)
	lead := srv.createLead(t)
	status := "GRACE_PERIOD"

	rec := srv.do(t, http.MethodPatch, "/api/v1/leads/"+lead.ID.String(), ownerID, "sales",
		transport.UpdateLeadRequest{Status: &status}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "INVALID_TRANSITION", body.Code)
	assert.Equal(t, map[string]any{"from": "REGISTERED", "to": "GRACE_PERIOD"}, body.Details)
}

func TestListLeadsWeakETag(t *testing.T) {
	srv := newTestServer(t)
	srv.createLead(t)
	srv.createLead(t)

	rec := srv.do(t, http.MethodGet, "/api/v1/leads?pageSize=10", ownerID, "sales", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	assert.Contains(t, etag, `W/"`)
	var list transport.LeadListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total)

	rec = srv.do(t, http.MethodGet, "/api/v1/leads?pageSize=10", ownerID, "sales", nil, map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/leads?pageSize=10", otherID, "sales", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Zero(t, list.Total)
}

func TestActivitiesAndProtection(t *testing.T) {
	srv := newTestServer(t)
	lead := srv.createLead(t)
	base := "/api/v1/leads/" + lead.ID.String()

	rec := srv.do(t, http.MethodPost, base+"/activities", ownerID, "sales",
		transport.CreateActivityRequest{Type: "MEETING", Description: "Tasting session"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var recorded transport.RecordActivityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recorded))
	assert.True(t, recorded.ClockReset)
	assert.Equal(t, "ACTIVE", recorded.Lead.Status)

	rec = srv.do(t, http.MethodPost, base+"/activities", ownerID, "sales",
		transport.CreateActivityRequest{Type: "LUNCH"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodGet, base+"/activities", ownerID, "sales", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var activities transport.ActivityListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &activities))
	assert.NotEmpty(t, activities.Items)

	rec = srv.do(t, http.MethodGet, base+"/protection", ownerID, "sales", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var protection transport.ProtectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &protection))
	assert.Equal(t, "ACTIVE", protection.Status)
	assert.Equal(t, 180, protection.RemainingDays)
}

func TestDeleteBlockedByOpenOpportunities(t *testing.T) {
	srv := newTestServer(t)
	lead := srv.createLead(t)
	path := "/api/v1/leads/" + lead.ID.String()
	srv.store.SetOpenDependents(lead.ID, 2)

	rec := srv.do(t, http.MethodDelete, path, ownerID, "sales", nil, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "DELETION_BLOCKED", body.Code)
	assert.Equal(t, map[string]any{"resource": "opportunities", "count": float64(2)}, body.Details)

	srv.store.SetOpenDependents(lead.ID, 0)
	rec = srv.do(t, http.MethodDelete, path, ownerID, "sales", nil, map[string]string{"If-Match": leadETag(lead.ID, lead.Version)})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminLeadSettings(t *testing.T) {
	srv := newTestServer(t)
	path := "/api/v1/admin/lead-settings/" + ownerID.String()
	req := transport.LeadSettingsRequest{
		ProtectionMonths:  3,
		ReminderDays:      30,
		GraceDays:         5,
		Capabilities:      []string{"STOP_CLOCK"},
		NotificationEmail: "owner@example.com",
	}

	rec := srv.do(t, http.MethodPut, path, ownerID, "sales", req, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodPut, path, adminID, "admin", req, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodGet, path, ownerID, "sales", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings transport.LeadSettingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, 3, settings.ProtectionMonths)
	assert.False(t, settings.IsDefault)
	assert.Equal(t, []string{"STOP_CLOCK"}, settings.Capabilities)
}

func TestConsentRevocationRoutes(t *testing.T) {
	srv := newTestServer(t)
	lead := srv.createLead(t)
	base := "/api/v1/leads/" + lead.ID.String()

	rec := srv.do(t, http.MethodGet, base+"/contact-allowed", ownerID, "sales", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var allowed transport.ContactAllowedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &allowed))
	assert.True(t, allowed.Allowed)

	rec = srv.do(t, http.MethodPost, base+"/revoke-consent", ownerID, "sales", nil,
		map[string]string{"If-Match": leadETag(lead.ID, lead.Version)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, leadETag(lead.ID, lead.Version+1), rec.Header().Get("ETag"))
	var revoked transport.LeadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &revoked))
	assert.True(t, revoked.ContactBlocked)

	rec = srv.do(t, http.MethodPost, base+"/revoke-consent", ownerID, "sales", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CONSENT_ALREADY_REVOKED", decodeError(t, rec).Code)

	rec = srv.do(t, http.MethodPost, base+"/activities", ownerID, "sales",
		transport.CreateActivityRequest{Type: "MEETING", Description: "Tasting session"}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONTACT_BLOCKED", decodeError(t, rec).Code)

	rec = srv.do(t, http.MethodGet, base+"/contact-allowed", ownerID, "sales", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &allowed))
	assert.False(t, allowed.Allowed)
	assert.NotNil(t, allowed.ConsentRevokedAt)
}

func TestErasureRequiresReasonAndIsLogged(t *testing.T) {
	srv := newTestServer(t)
	lead := srv.createLead(t)
	base := "/api/v1/leads/" + lead.ID.String()

	rec := srv.do(t, http.MethodPost, base+"/gdpr-erasure", adminID, "admin", transport.ErasureRequest{Reason: "short"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)

	reason := "data subject request received by mail"
	rec = srv.do(t, http.MethodPost, base+"/gdpr-erasure", adminID, "admin", transport.ErasureRequest{Reason: reason}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var erased transport.ErasureResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &erased))
	assert.Equal(t, "DELETED", erased.Status)

	rec = srv.do(t, http.MethodGet, base+"/erasure-log", ownerID, "sales", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodGet, base+"/erasure-log", adminID, "admin", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []transport.ErasureLogEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, reason, entries[0].Reason)
	assert.Equal(t, "REGISTERED", entries[0].PreviousStatus)
	assert.Equal(t, adminID, entries[0].ErasedBy)
	assert.Equal(t, erased.IdentityHash, entries[0].IdentityHash)
}
