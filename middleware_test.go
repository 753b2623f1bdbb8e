package memberkit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMiddlewareNewMiddleware tests the middleware constructor
func TestMiddlewareNewMiddleware(t *testing.T) {
	service := NewService(nil)

	// Test with default options
	mw := NewMiddleware(service)
	require.NotNil(t, mw)
	assert.Equal(t, service, mw.service)
	assert.NotNil(t, mw.getUserID)
	assert.NotNil(t, mw.errorHandler)

	// Test with custom options
	customUserID := func(r *http.Request) string { return "custom-user" }
	customErrorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusTeapot)
	}

	mw2 := NewMiddleware(service,
		WithUserIDExtractor(customUserID),
		WithErrorHandler(customErrorHandler),
	)
	req := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, "custom-user", mw2.getUserID(req))

	w := httptest.NewRecorder()
	mw2.errorHandler(w, req, nil)
	assert.Equal(t, http.StatusTeapot, w.Code)
}

// TestMiddlewareDefaultGetUserID tests the default user ID extractor
func TestMiddlewareDefaultGetUserID(t *testing.T) {
	ctx := WithUserID(context.Background(), "test-user")
	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(ctx)

	userID := defaultGetUserID(req)
	assert.Equal(t, "test-user", userID)

	req = httptest.NewRequest("GET", "/", nil)
	userID = defaultGetUserID(req)
	assert.Empty(t, userID)
}

// TestMiddlewareDefaultErrorHandler tests the error-to-status mapping
func TestMiddlewareDefaultErrorHandler(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Forbidden error",
			err:            NewError(ErrForbidden, "access denied"),
			expectedStatus: http.StatusForbidden,
			expectedBody:   "Forbidden\n",
		},
		{
			name:           "Not found error",
			err:            NewError(ErrNotFound, "no such community"),
			expectedStatus: http.StatusNotFound,
			expectedBody:   "Not Found\n",
		},
		{
			name:           "Conflict error",
			err:            NewError(ErrConflict, "already a member"),
			expectedStatus: http.StatusConflict,
			expectedBody:   "Conflict\n",
		},
		{
			name:           "Invalid state error",
			err:            NewError(ErrInvalidState, "community archived"),
			expectedStatus: http.StatusConflict,
			expectedBody:   "Conflict\n",
		},
		{
			name:           "Validation error",
			err:            NewError(ErrValidation, "bad scope"),
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Bad Request\n",
		},
		{
			name:           "Generic error",
			err:            NewError(ErrDatabaseError, "database error"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "Internal Server Error\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/", nil)

			defaultErrorHandler(w, req, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedBody, w.Body.String())
		})
	}
}

// TestMiddlewareScopeExtractors tests the scope extractor functions
func TestMiddlewareScopeExtractors(t *testing.T) {
	t.Run("StaticScope", func(t *testing.T) {
		extractor := StaticScope(ScopeCommunity, "c-123")

		req := httptest.NewRequest("GET", "/", nil)
		scopeType, scopeID, err := extractor(req)

		assert.NoError(t, err)
		assert.Equal(t, ScopeCommunity, scopeType)
		assert.Equal(t, "c-123", scopeID)
	})

	t.Run("ScopeFromQuery", func(t *testing.T) {
		extractor := ScopeFromQuery(ScopeCommunity, "community_id")

		req := httptest.NewRequest("GET", "/invites?community_id=c-456", nil)
		scopeType, scopeID, err := extractor(req)

		assert.NoError(t, err)
		assert.Equal(t, ScopeCommunity, scopeType)
		assert.Equal(t, "c-456", scopeID)

		req = httptest.NewRequest("GET", "/invites", nil)
		_, _, err = extractor(req)
		assert.True(t, IsValidation(err))
	})

	t.Run("ScopeFromHeader", func(t *testing.T) {
		extractor := ScopeFromHeader(ScopeSpace, "X-Space-ID")

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Space-ID", "s-789")
		scopeType, scopeID, err := extractor(req)

		assert.NoError(t, err)
		assert.Equal(t, ScopeSpace, scopeType)
		assert.Equal(t, "s-789", scopeID)

		req = httptest.NewRequest("GET", "/", nil)
		_, _, err = extractor(req)
		assert.True(t, IsValidation(err))
	})

	t.Run("ScopeFromParam context fallback", func(t *testing.T) {
		extractor := ScopeFromParam(ScopeCommunity, "communityID")

		req := httptest.NewRequest("GET", "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), "communityID", "c-ctx"))
		scopeType, scopeID, err := extractor(req)

		assert.NoError(t, err)
		assert.Equal(t, ScopeCommunity, scopeType)
		assert.Equal(t, "c-ctx", scopeID)

		req = httptest.NewRequest("GET", "/", nil)
		_, _, err = extractor(req)
		assert.True(t, IsValidation(err))
	})
}

// TestMiddlewareMissingUser tests that guards reject anonymous requests
func TestMiddlewareMissingUser(t *testing.T) {
	service := NewService(nil)
	mw := NewMiddleware(service)

	handler := mw.RequireRole(RoleMember, StaticScope(ScopeCommunity, "c-1"))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	req := httptest.NewRequest("POST", "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// TestMiddlewareGuardsIntegration tests the guards against a real membership
func TestMiddlewareGuardsIntegration(t *testing.T) {
	service := setupService(t)
	if service == nil {
		return
	}

	community, ownerID := createTestCommunity(t, service, VisibilityPublic, JoinPolicyOpen)
	memberID := addMemberWithRole(t, service, community.ID, ownerID, RoleMember)

	mw := NewMiddleware(service,
		WithUserIDExtractor(func(r *http.Request) string {
			return r.Header.Get("X-User-ID")
		}),
	)

	var sawChecker bool
	handler := mw.RequirePermission(
		PermissionMemberBan,
		ScopeFromQuery(ScopeCommunity, "community_id"),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawChecker = GetChecker(r.Context()) != nil
		w.WriteHeader(http.StatusNoContent)
	}))

	probe := func(userID string) int {
		req := httptest.NewRequest("POST", "/ban?community_id="+community.ID, nil)
		req.Header.Set("X-User-ID", userID)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, probe(ownerID))
	assert.True(t, sawChecker, "handler should see the checker in context")
	assert.Equal(t, http.StatusForbidden, probe(memberID))
	assert.Equal(t, http.StatusForbidden, probe(uniqueID("outsider")))

	// Role guard: member passes the member threshold, outsider does not
	roleHandler := mw.RequireRole(RoleMember, ScopeFromQuery(ScopeCommunity, "community_id"))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	req := httptest.NewRequest("GET", "/feed?community_id="+community.ID, nil)
	req.Header.Set("X-User-ID", memberID)
	w := httptest.NewRecorder()
	roleHandler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest("GET", "/feed?community_id="+community.ID, nil)
	req.Header.Set("X-User-ID", uniqueID("outsider"))
	w = httptest.NewRecorder()
	roleHandler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
