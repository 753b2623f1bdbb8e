package memberkit

import (
	"net/http"
)

// Middleware provides HTTP middleware for membership and permission checking.
type Middleware struct {
	service      *Service
	getUserID    func(*http.Request) string
	errorHandler func(http.ResponseWriter, *http.Request, error)
}

// MiddlewareOption configures the Middleware.
type MiddlewareOption func(*Middleware)

// NewMiddleware creates a new Middleware instance.
//
// Example:
//
//	mw := memberkit.NewMiddleware(service,
//	    memberkit.WithUserIDExtractor(func(r *http.Request) string {
//	        return r.Header.Get("X-User-ID")
//	    }),
//	)
func NewMiddleware(service *Service, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		service:      service,
		getUserID:    defaultGetUserID,
		errorHandler: defaultErrorHandler,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithUserIDExtractor sets a custom function to extract user ID from request.
func WithUserIDExtractor(fn func(*http.Request) string) MiddlewareOption {
	return func(m *Middleware) {
		m.getUserID = fn
	}
}

// WithErrorHandler sets a custom error handler for middleware.
func WithErrorHandler(fn func(http.ResponseWriter, *http.Request, error)) MiddlewareOption {
	return func(m *Middleware) {
		m.errorHandler = fn
	}
}

func defaultGetUserID(r *http.Request) string {
	return GetUserID(r.Context())
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case IsForbidden(err):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case IsNotFound(err):
		http.Error(w, "Not Found", http.StatusNotFound)
	case IsConflict(err), IsInvalidState(err):
		http.Error(w, "Conflict", http.StatusConflict)
	case IsValidation(err):
		http.Error(w, "Bad Request", http.StatusBadRequest)
	default:
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// ScopeExtractor extracts scope information from an HTTP request.
type ScopeExtractor func(*http.Request) (ScopeType, string, error)

// ScopeFromParam creates a ScopeExtractor that reads the scope ID from URL
// parameters. Compatible with chi, gorilla/mux, and standard library patterns.
//
// Example:
//
//	// For route /communities/{communityID}/settings
//	mw.RequireRole(memberkit.RoleAdmin, memberkit.ScopeFromParam(memberkit.ScopeCommunity, "communityID"))
func ScopeFromParam(scopeType ScopeType, paramName string) ScopeExtractor {
	return func(r *http.Request) (ScopeType, string, error) {
		scopeID := r.PathValue(paramName)
		if scopeID == "" {
			if v := r.Context().Value(paramName); v != nil {
				if s, ok := v.(string); ok {
					scopeID = s
				}
			}
		}
		if scopeID == "" {
			return "", "", NewError(ErrValidation, "scope ID not found in request").
				WithScope(scopeType, "")
		}
		return scopeType, scopeID, nil
	}
}

// ScopeFromQuery creates a ScopeExtractor that reads the scope ID from query
// parameters.
//
// Example:
//
//	// For route /api/invites?community_id=c_123
//	mw.RequirePermission(memberkit.PermissionMemberInvite, memberkit.ScopeFromQuery(memberkit.ScopeCommunity, "community_id"))
func ScopeFromQuery(scopeType ScopeType, queryParam string) ScopeExtractor {
	return func(r *http.Request) (ScopeType, string, error) {
		scopeID := r.URL.Query().Get(queryParam)
		if scopeID == "" {
			return "", "", NewError(ErrValidation, "scope ID not found in query").
				WithScope(scopeType, "")
		}
		return scopeType, scopeID, nil
	}
}

// ScopeFromHeader creates a ScopeExtractor that reads the scope ID from a
// header.
//
// Example:
//
//	// For header X-Community-ID: c_123
//	mw.RequireRole(memberkit.RoleMember, memberkit.ScopeFromHeader(memberkit.ScopeCommunity, "X-Community-ID"))
func ScopeFromHeader(scopeType ScopeType, headerName string) ScopeExtractor {
	return func(r *http.Request) (ScopeType, string, error) {
		scopeID := r.Header.Get(headerName)
		if scopeID == "" {
			return "", "", NewError(ErrValidation, "scope ID not found in header").
				WithScope(scopeType, "")
		}
		return scopeType, scopeID, nil
	}
}

// StaticScope creates a ScopeExtractor that always returns the same scope.
func StaticScope(scopeType ScopeType, scopeID string) ScopeExtractor {
	return func(r *http.Request) (ScopeType, string, error) {
		return scopeType, scopeID, nil
	}
}

// RequireRole creates middleware that requires an active membership with at
// least the given role in the extracted scope.
//
// Example:
//
//	router.With(mw.RequireRole(memberkit.RoleAdmin, memberkit.ScopeFromParam(memberkit.ScopeCommunity, "communityID"))).
//	    Post("/communities/{communityID}/settings", updateSettingsHandler)
func (m *Middleware) RequireRole(role Role, extractor ScopeExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := m.getUserID(r)
			if userID == "" {
				m.errorHandler(w, r, ErrNoActorID)
				return
			}

			scopeType, scopeID, err := extractor(r)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}

			checker, err := m.service.GetChecker(ctx, scopeType, scopeID, userID)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}
			if !checker.AtLeast(role) {
				m.errorHandler(w, r, NewError(ErrForbidden, "missing required role").
					WithScope(scopeType, scopeID).
					WithRole(role).
					WithUser(userID))
				return
			}

			// Add checker to context for use in handlers
			r = r.WithContext(WithChecker(ctx, checker))
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission creates middleware that requires an effective permission
// in the extracted scope, after role defaults and per-member overrides.
//
// Example:
//
//	router.With(mw.RequirePermission(memberkit.PermissionSpaceCreate, memberkit.ScopeFromParam(memberkit.ScopeCommunity, "communityID"))).
//	    Post("/communities/{communityID}/spaces", createSpaceHandler)
func (m *Middleware) RequirePermission(permission Permission, extractor ScopeExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := m.getUserID(r)
			if userID == "" {
				m.errorHandler(w, r, ErrNoActorID)
				return
			}

			scopeType, scopeID, err := extractor(r)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}

			checker, err := m.service.GetChecker(ctx, scopeType, scopeID, userID)
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}
			if !checker.Allowed(permission) {
				m.errorHandler(w, r, NewError(ErrForbidden, "missing permission: "+string(permission)).
					WithScope(scopeType, scopeID).
					WithUser(userID))
				return
			}

			r = r.WithContext(WithChecker(ctx, checker))
			next.ServeHTTP(w, r)
		})
	}
}

// RequireActiveMember creates middleware that only requires an active
// membership in the extracted scope, regardless of role.
func (m *Middleware) RequireActiveMember(extractor ScopeExtractor) func(http.Handler) http.Handler {
	return m.RequireRole(RoleRestricted, extractor)
}
