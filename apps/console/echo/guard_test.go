package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cmrsapp/console/core/access"
)

func TestGuard_RedirectsAnonymousToLogin(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/", "/courseManagement", "/notifications", "/menu"} {
		req, rec := newRequest(http.MethodGet, path)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusFound, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)
	}
}

func TestGuard_PathRules(t *testing.T) {
	tests := []struct {
		name      string
		roles     []string
		path      string
		forbidden bool
	}{
		{name: "staff on staff screen", roles: []string{access.RoleStaff}, path: "/courseManagement"},
		{name: "staff on admin screen", roles: []string{access.RoleStaff}, path: "/roleManagement", forbidden: true},
		{name: "admin bypasses every rule", roles: []string{access.RoleAdmin}, path: "/roleManagement"},
		{name: "student on staff screen", roles: []string{access.RoleStudent}, path: "/courseManagement", forbidden: true},
		{name: "student on registration", roles: []string{access.RoleStudent}, path: "/courseRegistration"},
		{name: "student on unmapped path", roles: []string{access.RoleStudent}, path: "/", forbidden: true},
		{name: "staff on unmapped path", roles: []string{access.RoleStaff}, path: "/"},
		{name: "numeric ids do not change the rule", roles: []string{access.RoleStaff}, path: "/courseManagement/edit/42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.signIn(t, "s124642", 7, tt.roles)

			req, rec := newRequest(http.MethodGet, tt.path)
			env.app.ServeHTTP(rec, req)
			if tt.forbidden {
				assert.Equal(t, http.StatusFound, rec.Code)
				assert.Equal(t, "/forbidden", rec.Header().Get("Location"))
			} else {
				assert.Equal(t, http.StatusOK, rec.Code)
			}
		})
	}
}

func TestGuard_ReevaluatesEveryRequest(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "s124642", 7, []string{access.RoleStaff})

	req, rec := newRequest(http.MethodGet, "/courseManagement")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// the session evaporates between navigations; the next request notices
	env.session.Logout()
	req, rec = newRequest(http.MethodGet, "/courseManagement")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestForbiddenScreenOffersBackTarget(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "s124642", 7, []string{access.RoleStudent})

	req, rec := newRequest(http.MethodGet, "/roleManagement")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)

	req, rec = newRequest(http.MethodGet, "/forbidden")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "/roleManagement")
}

func TestMenu_FilteredByRole(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		contains []string
		excludes []string
	}{
		{
			name:     "admin sees everything",
			roles:    []string{access.RoleAdmin},
			contains: []string{"roleManagement", "permissionManagement", "courseManagement"},
		},
		{
			name:     "staff misses admin-only entries",
			roles:    []string{access.RoleStaff},
			contains: []string{"courseManagement", "batchJobUpload"},
			excludes: []string{"roleManagement", "permissionManagement"},
		},
		{
			name:     "student sees the self-service subset",
			roles:    []string{access.RoleStudent},
			contains: []string{"courseRegistration", "notifications", "dashboard"},
			excludes: []string{"courseManagement", "roleManagement"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.signIn(t, "s124642", 7, tt.roles)

			req, rec := newRequest(http.MethodGet, "/menu")
			env.app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)

			var menu []access.Resource
			if err := json.Unmarshal(rec.Body.Bytes(), &menu); err != nil {
				t.Fatalf("decoding menu: %v", err)
			}
			names := make(map[string]bool, len(menu))
			for _, res := range menu {
				names[res.Name] = true
			}
			for _, want := range tt.contains {
				assert.True(t, names[want], want)
			}
			for _, not := range tt.excludes {
				assert.False(t, names[not], not)
			}
		})
	}
}

func TestScreenDescriptors(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "s124642", 7, []string{access.RoleStaff})

	req, rec := newRequest(http.MethodGet, "/courseManagement/edit/42")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var screen Screen
	if err := json.Unmarshal(rec.Body.Bytes(), &screen); err != nil {
		t.Fatalf("decoding screen: %v", err)
	}
	assert.Equal(t, "courseManagement", screen.Resource)
	assert.Equal(t, "edit", screen.View)
	assert.Equal(t, "42", screen.Params["courseId"])
}
