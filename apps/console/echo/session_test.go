package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/cmrsapp/console/core/access"
	testutil "github.com/cmrsapp/console/tests"
)

func TestLogin_RoleBasedLanding(t *testing.T) {
	tests := []struct {
		name       string
		roles      []string
		redirectTo string
	}{
		{name: "student only lands on registration", roles: []string{access.RoleStudent}, redirectTo: "/courseRegistration"},
		{name: "staff lands on dashboard", roles: []string{access.RoleStaff}, redirectTo: "/"},
		{name: "student plus staff lands on dashboard", roles: []string{access.RoleStudent, access.RoleStaff}, redirectTo: "/"},
		{name: "admin lands on dashboard", roles: []string{access.RoleAdmin}, redirectTo: "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			resp := env.signIn(t, "s124642", 7, tt.roles)
			assert.Equal(t, tt.redirectTo, resp.RedirectTo)
			assert.False(t, resp.Degraded)
		})
	}
}

func TestLogin_RejectedCredentialsInline(t *testing.T) {
	env := newTestEnv(t)
	env.auth.loginErr = errors.New("bad credentials")

	body := marchallObj(t, LoginRequest{Username: "s124642", Password: "wrong"})
	req, rec := newRequest(http.MethodPost, "/login", body)
	env.app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid username or password")
}

func TestLogin_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	body := marchallObj(t, LoginRequest{Username: "s124642"})
	req, rec := newRequest(http.MethodPost, "/login", body)
	env.app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var fldErrs map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &fldErrs); err != nil {
		t.Fatalf("decoding field errors: %v", err)
	}
	assert.Contains(t, fldErrs, "password")
}

func TestLogin_DegradedWhenProfileFetchFails(t *testing.T) {
	env := newTestEnv(t)
	env.auth.profileErr = errors.New("profile service down")

	resp := env.signIn(t, "s124642", 7, []string{access.RoleStaff})
	assert.True(t, resp.Degraded)

	// roles are still known from the token; guarded navigation works
	req, rec := newRequest(http.MethodGet, "/courseManagement")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_ResumesInterruptedNavigation(t *testing.T) {
	env := newTestEnv(t)

	// unauthenticated visit records the target and bounces to login
	req, rec := newRequest(http.MethodGet, "/courseManagement/edit/42")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	resp := env.signIn(t, "s124642", 7, []string{access.RoleStaff})
	assert.Equal(t, "/courseManagement/edit/42", resp.RedirectTo)

	// the stored target is consumed, not replayed
	resp = env.signIn(t, "s124642", 7, []string{access.RoleStaff})
	assert.Equal(t, "/", resp.RedirectTo)
}

func TestLogout_DestroysSession(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "s124642", 7, []string{access.RoleStaff})

	req, rec := newRequest(http.MethodPost, "/logout")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// guarded routes bounce to login again
	req, rec = newRequest(http.MethodGet, "/courseManagement")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestExpiredCredentialTreatedAsSignedOut(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "s124642", 7, []string{access.RoleStaff})

	// overwrite the stored credential with an expired one
	expired := testutil.MakeToken(t, "s124642", 7, []string{access.RoleStaff}, time.Now().Add(-time.Hour))
	if err := env.state.Set("access_token", expired); err != nil {
		t.Fatalf("seeding expired token: %v", err)
	}

	req, rec := newRequest(http.MethodGet, "/courseManagement")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestIdentityEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.auth.profile.Name = "Jo Staff"
	env.auth.profile.Department = "Registrar"
	env.signIn(t, "s124642", 7, []string{access.RoleStaff})

	req, rec := newRequest(http.MethodGet, "/identity")
	env.app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Jo Staff")
	assert.Contains(t, rec.Body.String(), "Registrar")
}
