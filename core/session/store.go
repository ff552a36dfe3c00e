package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/cmrsapp/console/core"
	"github.com/cmrsapp/console/core/access"
	"github.com/cmrsapp/console/storage/kvstore"
)

// persisted state keys; the only client state surviving a restart
const (
	keyAccessToken = "access_token"
	keyUserRoles   = "user_roles"
	keyUserDetails = "user_details"
)

var (
	// ErrAuthenticationFailed covers rejected credentials and an
	// unreachable auth endpoint at login; surfaced as an inline form
	// error, never as a server fault.
	ErrAuthenticationFailed = errors.New("invalid username or password")

	// ErrUnauthenticated marks a 401-class response from any downstream
	// service; the store reacts with an implicit logout.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// AuthAPI is the slice of the CMRS services the session store talks to.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (token string, err error)
	StaffProfile(ctx context.Context, userID int64) (Profile, error)
	StudentProfile(ctx context.Context, userID int64) (Profile, error)
}

type (
	// Store holds the authenticated principal's identity, role set and
	// bearer credential. It is constructed once at startup and injected
	// into consumers; there is no ambient global session.
	Store struct {
		api    AuthAPI
		kv     kvstore.Store
		logger core.Logger

		mu       sync.Mutex
		onLogout []func()
	}

	// LoginResult reports the outcome of a successful login.
	LoginResult struct {
		RedirectTo string `json:"redirectTo"`
		// Degraded is set when the profile enrichment fetch failed;
		// identity is then claims-only but the roles are still known.
		Degraded bool `json:"degraded,omitempty"`
	}

	// CheckResult is the local-only credential validity decision.
	CheckResult struct {
		Authenticated bool   `json:"authenticated"`
		RedirectTo    string `json:"redirectTo,omitempty"`
	}
)

func NewStore(api AuthAPI, kv kvstore.Store, logger core.Logger) *Store {
	return &Store{api: api, kv: kv, logger: logger}
}

// OnLogout registers a teardown hook run whenever the session is destroyed
// (explicit logout, expired credential, implicit 401 logout).
func (s *Store) OnLogout(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// Login authenticates against the auth service, decodes the issued bearer
// token, enriches the identity with a profile fetch and persists the
// session. A failed enrichment degrades the identity but does not fail the
// login; the roles are already known from the token.
func (s *Store) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = core.CleanString(username, true /* lower */)

	token, err := s.api.Login(ctx, username, password)
	if err != nil {
		return LoginResult{}, errors.Wrap(ErrAuthenticationFailed, err.Error())
	}

	claims, err := decodeToken(token)
	if err != nil {
		return LoginResult{}, errors.Wrap(ErrAuthenticationFailed, err.Error())
	}
	roles := []string(claims.Roles)

	identity := Identity{
		Name:   claims.Subject,
		Email:  claims.Email,
		UserID: claims.UserID,
		Roles:  roles,
	}

	var degraded bool
	profile, err := s.fetchProfile(ctx, claims)
	if err != nil {
		// degraded identity: claims-only, roles still known from the token
		degraded = true
		s.logger.Warn("profile enrichment failed", errors.Wrap(err, "fetching profile"))
	} else {
		if profile.Name != "" {
			identity.Name = profile.Name
		}
		if profile.Email != "" {
			identity.Email = profile.Email
		}
		identity.StudentFullID = profile.StudentFullID
		identity.Department = profile.Department
		identity.Program = profile.Program
	}

	if err := s.persist(token, identity); err != nil {
		return LoginResult{}, errors.Wrap(err, "persisting session")
	}
	return LoginResult{RedirectTo: redirectFor(roles), Degraded: degraded}, nil
}

// Logout clears all persisted session fields and signals dependent
// components to tear down. Safe to call on an already-empty session.
func (s *Store) Logout() {
	if err := s.kv.Delete(keyAccessToken, keyUserRoles, keyUserDetails); err != nil {
		s.logger.Error("clearing session state", err)
	}

	s.mu.Lock()
	hooks := make([]func(), len(s.onLogout))
	copy(hooks, s.onLogout)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Check validates presence and non-expiry of the stored credential. It never
// calls the network; an expired credential is destroyed and treated exactly
// like "never logged in".
func (s *Store) Check() CheckResult {
	token, err := s.kv.Get(keyAccessToken)
	if err != nil {
		return CheckResult{Authenticated: false, RedirectTo: "/login"}
	}
	if _, err := verifyToken(token); err != nil {
		s.Logout()
		return CheckResult{Authenticated: false, RedirectTo: "/login"}
	}
	return CheckResult{Authenticated: true}
}

// Identity returns the stored profile + role claims projection, or nil when
// no session exists.
func (s *Store) Identity() *Identity {
	raw, err := s.kv.Get(keyUserDetails)
	if err != nil {
		return nil
	}
	identity := new(Identity)
	if err := json.Unmarshal([]byte(raw), identity); err != nil {
		s.logger.Warn("corrupt identity record", err)
		return nil
	}
	return identity
}

// Roles returns the stored role set; empty when signed out.
func (s *Store) Roles() []string {
	raw, err := s.kv.Get(keyUserRoles)
	if err != nil {
		return nil
	}
	var roles []string
	if err := json.Unmarshal([]byte(raw), &roles); err != nil {
		s.logger.Warn("corrupt role list", err)
		return nil
	}
	return roles
}

// Token returns the stored bearer credential, or "" when signed out.
func (s *Store) Token() string {
	token, err := s.kv.Get(keyAccessToken)
	if err != nil {
		return ""
	}
	return token
}

// HandleAPIError applies the propagation policy for downstream failures:
// only an authentication-boundary failure may change session state.
func (s *Store) HandleAPIError(err error) {
	if errors.Cause(err) == ErrUnauthenticated {
		s.logger.Info("downstream 401, logging out")
		s.Logout()
	}
}

func (s *Store) fetchProfile(ctx context.Context, claims *Claims) (Profile, error) {
	if access.HasRole(claims.Roles, access.RoleStudent) && !access.HasRole(claims.Roles, access.RoleStaff) {
		return s.api.StudentProfile(ctx, claims.UserID)
	}
	return s.api.StaffProfile(ctx, claims.UserID)
}

func (s *Store) persist(token string, identity Identity) error {
	if err := s.kv.Set(keyAccessToken, token); err != nil {
		return err
	}
	roles, err := json.Marshal(identity.Roles)
	if err != nil {
		return err
	}
	if err := s.kv.Set(keyUserRoles, string(roles)); err != nil {
		return err
	}
	details, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return s.kv.Set(keyUserDetails, string(details))
}

// redirectFor picks the post-login landing screen: a student-only role set
// goes straight to registration, everyone else to the dashboard.
func redirectFor(roles []string) string {
	if access.HasRole(roles, access.RoleStudent) &&
		!access.HasRole(roles, access.RoleAdmin) &&
		!access.HasRole(roles, access.RoleStaff) {
		return "/courseRegistration"
	}
	return "/"
}
