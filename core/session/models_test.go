package session

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

func TestRoleList_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    RoleList
		wantErr bool
	}{
		{name: "bare strings", data: `["admin","staff"]`, want: RoleList{"admin", "staff"}},
		{name: "role objects", data: `[{"roleName":"student","roleId":3}]`, want: RoleList{"student"}},
		{name: "empty", data: `[]`, want: RoleList{}},
		{name: "garbage", data: `"student"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got RoleList
			err := json.Unmarshal([]byte(tt.data), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Unmarshal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIdentity_Identifier(t *testing.T) {
	tests := []struct {
		name     string
		identity Identity
		want     string
	}{
		{name: "student full id wins", identity: Identity{StudentFullID: "U119713", UserID: 42}, want: "U119713"},
		{name: "numeric user id fallback", identity: Identity{UserID: 42}, want: "42"},
		{name: "empty", identity: Identity{}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.identity.Identifier(); got != tt.want {
				t.Errorf("Identifier() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVerifyToken(t *testing.T) {
	nowFunc = func() time.Time { return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { nowFunc = time.Now }()

	// issued elsewhere; only the payload matters to this client
	live := tokenWithExp(t, nowFunc().Add(time.Hour).Unix())
	expired := tokenWithExp(t, nowFunc().Add(-time.Hour).Unix())
	noExp := tokenWithExp(t, 0)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "live token", token: live},
		{name: "no expiry claim", token: noExp},
		{name: "expired token", token: expired, wantErr: errTokenExpired},
		{name: "not a jwt", token: "lmaooolol", wantErr: errInvalidToken},
		{name: "empty", token: "", wantErr: errInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifyToken(tt.token)
			if !sameCause(err, tt.wantErr) {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func tokenWithExp(t *testing.T, exp int64) string {
	t.Helper()
	claims := &Claims{UserID: 7, Roles: RoleList{"staff"}}
	claims.Subject = "s124642"
	claims.ExpiresAt = exp
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("tokenWithExp() failed: %v", err)
	}
	return token
}

func sameCause(err, want error) bool {
	if want == nil {
		return err == nil
	}
	return err != nil && errors.Cause(err) == want
}
