package session

import (
	"encoding/json"
	"strconv"

	"github.com/dgrijalva/jwt-go"
)

// RoleList normalizes the loosely-shaped role payloads returned by the
// CMRS services. Roles arrive either as bare strings or as
// {roleName, roleId} objects depending on the endpoint; everything is
// folded into plain role names at the boundary so nothing downstream
// ever has to branch on payload shape.
type RoleList []string

func (rl *RoleList) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		*rl = names
		return nil
	}

	var objs []struct {
		RoleName string `json:"roleName"`
		RoleID   int64  `json:"roleId"`
	}
	if err := json.Unmarshal(data, &objs); err != nil {
		return err
	}
	names = make([]string, 0, len(objs))
	for _, obj := range objs {
		names = append(names, obj.RoleName)
	}
	*rl = names
	return nil
}

// Claims are the authorization claims decoded from the issued bearer token.
// The console decodes without verifying the signature; verification is the
// issuing auth service's concern.
type Claims struct {
	jwt.StandardClaims
	UserID int64    `json:"userId,omitempty"`
	Email  string   `json:"email,omitempty"`
	Roles  RoleList `json:"roles,omitempty"`
}

// Profile is the richer identity record fetched after login from the
// user-management service. Field presence depends on whether the principal
// is staff or a student.
type Profile struct {
	UserID        int64  `json:"userId,omitempty"`
	StudentID     int64  `json:"studentId,omitempty"`
	StudentFullID string `json:"studentFullId,omitempty"`
	StaffFullID   string `json:"staffFullId,omitempty"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	Department    string `json:"department,omitempty"`
	Program       string `json:"program,omitempty"`
	Roles         RoleList `json:"roles,omitempty"`
}

// Identity is the synchronous projection of the stored profile and role
// claims, for display purposes.
type Identity struct {
	Name          string   `json:"name"`
	Email         string   `json:"email,omitempty"`
	UserID        int64    `json:"userId,omitempty"`
	StudentFullID string   `json:"studentFullId,omitempty"`
	Department    string   `json:"department,omitempty"`
	Program       string   `json:"program,omitempty"`
	Roles         []string `json:"roles"`
}

// Identifier returns the notification subscription key for the principal:
// the student's full id when present, the numeric user id otherwise.
func (i Identity) Identifier() string {
	if i.StudentFullID != "" {
		return i.StudentFullID
	}
	if i.UserID != 0 {
		return strconv.FormatInt(i.UserID, 10)
	}
	return ""
}
