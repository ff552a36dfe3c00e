// Package access is the pure role-to-navigation resolver of the console:
// given the signed-in principal's role set it decides which paths may be
// reached and which resources show up in the menu. It performs no I/O.
package access

import "strings"

// defaultRequiredRoles applies when no rule prefix matches a path. It is the
// conservative fallback: only the two most privileged roles pass, so a
// student-only role set is denied on unmapped paths.
var defaultRequiredRoles = []string{RoleAdmin, RoleStaff}

// Authorize decides whether a caller holding `roles` may reach `path`.
//
// The rule lookup walks the path's prefixes from the shortest outward and
// stops at the FIRST matching one; a more specific rule deeper in the path is
// never consulted. This mirrors the console's long-standing behavior and is
// relied upon by existing rule tables; do not "fix" it to most-specific-wins
// without a product decision.
func Authorize(roles []string, path string) bool {
	return AuthorizeWith(Rules, roles, path)
}

// AuthorizeWith is Authorize against an explicit rule table.
func AuthorizeWith(rules map[string][]string, roles []string, path string) bool {
	if HasRole(roles, RoleAdmin) {
		return true
	}

	required := defaultRequiredRoles
	prefix := ""
	for _, seg := range normalizeSegments(path) {
		prefix += "/" + seg
		if reqd, ok := rules[prefix]; ok {
			required = reqd
			break
		}
	}

	// an empty required set means any authenticated role passes
	if len(required) == 0 {
		return len(roles) > 0
	}
	return HasAnyRole(roles, required)
}

// normalizeSegments splits a path into its routing segments: the trailing
// slash is stripped (the root path has no segments), empty segments are
// dropped, and purely numeric segments are treated as record identifiers
// rather than routing discriminators and dropped as well.
func normalizeSegments(path string) []string {
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}

	var segs []string
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || isNumeric(seg) {
			continue
		}
		segs = append(segs, seg)
	}
	return segs
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// VisibleResources filters the static catalog down to the entries the given
// role set may navigate to.
func VisibleResources(roles []string) []Resource {
	return visibleResources(Catalog, roles)
}

func visibleResources(catalog []Resource, roles []string) []Resource {
	visible := make([]Resource, 0, len(catalog))
	switch {
	case HasRole(roles, RoleAdmin):
		visible = append(visible, catalog...)
	case HasRole(roles, RoleStaff):
		for _, res := range catalog {
			if !res.AdminOnly || res.StaffCarveOut {
				visible = append(visible, res)
			}
		}
	case HasRole(roles, RoleStudent):
		for _, res := range catalog {
			if res.Common || res.SelfService {
				visible = append(visible, res)
			}
		}
	default:
		// unknown or empty role set: the minimal self-service entry only
		for _, res := range catalog {
			if res.SelfService {
				visible = append(visible, res)
				break
			}
		}
	}
	return visible
}

func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func HasAnyRole(roles, wanted []string) bool {
	for _, w := range wanted {
		if HasRole(roles, w) {
			return true
		}
	}
	return false
}
