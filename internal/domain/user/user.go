// Package user defines the authenticated caller and its roles.
package user

import "fmt"

// Role represents the authorization level of a caller.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleReviewer Role = "reviewer"
	RoleViewer   Role = "viewer"
)

// ValidRoles is the set of all valid roles.
var ValidRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleManager:  true,
	RoleReviewer: true,
	RoleViewer:   true,
}

// ReviewerRoles may approve, reject or modify review requests.
var ReviewerRoles = []Role{RoleAdmin, RoleManager, RoleReviewer}

// EditorRoles may create, change and delete records and run agents.
var EditorRoles = []Role{RoleAdmin, RoleManager}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !ValidRoles[r] {
		return "", fmt.Errorf("invalid role %q: must be admin, manager, reviewer or viewer", s)
	}
	return r, nil
}

// AuthMethod records how a caller authenticated.
type AuthMethod string

const (
	MethodJWT      AuthMethod = "jwt"
	MethodAPIKey   AuthMethod = "api_key"
	MethodDisabled AuthMethod = "disabled"
)

// Principal is the authenticated caller attached to a request. Subject is
// what review decisions record as the reviewer id.
type Principal struct {
	Subject string     `json:"subject"`
	Role    Role       `json:"role"`
	Method  AuthMethod `json:"method"`
}

// LocalAdmin is the principal used when authentication is disabled.
var LocalAdmin = Principal{Subject: "local-admin", Role: RoleAdmin, Method: MethodDisabled}
