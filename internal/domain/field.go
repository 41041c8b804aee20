package domain

import "strings"

// FieldRole names what a form field is for.
type FieldRole string

const (
	RoleTitle       FieldRole = "title"
	RoleDescription FieldRole = "description"
	RoleLocation    FieldRole = "location"
	RoleCompany     FieldRole = "company"
	RoleEmail       FieldRole = "email"
	RoleSalary      FieldRole = "salary"
	RoleSubmit      FieldRole = "submit"
	RoleOther       FieldRole = "other"
)

// ParseFieldRole maps loose provider output onto a known role. Unknown
// values become RoleOther.
func ParseFieldRole(s string) FieldRole {
	switch r := FieldRole(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleTitle, RoleDescription, RoleLocation, RoleCompany, RoleEmail, RoleSalary, RoleSubmit:
		return r
	}
	return RoleOther
}

// FieldCandidate is one discovered form target. Never persisted.
type FieldCandidate struct {
	Role        FieldRole `json:"role"`
	Selector    string    `json:"selector"`
	Confidence  float64   `json:"confidence"`
	Label       string    `json:"label,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
}
