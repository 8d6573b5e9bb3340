package models

import "time"

// RoleTag identifies the access role attached to an admin account.
type RoleTag string

const (
	RoleSuperAdmin   RoleTag = "super_admin"
	RoleRegionAdmin  RoleTag = "region_admin"
	RoleGradeAdmin   RoleTag = "grade_admin"
	RoleClassAdmin   RoleTag = "class_admin"
	RoleSubjectAdmin RoleTag = "subject_admin"
)

// Dimension names a filterable column of the activity snapshot.
type Dimension string

const (
	DimensionRegion  Dimension = "region"
	DimensionGrade   Dimension = "grade"
	DimensionClass   Dimension = "class_section"
	DimensionSubject Dimension = "subject"
)

// AccessScope captures the allow-lists and capability flags governing what
// an account may see. An empty allow-list on a dimension means the dimension
// is unrestricted; super admins ignore allow-lists entirely.
type AccessScope struct {
	Role             RoleTag  `json:"role"`
	Regions          []string `json:"regions,omitempty"`
	Grades           []string `json:"grades,omitempty"`
	Classes          []string `json:"classes,omitempty"`
	Subjects         []string `json:"subjects,omitempty"`
	CanViewSensitive bool     `json:"can_view_sensitive_data"`
	CanExport        bool     `json:"can_export_data"`
}

// Unrestricted reports whether the scope bypasses all dimension filtering.
func (s AccessScope) Unrestricted() bool {
	return s.Role == RoleSuperAdmin
}

// AllowList returns the allow-list for the given dimension. A nil result
// means no constraint on that dimension.
func (s AccessScope) AllowList(d Dimension) []string {
	switch d {
	case DimensionRegion:
		return s.Regions
	case DimensionGrade:
		return s.Grades
	case DimensionClass:
		return s.Classes
	case DimensionSubject:
		return s.Subjects
	}
	return nil
}

// Account is an immutable admin credential record seeded at process start.
type Account struct {
	Username     string      `json:"username"`
	PasswordHash string      `json:"-"`
	FullName     string      `json:"full_name"`
	Email        string      `json:"email"`
	Scope        AccessScope `json:"scope"`
	Active       bool        `json:"active"`
	CreatedAt    time.Time   `json:"created_at"`
}

// AccountInfo is the external view of an account used by the admin listing.
type AccountInfo struct {
	Username     string      `json:"username"`
	FullName     string      `json:"full_name"`
	Email        string      `json:"email"`
	Role         RoleTag     `json:"role"`
	Active       bool        `json:"active"`
	Restrictions AccessScope `json:"restrictions"`
}
