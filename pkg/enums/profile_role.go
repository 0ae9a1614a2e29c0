package enums

import "fmt"

// ProfileRole gates the admin back office.
type ProfileRole string

const (
	ProfileRoleUser       ProfileRole = "user"
	ProfileRoleAdmin      ProfileRole = "admin"
	ProfileRoleSuperadmin ProfileRole = "superadmin"
)

var validProfileRoles = []ProfileRole{
	ProfileRoleUser,
	ProfileRoleAdmin,
	ProfileRoleSuperadmin,
}

func (r ProfileRole) IsValid() bool {
	for _, candidate := range validProfileRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the role may use the back office.
func (r ProfileRole) IsAdmin() bool {
	return r == ProfileRoleAdmin || r == ProfileRoleSuperadmin
}

func ParseProfileRole(value string) (ProfileRole, error) {
	for _, candidate := range validProfileRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid profile role %q", value)
}
