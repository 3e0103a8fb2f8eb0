package enums

import "fmt"

// StaffRole is the actor role attached to audited engine calls.
type StaffRole string

const (
	StaffRoleAdmin   StaffRole = "admin"
	StaffRoleCashier StaffRole = "cashier"
	StaffRoleChef    StaffRole = "chef"
)

var validStaffRoles = []StaffRole{
	StaffRoleAdmin,
	StaffRoleCashier,
	StaffRoleChef,
}

func (r StaffRole) String() string {
	return string(r)
}

func (r StaffRole) IsValid() bool {
	for _, candidate := range validStaffRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParseStaffRole(value string) (StaffRole, error) {
	for _, candidate := range validStaffRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid staff role %q", value)
}
