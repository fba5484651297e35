package enums

// UserRole is embedded in access tokens and checked by RequireRole.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

var userRoles = []UserRole{UserRoleCustomer, UserRoleAdmin}

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool { return known(r, userRoles) }

func ParseUserRole(value string) (UserRole, error) {
	return parse(value, "user role", userRoles)
}
