package domain

// Role identifies the privilege level of the party making a request
type Role string

const (
	RoleCustomer Role = "customer"
	RoleManager  Role = "shop_manager"
	RoleAdmin    Role = "administrator"
)

// Actor is the authenticated party behind a privileged operation. Handlers
// construct it from request-level authorization, never from ambient state.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// CanAdministerVault reports whether the actor may bulk-delete saved cards
func (a Actor) CanAdministerVault() bool {
	return a.Role == RoleAdmin
}

// CanRefund reports whether the actor may issue refunds
func (a Actor) CanRefund() bool {
	return a.Role == RoleAdmin || a.Role == RoleManager
}
