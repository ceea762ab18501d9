package auth

import (
	"github.com/google/uuid"

	"github.com/fatine-labs/souqly-backend/pkg/enums"
)

// Actor is the authenticated principal attached to a request. Services take
// an Actor rather than raw claims so authorization decisions stay testable.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// Capability names an action the role model can grant.
type Capability string

const (
	CapManageCatalog  Capability = "catalog:manage"
	CapViewAllOrders  Capability = "orders:view_all"
	CapUpdateOrders   Capability = "orders:update_status"
	CapProcessReturns Capability = "returns:adjudicate"
	CapViewStock      Capability = "stock:view"
	CapAdjustStock    Capability = "stock:adjust"
	CapManageUsers    Capability = "users:manage"
)

var roleCapabilities = map[enums.Role]map[Capability]bool{
	enums.RoleAdmin: {
		CapManageCatalog:  true,
		CapViewAllOrders:  true,
		CapUpdateOrders:   true,
		CapProcessReturns: true,
		CapViewStock:      true,
		CapAdjustStock:    true,
		CapManageUsers:    true,
	},
	enums.RoleVendor: {
		CapManageCatalog: true,
		CapViewStock:     true,
		CapAdjustStock:   true,
	},
	enums.RoleClient: {},
}

// Can reports whether the actor's role grants the capability.
func (a Actor) Can(cap Capability) bool {
	caps, ok := roleCapabilities[a.Role]
	if !ok {
		return false
	}
	return caps[cap]
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.RoleAdmin
}

// IsVendor reports whether the actor has the vendor role.
func (a Actor) IsVendor() bool {
	return a.Role == enums.RoleVendor
}

// ActorFromClaims builds the request principal from verified token claims.
func ActorFromClaims(claims *AccessTokenClaims) Actor {
	return Actor{UserID: claims.UserID, Role: claims.Role}
}
