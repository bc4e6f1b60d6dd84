package orders

import (
	"github.com/google/uuid"

	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
)

// SystemActorID is recorded in status history for machine-triggered
// transitions such as payment reconciliation.
var SystemActorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type edge struct {
	from enums.OrderStatus
	to   enums.OrderStatus
}

// rule gates one edge of the lifecycle graph. Roles list who may request the
// transition; the boolean flags name the extra checks the service applies
// against the locked row before accepting it.
type rule struct {
	roles            []enums.ActorRole
	requiresPayment  bool
	requiresNoLedger bool
	requiresReason   bool
}

func (r rule) allows(role enums.ActorRole) bool {
	for _, allowed := range r.roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// transitionRules is the whole lifecycle graph. An edge absent from this map
// is rejected regardless of who asks; role checks run only after the edge
// itself is known to exist.
var transitionRules = map[edge]rule{
	// Payment completion drives this edge, never a human. Reconciliation
	// advances sub-orders with the system actor after the gateway confirms.
	{enums.OrderStatusPending, enums.OrderStatusProcessing}: {
		roles:           []enums.ActorRole{enums.RoleSystem},
		requiresPayment: true,
	},
	{enums.OrderStatusPending, enums.OrderStatusCancelled}: {
		roles:          []enums.ActorRole{enums.RoleBuyer, enums.RoleAdmin, enums.RoleSuperAdmin},
		requiresReason: true,
	},
	{enums.OrderStatusProcessing, enums.OrderStatusDelivering}: {
		roles: []enums.ActorRole{enums.RoleRider, enums.RoleAdmin, enums.RoleSuperAdmin},
	},
	// Cancelling a paid order is admin-only, and refused outright once a
	// commission row exists for it.
	{enums.OrderStatusProcessing, enums.OrderStatusCancelled}: {
		roles:            []enums.ActorRole{enums.RoleAdmin, enums.RoleSuperAdmin},
		requiresReason:   true,
		requiresNoLedger: true,
	},
	{enums.OrderStatusDelivering, enums.OrderStatusDelivered}: {
		roles: []enums.ActorRole{enums.RoleRider, enums.RoleAdmin, enums.RoleSuperAdmin},
	},
	// A refused or failed delivery comes back before the order ever reaches
	// the delivered terminal state.
	{enums.OrderStatusDelivering, enums.OrderStatusReturned}: {
		roles:          []enums.ActorRole{enums.RoleRider, enums.RoleAdmin, enums.RoleSuperAdmin},
		requiresReason: true,
	},
}

// AllowedTargets reports which statuses the given role could move an order
// in `from` towards, ignoring row-level guards. Used by the API layer to
// render available actions.
func AllowedTargets(from enums.OrderStatus, role enums.ActorRole) []enums.OrderStatus {
	var targets []enums.OrderStatus
	for e, r := range transitionRules {
		if e.from == from && r.allows(role) {
			targets = append(targets, e.to)
		}
	}
	return targets
}
