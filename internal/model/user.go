package model

// Roles carried in the access token's "role" claim.  Accounts and roles
// are owned by the identity service; the scheduling core trusts them.
const (
	RoleOperator = "OPERATOR" // facility staff
	RoleBooker   = "BOOKER"   // registered player
)

// Actor is the authenticated caller of a scheduling command.
//
// Fields:
//  UserID – account identifier from the token subject.
//  Role   – OPERATOR or BOOKER.
type Actor struct {
	UserID uint64
	Role   string
}

// Operator reports whether the actor acts for a facility.
func (a Actor) Operator() bool { return a.Role == RoleOperator }
