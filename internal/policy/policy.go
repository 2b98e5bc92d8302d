// Package policy decides whether an actor may perform mutating storefront
// operations.
package policy

import (
	"errors"

	"github.com/vitrine-io/vitrine/pkg/protocol"
)

// ErrUnauthorized is returned when an actor lacks the administrator role.
var ErrUnauthorized = errors.New("policy: administrator role required")

// Policy is the authorization predicate consulted before every mutating
// operation.
type Policy interface {
	Authorized(actor protocol.Actor) bool
}

// AdminList authorizes actors whose id is on the admin list or who carry
// one of the admin roles.
type AdminList struct {
	ids   map[string]struct{}
	roles map[string]struct{}
}

// NewAdminList builds a policy from actor ids (platform-prefixed, e.g.
// "telegram:12345") and role names.
func NewAdminList(ids, roles []string) *AdminList {
	p := &AdminList{
		ids:   make(map[string]struct{}, len(ids)),
		roles: make(map[string]struct{}, len(roles)),
	}
	for _, id := range ids {
		p.ids[id] = struct{}{}
	}
	for _, r := range roles {
		p.roles[r] = struct{}{}
	}
	return p
}

func (p *AdminList) Authorized(a protocol.Actor) bool {
	if _, ok := p.ids[a.ID]; ok {
		return true
	}
	for _, r := range a.Roles {
		if _, ok := p.roles[r]; ok {
			return true
		}
	}
	return false
}

// Require returns ErrUnauthorized when the actor fails the policy.
func Require(p Policy, a protocol.Actor) error {
	if !p.Authorized(a) {
		return ErrUnauthorized
	}
	return nil
}
