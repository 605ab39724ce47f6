// Package rbac implements the bitmask permission model: one integer mask
// per role, one bit per grantable capability. Evaluation is a pure
// function over two integers so route guards and UI affordances share the
// exact same decision.
package rbac

// Permission bits. Only these eight are meaningful; higher bits in a mask
// are ignored by convention.
const (
	PermCreate = 1 << iota
	PermEdit
	PermDelete
	PermView
	PermDerive
	PermAudit
	PermExport
	PermBlock
)

// Fixed role identifiers, seeded once and immutable afterwards.
const (
	RoleAdmin           = int64(1)
	RoleMesaPartes      = int64(2)
	RoleAreaResponsable = int64(3)
)

const (
	RoleNameAdmin           = "ADMIN"
	RoleNameMesaPartes      = "MESA_PARTES"
	RoleNameAreaResponsable = "AREA_RESPONSABLE"
)

// HasPermission reports whether the permission bit is set in the mask.
func HasPermission(mask, perm int) bool {
	return mask&perm != 0
}

func CanCreate(mask int) bool { return HasPermission(mask, PermCreate) }
func CanEdit(mask int) bool   { return HasPermission(mask, PermEdit) }
func CanDelete(mask int) bool { return HasPermission(mask, PermDelete) }
func CanView(mask int) bool   { return HasPermission(mask, PermView) }
func CanDerive(mask int) bool { return HasPermission(mask, PermDerive) }
func CanAudit(mask int) bool  { return HasPermission(mask, PermAudit) }
func CanExport(mask int) bool { return HasPermission(mask, PermExport) }
func CanBlock(mask int) bool  { return HasPermission(mask, PermBlock) }

type Role struct {
	ID   int64
	Name string
	Mask int
}

// Policy is the static role -> mask table. Lookups on unknown roles
// return a zero mask: no bits set, every check fails closed.
type Policy struct {
	byID   map[int64]Role
	byName map[string]Role
}

func NewPolicy(roles []Role) *Policy {
	p := &Policy{byID: map[int64]Role{}, byName: map[string]Role{}}
	for _, r := range roles {
		p.byID[r.ID] = r
		p.byName[r.Name] = r
	}
	return p
}

// DefaultPolicy returns the seeded OFICRI roles.
func DefaultPolicy() *Policy {
	return NewPolicy([]Role{
		{ID: RoleAdmin, Name: RoleNameAdmin, Mask: PermCreate | PermEdit | PermDelete | PermView | PermDerive | PermAudit | PermExport | PermBlock},
		{ID: RoleMesaPartes, Name: RoleNameMesaPartes, Mask: PermCreate | PermEdit | PermView | PermDerive | PermExport},
		{ID: RoleAreaResponsable, Name: RoleNameAreaResponsable, Mask: PermEdit | PermView | PermDerive},
	})
}

// MaskFor returns the permission mask of the role, 0 when unknown.
func (p *Policy) MaskFor(roleID int64) int {
	if p == nil {
		return 0
	}
	return p.byID[roleID].Mask
}

// MaskForName returns the permission mask of the named role, 0 when unknown.
func (p *Policy) MaskForName(name string) int {
	if p == nil {
		return 0
	}
	return p.byName[name].Mask
}

// Allowed reports whether the role holds the permission.
func (p *Policy) Allowed(roleID int64, perm int) bool {
	return HasPermission(p.MaskFor(roleID), perm)
}

// Roles lists the configured roles in id order.
func (p *Policy) Roles() []Role {
	if p == nil {
		return nil
	}
	out := make([]Role, 0, len(p.byID))
	for id := int64(1); int(id) <= len(p.byID); id++ {
		if r, ok := p.byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
