package rbac

import "testing"

func TestHasPermissionMatchesBitwiseAnd(t *testing.T) {
	perms := []int{PermCreate, PermEdit, PermDelete, PermView, PermDerive, PermAudit, PermExport, PermBlock}
	masks := []int{0, 1, 26, 91, 255, PermView | PermAudit}
	for _, m := range masks {
		for _, p := range perms {
			want := m&p != 0
			if got := HasPermission(m, p); got != want {
				t.Fatalf("HasPermission(%d,%d)=%v, want %v", m, p, got, want)
			}
		}
	}
}

func TestPermissionBitValues(t *testing.T) {
	want := map[string]int{
		"create": 1, "edit": 2, "delete": 4, "view": 8,
		"derive": 16, "audit": 32, "export": 64, "block": 128,
	}
	got := map[string]int{
		"create": PermCreate, "edit": PermEdit, "delete": PermDelete, "view": PermView,
		"derive": PermDerive, "audit": PermAudit, "export": PermExport, "block": PermBlock,
	}
	for name, v := range want {
		if got[name] != v {
			t.Fatalf("bit %s = %d, want %d", name, got[name], v)
		}
	}
}

func TestUnknownRoleFailsClosed(t *testing.T) {
	p := DefaultPolicy()
	if mask := p.MaskFor(999); mask != 0 {
		t.Fatalf("unknown role mask = %d, want 0", mask)
	}
	if p.Allowed(999, PermView) {
		t.Fatalf("unknown role must not be allowed anything")
	}
	if mask := p.MaskForName("INVITADO"); mask != 0 {
		t.Fatalf("unknown role name mask = %d, want 0", mask)
	}
}

func TestMaskForIsStableAcrossCalls(t *testing.T) {
	p := DefaultPolicy()
	for _, id := range []int64{RoleAdmin, RoleMesaPartes, RoleAreaResponsable, 42} {
		first := p.MaskFor(id)
		for i := 0; i < 5; i++ {
			if p.MaskFor(id) != first {
				t.Fatalf("MaskFor(%d) not stable", id)
			}
		}
	}
}

func TestMesaPartesScenario(t *testing.T) {
	p := DefaultPolicy()
	mask := p.MaskFor(RoleMesaPartes)
	if mask != 91 {
		t.Fatalf("MESA_PARTES mask = %d, want 91", mask)
	}
	if !CanCreate(mask) {
		t.Fatalf("MESA_PARTES must be able to create")
	}
	if CanDelete(mask) {
		t.Fatalf("MESA_PARTES must not delete")
	}
	if CanAudit(mask) {
		t.Fatalf("MESA_PARTES must not audit")
	}
	if !CanExport(mask) {
		t.Fatalf("MESA_PARTES must be able to export")
	}
}

func TestAreaResponsableMask(t *testing.T) {
	p := DefaultPolicy()
	mask := p.MaskFor(RoleAreaResponsable)
	if !CanDerive(mask) || !CanView(mask) || !CanEdit(mask) {
		t.Fatalf("AREA_RESPONSABLE missing expected bits, mask=%d", mask)
	}
	if CanBlock(mask) || CanDelete(mask) {
		t.Fatalf("AREA_RESPONSABLE holds unexpected bits, mask=%d", mask)
	}
}
