package role

import "testing"

func TestParse_ValidRoles(t *testing.T) {
	cases := []struct {
		input string
		want  Role
	}{
		{"SUPER_ADMIN", SuperAdmin},
		{"ADMIN", Admin},
		{"UNIT_MANAGER", UnitManager},
		{"USER", User},
	}

	for _, tc := range cases {
		got, ok := Parse(tc.input)
		if !ok {
			t.Errorf("Parse(%q) ok = false, want true", tc.input)
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParse_UnknownRole_ReturnsFalse(t *testing.T) {
	for _, input := range []string{"", "admin", "ROOT", "SUPERADMIN"} {
		if _, ok := Parse(input); ok {
			t.Errorf("Parse(%q) ok = true, want false", input)
		}
	}
}

func TestBasePrefix_MapsEachRole(t *testing.T) {
	cases := []struct {
		role Role
		want string
	}{
		{SuperAdmin, "/super-admin"},
		{Admin, "/admin"},
		{UnitManager, "/unit-manager"},
		{User, "/user"},
	}

	for _, tc := range cases {
		if got := BasePrefix(tc.role); got != tc.want {
			t.Errorf("BasePrefix(%q) = %q, want %q", tc.role, got, tc.want)
		}
	}
}

func TestBasePrefix_UnknownRole_FallsBackToUser(t *testing.T) {
	// 未知のロールと空ロールは最小権限のプレフィックスに落ちる
	for _, r := range []Role{"", "ROOT", "MANAGER"} {
		if got := BasePrefix(r); got != PrefixUser {
			t.Errorf("BasePrefix(%q) = %q, want %q", r, got, PrefixUser)
		}
	}
}

func TestCreatesRole_AdjacencyChain(t *testing.T) {
	cases := []struct {
		creator Role
		want    Role
	}{
		{SuperAdmin, Admin},
		{Admin, UnitManager},
		{UnitManager, User},
	}

	for _, tc := range cases {
		got, ok := CreatesRole(tc.creator)
		if !ok {
			t.Errorf("CreatesRole(%q) ok = false, want true", tc.creator)
		}
		if got != tc.want {
			t.Errorf("CreatesRole(%q) = %q, want %q", tc.creator, got, tc.want)
		}
	}
}

func TestCreatesRole_UserAndUnknown_CannotCreate(t *testing.T) {
	for _, r := range []Role{User, "", "ROOT"} {
		if _, ok := CreatesRole(r); ok {
			t.Errorf("CreatesRole(%q) ok = true, want false", r)
		}
	}
}

func TestCreatePath_MapsCreatedRole(t *testing.T) {
	cases := []struct {
		created Role
		want    string
	}{
		{Admin, "/create-admin"},
		{UnitManager, "/create-unit-manager"},
		{User, "/create-user"},
	}

	for _, tc := range cases {
		got, ok := CreatePath(tc.created)
		if !ok {
			t.Errorf("CreatePath(%q) ok = false, want true", tc.created)
		}
		if got != tc.want {
			t.Errorf("CreatePath(%q) = %q, want %q", tc.created, got, tc.want)
		}
	}
}

func TestCreatePath_SuperAdmin_NotCreatable(t *testing.T) {
	// SUPER_ADMINは誰からも作成されない
	if _, ok := CreatePath(SuperAdmin); ok {
		t.Error("CreatePath(SuperAdmin) ok = true, want false")
	}
}

func TestLandingPath_SuperAdminLandsOnDashboard(t *testing.T) {
	if got := LandingPath(SuperAdmin); got != PathDashboard {
		t.Errorf("LandingPath(SuperAdmin) = %q, want %q", got, PathDashboard)
	}
}

func TestLandingPath_OtherRolesLandOnInvoice(t *testing.T) {
	for _, r := range []Role{Admin, UnitManager, User} {
		if got := LandingPath(r); got != PathInvoice {
			t.Errorf("LandingPath(%q) = %q, want %q", r, got, PathInvoice)
		}
	}
}

func TestRouteBinding_Allows(t *testing.T) {
	binding := RouteBinding{
		Path:         PathDashboard,
		AllowedRoles: []Role{SuperAdmin, Admin},
	}

	if !binding.Allows(SuperAdmin) {
		t.Error("Allows(SuperAdmin) = false, want true")
	}
	if binding.Allows(User) {
		t.Error("Allows(User) = true, want false")
	}
}

func TestRouteBinding_EmptyAllowList_DeniesAll(t *testing.T) {
	// 許可リストが空の束縛は全ロールを拒否する
	binding := RouteBinding{Path: "/somewhere"}

	for _, r := range []Role{SuperAdmin, Admin, UnitManager, User} {
		if binding.Allows(r) {
			t.Errorf("空の許可リストで Allows(%q) = true, want false", r)
		}
	}
}

func TestBindingFor_Dashboard_ExcludesUser(t *testing.T) {
	binding := BindingFor(PathDashboard)

	for _, r := range []Role{SuperAdmin, Admin, UnitManager} {
		if !binding.Allows(r) {
			t.Errorf("ダッシュボードで Allows(%q) = false, want true", r)
		}
	}
	if binding.Allows(User) {
		t.Error("ダッシュボードで Allows(User) = true, want false")
	}
}

func TestBindingFor_Invoice_AllowsAllRoles(t *testing.T) {
	binding := BindingFor(PathInvoice)

	for _, r := range []Role{SuperAdmin, Admin, UnitManager, User} {
		if !binding.Allows(r) {
			t.Errorf("請求書画面で Allows(%q) = false, want true", r)
		}
	}
}

func TestBindingFor_UnknownPath_DeniesAll(t *testing.T) {
	binding := BindingFor("/unknown-page")

	for _, r := range []Role{SuperAdmin, Admin, UnitManager, User} {
		if binding.Allows(r) {
			t.Errorf("未定義パスで Allows(%q) = true, want false", r)
		}
	}
}
