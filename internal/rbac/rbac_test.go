package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "viewer read", role: RoleViewer, action: ActionRead, allow: true},
		{name: "viewer write", role: RoleViewer, action: ActionWrite, allow: false},
		{name: "viewer share", role: RoleViewer, action: ActionShare, allow: false},
		{name: "editor write", role: RoleEditor, action: ActionWrite, allow: true},
		{name: "editor share", role: RoleEditor, action: ActionShare, allow: false},
		{name: "owner share", role: RoleOwner, action: ActionShare, allow: true},
		{name: "no role read", role: Normalize("admin"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestShareable(t *testing.T) {
	if Shareable(RoleOwner) || Shareable("") {
		t.Fatal("owner and empty roles cannot be shared")
	}
	if !Shareable(RoleViewer) || !Shareable(RoleEditor) {
		t.Fatal("viewer and editor must be shareable")
	}
}
