package gate_test

import (
	"errors"
	"testing"

	"github.com/diewo77/labdesk/internal/gate"
)

func TestStaticRole_HasPermission(t *testing.T) {
	r := gate.NewStaticRole("staff", "lab_request:*", gate.NewPermission("export", gate.ActionExport))
	if !r.HasPermission("lab_request:set-status") {
		t.Error("wildcard should grant set-status")
	}
	if !r.HasPermission("export:export") {
		t.Error("exact permission should be granted")
	}
	if r.HasPermission("user:manage") {
		t.Error("user:manage should be denied")
	}
	if got := r.Permissions(); len(got) != 2 || got[0] != "export:export" {
		t.Errorf("unexpected permissions %v", got)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	reg := gate.NewRegistry(gate.NewStaticRole("client"), gate.NewStaticRole("staff"))
	r, err := reg.Lookup("staff")
	if err != nil || r.Name() != "staff" {
		t.Fatalf("expected staff role, got %v %v", r, err)
	}
	if _, err := reg.Lookup("root"); !errors.Is(err, gate.ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole, got %v", err)
	}
}
