package gate_test

import (
	"testing"

	"github.com/diewo77/labdesk/internal/gate"
)

func TestPermission_Parse(t *testing.T) {
	res, act := gate.NewPermission("lab_request", gate.ActionSetStatus).Parse()
	if res != "lab_request" || act != gate.ActionSetStatus {
		t.Errorf("unexpected parse result %q %q", res, act)
	}
	res, act = gate.Permission("garbage").Parse()
	if res != "" || act != "" {
		t.Errorf("expected empty parse for malformed permission, got %q %q", res, act)
	}
}

func TestPermission_Matches(t *testing.T) {
	tests := []struct {
		granted   gate.Permission
		requested gate.Permission
		want      bool
	}{
		{gate.PermissionAll, "lab_request:view", true},
		{"lab_request:view", "lab_request:view", true},
		{"lab_request:view", "lab_request:update", false},
		{"lab_request:*", "lab_request:set-status", true},
		{"lab_request:*", "consultancy_request:view", false},
		{"garbage", "garbage:view", false},
	}
	for _, tt := range tests {
		if got := tt.granted.Matches(tt.requested); got != tt.want {
			t.Errorf("%s.Matches(%s) = %v, want %v", tt.granted, tt.requested, got, tt.want)
		}
	}
}
