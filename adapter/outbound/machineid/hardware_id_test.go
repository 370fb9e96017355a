package machineid

import "testing"

func TestHardwareMachineID_Override(t *testing.T) {
	id, err := NewHardwareMachineID("fixed-node").GetMachineID()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id != "fixed-node" {
		t.Errorf("Expected override to be returned, got %q", id)
	}
}
