package wire

import "testing"

func TestOpcodeString(t *testing.T) {
	if OpLookup.String() != "LOOKUP" {
		t.Errorf("got %q", OpLookup.String())
	}
	if Opcode(999).String() != "UNKNOWN" {
		t.Errorf("unregistered opcode should stringify to UNKNOWN, got %q", Opcode(999).String())
	}
}

func TestOpcodeKnown(t *testing.T) {
	if !OpInit.Known() {
		t.Error("OpInit should be known")
	}
	if Opcode(999).Known() {
		t.Error("arbitrary opcode 999 should not be known")
	}
}
