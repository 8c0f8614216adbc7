package domain

import "testing"

func TestWhitelistEmptyMeansAcceptAll(t *testing.T) {
	if set := Whitelist(nil); set != nil {
		t.Fatalf("Whitelist(nil) = %v, want nil", set)
	}
	if set := Whitelist([]BoxFilter{}); set != nil {
		t.Fatalf("Whitelist(empty) = %v, want nil", set)
	}
}

func TestWhitelistMembership(t *testing.T) {
	set := Whitelist([]BoxFilter{{FilterValue: "a@b.c"}, {FilterValue: "d@e.f"}})
	if _, ok := set["a@b.c"]; !ok {
		t.Fatal("expected a@b.c in whitelist")
	}
	if _, ok := set["z@z.z"]; ok {
		t.Fatal("did not expect z@z.z in whitelist")
	}
}
