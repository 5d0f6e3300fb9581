package app_test

import (
	"testing"

	"pairlearn-service/internal/app"
)

func TestIdentityRegistrySwap(t *testing.T) {
	reg := app.NewIdentityRegistry()

	if old := reg.Register("Aki", "R1"); old != "" {
		t.Fatalf("first registration returned old room %q", old)
	}
	if old := reg.Register("Aki", "R1"); old != "" {
		t.Fatalf("re-registering same room returned %q", old)
	}
	if old := reg.Register("Aki", "R2"); old != "R1" {
		t.Fatalf("expected R1 retired, got %q", old)
	}
	if room, ok := reg.CurrentRoom("Aki"); !ok || room != "R2" {
		t.Fatalf("expected current room R2, got %q (%v)", room, ok)
	}
}

func TestIdentityRegistryRemoveGuardsStaleRoom(t *testing.T) {
	reg := app.NewIdentityRegistry()

	reg.Register("Aki", "R1")
	reg.Register("Aki", "R2")

	// A stale removal for the retired room must not clobber the new entry.
	reg.Remove("Aki", "R1")
	if room, ok := reg.CurrentRoom("Aki"); !ok || room != "R2" {
		t.Fatalf("stale removal clobbered registration, got %q (%v)", room, ok)
	}

	reg.Remove("Aki", "R2")
	if _, ok := reg.CurrentRoom("Aki"); ok {
		t.Fatalf("expected registration deleted")
	}
}
