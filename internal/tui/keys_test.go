package tui

import "testing"

func TestKeyRegistryLookupByScope(t *testing.T) {
	r := NewKeyRegistry()

	call := r.Lookup("enter", scopePad)
	if call == nil || call.Action != actionCall {
		t.Fatalf("enter in pad scope = %v, want %q", call, actionCall)
	}

	if got := r.Lookup("q", scopeDest); got != nil {
		t.Fatalf("q must reach the text field, got %q", got.Action)
	}

	quit := r.Lookup("ctrl+c", scopeDest)
	if quit == nil || quit.Action != actionQuit {
		t.Fatal("expected global quit binding in destination scope")
	}

	for _, k := range digitKeys {
		b := r.Lookup(k, scopePad)
		if b == nil || b.Action != actionDigit {
			t.Fatalf("key %q not bound to a digit", k)
		}
	}
}

func TestKeyRegistrySpaceAlias(t *testing.T) {
	r := NewKeyRegistry()
	b := r.Lookup(" ", scopePad)
	if b == nil || b.Action != actionPress {
		t.Fatalf("space lookup = %v, want %q", b, actionPress)
	}
}

func TestKeyRegistryNoDuplicateInSameScope(t *testing.T) {
	r := &KeyRegistry{
		bindingsByScope: make(map[string][]*Binding),
		indexByScope:    make(map[string]map[string]*Binding),
	}

	r.Register(Binding{Action: actionCall, Keys: []string{"x"}, Help: "first", Scopes: []string{"scope_a"}})
	r.Register(Binding{Action: actionQuit, Keys: []string{"x"}, Help: "duplicate", Scopes: []string{"scope_a"}})
	r.Register(Binding{Action: actionQuit, Keys: []string{"x"}, Help: "different scope", Scopes: []string{"scope_b"}})

	a := r.BindingsForScope("scope_a")
	if len(a) != 1 || a[0].Action != actionCall {
		t.Fatalf("scope_a bindings = %+v, want single %q", a, actionCall)
	}
	b := r.BindingsForScope("scope_b")
	if len(b) != 1 || b[0].Action != actionQuit {
		t.Fatalf("scope_b bindings = %+v, want single %q", b, actionQuit)
	}
}

func TestKeyRegistryHelpBindings(t *testing.T) {
	r := NewKeyRegistry()

	help := r.HelpBindings(scopePad)
	if len(help) != len(r.BindingsForScope(scopePad))+len(r.BindingsForScope(scopeGlobal)) {
		t.Fatalf("help binding count = %d", len(help))
	}
	entry := help[0].Help()
	if entry.Key != "0-9*#" {
		t.Fatalf("help key = %q, want %q", entry.Key, "0-9*#")
	}
	if entry.Desc != "key" {
		t.Fatalf("help desc = %q, want %q", entry.Desc, "key")
	}
}
