package probe

import "testing"

func TestDefaultRegistryHasAllGuestProbes(t *testing.T) {
	symbols := []string{
		"test_fibonacci",
		"bench_math",
		"test_cos",
		"test_sqrt",
		"test_pow",
		"test_memcpy",
		"test_bkpt",
	}

	for _, sym := range symbols {
		if _, ok := DefaultRegistry.Lookup(sym); !ok {
			t.Errorf("probe %q not registered", sym)
		}
	}

	if got := DefaultRegistry.Count(); got != len(symbols) {
		t.Errorf("registry has %d probes, want %d", got, len(symbols))
	}
}

func TestRegistryAliasLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(GuestProbe{
		Symbol:  "test_thing",
		Aliases: []string{"thing", "bench_thing"},
	})

	for _, name := range []string{"test_thing", "thing", "bench_thing"} {
		p, ok := r.Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%q) failed", name)
		}
		if p.Symbol != "test_thing" {
			t.Errorf("Lookup(%q) resolved to %q", name, p.Symbol)
		}
	}

	if _, ok := r.Lookup("nope"); ok {
		t.Error("Lookup of unknown name succeeded")
	}
}

func TestRegistryOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(GuestProbe{Symbol: "a"})
	r.Register(GuestProbe{Symbol: "b"})
	r.Register(GuestProbe{Symbol: "c"})

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("All() returned %d probes, want 3", len(all))
	}
	for i, want := range []string{"a", "b", "c"} {
		if all[i].Symbol != want {
			t.Errorf("probe %d = %q, want %q", i, all[i].Symbol, want)
		}
	}
}

func TestFindNative(t *testing.T) {
	p, ok := FindNative("fibonacci")
	if !ok {
		t.Fatal("FindNative(fibonacci) failed")
	}
	if p.Name != "fibonacci" {
		t.Errorf("got probe %q", p.Name)
	}

	if _, ok := FindNative("nonexistent"); ok {
		t.Error("FindNative of unknown probe succeeded")
	}
}
