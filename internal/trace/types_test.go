package trace

import "testing"

func TestTags(t *testing.T) {
	var tags Tags
	tags.Add(Bkpt)
	tags.Add(Probe)
	tags.Add(Bkpt) // duplicate ignored

	if len(tags) != 2 {
		t.Errorf("len(tags) = %d, want 2", len(tags))
	}
	if !tags.Has(Bkpt) || !tags.Has(Probe) {
		t.Error("missing expected tags")
	}
	if tags.Primary() != Bkpt {
		t.Errorf("Primary() = %q, want bkpt", tags.Primary())
	}

	strs := tags.Strings()
	if strs[0] != "#bkpt" {
		t.Errorf("Strings()[0] = %q, want #bkpt", strs[0])
	}
}

func TestEventAnnotations(t *testing.T) {
	e := NewEvent(0x1000, "probe", "bench_math", "seed=5")
	e.Annotate("rounds", "10000")

	if !e.Annotations.Has("rounds") {
		t.Error("annotation missing")
	}
	if e.Annotations.Get("rounds") != "10000" {
		t.Errorf("annotation = %q", e.Annotations.Get("rounds"))
	}
	if e.PrimaryTag() != "#probe" {
		t.Errorf("PrimaryTag() = %q", e.PrimaryTag())
	}
}

func TestDefaultEnricher(t *testing.T) {
	e := NewEvent(0, "semihost", "SYS_EXIT", "")
	DefaultEnricher(e)
	if !e.Tags.Has(Exit) {
		t.Error("SYS_EXIT not tagged #exit")
	}

	e = NewEvent(0, "probe", "test_memcpy", "")
	DefaultEnricher(e)
	if !e.Tags.Has(Copy) {
		t.Error("test_memcpy not tagged #copy")
	}

	e = NewEvent(0, "bkpt", "", "imm=0xa5")
	DefaultEnricher(e)
	if !e.Tags.Has(Probe) {
		t.Error("bkpt not tagged #probe")
	}
}
