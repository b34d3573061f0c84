package log

import "testing"

func TestTraceCallback(t *testing.T) {
	l := NewNop()

	var gotPC uint64
	var gotCat, gotName, gotDetail string
	l.SetOnTrace(func(pc uint64, category, name, detail string) {
		gotPC, gotCat, gotName, gotDetail = pc, category, name, detail
	})

	l.Trace(0x8000, "call", "test_fibonacci", "args=1")
	if gotPC != 0x8000 || gotCat != "call" || gotName != "test_fibonacci" || gotDetail != "args=1" {
		t.Errorf("trace callback got (%#x, %q, %q, %q)", gotPC, gotCat, gotName, gotDetail)
	}

	l.TraceSimple("bkpt", "test_bkpt", "imm=0xa5")
	if gotPC != 0 || gotCat != "bkpt" {
		t.Errorf("TraceSimple got pc=%#x cat=%q, want pc=0 cat=bkpt", gotPC, gotCat)
	}
}

func TestBkptReachesTraceCallback(t *testing.T) {
	l := NewNop()

	var gotPC uint64
	var gotCat, gotDetail string
	calls := 0
	l.SetOnTrace(func(pc uint64, category, name, detail string) {
		calls++
		gotPC, gotCat, gotDetail = pc, category, detail
	})

	l.Bkpt(0x100, 0xA5)
	if calls != 1 {
		t.Fatalf("Bkpt fired %d trace callbacks, want 1", calls)
	}
	if gotPC != 0x100 || gotCat != "bkpt" || gotDetail != "imm=0xa5" {
		t.Errorf("Bkpt reported (%#x, %q, %q)", gotPC, gotCat, gotDetail)
	}
}

func TestSemihostReachesTraceCallback(t *testing.T) {
	l := NewNop()

	var gotCat, gotName string
	calls := 0
	l.SetOnTrace(func(pc uint64, category, name, detail string) {
		calls++
		gotCat, gotName = category, name
	})

	l.Semihost(0x102, "SYS_EXIT", "code=0")
	if calls != 1 {
		t.Fatalf("Semihost fired %d trace callbacks, want 1", calls)
	}
	if gotCat != "semihost" || gotName != "SYS_EXIT" {
		t.Errorf("Semihost reported (%q, %q), want (semihost, SYS_EXIT)", gotCat, gotName)
	}
}

func TestWithCategoryKeepsCallback(t *testing.T) {
	l := NewNop()

	called := false
	l.SetOnTrace(func(pc uint64, category, name, detail string) { called = true })

	l.WithCategory("semihost").Trace(0, "semihost", "SYS_WRITE0", "")
	if !called {
		t.Error("derived logger lost the trace callback")
	}
}

func TestHex(t *testing.T) {
	cases := []struct {
		in   uint64
		want string
	}{
		{0, "0x0"},
		{0x20000000, "0x20000000"},
		{0xBEAB, "0xbeab"},
	}
	for _, c := range cases {
		if got := Hex(c.in); got != c.want {
			t.Errorf("Hex(%#x) = %q, want %q", c.in, got, c.want)
		}
	}
}
