package utils

import "testing"

func TestAlign16(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 0},
		{1, 16},
		{15, 16},
		{16, 32},
		{17, 32},
		{31, 32},
		{32, 48},
	}
	for _, c := range cases {
		if got := Align16(c.in); got != c.want {
			t.Errorf("Align16(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestAlign16AlwaysMultipleOf16(t *testing.T) {
	for n := 0; n < 200; n++ {
		got := Align16(n)
		if got%16 != 0 {
			t.Fatalf("Align16(%d) = %d, not a multiple of 16", n, got)
		}
		if n > 0 && got <= n {
			t.Fatalf("Align16(%d) = %d, must be strictly greater than n", n, got)
		}
	}
}

func TestAssertPanicsOnFalse(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Assert(false, ...) did not panic")
		}
	}()
	Assert(false, "boom %d", 1)
}

func TestAssertNoPanicOnTrue(t *testing.T) {
	Assert(true, "never shown")
}

func TestLabelAndPoolNaming(t *testing.T) {
	if LabelName(0) != "L0" || LabelName(3) != "L3" {
		t.Error("unexpected LabelName output")
	}
	if StrSymbol(2) != "STR2" {
		t.Error("unexpected StrSymbol output")
	}
	if FltSymbol(5) != "FLT5" {
		t.Error("unexpected FltSymbol output")
	}
}

func TestSet(t *testing.T) {
	s := NewSet[string]()
	if !s.Add("a") {
		t.Fatal("first Add of a fresh element must return true")
	}
	if s.Add("a") {
		t.Fatal("second Add of the same element must return false")
	}
	if !s.Contains("a") {
		t.Fatal("Contains must report the added element")
	}
	if s.Length() != 1 {
		t.Fatalf("Length() = %d, want 1", s.Length())
	}
	if !s.Remove("a") {
		t.Fatal("Remove of a present element must return true")
	}
	if s.Contains("a") {
		t.Fatal("Contains must be false after Remove")
	}
}
