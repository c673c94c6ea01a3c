package crdt

import "testing"

func TestOffsetOf(t *testing.T) {
	text := "ab\ncde\n"

	cases := []struct {
		p      Point
		offset int
	}{
		{Point{0, 0}, 0},
		{Point{0, 2}, 2},
		{Point{0, 9}, 2},
		{Point{1, 0}, 3},
		{Point{1, 3}, 6},
		{Point{2, 0}, 7},
		{Point{5, 0}, 7},
	}

	for _, c := range cases {
		if got := OffsetOf(text, c.p); got != c.offset {
			t.Errorf("OffsetOf(%v) should be %d, not %d", c.p, c.offset, got)
		}
		if c.p.Row < 2 && c.p.Column <= 3 && c.p != (Point{0, 9}) {
			if got := PointOf(text, c.offset); got != c.p {
				t.Errorf("PointOf(%d) should be %v, not %v", c.offset, c.p, got)
			}
		}
	}
}

func TestDiffRange(t *testing.T) {
	start, end, repl := DiffRange("hello", "hello world")
	if start != (Point{0, 5}) || end != (Point{0, 5}) || repl != " world" {
		t.Fatalf("got %v %v %q", start, end, repl)
	}

	start, end, repl = DiffRange("a\nbc\nd", "a\nd")
	if got := Splice("a\nbc\nd", start, end, repl); got != "a\nd" {
		t.Fatalf("splice yields %q", got)
	}

	start, end, repl = DiffRange("same", "same")
	if start != end || repl != "" {
		t.Fatalf("equal texts should yield an empty range, got %v %v %q", start, end, repl)
	}
}

func TestSplice(t *testing.T) {
	if got := Splice("héllo", Point{0, 1}, Point{0, 2}, "e"); got != "hello" {
		t.Fatalf("got %q", got)
	}
	if got := Splice("ab", Point{0, 2}, Point{0, 0}, ""); got != "" {
		t.Fatalf("reversed range should be normalised, got %q", got)
	}
}
