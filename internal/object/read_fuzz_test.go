package object

import "testing"

// FuzzRead checks that whatever Read accepts, Show renders back to text
// Read accepts again with the same rendering.
func FuzzRead(f *testing.F) {
	for _, seed := range []string{"42", "-7", "5L", "1.5f", "2.5", "'x'", `"a\tb"`, "()", "(1,)",
		"[1,[2]]", "{a=1,b=(2,3)}", "Some (Pair 1)", "NaN", "[None,Just \"x\"]"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, text string) {
		v, err := Read(text)
		if err != nil {
			return
		}
		ctx := newTestContext()
		shown, err := Show(ctx, v)
		if err != nil {
			t.Fatalf("Show(Read(%q)): %v", text, err)
		}
		back, err := Read(shown)
		if err != nil {
			t.Fatalf("Read(%q) of the rendering of %q: %v", shown, text, err)
		}
		if again, _ := Show(ctx, back); again != shown {
			t.Errorf("%q renders as %q, then as %q", text, shown, again)
		}
	})
}
