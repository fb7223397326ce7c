package helpers

import "testing"

func TestExtractGenre(t *testing.T) {
	cases := []struct {
		in    string
		genre string
		ok    bool
	}{
		{"Suggest the best horror book", "horror", true},
		{"any good sci-fi novels?", "science fiction", true},
		{"A Historical Fiction pick, please", "historical fiction", true},
		{"something scary for halloween!", "horror", true},
		{"recommend a whodunit", "mystery", true},
		{"books for YA readers", "young adult", true},
		{"a book about cooking", "", false},
		{"yard work manuals", "", false},
	}
	for _, tc := range cases {
		genre, ok := ExtractGenre(tc.in)
		if ok != tc.ok || genre != tc.genre {
			t.Fatalf("ExtractGenre(%q) = (%q, %v), want (%q, %v)", tc.in, genre, ok, tc.genre, tc.ok)
		}
	}
}
