package helpers

import (
	"regexp"
	"strings"
)

type genreRule struct {
	name    string
	phrases []string
}

// genreRules is ordered: the first matching genre wins, so more specific
// genres must precede the ones they contain.
var genreRules = []genreRule{
	{"science fiction", []string{"science fiction", "sci-fi", "sci fi", "scifi"}},
	{"historical fiction", []string{"historical fiction", "period drama"}},
	{"fantasy", []string{"fantasy"}},
	{"thriller", []string{"thriller", "suspense"}},
	{"romance", []string{"romance", "love story", "romantic"}},
	{"mystery", []string{"mystery", "detective", "whodunit"}},
	{"non-fiction", []string{"non-fiction", "nonfiction", "real story"}},
	{"history", []string{"history", "historical"}},
	{"horror", []string{"horror", "scary", "ghost"}},
	{"biography", []string{"biography", "life of", "memoir"}},
	{"self-help", []string{"self-help", "self help", "motivation", "inspirational"}},
	{"young adult", []string{"young adult", "ya"}},
	{"poetry", []string{"poetry", "poems"}},
	{"philosophy", []string{"philosophy", "ethics"}},
	{"comedy", []string{"comedy", "funny", "humor", "humour"}},
	{"drama", []string{"drama"}},
}

var nonWord = regexp.MustCompile(`[^a-z0-9\s-]+`)

// ExtractGenre returns the canonical genre named in text, matching whole
// words only. ok is false when no known genre is mentioned.
func ExtractGenre(text string) (genre string, ok bool) {
	clean := " " + strings.Join(strings.Fields(nonWord.ReplaceAllString(strings.ToLower(text), " ")), " ") + " "
	for _, rule := range genreRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(clean, " "+phrase+" ") {
				return rule.name, true
			}
		}
	}
	return "", false
}
