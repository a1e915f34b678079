package library

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortNatural orders names with embedded numeric runs compared as integers,
// so "2-intro.mp3" sorts before "10-outro.mp3". Collators are not safe for
// concurrent use, so each call builds its own.
func SortNatural(names []string) {
	collate.New(language.Und, collate.Numeric).SortStrings(names)
}

// CompareNatural reports the natural ordering of a and b: -1, 0 or +1.
func CompareNatural(a, b string) int {
	return collate.New(language.Und, collate.Numeric).CompareString(a, b)
}
